package features

import (
	"time"

	"courtwind/internal/types"
)

// Config controls feature construction. The zero value is not usable; start
// from DefaultConfig.
type Config struct {
	// Cadence is the nominal sampling interval. Observations are regularized
	// onto this grid before any feature is computed.
	Cadence time.Duration
	// LagOffsets are the wind speed lookbacks, in cadence steps, ascending.
	LagOffsets []int
	// GustLagOffsets are the wind gust lookbacks, in cadence steps, ascending.
	GustLagOffsets []int
	// PressureTendencySteps is k in (p[t] - p[t-k]) / k.
	PressureTendencySteps int
	// RollingWindow is the trailing window for wind speed statistics,
	// including the current row.
	RollingWindow int
	// MaxGapSteps is the largest number of consecutive missing grid points
	// that is filled by interpolation. Longer gaps split the series.
	MaxGapSteps int
}

// DefaultConfig returns the hourly configuration the wind model is trained with.
func DefaultConfig() Config {
	return Config{
		Cadence:               time.Hour,
		LagOffsets:            []int{1, 2, 3, 6, 12, 24},
		GustLagOffsets:        []int{1, 2, 3},
		PressureTendencySteps: 3,
		RollingWindow:         3,
		MaxGapSteps:           3,
	}
}

// Validate returns a ConfigurationError describing the first invalid field.
func (c Config) Validate() error {
	if c.Cadence <= 0 {
		return types.ConfigError("feature cadence must be positive, got %s", c.Cadence)
	}
	if len(c.LagOffsets) == 0 {
		return types.ConfigError("at least one wind speed lag offset is required")
	}
	if err := validateOffsets("lag_offsets", c.LagOffsets); err != nil {
		return err
	}
	if err := validateOffsets("gust_lag_offsets", c.GustLagOffsets); err != nil {
		return err
	}
	if c.PressureTendencySteps <= 0 {
		return types.ConfigError("pressure tendency steps must be positive, got %d", c.PressureTendencySteps)
	}
	if c.RollingWindow <= 0 {
		return types.ConfigError("rolling window must be positive, got %d", c.RollingWindow)
	}
	if c.MaxGapSteps < 0 {
		return types.ConfigError("max_gap_steps must not be negative, got %d", c.MaxGapSteps)
	}
	return nil
}

func validateOffsets(name string, offsets []int) error {
	for i, o := range offsets {
		if o <= 0 {
			return types.ConfigError("%s must be positive, got %d", name, o)
		}
		if i > 0 && o <= offsets[i-1] {
			return types.ConfigError("%s must be strictly ascending, got %v", name, offsets)
		}
	}
	return nil
}

// RequiredHistory is the number of preceding rows in the same segment a row
// needs before every feature is defined. Rows with less history are excluded.
func (c Config) RequiredHistory() int {
	need := c.PressureTendencySteps
	if n := len(c.LagOffsets); n > 0 && c.LagOffsets[n-1] > need {
		need = c.LagOffsets[n-1]
	}
	if n := len(c.GustLagOffsets); n > 0 && c.GustLagOffsets[n-1] > need {
		need = c.GustLagOffsets[n-1]
	}
	if c.RollingWindow-1 > need {
		need = c.RollingWindow - 1
	}
	return need
}
