package forecasts

import "courtwind/internal/types"

// DefaultTailFactor is the multiplier ScalingTail applies when none is set.
const DefaultTailFactor = 1.2

// TailEstimator derives a conservative upper estimate from a median forecast.
// It is consulted only for models without a tail head.
type TailEstimator interface {
	Name() string
	Tail(h types.Horizon, median float64) float64
}

// ScalingTail is the median multiplied by a constant factor. It is a heuristic
// with known calibration limits; prefer ResidualQuantileTail when validation
// residuals exist.
type ScalingTail struct {
	Factor float64
}

// Name implements TailEstimator.
func (ScalingTail) Name() string { return "scaling" }

// Tail implements TailEstimator.
func (s ScalingTail) Tail(_ types.Horizon, median float64) float64 {
	f := s.Factor
	if f <= 0 {
		f = DefaultTailFactor
	}
	return median * f
}

// ResidualQuantileTail adds a per-horizon quantile of absolute validation
// residuals (typically q90) to the median. Horizons without a quantile use
// Fallback, or ScalingTail with the default factor when Fallback is nil.
type ResidualQuantileTail struct {
	Quantiles map[types.Horizon]float64
	Fallback  TailEstimator
}

// Name implements TailEstimator.
func (ResidualQuantileTail) Name() string { return "residual_quantile" }

// Tail implements TailEstimator.
func (r ResidualQuantileTail) Tail(h types.Horizon, median float64) float64 {
	if q, ok := r.Quantiles[h]; ok {
		return median + q
	}
	if r.Fallback != nil {
		return r.Fallback.Tail(h, median)
	}
	return median * DefaultTailFactor
}
