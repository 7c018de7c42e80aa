package forecasts

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"courtwind/internal/types"
)

// ClampFunc is called whenever a tail estimate below its median is raised to
// the median.
type ClampFunc func(ctx context.Context, h types.Horizon, median, tail float64)

// ForecasterOption configures a Forecaster.
type ForecasterOption func(*Forecaster)

// WithClampHook registers fn to observe tail clamps.
func WithClampHook(fn ClampFunc) ForecasterOption {
	return func(f *Forecaster) {
		f.onClamp = fn
	}
}

// Forecaster runs a Handle against a window and enforces the output contract:
// every requested horizon present, finite values, tail >= median.
type Forecaster struct {
	logger  *slog.Logger
	onClamp ClampFunc
}

// NewForecaster creates a Forecaster.
func NewForecaster(logger *slog.Logger, opts ...ForecasterOption) *Forecaster {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Forecaster{logger: logger}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forecast produces one HorizonForecast per requested horizon.
//
// A nil handle or model is a ForecastError. Empty or non-positive horizons and
// a window that does not match the handle's schema or length are
// ConfigurationErrors. Model failures are returned as ForecastErrors.
func (f *Forecaster) Forecast(ctx context.Context, handle *Handle, window types.FeatureWindow, horizons []types.Horizon) (types.ForecastSet, error) {
	if handle == nil || handle.Model == nil {
		return nil, types.NewAppError(types.ErrCodeForecastModelUnavailable, "no forecast model loaded", nil)
	}
	if err := checkHorizons(horizons); err != nil {
		return nil, err
	}
	if handle.Schema != nil && !handle.Schema.Equal(window.Schema) {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeConfigInvalid,
			"window schema does not match the model's training schema", nil,
			map[string]any{"model_columns": len(handle.Schema), "window_columns": len(window.Schema)})
	}
	if handle.WindowLength > 0 && window.Len() != handle.WindowLength {
		return nil, types.ConfigError("window has %d rows, model expects %d", window.Len(), handle.WindowLength)
	}

	hs := types.SortHorizons(horizons)
	start := time.Now()
	preds, err := handle.Model.Predict(ctx, window, hs)
	if err != nil {
		return nil, asForecastError(handle.Model.Name(), err)
	}
	f.logger.DebugContext(ctx, "model inference completed",
		"model", handle.Model.Name(),
		"horizons", len(hs),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return f.assemble(ctx, handle, hs, preds)
}

// PersistenceForecast forecasts latest at every horizon, for callers that have
// no feature window at all. A nil tail selects ScalingTail with the default
// factor.
func (f *Forecaster) PersistenceForecast(ctx context.Context, latest float64, horizons []types.Horizon, tail TailEstimator) (types.ForecastSet, error) {
	if err := checkHorizons(horizons); err != nil {
		return nil, err
	}
	handle := NewPersistenceHandle(tail)
	hs := types.SortHorizons(horizons)
	preds := make(map[types.Horizon]Prediction, len(hs))
	for _, h := range hs {
		preds[h] = Prediction{Median: latest}
	}
	return f.assemble(ctx, handle, hs, preds)
}

func (f *Forecaster) assemble(ctx context.Context, handle *Handle, hs []types.Horizon, preds map[types.Horizon]Prediction) (types.ForecastSet, error) {
	tailEst := handle.Tail
	if tailEst == nil {
		tailEst = ScalingTail{Factor: DefaultTailFactor}
	}
	name := handle.Model.Name()

	out := make(types.ForecastSet, len(hs))
	for _, h := range hs {
		p, ok := preds[h]
		if !ok {
			return nil, types.NewAppError(types.ErrCodeForecastInferenceFailed,
				fmt.Sprintf("model %q returned no prediction for horizon %s", name, h), nil)
		}

		var tail float64
		if p.Tail != nil {
			tail = *p.Tail
		} else {
			tail = tailEst.Tail(h, p.Median)
		}
		if !finite(p.Median) || !finite(tail) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeForecastInferenceFailed,
				fmt.Sprintf("model %q produced a non-finite forecast for horizon %s", name, h), nil,
				map[string]any{"median": fmt.Sprint(p.Median), "tail": fmt.Sprint(tail)})
		}

		if tail < p.Median {
			f.logger.WarnContext(ctx, "tail estimate below median, clamping",
				"model", name,
				"horizon", h.String(),
				"median", p.Median,
				"tail", tail,
			)
			if f.onClamp != nil {
				f.onClamp(ctx, h, p.Median, tail)
			}
			tail = p.Median
		}

		out[h] = types.HorizonForecast{Horizon: h, Median: p.Median, Tail: tail, Source: name}
	}
	return out, nil
}

func checkHorizons(horizons []types.Horizon) error {
	if len(horizons) == 0 {
		return types.ConfigError("at least one forecast horizon is required")
	}
	for _, h := range horizons {
		if h <= 0 {
			return types.ConfigError("forecast horizon must be positive, got %d", int(h))
		}
	}
	return nil
}

// asForecastError keeps recognised core errors and wraps anything else as an
// inference failure.
func asForecastError(model string, err error) error {
	if types.IsForecastError(err) ||
		types.HasCode(err, types.ErrCodeConfigInvalid) ||
		types.HasCode(err, types.ErrCodeInsufficientHistory) {
		return err
	}
	return types.NewAppError(types.ErrCodeForecastInferenceFailed, fmt.Sprintf("model %q inference failed", model), err)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
