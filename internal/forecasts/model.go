// Package forecasts turns a feature window into per-horizon median and tail
// wind-speed forecasts.
//
// A Handle bundles a loaded Model with the TailEstimator used when the model
// has no tail head of its own. Handles are loaded once by the caller and shared
// read-only; nothing in this package holds process-wide state.
package forecasts

import (
	"context"

	"courtwind/internal/types"
)

// Prediction is one horizon of raw model output in m/s. Tail is nil when the
// model has no second head.
type Prediction struct {
	Median float64
	Tail   *float64
}

// Model produces raw predictions for a window. Implementations must be safe
// for concurrent use.
type Model interface {
	Name() string
	Predict(ctx context.Context, window types.FeatureWindow, horizons []types.Horizon) (map[types.Horizon]Prediction, error)
}

// Handle is a loaded, read-only forecast model.
type Handle struct {
	Model Model
	Tail  TailEstimator

	// Schema is the column order the model was trained on. Nil accepts any
	// window schema.
	Schema types.Schema
	// WindowLength is the number of rows the model expects. Zero accepts any.
	WindowLength int
	Version      string
}

// NewPersistenceHandle returns a handle around the persistence baseline. A nil
// tail estimator selects ScalingTail with the default factor.
func NewPersistenceHandle(tail TailEstimator) *Handle {
	if tail == nil {
		tail = ScalingTail{Factor: DefaultTailFactor}
	}
	return &Handle{Model: Persistence{}, Tail: tail, Version: types.SourcePersistence}
}
