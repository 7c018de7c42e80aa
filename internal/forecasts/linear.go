package forecasts

import (
	"context"
	"fmt"
	"math"

	"courtwind/internal/types"
)

// Scaler holds per-column standardization parameters.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// LinearHead is a linear readout over a flattened, standardized window.
// Weights are laid out row-major: row 0 column 0, row 0 column 1, ...
type LinearHead struct {
	Weights []float64
	Bias    float64
}

// LinearSequenceModel applies one linear head per horizon to the standardized,
// flattened window, with an optional second set of heads for the tail. It is
// immutable after construction and safe for concurrent use.
type LinearSequenceModel struct {
	name         string
	windowLength int
	columns      int
	mean         []float64
	std          []float64
	median       map[types.Horizon]LinearHead
	tail         map[types.Horizon]LinearHead
}

// NewLinearSequenceModel validates the parameters and returns a model. A
// scaler std of zero is replaced by one. tail may be nil.
func NewLinearSequenceModel(
	name string,
	windowLength int,
	scaler Scaler,
	median map[types.Horizon]LinearHead,
	tail map[types.Horizon]LinearHead,
) (*LinearSequenceModel, error) {
	if windowLength <= 0 {
		return nil, types.ConfigError("window length must be positive, got %d", windowLength)
	}
	columns := len(scaler.Mean)
	if columns == 0 || len(scaler.Std) != columns {
		return nil, types.ConfigError("scaler mean and std must be non-empty and equal length (mean=%d std=%d)", len(scaler.Mean), len(scaler.Std))
	}
	if len(median) == 0 {
		return nil, types.ConfigError("model %q has no median heads", name)
	}

	want := windowLength * columns
	check := func(kind string, heads map[types.Horizon]LinearHead) error {
		for h, head := range heads {
			if len(head.Weights) != want {
				return types.ConfigError("%s head %s has %d weights, want %d", kind, h, len(head.Weights), want)
			}
		}
		return nil
	}
	if err := check("median", median); err != nil {
		return nil, err
	}
	if err := check("tail", tail); err != nil {
		return nil, err
	}

	std := make([]float64, columns)
	for i, s := range scaler.Std {
		if s == 0 || math.IsNaN(s) {
			s = 1
		}
		std[i] = s
	}

	return &LinearSequenceModel{
		name:         name,
		windowLength: windowLength,
		columns:      columns,
		mean:         append([]float64(nil), scaler.Mean...),
		std:          std,
		median:       median,
		tail:         tail,
	}, nil
}

// Name implements Model.
func (m *LinearSequenceModel) Name() string { return m.name }

// Horizons returns the horizons the model has median heads for, ascending.
func (m *LinearSequenceModel) Horizons() []types.Horizon {
	hs := make([]types.Horizon, 0, len(m.median))
	for h := range m.median {
		hs = append(hs, h)
	}
	return types.SortHorizons(hs)
}

// Predict implements Model. Negative outputs are floored at zero.
func (m *LinearSequenceModel) Predict(_ context.Context, window types.FeatureWindow, horizons []types.Horizon) (map[types.Horizon]Prediction, error) {
	if window.Len() != m.windowLength {
		return nil, types.ConfigError("window has %d rows, model %q expects %d", window.Len(), m.name, m.windowLength)
	}

	x := make([]float64, 0, m.windowLength*m.columns)
	for i, row := range window.Rows {
		if len(row.Values) != m.columns {
			return nil, types.ConfigError("row %d has %d values, model %q expects %d", i, len(row.Values), m.name, m.columns)
		}
		for j, v := range row.Values {
			x = append(x, (v-m.mean[j])/m.std[j])
		}
	}

	out := make(map[types.Horizon]Prediction, len(horizons))
	for _, h := range horizons {
		head, ok := m.median[h]
		if !ok {
			return nil, types.NewAppError(types.ErrCodeForecastModelUnavailable, fmt.Sprintf("model %q has no head for horizon %s", m.name, h), nil)
		}
		p := Prediction{Median: math.Max(0, head.apply(x))}
		if th, ok := m.tail[h]; ok {
			t := math.Max(0, th.apply(x))
			p.Tail = &t
		}
		out[h] = p
	}
	return out, nil
}

func (h LinearHead) apply(x []float64) float64 {
	sum := h.Bias
	for i, w := range h.Weights {
		sum += w * x[i]
	}
	return sum
}
