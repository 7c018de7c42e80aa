package modelstore

import (
	"courtwind/internal/forecasts"
	"courtwind/internal/types"
)

// Model kinds a manifest may declare.
const (
	KindLinear      = "linear"
	KindPersistence = "persistence"
)

// Manifest describes a trained model artifact.
//
// The weights blob holds, for each horizon in Horizons order, the median head's
// WindowLength*len(FeatureColumns) weights followed by its bias, all as
// little-endian float32. When TailHead is set the tail heads follow in the
// same layout.
type Manifest struct {
	Name           string                    `json:"name"`
	Kind           string                    `json:"kind"`
	Version        string                    `json:"version"`
	WindowLength   int                       `json:"window_length"`
	Horizons       []int                     `json:"horizons"`
	FeatureColumns []string                  `json:"feature_columns"`
	Scaler         forecasts.Scaler          `json:"scaler"`
	WeightsKey     string                    `json:"weights_key,omitempty"`
	TailHead       bool                      `json:"tail_head,omitempty"`
	ResidualQ90    map[types.Horizon]float64 `json:"residual_q90,omitempty"`
}

// Validate checks internal consistency.
func (m *Manifest) Validate() error {
	switch m.Kind {
	case KindPersistence:
		return nil
	case KindLinear:
	default:
		return types.ConfigError("unsupported model kind %q", m.Kind)
	}
	if m.WindowLength <= 0 {
		return types.ConfigError("manifest window_length must be positive, got %d", m.WindowLength)
	}
	if len(m.Horizons) == 0 {
		return types.ConfigError("manifest declares no horizons")
	}
	for _, h := range m.Horizons {
		if h <= 0 {
			return types.ConfigError("manifest horizon must be positive, got %d", h)
		}
	}
	if len(m.FeatureColumns) == 0 {
		return types.ConfigError("manifest declares no feature columns")
	}
	if len(m.Scaler.Mean) != len(m.FeatureColumns) || len(m.Scaler.Std) != len(m.FeatureColumns) {
		return types.ConfigError("scaler has %d/%d entries for %d feature columns",
			len(m.Scaler.Mean), len(m.Scaler.Std), len(m.FeatureColumns))
	}
	if m.WeightsKey == "" {
		return types.ConfigError("manifest weights_key is required for kind %q", m.Kind)
	}
	return nil
}

// weightCount is the number of float32 values the weights blob must contain.
func (m *Manifest) weightCount() int {
	perHead := m.WindowLength*len(m.FeatureColumns) + 1
	n := len(m.Horizons) * perHead
	if m.TailHead {
		n *= 2
	}
	return n
}

// HorizonList returns the manifest horizons as types.Horizon values.
func (m *Manifest) HorizonList() []types.Horizon {
	hs := make([]types.Horizon, len(m.Horizons))
	for i, h := range m.Horizons {
		hs[i] = types.Horizon(h)
	}
	return hs
}
