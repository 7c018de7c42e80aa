package forecasts

import (
	"context"
	"fmt"

	"courtwind/internal/external"
	"courtwind/internal/types"
)

// InferenceAPI is the subset of external.InferenceClient used by RemoteModel.
type InferenceAPI interface {
	Predict(ctx context.Context, in external.InferenceRequest) (*external.InferenceResponse, error)
}

// RemoteModel delegates prediction to an inference endpoint.
type RemoteModel struct {
	client  InferenceAPI
	name    string
	version string
}

// NewRemoteModel returns a Model backed by client.
func NewRemoteModel(client InferenceAPI, name, version string) *RemoteModel {
	if name == "" {
		name = "remote"
	}
	return &RemoteModel{client: client, name: name, version: version}
}

// Name implements Model.
func (m *RemoteModel) Name() string { return m.name }

// Predict implements Model. Horizons missing from the response are left out of
// the result; the Forecaster reports them.
func (m *RemoteModel) Predict(ctx context.Context, window types.FeatureWindow, horizons []types.Horizon) (map[types.Horizon]Prediction, error) {
	req := external.InferenceRequest{
		ModelVersion: m.version,
		Horizons:     make([]int, len(horizons)),
		Columns:      []string(window.Schema),
		Window:       make([][]float64, window.Len()),
	}
	for i, h := range horizons {
		req.Horizons[i] = int(h)
	}
	for i, row := range window.Rows {
		req.Window[i] = row.Values
	}

	resp, err := m.client.Predict(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("remote model %s: %w", m.name, err)
	}

	out := make(map[types.Horizon]Prediction, len(resp.Predictions))
	for _, p := range resp.Predictions {
		out[types.Horizon(p.Horizon)] = Prediction{Median: p.Median, Tail: p.Tail}
	}
	return out, nil
}
