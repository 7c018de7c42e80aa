package modelstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"courtwind/internal/forecasts"
	"courtwind/internal/types"
)

// Tail strategies accepted by LoadOptions.
const (
	TailScaling  = "scaling"
	TailResidual = "residual"
)

// LoadOptions controls how a manifest becomes a handle.
type LoadOptions struct {
	// Schema is the runtime feature schema. A manifest trained on a different
	// column list is rejected.
	Schema       types.Schema
	TailStrategy string
	TailFactor   float64
}

// Loader reads manifests and weights from an ObjectSource.
type Loader struct {
	src    ObjectSource
	logger *slog.Logger
}

// NewLoader creates a Loader.
func NewLoader(src ObjectSource, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{src: src, logger: logger}
}

// ReadManifest fetches and validates the manifest at key.
func (l *Loader) ReadManifest(ctx context.Context, key string) (*Manifest, error) {
	data, err := l.read(ctx, key)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalModelCorrupt, fmt.Sprintf("failed to parse manifest %s", key), err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Load builds a forecast handle from the manifest at manifestKey. The weights
// key is resolved relative to the manifest's directory.
func (l *Loader) Load(ctx context.Context, manifestKey string, opts LoadOptions) (*forecasts.Handle, error) {
	start := time.Now()
	m, err := l.ReadManifest(ctx, manifestKey)
	if err != nil {
		return nil, err
	}

	tail := l.tailEstimator(m, opts)

	if m.Kind == KindPersistence {
		h := forecasts.NewPersistenceHandle(tail)
		h.Version = m.Version
		return h, nil
	}

	schema := types.Schema(m.FeatureColumns)
	if opts.Schema != nil && !opts.Schema.Equal(schema) {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeConfigInvalid,
			fmt.Sprintf("model %q was trained on a different feature schema", m.Name), nil,
			map[string]any{"model_columns": m.FeatureColumns, "runtime_columns": []string(opts.Schema)})
	}

	weightsKey := path.Join(path.Dir(manifestKey), m.WeightsKey)
	model, err := l.loadLinear(ctx, m, weightsKey)
	if err != nil {
		return nil, err
	}

	l.logger.InfoContext(ctx, "model loaded",
		"model", m.Name,
		"version", m.Version,
		"window_length", m.WindowLength,
		"horizons", m.Horizons,
		"tail", tail.Name(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &forecasts.Handle{
		Model:        model,
		Tail:         tail,
		Schema:       schema,
		WindowLength: m.WindowLength,
		Version:      m.Version,
	}, nil
}

func (l *Loader) loadLinear(ctx context.Context, m *Manifest, key string) (*forecasts.LinearSequenceModel, error) {
	compressed, err := l.read(ctx, key)
	if err != nil {
		return nil, err
	}
	raw, err := decompressZstd(compressed)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalModelCorrupt, fmt.Sprintf("failed to decompress %s", key), err)
	}
	values, err := parseFloat32s(raw)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalModelCorrupt, fmt.Sprintf("failed to parse %s", key), err)
	}
	if want := m.weightCount(); len(values) != want {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeInternalModelCorrupt,
			fmt.Sprintf("weights blob %s has the wrong size", key), nil,
			map[string]any{"got": len(values), "want": want})
	}

	perHead := m.WindowLength * len(m.FeatureColumns)
	readHeads := func(offset int) (map[types.Horizon]forecasts.LinearHead, int) {
		heads := make(map[types.Horizon]forecasts.LinearHead, len(m.Horizons))
		for _, h := range m.HorizonList() {
			w := make([]float64, perHead)
			for i := range w {
				w[i] = float64(values[offset+i])
			}
			heads[h] = forecasts.LinearHead{Weights: w, Bias: float64(values[offset+perHead])}
			offset += perHead + 1
		}
		return heads, offset
	}

	median, next := readHeads(0)
	var tail map[types.Horizon]forecasts.LinearHead
	if m.TailHead {
		tail, _ = readHeads(next)
	}
	return forecasts.NewLinearSequenceModel(m.Name, m.WindowLength, m.Scaler, median, tail)
}

func (l *Loader) tailEstimator(m *Manifest, opts LoadOptions) forecasts.TailEstimator {
	scaling := forecasts.ScalingTail{Factor: opts.TailFactor}
	if opts.TailStrategy != TailResidual {
		return scaling
	}
	if len(m.ResidualQ90) == 0 {
		l.logger.Warn("residual tail requested but manifest has no residual quantiles, using scaling",
			"model", m.Name,
			"factor", scaling.Factor,
		)
		return scaling
	}
	return forecasts.ResidualQuantileTail{Quantiles: m.ResidualQ90, Fallback: scaling}
}

func (l *Loader) read(ctx context.Context, key string) ([]byte, error) {
	body, err := l.src.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamModelStore, fmt.Sprintf("failed to read %s", key), err)
	}
	return data, nil
}
