package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"courtwind/internal/types"
)

// InferenceClientConfig holds the configuration for an InferenceClient.
type InferenceClientConfig struct {
	BaseURL string
	APIKey  string
	Logger  *slog.Logger
}

// InferenceRequest is the body POSTed to {base}/v1/predict. Window rows are
// oldest first and ordered by Columns.
type InferenceRequest struct {
	ModelVersion string      `json:"model_version,omitempty"`
	Horizons     []int       `json:"horizons"`
	Columns      []string    `json:"columns"`
	Window       [][]float64 `json:"window"`
}

// InferencePrediction is one horizon of an inference response. Tail is absent
// for single-head models.
type InferencePrediction struct {
	Horizon int      `json:"horizon"`
	Median  float64  `json:"median"`
	Tail    *float64 `json:"tail,omitempty"`
}

// InferenceResponse is the body returned by the inference endpoint.
type InferenceResponse struct {
	Model       string                `json:"model"`
	Predictions []InferencePrediction `json:"predictions"`
}

// InferenceClient calls a remote wind-speed inference endpoint through
// BaseClient.
type InferenceClient struct {
	base    *BaseClient
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewInferenceClient creates an InferenceClient. The httpClient timeout bounds
// each attempt.
func NewInferenceClient(httpClient *http.Client, cfg InferenceClientConfig) *InferenceClient {
	base := NewBaseClient(httpClient, "inference", DefaultRetryPolicy(), "CourtWind/1.0")
	return NewInferenceClientWithBase(base, cfg)
}

// NewInferenceClientWithBase creates an InferenceClient around an existing
// BaseClient. Tests use it to disable sleeping between retries.
func NewInferenceClientWithBase(base *BaseClient, cfg InferenceClientConfig) *InferenceClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &InferenceClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// Predict sends one window and returns the endpoint's per-horizon predictions.
func (c *InferenceClient) Predict(ctx context.Context, in InferenceRequest) (*InferenceResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to serialize inference request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/predict", bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create inference request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.base.Do(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamInference, "inference endpoint unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamInference,
			fmt.Sprintf("inference endpoint returned %d", resp.StatusCode),
			nil,
			map[string]any{"status": resp.StatusCode, "body": string(snippet)},
		)
	}

	var out InferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamInference, "failed to decode inference response", err)
	}

	c.logger.DebugContext(ctx, "inference completed",
		"model", out.Model,
		"horizons", len(out.Predictions),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &out, nil
}
