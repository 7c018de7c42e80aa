// Package telemetry emits advisor metrics to CloudWatch.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"courtwind/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics records advisor metrics. Failures to publish are logged
// and never returned; metrics must not fail a request.
//
// Metrics emitted:
//   - AdviceIssued: Dims {Source}, one per advice
//   - AdviceCanPlay: Dims {Source}, 1 when play is allowed, 0 otherwise
//   - ForecastFallback: Dims {Reason}
//   - TailClamped: Dims {Horizon}
//   - FeatureRowsExcluded: no dims
//   - InferenceLatency: Dims {Source}, milliseconds
//   - APIRequestCount, APILatency: Dims {Endpoint, Status}
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewCloudWatchMetrics creates a CloudWatchMetrics. An empty namespace uses
// types.MetricNamespace.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	if namespace == "" {
		namespace = types.MetricNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchMetrics{client: client, namespace: namespace, logger: logger}
}

// RecordAdvice emits AdviceIssued and AdviceCanPlay.
func (m *CloudWatchMetrics) RecordAdvice(ctx context.Context, source string, canPlay bool) {
	play := 0.0
	if canPlay {
		play = 1
	}
	dims := []cwtypes.Dimension{dim(types.DimSource, source)}
	m.put(ctx,
		datum(types.MetricAdviceIssued, 1, cwtypes.StandardUnitCount, dims),
		datum(types.MetricAdviceCanPlay, play, cwtypes.StandardUnitCount, dims),
	)
}

// RecordFallback emits ForecastFallback with the fallback reason.
func (m *CloudWatchMetrics) RecordFallback(ctx context.Context, reason string) {
	m.put(ctx, datum(types.MetricForecastFallback, 1, cwtypes.StandardUnitCount,
		[]cwtypes.Dimension{dim(types.DimReason, reason)}))
}

// RecordTailClamp emits TailClamped for the horizon.
func (m *CloudWatchMetrics) RecordTailClamp(ctx context.Context, h types.Horizon) {
	m.put(ctx, datum(types.MetricTailClamped, 1, cwtypes.StandardUnitCount,
		[]cwtypes.Dimension{dim(types.DimHorizon, h.String())}))
}

// RecordRowsExcluded emits FeatureRowsExcluded. Zero counts are not sent.
func (m *CloudWatchMetrics) RecordRowsExcluded(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.put(ctx, datum(types.MetricRowsExcluded, float64(n), cwtypes.StandardUnitCount, nil))
}

// RecordInferenceLatency emits InferenceLatency in milliseconds.
func (m *CloudWatchMetrics) RecordInferenceLatency(ctx context.Context, source string, d time.Duration) {
	m.put(ctx, datum(types.MetricInferenceLatency, float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds,
		[]cwtypes.Dimension{dim(types.DimSource, source)}))
}

// RecordRequest emits APIRequestCount and APILatency for one HTTP request.
func (m *CloudWatchMetrics) RecordRequest(ctx context.Context, method, endpoint, status string, d time.Duration) {
	dims := []cwtypes.Dimension{
		dim(types.DimEndpoint, method+" "+endpoint),
		dim(types.DimStatus, status),
	}
	m.put(ctx,
		datum(types.MetricAPIRequestCount, 1, cwtypes.StandardUnitCount, dims),
		datum(types.MetricAPILatency, float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds, dims),
	)
}

func (m *CloudWatchMetrics) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.ErrorContext(ctx, "failed to record metric",
			"error", err.Error(),
			"metric", aws.ToString(data[0].MetricName),
		)
	}
}

func datum(name string, value float64, unit cwtypes.StandardUnit, dims []cwtypes.Dimension) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(value),
		Unit:       unit,
		Dimensions: dims,
	}
}

func dim(name, value string) cwtypes.Dimension {
	return cwtypes.Dimension{Name: aws.String(name), Value: aws.String(value)}
}

// Noop discards every metric. Used when metrics are disabled.
type Noop struct{}

func (Noop) RecordAdvice(context.Context, string, bool)                           {}
func (Noop) RecordFallback(context.Context, string)                               {}
func (Noop) RecordTailClamp(context.Context, types.Horizon)                       {}
func (Noop) RecordRowsExcluded(context.Context, int)                              {}
func (Noop) RecordInferenceLatency(context.Context, string, time.Duration)        {}
func (Noop) RecordRequest(context.Context, string, string, string, time.Duration) {}
