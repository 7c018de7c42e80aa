package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtwind/internal/types"
)

// mockCloudWatchClient records PutMetricData calls for verification.
type mockCloudWatchClient struct {
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func dimValue(t *testing.T, dims []cwtypes.Dimension, name string) string {
	t.Helper()
	for _, d := range dims {
		if *d.Name == name {
			return *d.Value
		}
	}
	t.Fatalf("dimension %q not found", name)
	return ""
}

func TestRecordAdvice(t *testing.T) {
	cw := &mockCloudWatchClient{}
	NewCloudWatchMetrics(cw, "", nil).RecordAdvice(context.Background(), "linear-v1", true)

	require.Len(t, cw.calls, 1)
	in := cw.calls[0]
	assert.Equal(t, types.MetricNamespace, *in.Namespace)
	require.Len(t, in.MetricData, 2)

	assert.Equal(t, types.MetricAdviceIssued, *in.MetricData[0].MetricName)
	assert.Equal(t, types.MetricAdviceCanPlay, *in.MetricData[1].MetricName)
	assert.Equal(t, 1.0, *in.MetricData[1].Value)
	assert.Equal(t, "linear-v1", dimValue(t, in.MetricData[0].Dimensions, types.DimSource))
}

func TestRecordFallbackAndClamp(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "Test", nil)

	m.RecordFallback(context.Background(), types.FallbackForecastError)
	m.RecordTailClamp(context.Background(), 3)
	m.RecordInferenceLatency(context.Background(), "remote", 120*time.Millisecond)

	require.Len(t, cw.calls, 3)
	assert.Equal(t, "Test", *cw.calls[0].Namespace)
	assert.Equal(t, types.FallbackForecastError, dimValue(t, cw.calls[0].MetricData[0].Dimensions, types.DimReason))
	assert.Equal(t, "3h", dimValue(t, cw.calls[1].MetricData[0].Dimensions, types.DimHorizon))
	assert.Equal(t, 120.0, *cw.calls[2].MetricData[0].Value)
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, cw.calls[2].MetricData[0].Unit)
}

func TestRecordRowsExcluded_SkipsZero(t *testing.T) {
	cw := &mockCloudWatchClient{}
	m := NewCloudWatchMetrics(cw, "", nil)
	m.RecordRowsExcluded(context.Background(), 0)
	assert.Empty(t, cw.calls)

	m.RecordRowsExcluded(context.Background(), 24)
	require.Len(t, cw.calls, 1)
	assert.Equal(t, 24.0, *cw.calls[0].MetricData[0].Value)
}

func TestPutFailureIsSwallowed(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	assert.NotPanics(t, func() {
		NewCloudWatchMetrics(cw, "", nil).RecordAdvice(context.Background(), "persistence", false)
	})
	assert.Len(t, cw.calls, 1)
}

func TestRecordRequest(t *testing.T) {
	cw := &mockCloudWatchClient{}
	NewCloudWatchMetrics(cw, "", nil).RecordRequest(context.Background(), "POST", "/v1/advice", "200", 42*time.Millisecond)

	require.Len(t, cw.calls, 1)
	data := cw.calls[0].MetricData
	require.Len(t, data, 2)
	assert.Equal(t, types.MetricAPIRequestCount, *data[0].MetricName)
	assert.Equal(t, types.MetricAPILatency, *data[1].MetricName)
	assert.Equal(t, 42.0, *data[1].Value)
	assert.Equal(t, "POST /v1/advice", dimValue(t, data[0].Dimensions, types.DimEndpoint))
	assert.Equal(t, "200", dimValue(t, data[0].Dimensions, types.DimStatus))
}
