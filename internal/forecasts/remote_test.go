package forecasts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"courtwind/internal/external"
	"courtwind/internal/types"
)

type mockInferenceAPI struct {
	mock.Mock
}

func (m *mockInferenceAPI) Predict(ctx context.Context, in external.InferenceRequest) (*external.InferenceResponse, error) {
	args := m.Called(ctx, in)
	resp, _ := args.Get(0).(*external.InferenceResponse)
	return resp, args.Error(1)
}

func TestRemoteModel_Predict(t *testing.T) {
	api := new(mockInferenceAPI)
	win := constantWindow(2, 3)

	api.On("Predict", mock.Anything, mock.MatchedBy(func(in external.InferenceRequest) bool {
		return assert.ObjectsAreEqual([]int{1, 3}, in.Horizons) &&
			assert.ObjectsAreEqual([]string(testSchema), in.Columns) &&
			len(in.Window) == 2 && in.ModelVersion == "v7"
	})).Return(&external.InferenceResponse{
		Model: "lstm",
		Predictions: []external.InferencePrediction{
			{Horizon: 1, Median: 2.1, Tail: ptr(2.9)},
			{Horizon: 3, Median: 2.4},
		},
	}, nil)

	m := NewRemoteModel(api, "lstm", "v7")
	got, err := m.Predict(context.Background(), win, []types.Horizon{1, 3})
	require.NoError(t, err)
	assert.Equal(t, 2.1, got[1].Median)
	assert.Equal(t, 2.9, *got[1].Tail)
	assert.Nil(t, got[3].Tail)
	api.AssertExpectations(t)
}

func TestRemoteModel_UpstreamFailureIsForecastError(t *testing.T) {
	api := new(mockInferenceAPI)
	api.On("Predict", mock.Anything, mock.Anything).
		Return(nil, types.NewAppError(types.ErrCodeUpstreamInference, "inference endpoint unavailable", nil))

	h := &Handle{Model: NewRemoteModel(api, "", "")}
	_, err := NewForecaster(nil).Forecast(context.Background(), h, constantWindow(2, 3), []types.Horizon{1})
	require.Error(t, err)
	assert.True(t, types.IsForecastError(err))
	assert.Equal(t, "remote", h.Model.Name())
}
