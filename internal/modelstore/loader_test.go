package modelstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"courtwind/internal/forecasts"
	"courtwind/internal/types"
)

var twoCols = []string{"wind_speed_m_s", "wind_gust_m_s"}

func linearManifest() *Manifest {
	return &Manifest{
		Name:           "linear-test",
		Kind:           KindLinear,
		Version:        "2024-06-01",
		WindowLength:   2,
		Horizons:       []int{1, 3},
		FeatureColumns: twoCols,
		Scaler:         forecasts.Scaler{Mean: []float64{0, 0}, Std: []float64{1, 1}},
		WeightsKey:     "weights.bin.zst",
		ResidualQ90:    map[types.Horizon]float64{1: 0.5, 3: 1.0},
	}
}

// linearWeights returns heads that read the latest wind speed (index 2),
// with the 3h head adding a bias of 1.
func linearWeights(tail bool) []float32 {
	w := []float32{
		0, 0, 1, 0, 0,
		0, 0, 1, 0, 1,
	}
	if tail {
		w = append(w,
			0, 0, 0, 1, 0,
			0, 0, 0, 1, 0,
		)
	}
	return w
}

func window(speed, gust float64) types.FeatureWindow {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return types.FeatureWindow{
		Schema: types.Schema(twoCols),
		Rows: []types.FeatureRow{
			{Timestamp: base, Values: []float64{speed, gust}},
			{Timestamp: base.Add(time.Hour), Step: 1, Values: []float64{speed, gust}},
		},
	}
}

func TestLoader_LoadLinearFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDir(dir, "manifest.json", linearManifest(), linearWeights(false)))

	h, err := NewLoader(DirSource{Root: dir}, nil).Load(context.Background(), "manifest.json", LoadOptions{
		Schema:       types.Schema(twoCols),
		TailStrategy: TailScaling,
		TailFactor:   1.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, h.WindowLength)
	assert.Equal(t, "2024-06-01", h.Version)
	assert.Equal(t, "scaling", h.Tail.Name())

	got, err := forecasts.NewForecaster(nil).Forecast(context.Background(), h, window(2, 4), []types.Horizon{1, 3})
	require.NoError(t, err)
	assert.InDelta(t, 2, got[1].Median, 1e-6)
	assert.InDelta(t, 3, got[1].Tail, 1e-6)
	assert.InDelta(t, 3, got[3].Median, 1e-6)
	assert.Equal(t, "linear-test", got[1].Source)
}

func TestLoader_TailHeadAndResidualStrategy(t *testing.T) {
	dir := t.TempDir()
	m := linearManifest()
	m.TailHead = true
	require.NoError(t, WriteDir(dir, "manifest.json", m, linearWeights(true)))

	h, err := NewLoader(DirSource{Root: dir}, nil).Load(context.Background(), "manifest.json", LoadOptions{TailStrategy: TailResidual, TailFactor: 1.2})
	require.NoError(t, err)
	assert.Equal(t, "residual_quantile", h.Tail.Name())

	got, err := forecasts.NewForecaster(nil).Forecast(context.Background(), h, window(2, 4), []types.Horizon{1})
	require.NoError(t, err)
	assert.InDelta(t, 4, got[1].Tail, 1e-6, "tail head wins over the estimator")
}

func TestLoader_ResidualWithoutQuantilesFallsBackToScaling(t *testing.T) {
	dir := t.TempDir()
	m := linearManifest()
	m.ResidualQ90 = nil
	require.NoError(t, WriteDir(dir, "manifest.json", m, linearWeights(false)))

	h, err := NewLoader(DirSource{Root: dir}, nil).Load(context.Background(), "manifest.json", LoadOptions{TailStrategy: TailResidual})
	require.NoError(t, err)
	assert.Equal(t, "scaling", h.Tail.Name())
}

func TestLoader_PersistenceManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteDir(dir, "manifest.json", &Manifest{Name: "baseline", Kind: KindPersistence, Version: "v0"}, nil))

	h, err := NewLoader(DirSource{Root: dir}, nil).Load(context.Background(), "manifest.json", LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, types.SourcePersistence, h.Model.Name())
	assert.Equal(t, "v0", h.Version)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
		opts  LoadOptions
		code  types.ErrorCode
	}{
		{
			name:  "missing manifest",
			setup: func(t *testing.T, dir string) {},
			code:  types.ErrCodeNotFoundModel,
		},
		{
			name: "malformed manifest",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{"), 0o644))
			},
			code: types.ErrCodeInternalModelCorrupt,
		},
		{
			name: "unknown kind",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, WriteDir(dir, "manifest.json", &Manifest{Kind: "lstm"}, nil))
			},
			code: types.ErrCodeConfigInvalid,
		},
		{
			name: "schema mismatch",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, WriteDir(dir, "manifest.json", linearManifest(), linearWeights(false)))
			},
			opts: LoadOptions{Schema: types.Schema{"wind_gust_m_s", "wind_speed_m_s"}},
			code: types.ErrCodeConfigInvalid,
		},
		{
			name: "missing weights",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, WriteDir(dir, "manifest.json", linearManifest(), nil))
			},
			code: types.ErrCodeNotFoundModel,
		},
		{
			name: "short weights",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, WriteDir(dir, "manifest.json", linearManifest(), []float32{1, 2, 3}))
			},
			code: types.ErrCodeInternalModelCorrupt,
		},
		{
			name: "weights not zstd",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, WriteDir(dir, "manifest.json", linearManifest(), nil))
				require.NoError(t, os.WriteFile(filepath.Join(dir, "weights.bin.zst"), []byte("plain"), 0o644))
			},
			code: types.ErrCodeInternalModelCorrupt,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)
			_, err := NewLoader(DirSource{Root: dir}, nil).Load(context.Background(), "manifest.json", tt.opts)
			require.Error(t, err)
			assert.Equal(t, tt.code, types.CodeOf(err))
		})
	}
}

func TestParseFloat32s_RejectsPartialValue(t *testing.T) {
	_, err := parseFloat32s([]byte{1, 2, 3})
	assert.Error(t, err)
}

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, *in.Bucket, *in.Key)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func TestS3Source(t *testing.T) {
	blob, err := EncodeWeights(linearWeights(false))
	require.NoError(t, err)
	manifest := []byte(`{"name":"linear-test","kind":"linear","version":"v1","window_length":2,"horizons":[1,3],
		"feature_columns":["wind_speed_m_s","wind_gust_m_s"],"scaler":{"mean":[0,0],"std":[1,1]},
		"weights_key":"weights.bin.zst","residual_q90":{"1h":0.5}}`)

	client := new(mockS3)
	client.On("GetObject", mock.Anything, "models", "wind/manifest.json").
		Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(manifest))}, nil)
	client.On("GetObject", mock.Anything, "models", "wind/weights.bin.zst").
		Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(blob))}, nil)

	loader := NewLoader(NewS3Source(client, "models"), nil)
	m, err := loader.ReadManifest(context.Background(), "wind/manifest.json")
	require.NoError(t, err)
	assert.Equal(t, 0.5, m.ResidualQ90[1])

	h, err := loader.Load(context.Background(), "wind/manifest.json", LoadOptions{TailStrategy: TailResidual})
	require.NoError(t, err)
	assert.Equal(t, "residual_quantile", h.Tail.Name())
}

func TestS3Source_ErrorMapping(t *testing.T) {
	client := new(mockS3)
	client.On("GetObject", mock.Anything, "models", "missing").Return(nil, &s3types.NoSuchKey{})
	client.On("GetObject", mock.Anything, "models", "broken").Return(nil, errors.New("connection reset"))

	src := NewS3Source(client, "models")
	_, err := src.GetObject(context.Background(), "missing")
	assert.Equal(t, types.ErrCodeNotFoundModel, types.CodeOf(err))

	_, err = src.GetObject(context.Background(), "broken")
	assert.Equal(t, types.ErrCodeUpstreamModelStore, types.CodeOf(err))
}
