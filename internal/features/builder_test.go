package features

import (
	"bytes"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtwind/internal/types"
)

var testStart = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC) // Monday

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// hourlySeries builds n hourly observations starting at start. speed(i)
// supplies the wind speed; every other field is a simple function of i.
func hourlySeries(start time.Time, n int, speed func(i int) float64) []types.Observation {
	obs := make([]types.Observation, n)
	for i := range obs {
		s := speed(i)
		obs[i] = types.Observation{
			Timestamp:        start.Add(time.Duration(i) * time.Hour),
			WindSpeed:        s,
			WindGust:         s + 1,
			WindDirectionDeg: 90,
			TemperatureC:     20,
			HumidityPct:      60,
			PressureHPa:      1000 + 0.5*float64(i),
		}
	}
	return obs
}

func linearSpeed(i int) float64 { return 1 + float64(i) }

func newTestBuilder(t *testing.T, cfg Config) *Builder {
	t.Helper()
	b, err := NewBuilder(cfg, testLogger())
	require.NoError(t, err)
	return b
}

func col(t *testing.T, set *types.FeatureSet, row int, name string) float64 {
	t.Helper()
	idx := set.Schema.Index(name)
	require.GreaterOrEqual(t, idx, 0, "column %s missing", name)
	return set.Rows[row].Values[idx]
}

func TestColumnsDefaultLayout(t *testing.T) {
	cols := Columns(DefaultConfig())

	require.Len(t, cols, 27)
	assert.Equal(t, ColWindSpeed, cols[0])
	assert.Equal(t, ColPressure, cols[4])
	assert.Equal(t, "wind_speed_lag_1", cols[5])
	assert.Equal(t, "wind_speed_lag_24", cols[10])
	assert.Equal(t, "wind_gust_lag_3", cols[13])
	assert.Equal(t, ColHourSin, cols[14])
	assert.Equal(t, "pressure_tendency_3", cols[20])
	assert.Equal(t, ColWindU, cols[21])
	assert.Equal(t, "wind_speed_roll_max_3", cols[26])
}

func TestBuildSchemaStableAcrossLengths(t *testing.T) {
	b := newTestBuilder(t, DefaultConfig())
	want := Columns(DefaultConfig())

	for _, n := range []int{25, 26, 40, 24 * 7} {
		set, err := b.Build(types.ObservationSeries{Observations: hourlySeries(testStart, n, linearSpeed)})
		require.NoError(t, err)
		assert.True(t, want.Equal(set.Schema), "schema differs for n=%d", n)
		assert.Len(t, set.Rows, n-24)
		for _, r := range set.Rows {
			require.Len(t, r.Values, len(want))
		}
	}
}

func TestBuildExcludesRowsWithoutHistory(t *testing.T) {
	b := newTestBuilder(t, DefaultConfig())
	obs := hourlySeries(testStart, 30, linearSpeed)

	set, err := b.Build(types.ObservationSeries{Observations: obs})
	require.NoError(t, err)

	require.Len(t, set.Rows, 6)
	assert.Equal(t, 24, set.Excluded)
	assert.Equal(t, obs[24].Timestamp, set.Rows[0].Timestamp)

	// Every lag value is the real reading k steps back; speeds start at 1, so
	// a zero would mean a fabricated placeholder.
	for ri, row := range set.Rows {
		i := 24 + ri
		for _, k := range DefaultConfig().LagOffsets {
			got := row.Values[set.Schema.Index(SpeedLagColumn(k))]
			assert.Equal(t, obs[i-k].WindSpeed, got, "lag %d at row %d", k, ri)
			assert.NotZero(t, got)
		}
		for _, k := range DefaultConfig().GustLagOffsets {
			assert.Equal(t, obs[i-k].WindGust, row.Values[set.Schema.Index(GustLagColumn(k))])
		}
	}
}

func TestBuildTooShortYieldsEmptySet(t *testing.T) {
	b := newTestBuilder(t, DefaultConfig())
	set, err := b.Build(types.ObservationSeries{Observations: hourlySeries(testStart, 24, linearSpeed)})
	require.NoError(t, err)
	assert.Empty(t, set.Rows)
	assert.Equal(t, 24, set.Excluded)
}

func TestBuildDerivedColumns(t *testing.T) {
	b := newTestBuilder(t, DefaultConfig())
	obs := hourlySeries(testStart, 26, linearSpeed)

	set, err := b.Build(types.ObservationSeries{Observations: obs})
	require.NoError(t, err)
	require.Len(t, set.Rows, 2)

	// Row 0 is obs[24]: Tuesday 00:00.
	assert.InDelta(t, 0.0, col(t, set, 0, ColHourSin), 1e-12)
	assert.InDelta(t, 1.0, col(t, set, 0, ColHourCos), 1e-12)
	wantDowSin, wantDowCos := Cyclical(1, 7)
	assert.InDelta(t, wantDowSin, col(t, set, 0, ColDowSin), 1e-12)
	assert.InDelta(t, wantDowCos, col(t, set, 0, ColDowCos), 1e-12)

	assert.InDelta(t, 0.5, col(t, set, 0, PressureTendencyColumn(3)), 1e-9)

	// Direction 90 (from the east) blows westward.
	assert.InDelta(t, -obs[24].WindSpeed, col(t, set, 0, ColWindU), 1e-9)
	assert.InDelta(t, 0.0, col(t, set, 0, ColWindV), 1e-9)

	// Trailing window over speeds 23, 24, 25.
	assert.InDelta(t, 24.0, col(t, set, 0, "wind_speed_roll_mean_3"), 1e-9)
	assert.InDelta(t, math.Sqrt(2.0/3.0), col(t, set, 0, "wind_speed_roll_std_3"), 1e-9)
	assert.Equal(t, 23.0, col(t, set, 0, "wind_speed_roll_min_3"))
	assert.Equal(t, 25.0, col(t, set, 0, "wind_speed_roll_max_3"))
}

func TestBuildConstantSeriesRollingStdIsZero(t *testing.T) {
	b := newTestBuilder(t, DefaultConfig())
	set, err := b.Build(types.ObservationSeries{Observations: hourlySeries(testStart, 30, func(int) float64 { return 4.5 })})
	require.NoError(t, err)
	for i := range set.Rows {
		assert.InDelta(t, 0.0, col(t, set, i, "wind_speed_roll_std_3"), 1e-9)
		assert.InDelta(t, 4.5, col(t, set, i, "wind_speed_roll_mean_3"), 1e-9)
	}
}

func TestBuildRollingWindowOfOne(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RollingWindow = 1
	b := newTestBuilder(t, cfg)

	set, err := b.Build(types.ObservationSeries{Observations: hourlySeries(testStart, 26, linearSpeed)})
	require.NoError(t, err)
	assert.Equal(t, 25.0, col(t, set, 0, "wind_speed_roll_mean_1"))
	assert.Equal(t, 0.0, col(t, set, 0, "wind_speed_roll_std_1"))
	assert.Equal(t, 25.0, col(t, set, 0, "wind_speed_roll_max_1"))
}

func TestBuildGapSplitsSegments(t *testing.T) {
	cfg := DefaultConfig()
	b := newTestBuilder(t, cfg)

	first := hourlySeries(testStart, 30, func(int) float64 { return 1 })
	// max_gap_steps+1 missing grid points between the two runs.
	resume := first[len(first)-1].Timestamp.Add(time.Duration(cfg.MaxGapSteps+2) * time.Hour)
	second := hourlySeries(resume, 30, func(i int) float64 { return 10 + float64(i) })

	set, err := b.Build(types.ObservationSeries{Observations: append(first, second...)})
	require.NoError(t, err)

	assert.Equal(t, 2, set.Segments)
	require.Len(t, set.Rows, 12)

	var seg1 []types.FeatureRow
	for _, r := range set.Rows {
		assert.False(t, r.Interpolated)
		if r.Segment == 1 {
			seg1 = append(seg1, r)
		}
	}
	require.Len(t, seg1, 6)
	assert.Equal(t, second[24].Timestamp, seg1[0].Timestamp)
	assert.Equal(t, 24, seg1[0].Step)

	// The oldest lag of the first row after the gap must come from the second
	// run (speeds >= 10), never from the first run (speed 1).
	lag24 := seg1[0].Values[set.Schema.Index(SpeedLagColumn(24))]
	assert.Equal(t, 10.0, lag24)
	for _, r := range seg1 {
		for _, k := range cfg.LagOffsets {
			assert.GreaterOrEqual(t, r.Values[set.Schema.Index(SpeedLagColumn(k))], 10.0)
		}
	}
}

func TestBuildShortGapIsInterpolated(t *testing.T) {
	cfg := DefaultConfig()
	b := newTestBuilder(t, cfg)

	obs := hourlySeries(testStart, 40, linearSpeed)
	// Drop max_gap_steps consecutive observations: 30, 31, 32.
	withGap := append(append([]types.Observation{}, obs[:30]...), obs[33:]...)

	set, err := b.Build(types.ObservationSeries{Observations: withGap})
	require.NoError(t, err)

	assert.Equal(t, 1, set.Segments)
	require.Len(t, set.Rows, 16)

	interp := 0
	for i, r := range set.Rows {
		if r.Interpolated {
			interp++
		}
		// Linear speeds interpolate back to the original values.
		assert.InDelta(t, obs[24+i].WindSpeed, r.Values[0], 1e-9)
		assert.Equal(t, obs[24+i].Timestamp, r.Timestamp)
	}
	assert.Equal(t, 3, interp)
	assert.True(t, set.Rows[30-24].Interpolated)
	assert.False(t, set.Rows[33-24].Interpolated)
}

func TestBuildAveragesSubCadenceReadings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LagOffsets = []int{1}
	cfg.GustLagOffsets = nil
	cfg.PressureTendencySteps = 1
	cfg.RollingWindow = 1
	b := newTestBuilder(t, cfg)

	obs := hourlySeries(testStart, 3, linearSpeed)
	half := obs[2]
	half.Timestamp = half.Timestamp.Add(30 * time.Minute)
	half.WindSpeed = 5
	half.WindDirectionDeg = 0
	obs[2].WindDirectionDeg = 0
	obs = append(obs, half)

	set, err := b.Build(types.ObservationSeries{Observations: obs})
	require.NoError(t, err)
	require.Len(t, set.Rows, 2)
	last := set.Rows[1]
	assert.Equal(t, obs[2].Timestamp, last.Timestamp)
	assert.InDelta(t, 4.0, last.Values[0], 1e-9) // mean of 3 and 5
}

func TestBuildRejectsInvalidSeries(t *testing.T) {
	good := hourlySeries(testStart, 5, linearSpeed)
	dup := append([]types.Observation{}, good...)
	dup[3].Timestamp = dup[2].Timestamp
	backwards := append([]types.Observation{}, good...)
	backwards[3].Timestamp = good[1].Timestamp
	nan := append([]types.Observation{}, good...)
	nan[2].PressureHPa = math.NaN()
	zero := append([]types.Observation{}, good...)
	zero[0].Timestamp = time.Time{}
	negative := append([]types.Observation{}, good...)
	negative[1].WindGust = -2
	badPrecip := append([]types.Observation{}, good...)
	inf := math.Inf(1)
	badPrecip[1].PrecipitationMM = &inf

	tests := []struct {
		name string
		obs  []types.Observation
	}{
		{"empty", nil},
		{"duplicate timestamp", dup},
		{"non-monotonic", backwards},
		{"nan reading", nan},
		{"zero timestamp", zero},
		{"negative gust", negative},
		{"infinite precipitation", badPrecip},
	}
	b := newTestBuilder(t, DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := b.Build(types.ObservationSeries{Observations: tt.obs})
			require.Error(t, err)
			assert.Nil(t, set)
			assert.True(t, types.HasCode(err, types.ErrCodeFeatureInvalidSeries), "got %v", err)
		})
	}
}

func TestBuildDoesNotMutateInput(t *testing.T) {
	obs := hourlySeries(testStart, 30, linearSpeed)
	obs[10].Timestamp = obs[10].Timestamp.Add(10 * time.Minute)
	snapshot := append([]types.Observation{}, obs...)

	_, err := Build(types.ObservationSeries{Observations: obs}, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, snapshot, obs)
}

func TestBuildDeterministic(t *testing.T) {
	obs := hourlySeries(testStart, 50, func(i int) float64 { return 3 + math.Sin(float64(i)) })
	a, err := Build(types.ObservationSeries{Observations: obs}, DefaultConfig())
	require.NoError(t, err)
	b, err := Build(types.ObservationSeries{Observations: obs}, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNewBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LagOffsets = []int{3, 1}
	_, err := NewBuilder(cfg, nil)
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeConfigInvalid))
}
