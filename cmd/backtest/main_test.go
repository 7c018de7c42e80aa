package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtwind/internal/eval"
	"courtwind/internal/modelstore"
	"courtwind/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeCSV writes n hourly observations with a daily wind cycle.
func writeCSV(t *testing.T, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("timestamp,wind_speed_m_s,wind_gust_m_s,wind_direction_deg,temperature_c,humidity_pct,pressure_hpa\n")
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		speed := 4 + 2*math.Sin(2*math.Pi*float64(i)/24)
		fmt.Fprintf(&b, "%s,%.3f,%.3f,%d,%.1f,%d,%.1f\n",
			base.Add(time.Duration(i)*time.Hour).Format(time.RFC3339),
			speed, speed*1.4, (i*15)%360, 18.0, 60, 1012.0)
	}
	path := filepath.Join(t.TempDir(), "obs.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestRun_PersistenceTable(t *testing.T) {
	data := writeCSV(t, 400)
	var out bytes.Buffer

	err := run(context.Background(), []string{
		"-data", data, "-window", "24", "-horizons", "1,3,6", "-train", "168", "-test", "48", "-step", "24",
	}, &out, io.Discard, discardLogger())
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "model: "+types.SourcePersistence)
	for _, h := range []string{"1h", "3h", "6h"} {
		assert.Contains(t, text, "\n"+h+" ")
	}
}

func TestRun_JSONReport(t *testing.T) {
	data := writeCSV(t, 400)
	var out bytes.Buffer

	err := run(context.Background(), []string{
		"-data", data, "-horizons", "3", "-train", "168", "-test", "48", "-step", "48", "-json",
	}, &out, io.Discard, discardLogger())
	require.NoError(t, err)

	var report eval.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Len(t, report.Horizons, 1)
	h := report.Horizons[0]
	assert.Equal(t, types.Horizon(3), h.Horizon)
	assert.Positive(t, h.Model.N)
	// The baseline is persistence itself.
	assert.InDelta(t, h.Persistence.MAE, h.Model.MAE, 1e-12)
	assert.InDelta(t, 0, h.Skill, 1e-12)
}

func TestRun_CalibrateWritesResidualQuantiles(t *testing.T) {
	data := writeCSV(t, 400)
	dir := t.TempDir()
	require.NoError(t, modelstore.WriteDir(dir, "manifest.json", &modelstore.Manifest{
		Name:    "persistence",
		Kind:    modelstore.KindPersistence,
		Version: "v1",
	}, nil))

	err := run(context.Background(), []string{
		"-data", data, "-model-dir", dir, "-calibrate", "-horizons", "1,6", "-train", "168", "-test", "48",
	}, io.Discard, io.Discard, discardLogger())
	require.NoError(t, err)

	m, err := modelstore.NewLoader(modelstore.DirSource{Root: dir}, nil).ReadManifest(context.Background(), "manifest.json")
	require.NoError(t, err)
	require.Len(t, m.ResidualQ90, 2)
	assert.Positive(t, m.ResidualQ90[6])
	assert.GreaterOrEqual(t, m.ResidualQ90[1], 0.0)
}

func TestRun_NotEnoughRows(t *testing.T) {
	data := writeCSV(t, 100)
	err := run(context.Background(), []string{"-data", data}, io.Discard, io.Discard, discardLogger())
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeInsufficientHistory))
}

func TestParseFlags(t *testing.T) {
	_, err := parseFlags(nil, io.Discard)
	assert.EqualError(t, err, "-data is required")

	_, err = parseFlags([]string{"-data", "x.csv", "-calibrate"}, io.Discard)
	assert.EqualError(t, err, "-calibrate requires -model-dir")

	_, err = parseFlags([]string{"-data", "x.csv", "-horizons", "1,zero"}, io.Discard)
	assert.Error(t, err)

	o, err := parseFlags([]string{"-data", "x.csv", "-horizons", "6h, 1"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, []types.Horizon{1, 6}, o.horizons)
	assert.Equal(t, 24, o.window)
}

func TestReadObservations(t *testing.T) {
	in := "Timestamp,wind_speed_m_s,wind_gust_m_s,temperature_c,humidity_pct,pressure_hpa,precipitation_mm\n" +
		"2024-06-01T00:00:00Z,3.5,5.0,20,55,1011,\n" +
		"2024-06-01T01:00:00+02:00,4.0,6.5,19,57,1010,0.4\n"
	obs, err := readObservations(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, 3.5, obs[0].WindSpeed)
	assert.Nil(t, obs[0].PrecipitationMM)
	assert.Equal(t, time.Date(2024, 5, 31, 23, 0, 0, 0, time.UTC), obs[1].Timestamp)
	require.NotNil(t, obs[1].PrecipitationMM)
	assert.Equal(t, 0.4, *obs[1].PrecipitationMM)

	_, err = readObservations(strings.NewReader("timestamp,wind_speed_m_s\n"))
	assert.ErrorContains(t, err, `missing column "wind_gust_m_s"`)

	_, err = readObservations(strings.NewReader(
		"timestamp,wind_speed_m_s,wind_gust_m_s,temperature_c,humidity_pct,pressure_hpa\n" +
			"2024-06-01T00:00:00Z,fast,5,20,55,1011\n"))
	assert.ErrorContains(t, err, "line 2")
}
