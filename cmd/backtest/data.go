package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"courtwind/internal/types"
)

// CSV columns, named like the Observation JSON fields. precipitation_mm and
// wind_direction_deg may be omitted.
const (
	colTimestamp     = "timestamp"
	colWindSpeed     = "wind_speed_m_s"
	colWindGust      = "wind_gust_m_s"
	colWindDirection = "wind_direction_deg"
	colTemperature   = "temperature_c"
	colHumidity      = "humidity_pct"
	colPressure      = "pressure_hpa"
	colPrecipitation = "precipitation_mm"
)

var requiredColumns = []string{colTimestamp, colWindSpeed, colWindGust, colTemperature, colHumidity, colPressure}

// readObservations parses a headered CSV. Timestamps are RFC 3339.
func readObservations(r io.Reader) ([]types.Observation, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("data file is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("data file is missing column %q", c)
		}
	}

	var out []types.Observation
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		o, err := parseRecord(rec, idx)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func parseRecord(rec []string, idx map[string]int) (types.Observation, error) {
	var o types.Observation
	ts, err := time.Parse(time.RFC3339, rec[idx[colTimestamp]])
	if err != nil {
		return o, fmt.Errorf("timestamp: %w", err)
	}
	o.Timestamp = ts.UTC()

	fields := []struct {
		col string
		dst *float64
	}{
		{colWindSpeed, &o.WindSpeed},
		{colWindGust, &o.WindGust},
		{colWindDirection, &o.WindDirectionDeg},
		{colTemperature, &o.TemperatureC},
		{colHumidity, &o.HumidityPct},
		{colPressure, &o.PressureHPa},
	}
	for _, f := range fields {
		i, ok := idx[f.col]
		if !ok || rec[i] == "" {
			continue
		}
		v, err := strconv.ParseFloat(rec[i], 64)
		if err != nil {
			return o, fmt.Errorf("%s: %w", f.col, err)
		}
		*f.dst = v
	}

	if i, ok := idx[colPrecipitation]; ok && rec[i] != "" {
		v, err := strconv.ParseFloat(rec[i], 64)
		if err != nil {
			return o, fmt.Errorf("%s: %w", colPrecipitation, err)
		}
		o.PrecipitationMM = &v
	}
	return o, nil
}
