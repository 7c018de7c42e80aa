package features

import (
	"fmt"
	"math"
	"time"

	"courtwind/internal/types"
)

// gridPoint is one observation placed on the cadence grid.
type gridPoint struct {
	t            time.Time
	speed        float64
	gust         float64
	dir          float64
	temp         float64
	humidity     float64
	pressure     float64
	interpolated bool
}

// validateSeries rejects series the builder cannot order unambiguously.
func validateSeries(obs []types.Observation) error {
	if len(obs) == 0 {
		return featureError("observation series is empty", nil)
	}
	for i, o := range obs {
		if o.Timestamp.IsZero() {
			return featureError(fmt.Sprintf("observation %d has no timestamp", i), map[string]any{"index": i})
		}
		for _, f := range []struct {
			name string
			v    float64
		}{
			{"wind_speed", o.WindSpeed},
			{"wind_gust", o.WindGust},
			{"wind_direction_deg", o.WindDirectionDeg},
			{"temperature", o.TemperatureC},
			{"humidity", o.HumidityPct},
			{"pressure", o.PressureHPa},
		} {
			if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
				return featureError(fmt.Sprintf("observation %d has non-finite %s", i, f.name),
					map[string]any{"index": i, "field": f.name})
			}
		}
		if p := o.PrecipitationMM; p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0)) {
			return featureError(fmt.Sprintf("observation %d has non-finite precipitation", i),
				map[string]any{"index": i, "field": "precipitation"})
		}
		if o.WindSpeed < 0 || o.WindGust < 0 {
			return featureError(fmt.Sprintf("observation %d has negative wind speed", i), map[string]any{"index": i})
		}
		if i == 0 {
			continue
		}
		prev := obs[i-1].Timestamp
		switch {
		case o.Timestamp.Equal(prev):
			return featureError(fmt.Sprintf("duplicate timestamp %s at index %d", o.Timestamp.UTC().Format(time.RFC3339), i),
				map[string]any{"index": i})
		case o.Timestamp.Before(prev):
			return featureError(fmt.Sprintf("timestamps not increasing at index %d", i), map[string]any{"index": i})
		}
	}
	return nil
}

// bucketize floors each observation to the cadence grid and averages
// observations that share a grid point. Input must already be validated.
func bucketize(obs []types.Observation, cadence time.Duration) []gridPoint {
	var (
		out  []gridPoint
		dirs []float64
		n    float64
	)
	flush := func() {
		if n == 0 {
			return
		}
		last := &out[len(out)-1]
		last.speed /= n
		last.gust /= n
		last.temp /= n
		last.humidity /= n
		last.pressure /= n
		last.dir = circularMeanDeg(dirs)
	}

	for _, o := range obs {
		t := o.Timestamp.UTC().Truncate(cadence)
		if len(out) == 0 || !out[len(out)-1].t.Equal(t) {
			flush()
			out = append(out, gridPoint{t: t})
			dirs = dirs[:0]
			n = 0
		}
		p := &out[len(out)-1]
		p.speed += o.WindSpeed
		p.gust += o.WindGust
		p.temp += o.TemperatureC
		p.humidity += o.HumidityPct
		p.pressure += o.PressureHPa
		dirs = append(dirs, o.WindDirectionDeg)
		n++
	}
	flush()
	return out
}

// segment splits grid points into contiguous runs. Gaps of up to maxGap
// missing points are filled by linear interpolation and marked; longer gaps
// start a new segment.
func segment(points []gridPoint, cadence time.Duration, maxGap int) [][]gridPoint {
	if len(points) == 0 {
		return nil
	}
	segs := [][]gridPoint{{points[0]}}
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		steps := int(cur.t.Sub(prev.t) / cadence)
		missing := steps - 1
		if missing > maxGap {
			segs = append(segs, []gridPoint{cur})
			continue
		}
		seg := &segs[len(segs)-1]
		for k := 1; k <= missing; k++ {
			*seg = append(*seg, interpolate(prev, cur, k, steps, cadence))
		}
		*seg = append(*seg, cur)
	}
	return segs
}

func interpolate(a, b gridPoint, k, steps int, cadence time.Duration) gridPoint {
	frac := float64(k) / float64(steps)
	return gridPoint{
		t:            a.t.Add(time.Duration(k) * cadence),
		speed:        lerp(a.speed, b.speed, frac),
		gust:         lerp(a.gust, b.gust, frac),
		dir:          lerpDeg(a.dir, b.dir, frac),
		temp:         lerp(a.temp, b.temp, frac),
		humidity:     lerp(a.humidity, b.humidity, frac),
		pressure:     lerp(a.pressure, b.pressure, frac),
		interpolated: true,
	}
}

func featureError(msg string, details map[string]any) error {
	return types.NewAppErrorWithDetails(types.ErrCodeFeatureInvalidSeries, msg, nil, details)
}
