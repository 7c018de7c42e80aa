// Package decision applies wind thresholds to a set of horizon forecasts.
//
// Every function here is pure: the same inputs always produce the same
// Decision, including the Reason text.
package decision

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"courtwind/internal/types"
)

// Decide checks every horizon in ascending order. Horizons are taken from the
// set's keys; HorizonForecast.Horizon is not consulted. A horizon passes when its
// median is at most MedianMax and its tail at most TailMax; NaN fails. Play is
// allowed only when every horizon passes both checks.
//
// Invalid thresholds and an empty forecast set are ConfigurationErrors.
func Decide(forecasts types.ForecastSet, th types.Thresholds) (types.Decision, error) {
	if err := th.Validate(); err != nil {
		return types.Decision{}, err
	}
	if len(forecasts) == 0 {
		return types.Decision{}, types.ConfigError("cannot decide on an empty forecast set")
	}

	d := types.Decision{
		CanPlay:          true,
		ViolatedHorizons: []types.Horizon{},
		ThresholdsUsed:   th,
		Checks:           make([]types.HorizonCheck, 0, len(forecasts)),
	}

	var violations []string
	for _, h := range forecasts.Horizons() {
		fc := forecasts[h]
		c := types.HorizonCheck{
			Horizon:  h,
			Median:   fc.Median,
			Tail:     fc.Tail,
			MedianOK: fc.Median <= th.MedianMax,
			TailOK:   fc.Tail <= th.TailMax,
		}
		d.Checks = append(d.Checks, c)
		if c.Passed() {
			continue
		}

		d.CanPlay = false
		d.ViolatedHorizons = append(d.ViolatedHorizons, h)
		if !c.MedianOK {
			violations = append(violations, fmt.Sprintf("%s median %s m/s > %.2f m/s", h, format(fc.Median), th.MedianMax))
		}
		if !c.TailOK {
			violations = append(violations, fmt.Sprintf("%s tail %s m/s > %.2f m/s", h, format(fc.Tail), th.TailMax))
		}
	}

	if d.CanPlay {
		d.Reason = fmt.Sprintf("all horizons within limits (median <= %.2f m/s, tail <= %.2f m/s)", th.MedianMax, th.TailMax)
	} else {
		d.Reason = "too windy: " + strings.Join(violations, "; ")
	}
	return d, nil
}

// SafetyScore rates a forecast set from 0 (at or beyond both limits) to 1
// (calm). It averages the headroom of the worst median and the worst tail
// against their limits. NaN values score 0.
func SafetyScore(forecasts types.ForecastSet, th types.Thresholds) (float64, error) {
	if err := th.Validate(); err != nil {
		return 0, err
	}
	if len(forecasts) == 0 {
		return 0, types.ConfigError("cannot score an empty forecast set")
	}

	worstMedian, worstTail := 0.0, 0.0
	for _, fc := range forecasts {
		if math.IsNaN(fc.Median) || math.IsNaN(fc.Tail) {
			return 0, nil
		}
		worstMedian = math.Max(worstMedian, fc.Median)
		worstTail = math.Max(worstTail, fc.Tail)
	}

	medianScore := math.Max(0, 1-worstMedian/th.MedianMax)
	tailScore := math.Max(0, 1-worstTail/th.TailMax)
	return (medianScore + tailScore) / 2, nil
}

// SuggestAlternativeTimes returns, in chronological order, the start times
// whose forecast set allows play. Start times with an empty set are skipped.
func SuggestAlternativeTimes(byStart map[time.Time]types.ForecastSet, th types.Thresholds) ([]time.Time, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}

	out := []time.Time{}
	for start, set := range byStart {
		if len(set) == 0 {
			continue
		}
		d, err := Decide(set, th)
		if err != nil {
			return nil, err
		}
		if d.CanPlay {
			out = append(out, start)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func format(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.2f", v)
}
