// Package eval scores wind forecasts against observations and runs rolling
// backtests of a model handle against the persistence baseline.
package eval

import (
	"fmt"
	"math"
	"sort"
)

// mapeEpsilon keeps MAPE finite when an observed speed is zero.
const mapeEpsilon = 1e-10

// Metrics are point-forecast error scores in m/s (MAPE in percent).
type Metrics struct {
	N    int     `json:"n"`
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	MSE  float64 `json:"mse"`
	MAPE float64 `json:"mape"`
}

// Evaluate computes MAE, RMSE, MSE and MAPE.
func Evaluate(actual, predicted []float64) (Metrics, error) {
	if err := checkPair(actual, predicted); err != nil {
		return Metrics{}, err
	}
	var absSum, sqSum, pctSum float64
	for i := range actual {
		e := actual[i] - predicted[i]
		absSum += math.Abs(e)
		sqSum += e * e
		pctSum += math.Abs(e / (actual[i] + mapeEpsilon))
	}
	n := float64(len(actual))
	mse := sqSum / n
	return Metrics{
		N:    len(actual),
		MAE:  absSum / n,
		RMSE: math.Sqrt(mse),
		MSE:  mse,
		MAPE: pctSum / n * 100,
	}, nil
}

// PinballLoss is the mean quantile loss of predicted q-quantiles.
func PinballLoss(actual, predicted []float64, q float64) (float64, error) {
	if err := checkPair(actual, predicted); err != nil {
		return 0, err
	}
	if q <= 0 || q >= 1 {
		return 0, fmt.Errorf("quantile must be in (0, 1), got %v", q)
	}
	var sum float64
	for i := range actual {
		e := actual[i] - predicted[i]
		if e >= 0 {
			sum += q * e
		} else {
			sum += (q - 1) * e
		}
	}
	return sum / float64(len(actual)), nil
}

// SkillScore is 1 - model/baseline. It is 0 when the baseline error is 0.
func SkillScore(model, baseline float64) float64 {
	if baseline == 0 {
		return 0
	}
	return 1 - model/baseline
}

// Coverage is the fraction of actual values within [lower, upper]. A nil
// lower bound checks only the upper bound.
func Coverage(actual, lower, upper []float64) (float64, error) {
	if err := checkPair(actual, upper); err != nil {
		return 0, err
	}
	if lower != nil && len(lower) != len(actual) {
		return 0, fmt.Errorf("length mismatch: %d actual, %d lower", len(actual), len(lower))
	}
	hits := 0
	for i, a := range actual {
		if a <= upper[i] && (lower == nil || a >= lower[i]) {
			hits++
		}
	}
	return float64(hits) / float64(len(actual)), nil
}

// Percentile returns the p-th percentile (0..100) with linear interpolation
// between closest ranks.
func Percentile(values []float64, p float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("percentile of empty slice")
	}
	if p < 0 || p > 100 {
		return 0, fmt.Errorf("percentile must be in [0, 100], got %v", p)
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)

	pos := p / 100 * float64(len(s)-1)
	lo := int(math.Floor(pos))
	if lo >= len(s)-1 {
		return s[len(s)-1], nil
	}
	frac := pos - float64(lo)
	return s[lo] + frac*(s[lo+1]-s[lo]), nil
}

// ResidualQuantile is the q-quantile (0..1) of absolute residuals, the offset
// ResidualQuantileTail adds to a median.
func ResidualQuantile(actual, predicted []float64, q float64) (float64, error) {
	if err := checkPair(actual, predicted); err != nil {
		return 0, err
	}
	abs := make([]float64, len(actual))
	for i := range actual {
		abs[i] = math.Abs(actual[i] - predicted[i])
	}
	return Percentile(abs, q*100)
}

func checkPair(actual, predicted []float64) error {
	if len(actual) == 0 {
		return fmt.Errorf("no samples")
	}
	if len(actual) != len(predicted) {
		return fmt.Errorf("length mismatch: %d actual, %d predicted", len(actual), len(predicted))
	}
	return nil
}
