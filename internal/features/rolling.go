package features

import (
	"github.com/markcheno/go-talib"
)

// rollingStats holds trailing-window statistics aligned with the input slice.
// Entries before index window-1 are undefined and never read.
type rollingStats struct {
	mean, std, min, max []float64
}

// computeRolling returns trailing mean, population standard deviation, min
// and max over window points, including the current one.
func computeRolling(values []float64, window int) rollingStats {
	n := len(values)
	if window <= 1 || n < window {
		// A window of one is the value itself; too-short input has no
		// defined statistics and its rows are excluded by the caller.
		rs := rollingStats{
			mean: make([]float64, n),
			std:  make([]float64, n),
			min:  make([]float64, n),
			max:  make([]float64, n),
		}
		if window <= 1 {
			copy(rs.mean, values)
			copy(rs.min, values)
			copy(rs.max, values)
		}
		return rs
	}
	return rollingStats{
		mean: talib.Sma(values, window),
		std:  talib.StdDev(values, window, 1),
		min:  talib.Min(values, window),
		max:  talib.Max(values, window),
	}
}
