// Package sequence slices feature sets into fixed-length lookback windows.
//
// A window never spans a gap: all of its rows come from one segment with
// consecutive steps.
package sequence

import (
	"fmt"
	"time"

	"courtwind/internal/types"
)

// DefaultWindowLength is the lookback the wind model is trained with.
const DefaultWindowLength = 24

// MakeWindows returns every contiguous window of exactly windowLength rows,
// stride 1, oldest first. It is the training and backtest path.
func MakeWindows(set *types.FeatureSet, windowLength int) ([]types.FeatureWindow, error) {
	if err := checkLength(windowLength); err != nil {
		return nil, err
	}
	rows, schema := unpack(set)

	var windows []types.FeatureWindow
	longest := 0
	for _, run := range contiguousRuns(rows) {
		longest = max(longest, len(run))
		for end := windowLength; end <= len(run); end++ {
			windows = append(windows, types.FeatureWindow{
				Schema: schema,
				Rows:   run[end-windowLength : end : end],
			})
		}
	}
	if len(windows) == 0 {
		return nil, insufficient(windowLength, longest)
	}
	return windows, nil
}

// LatestWindow returns the single window made of the most recent
// windowLength rows. It is the inference path. The most recent run of
// contiguous rows must be long enough on its own and must end at the set's
// final grid point; older segments are never stitched in or used in place
// of a final segment that produced too few rows.
func LatestWindow(set *types.FeatureSet, windowLength int) (types.FeatureWindow, error) {
	if err := checkLength(windowLength); err != nil {
		return types.FeatureWindow{}, err
	}
	rows, schema := unpack(set)

	runs := contiguousRuns(rows)
	if len(runs) == 0 {
		return types.FeatureWindow{}, insufficient(windowLength, 0)
	}
	last := runs[len(runs)-1]
	if newest := last[len(last)-1]; !set.Fresh(newest) {
		return types.FeatureWindow{}, types.NewAppErrorWithDetails(
			types.ErrCodeInsufficientHistory,
			fmt.Sprintf("newest feature row at %s predates the latest observation at %s",
				newest.Timestamp.Format(time.RFC3339), set.LatestAt.Format(time.RFC3339)),
			nil,
			map[string]any{"required": windowLength, "available": 0},
		)
	}
	if len(last) < windowLength {
		return types.FeatureWindow{}, insufficient(windowLength, len(last))
	}
	return types.FeatureWindow{
		Schema: schema,
		Rows:   last[len(last)-windowLength:],
	}, nil
}

// Contiguous reports whether rows are one segment with consecutive steps.
func Contiguous(rows []types.FeatureRow) bool {
	for i := 1; i < len(rows); i++ {
		if !follows(rows[i-1], rows[i]) {
			return false
		}
	}
	return true
}

func follows(prev, cur types.FeatureRow) bool {
	return cur.Segment == prev.Segment && cur.Step == prev.Step+1
}

// contiguousRuns splits rows into maximal contiguous runs. The runs share
// the input's backing array.
func contiguousRuns(rows []types.FeatureRow) [][]types.FeatureRow {
	var runs [][]types.FeatureRow
	start := 0
	for i := 1; i <= len(rows); i++ {
		if i == len(rows) || !follows(rows[i-1], rows[i]) {
			if i > start {
				runs = append(runs, rows[start:i])
			}
			start = i
		}
	}
	return runs
}

func unpack(set *types.FeatureSet) ([]types.FeatureRow, types.Schema) {
	if set == nil {
		return nil, nil
	}
	return set.Rows, set.Schema
}

func checkLength(n int) error {
	if n <= 0 {
		return types.ConfigError("window_length must be positive, got %d", n)
	}
	return nil
}

func insufficient(need, have int) error {
	return types.NewAppErrorWithDetails(
		types.ErrCodeInsufficientHistory,
		fmt.Sprintf("need %d contiguous feature rows, have %d", need, have),
		nil,
		map[string]any{"required": need, "available": have},
	)
}
