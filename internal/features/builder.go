// Package features turns raw observation series into the fixed-width feature
// matrix the wind model consumes.
//
// The pipeline is: validate, regularize onto the cadence grid (averaging
// sub-cadence readings), fill short gaps by interpolation and split on long
// ones, then compute per-row features within each segment. Rows without enough
// history for every lag, tendency and rolling column are excluded; no feature
// is ever filled with a placeholder.
package features

import (
	"log/slog"

	"courtwind/internal/types"
)

// Builder computes feature sets for a fixed configuration. It holds no
// per-call state and is safe for concurrent use.
type Builder struct {
	cfg    Config
	schema types.Schema
	logger *slog.Logger
}

// NewBuilder validates cfg and returns a Builder. A nil logger falls back to
// slog.Default().
func NewBuilder(cfg Config, logger *slog.Logger) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		cfg:    cfg,
		schema: Columns(cfg),
		logger: logger,
	}, nil
}

// Build is a convenience wrapper around NewBuilder(cfg, nil).Build(series).
func Build(series types.ObservationSeries, cfg Config) (*types.FeatureSet, error) {
	b, err := NewBuilder(cfg, nil)
	if err != nil {
		return nil, err
	}
	return b.Build(series)
}

// Config returns the builder's configuration.
func (b *Builder) Config() Config { return b.cfg }

// Schema returns a copy of the column order every row is built with.
func (b *Builder) Schema() types.Schema {
	return append(types.Schema(nil), b.schema...)
}

// Build converts series into a feature set. The series is not modified.
//
// It returns a FeatureError for empty input, zero or non-increasing
// timestamps, and non-finite readings. A valid series that is too short to
// produce any row yields an empty set, not an error; the windower reports
// InsufficientHistory.
func (b *Builder) Build(series types.ObservationSeries) (*types.FeatureSet, error) {
	if err := validateSeries(series.Observations); err != nil {
		return nil, err
	}

	obs := make([]types.Observation, len(series.Observations))
	copy(obs, series.Observations)

	points := bucketize(obs, b.cfg.Cadence)
	segs := segment(points, b.cfg.Cadence, b.cfg.MaxGapSteps)
	need := b.cfg.RequiredHistory()

	set := &types.FeatureSet{
		Schema:   b.Schema(),
		Segments: len(segs),
		LatestAt: points[len(points)-1].t,
	}
	interpolated := 0
	for si, seg := range segs {
		rows := b.segmentRows(si, seg, need)
		set.Excluded += len(seg) - len(rows)
		set.Rows = append(set.Rows, rows...)
		for _, p := range seg {
			if p.interpolated {
				interpolated++
			}
		}
	}

	if len(segs) > 1 {
		b.logger.Info("observation series split at gaps",
			"location_id", series.LocationID,
			"segments", len(segs),
			"max_gap_steps", b.cfg.MaxGapSteps,
		)
	}
	if set.Excluded > 0 || interpolated > 0 {
		b.logger.Debug("feature rows built",
			"location_id", series.LocationID,
			"rows", len(set.Rows),
			"excluded", set.Excluded,
			"interpolated_points", interpolated,
			"required_history", need,
		)
	}
	return set, nil
}

// segmentRows computes every row of one segment that has full history.
func (b *Builder) segmentRows(segIdx int, seg []gridPoint, need int) []types.FeatureRow {
	if len(seg) <= need {
		return nil
	}

	speeds := make([]float64, len(seg))
	for i, p := range seg {
		speeds[i] = p.speed
	}
	roll := computeRolling(speeds, b.cfg.RollingWindow)
	k := b.cfg.PressureTendencySteps

	rows := make([]types.FeatureRow, 0, len(seg)-need)
	for i := need; i < len(seg); i++ {
		p := seg[i]
		vals := make([]float64, 0, len(b.schema))
		vals = append(vals, p.speed, p.gust, p.temp, p.humidity, p.pressure)
		for _, lag := range b.cfg.LagOffsets {
			vals = append(vals, seg[i-lag].speed)
		}
		for _, lag := range b.cfg.GustLagOffsets {
			vals = append(vals, seg[i-lag].gust)
		}

		hourSin, hourCos := Cyclical(HourOfDay(p.t), 24)
		dowSin, dowCos := Cyclical(DayOfWeek(p.t), 7)
		doy, period := DayOfYear(p.t)
		doySin, doyCos := Cyclical(doy, period)
		u, v := WindComponents(p.speed, p.dir)

		vals = append(vals,
			hourSin, hourCos,
			dowSin, dowCos,
			doySin, doyCos,
			(p.pressure-seg[i-k].pressure)/float64(k),
			u, v,
			roll.mean[i], roll.std[i], roll.min[i], roll.max[i],
		)

		rows = append(rows, types.FeatureRow{
			Timestamp:    p.t,
			Segment:      segIdx,
			Step:         i,
			Interpolated: p.interpolated,
			Values:       vals,
		})
	}
	return rows
}
