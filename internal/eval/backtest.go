package eval

import (
	"context"
	"log/slog"

	"courtwind/internal/forecasts"
	"courtwind/internal/sequence"
	"courtwind/internal/types"
)

// Config controls a rolling backtest. Sizes are in feature rows.
type Config struct {
	Horizons     []types.Horizon
	WindowLength int
	MinTrain     int
	TestWindow   int
	Step         int
	// TailQuantile is the residual quantile used for the calibrated tail.
	TailQuantile float64
}

// DefaultConfig is one week of training, one-week test windows and a daily step.
func DefaultConfig() Config {
	return Config{
		Horizons:     []types.Horizon{1, 3, 6},
		WindowLength: 24,
		MinTrain:     168,
		TestWindow:   168,
		Step:         24,
		TailQuantile: 0.9,
	}
}

func (c Config) validate() error {
	if len(c.Horizons) == 0 {
		return types.ConfigError("backtest needs at least one horizon")
	}
	if c.WindowLength <= 0 || c.MinTrain <= 0 || c.TestWindow <= 0 || c.Step <= 0 {
		return types.ConfigError("backtest sizes must be positive (window=%d train=%d test=%d step=%d)",
			c.WindowLength, c.MinTrain, c.TestWindow, c.Step)
	}
	if c.TailQuantile <= 0 || c.TailQuantile >= 1 {
		return types.ConfigError("tail quantile must be in (0, 1), got %v", c.TailQuantile)
	}
	return nil
}

// Split is one fold: rows [0, TrainEnd) train, rows [TrainEnd, TestEnd) test.
type Split struct {
	TrainEnd int
	TestEnd  int
}

// RollingSplits returns expanding-train folds over n rows.
func RollingSplits(n, minTrain, testWindow, step int) []Split {
	var out []Split
	for start := minTrain; start+testWindow <= n; start += step {
		out = append(out, Split{TrainEnd: start, TestEnd: start + testWindow})
	}
	return out
}

// HorizonReport scores one horizon across every fold.
type HorizonReport struct {
	Horizon     types.Horizon `json:"horizon"`
	Model       Metrics       `json:"model"`
	Persistence Metrics       `json:"persistence"`
	Skill       float64       `json:"skill"`
	// TailCoverage is the share of test targets at or below the median plus
	// the residual quantile calibrated on each fold's training rows.
	TailCoverage float64 `json:"tail_coverage"`
	TailPinball  float64 `json:"tail_pinball"`
	// ResidualQuantile is calibrated on every scored sample; write it into a
	// manifest's residual_q90 to enable the residual tail.
	ResidualQuantile float64 `json:"residual_quantile"`
}

// Report is the result of a backtest.
type Report struct {
	Model    string          `json:"model"`
	Folds    int             `json:"folds"`
	Skipped  int             `json:"skipped"`
	Horizons []HorizonReport `json:"horizons"`
}

// ResidualQuantiles returns ResidualQuantile per horizon.
func (r *Report) ResidualQuantiles() map[types.Horizon]float64 {
	out := make(map[types.Horizon]float64, len(r.Horizons))
	for _, h := range r.Horizons {
		out[h.Horizon] = h.ResidualQuantile
	}
	return out
}

// Backtester scores a handle against persistence over rolling folds.
type Backtester struct {
	forecaster *forecasts.Forecaster
	logger     *slog.Logger
}

// NewBacktester creates a Backtester.
func NewBacktester(forecaster *forecasts.Forecaster, logger *slog.Logger) *Backtester {
	if logger == nil {
		logger = slog.Default()
	}
	if forecaster == nil {
		forecaster = forecasts.NewForecaster(logger)
	}
	return &Backtester{forecaster: forecaster, logger: logger}
}

type stepKey struct {
	segment int
	step    int
}

type sample struct {
	actual      float64
	median      float64
	persistence float64
}

// Run backtests handle over set. A window ending at row i forecasts the wind
// speed at the row h steps later in the same segment; the sample belongs to a
// fold's test period when both rows fall inside it. Windows whose forecast
// fails are logged and skipped.
func (b *Backtester) Run(ctx context.Context, set *types.FeatureSet, handle *forecasts.Handle, cfg Config) (*Report, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	speedIdx := set.Schema.Index(forecasts.WindSpeedColumn)
	if speedIdx < 0 {
		return nil, types.ConfigError("feature set has no %s column", forecasts.WindSpeedColumn)
	}
	splits := RollingSplits(len(set.Rows), cfg.MinTrain, cfg.TestWindow, cfg.Step)
	if len(splits) == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeInsufficientHistory,
			"not enough rows for a single backtest fold", nil,
			map[string]any{"rows": len(set.Rows), "required": cfg.MinTrain + cfg.TestWindow})
	}

	hs := types.SortHorizons(cfg.Horizons)
	index := make(map[stepKey]int, len(set.Rows))
	for i, r := range set.Rows {
		index[stepKey{r.Segment, r.Step}] = i
	}

	// Forecasts are cached per window end row; folds overlap heavily.
	cache := make(map[int]types.ForecastSet)
	skipped := 0
	forecastAt := func(end int) (types.ForecastSet, bool) {
		if fs, ok := cache[end]; ok {
			return fs, fs != nil
		}
		start := end - cfg.WindowLength + 1
		if start < 0 || !sequence.Contiguous(set.Rows[start:end+1]) {
			cache[end] = nil
			return nil, false
		}
		win := types.FeatureWindow{Schema: set.Schema, Rows: set.Rows[start : end+1]}
		fs, err := b.forecaster.Forecast(ctx, handle, win, hs)
		if err != nil {
			b.logger.WarnContext(ctx, "backtest forecast failed, skipping window",
				"row", end,
				"error", err,
			)
			skipped++
			cache[end] = nil
			return nil, false
		}
		cache[end] = fs
		return fs, true
	}

	// samplesIn collects samples whose window end and target lie in [from, to).
	samplesIn := func(h types.Horizon, from, to int) []sample {
		var out []sample
		for end := from; end < to; end++ {
			row := set.Rows[end]
			target, ok := index[stepKey{row.Segment, row.Step + int(h)}]
			if !ok || target >= to {
				continue
			}
			fs, ok := forecastAt(end)
			if !ok {
				continue
			}
			out = append(out, sample{
				actual:      set.Rows[target].Values[speedIdx],
				median:      fs[h].Median,
				persistence: row.Values[speedIdx],
			})
		}
		return out
	}

	report := &Report{Model: handle.Model.Name(), Folds: len(splits)}
	for _, h := range hs {
		var actual, model, persist, upper []float64
		for fi, sp := range splits {
			train := samplesIn(h, 0, sp.TrainEnd)
			test := samplesIn(h, sp.TrainEnd, sp.TestEnd)
			if len(test) == 0 {
				continue
			}
			q := 0.0
			if len(train) > 0 {
				ta, tm := columns(train)
				var err error
				if q, err = ResidualQuantile(ta, tm, cfg.TailQuantile); err != nil {
					return nil, err
				}
			}
			b.logger.DebugContext(ctx, "backtest fold",
				"horizon", h.String(),
				"fold", fi+1,
				"train_samples", len(train),
				"test_samples", len(test),
				"residual_quantile", q,
			)
			for _, s := range test {
				actual = append(actual, s.actual)
				model = append(model, s.median)
				persist = append(persist, s.persistence)
				upper = append(upper, s.median+q)
			}
		}

		hr := HorizonReport{Horizon: h}
		if len(actual) == 0 {
			b.logger.WarnContext(ctx, "no backtest samples for horizon", "horizon", h.String())
			report.Horizons = append(report.Horizons, hr)
			continue
		}
		var err error
		if hr.Model, err = Evaluate(actual, model); err != nil {
			return nil, err
		}
		if hr.Persistence, err = Evaluate(actual, persist); err != nil {
			return nil, err
		}
		hr.Skill = SkillScore(hr.Model.MAE, hr.Persistence.MAE)
		if hr.TailCoverage, err = Coverage(actual, nil, upper); err != nil {
			return nil, err
		}
		if hr.TailPinball, err = PinballLoss(actual, upper, cfg.TailQuantile); err != nil {
			return nil, err
		}
		if hr.ResidualQuantile, err = ResidualQuantile(actual, model, cfg.TailQuantile); err != nil {
			return nil, err
		}
		report.Horizons = append(report.Horizons, hr)

		b.logger.InfoContext(ctx, "backtest horizon scored",
			"model", report.Model,
			"horizon", h.String(),
			"samples", hr.Model.N,
			"mae", hr.Model.MAE,
			"persistence_mae", hr.Persistence.MAE,
			"skill", hr.Skill,
		)
	}
	report.Skipped = skipped
	return report, nil
}

func columns(samples []sample) (actual, median []float64) {
	actual = make([]float64, len(samples))
	median = make([]float64, len(samples))
	for i, s := range samples {
		actual[i] = s.actual
		median[i] = s.median
	}
	return actual, median
}
