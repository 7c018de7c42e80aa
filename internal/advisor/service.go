// Package advisor runs the wind pipeline end to end for a location: build
// features, take the latest window, forecast, decide. It owns the fallback
// policy, side effects (decision log, events, metrics) and batch fan-out.
package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"courtwind/internal/decision"
	"courtwind/internal/features"
	"courtwind/internal/forecasts"
	"courtwind/internal/sequence"
	"courtwind/internal/types"
)

// DecisionLog persists issued decisions.
type DecisionLog interface {
	Record(ctx context.Context, rec *types.DecisionRecord) error
	ListRecent(ctx context.Context, locationID string, limit int) ([]types.DecisionRecord, error)
}

// Publisher delivers issued advice to the presentation layer.
type Publisher interface {
	Publish(ctx context.Context, advice *types.Advice) error
}

// Metrics receives advisor telemetry.
type Metrics interface {
	RecordAdvice(ctx context.Context, source string, canPlay bool)
	RecordFallback(ctx context.Context, reason string)
	RecordTailClamp(ctx context.Context, h types.Horizon)
	RecordRowsExcluded(ctx context.Context, n int)
	RecordInferenceLatency(ctx context.Context, source string, d time.Duration)
}

// Config holds the advisor defaults. Requests may override horizons and
// thresholds.
type Config struct {
	WindowLength     int
	Horizons         []types.Horizon
	Thresholds       types.Thresholds
	MaxBatch         int
	BatchConcurrency int
}

// Deps are the advisor's collaborators. Builder and Handle are required;
// everything else is optional.
type Deps struct {
	Builder   *features.Builder
	Handle    *forecasts.Handle
	Log       DecisionLog
	Publisher Publisher
	Metrics   Metrics
	Clock     types.Clock
	Logger    *slog.Logger
}

// Service issues advice. It is safe for concurrent use.
type Service struct {
	cfg        Config
	builder    *features.Builder
	handle     *forecasts.Handle
	forecaster *forecasts.Forecaster
	log        DecisionLog
	publisher  Publisher
	metrics    Metrics
	clock      types.Clock
	logger     *slog.Logger
}

// NewService validates cfg against the handle and returns a Service.
func NewService(cfg Config, deps Deps) (*Service, error) {
	if deps.Builder == nil {
		return nil, types.ConfigError("advisor requires a feature builder")
	}
	if deps.Handle == nil || deps.Handle.Model == nil {
		return nil, types.NewAppError(types.ErrCodeForecastModelUnavailable, "advisor requires a model handle", nil)
	}
	if cfg.WindowLength <= 0 {
		return nil, types.ConfigError("window length must be positive, got %d", cfg.WindowLength)
	}
	if deps.Handle.WindowLength > 0 && deps.Handle.WindowLength != cfg.WindowLength {
		return nil, types.ConfigError("model expects windows of %d rows but WINDOW_LENGTH is %d", deps.Handle.WindowLength, cfg.WindowLength)
	}
	if deps.Handle.Schema != nil && !deps.Handle.Schema.Equal(deps.Builder.Schema()) {
		return nil, types.ConfigError("model feature columns do not match the configured feature schema")
	}
	if len(cfg.Horizons) == 0 {
		return nil, types.ConfigError("at least one forecast horizon is required")
	}
	for _, h := range cfg.Horizons {
		if h <= 0 {
			return nil, types.ConfigError("forecast horizons must be positive, got %v", cfg.Horizons)
		}
	}
	cfg.Horizons = types.SortHorizons(cfg.Horizons)
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 20
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = 8
	}

	s := &Service{
		cfg:       cfg,
		builder:   deps.Builder,
		handle:    deps.Handle,
		log:       deps.Log,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		clock:     deps.Clock,
		logger:    deps.Logger,
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.clock == nil {
		s.clock = types.RealClock{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.forecaster = forecasts.NewForecaster(s.logger, forecasts.WithClampHook(
		func(ctx context.Context, h types.Horizon, _, _ float64) {
			s.metrics.RecordTailClamp(ctx, h)
		},
	))
	return s, nil
}

// Advise produces advice for one location.
//
// InsufficientHistory and ForecastErrors degrade to a persistence forecast and
// are recorded on the Advice as FallbackReason. FeatureErrors and
// ConfigurationErrors are returned.
func (s *Service) Advise(ctx context.Context, req types.AdviceRequest) (*types.Advice, error) {
	ctx = types.WithLocationID(ctx, req.LocationID)
	logger := types.LoggerFromContext(ctx, s.logger).With("location_id", req.LocationID)

	hs, th, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	series := req.Series()
	set, err := s.builder.Build(series)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordRowsExcluded(ctx, set.Excluded)

	fs, source, fallback, err := s.forecast(ctx, logger, series, set, hs)
	if err != nil {
		return nil, err
	}

	d, err := decision.Decide(fs, th)
	if err != nil {
		return nil, err
	}
	score, err := decision.SafetyScore(fs, th)
	if err != nil {
		return nil, err
	}

	latest, _ := series.Latest()
	advice := &types.Advice{
		ID:             "adv_" + uuid.New().String(),
		LocationID:     req.LocationID,
		IssuedAt:       s.clock.Now(),
		ObservedAt:     latest.Timestamp,
		Decision:       d,
		Forecasts:      fs.Sorted(),
		SafetyScore:    score,
		ModelName:      source,
		FallbackReason: fallback,
	}
	if !d.CanPlay {
		if advice.AlternativeTimes, err = alternatives(latest.Timestamp, fs, th); err != nil {
			return nil, err
		}
	}

	logger.InfoContext(ctx, "advice issued",
		"advice_id", advice.ID,
		"can_play", d.CanPlay,
		"violated", len(d.ViolatedHorizons),
		"model", source,
		"fallback", fallback,
	)
	s.metrics.RecordAdvice(ctx, source, d.CanPlay)
	s.record(ctx, logger, advice)
	return advice, nil
}

// forecast runs the model on the latest window, falling back to persistence.
func (s *Service) forecast(
	ctx context.Context,
	logger *slog.Logger,
	series types.ObservationSeries,
	set *types.FeatureSet,
	hs []types.Horizon,
) (types.ForecastSet, string, string, error) {
	window, err := sequence.LatestWindow(set, s.cfg.WindowLength)
	if err != nil {
		if !types.HasCode(err, types.ErrCodeInsufficientHistory) {
			return nil, "", "", err
		}
		latest := lastWindSpeed(series, set)
		logger.InfoContext(ctx, "not enough history for a model window, using persistence",
			"rows", len(set.Rows),
			"window_length", s.cfg.WindowLength,
		)
		return s.fallback(ctx, latest, hs, types.FallbackInsufficientHistory)
	}

	start := time.Now()
	fs, err := s.forecaster.Forecast(ctx, s.handle, window, hs)
	if err != nil {
		if !types.IsForecastError(err) {
			return nil, "", "", err
		}
		logger.WarnContext(ctx, "forecast failed, using persistence",
			"model", s.handle.Model.Name(),
			"error", err,
		)
		return s.fallback(ctx, lastWindSpeed(series, set), hs, types.FallbackForecastError)
	}
	s.metrics.RecordInferenceLatency(ctx, s.handle.Model.Name(), time.Since(start))
	return fs, s.handle.Model.Name(), types.FallbackNone, nil
}

func (s *Service) fallback(ctx context.Context, latest float64, hs []types.Horizon, reason string) (types.ForecastSet, string, string, error) {
	s.metrics.RecordFallback(ctx, reason)
	fs, err := s.forecaster.PersistenceForecast(ctx, latest, hs, s.handle.Tail)
	if err != nil {
		return nil, "", "", err
	}
	return fs, types.SourcePersistence, reason, nil
}

// record writes the decision log and publishes the event. Failures are
// logged; advice has already been computed and is still returned.
func (s *Service) record(ctx context.Context, logger *slog.Logger, a *types.Advice) {
	if s.log != nil {
		rec := &types.DecisionRecord{
			ID:               a.ID,
			LocationID:       a.LocationID,
			IssuedAt:         a.IssuedAt,
			CanPlay:          a.Decision.CanPlay,
			ViolatedHorizons: a.Decision.ViolatedHorizons,
			Reason:           a.Decision.Reason,
			MedianMax:        a.Decision.ThresholdsUsed.MedianMax,
			TailMax:          a.Decision.ThresholdsUsed.TailMax,
			Forecasts:        a.Forecasts,
			ModelName:        a.ModelName,
			FallbackReason:   a.FallbackReason,
		}
		if err := s.log.Record(ctx, rec); err != nil {
			logger.ErrorContext(ctx, "failed to record decision", "advice_id", a.ID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, a); err != nil {
			logger.ErrorContext(ctx, "failed to publish decision event", "advice_id", a.ID, "error", err)
		}
	}
}

// AdviseBatch issues advice for several locations concurrently. A failure for
// one location is reported in Errors and does not affect the others.
func (s *Service) AdviseBatch(ctx context.Context, reqs []types.AdviceRequest) (*types.BatchAdviceResult, error) {
	if len(reqs) > s.cfg.MaxBatch {
		return nil, types.NewAppError(types.ErrCodeValidationBatchSize,
			fmt.Sprintf("batch size %d exceeds maximum of %d locations", len(reqs), s.cfg.MaxBatch), nil)
	}
	seen := make(map[string]struct{}, len(reqs))
	for _, r := range reqs {
		if _, dup := seen[r.LocationID]; dup {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidBody,
				fmt.Sprintf("location %q appears more than once", r.LocationID), nil)
		}
		seen[r.LocationID] = struct{}{}
	}

	var mu sync.Mutex
	result := &types.BatchAdviceResult{
		Advice: make(map[string]*types.Advice, len(reqs)),
		Errors: make(map[string]types.ErrorDetail),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for _, req := range reqs {
		g.Go(func() error {
			advice, err := s.Advise(gCtx, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				code := types.CodeOf(err)
				if code == "" {
					code = types.ErrCodeInternalUnexpected
				}
				result.Errors[req.LocationID] = types.ErrorDetail{Code: string(code), Message: err.Error()}
				return nil
			}
			result.Advice[req.LocationID] = advice
			return nil
		})
	}
	_ = g.Wait()

	if len(result.Errors) > 0 {
		s.logger.WarnContext(ctx, "batch advice completed with failures",
			"requested", len(reqs),
			"failed", len(result.Errors),
		)
	}
	return result, nil
}

// Decide runs the decision engine on client-supplied forecasts.
func (s *Service) Decide(req types.DecideRequest) (types.Decision, error) {
	th := s.cfg.Thresholds
	if req.Thresholds != nil {
		th = *req.Thresholds
	}
	return decision.Decide(req.ForecastSet(), th)
}

// Recent returns the latest logged decisions for a location.
func (s *Service) Recent(ctx context.Context, locationID string, limit int) ([]types.DecisionRecord, error) {
	if s.log == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundDecisionLog, "decision log is not configured", nil)
	}
	return s.log.ListRecent(ctx, locationID, limit)
}

// Defaults are the values applied when a request omits them.
type Defaults struct {
	Horizons     []types.Horizon  `json:"horizons"`
	Thresholds   types.Thresholds `json:"thresholds"`
	WindowLength int              `json:"window_length"`
	Model        string           `json:"model"`
	ModelVersion string           `json:"model_version,omitempty"`
	MaxBatch     int              `json:"max_batch"`
}

// Defaults reports the configured defaults and the loaded model.
func (s *Service) Defaults() Defaults {
	return Defaults{
		Horizons:     append([]types.Horizon(nil), s.cfg.Horizons...),
		Thresholds:   s.cfg.Thresholds,
		WindowLength: s.cfg.WindowLength,
		Model:        s.handle.Model.Name(),
		ModelVersion: s.handle.Version,
		MaxBatch:     s.cfg.MaxBatch,
	}
}

func (s *Service) resolve(req types.AdviceRequest) ([]types.Horizon, types.Thresholds, error) {
	hs := s.cfg.Horizons
	if len(req.Horizons) > 0 {
		hs = make([]types.Horizon, len(req.Horizons))
		for i, h := range req.Horizons {
			if h <= 0 {
				return nil, types.Thresholds{}, types.NewAppError(types.ErrCodeValidationInvalidHorizon,
					fmt.Sprintf("horizon must be positive, got %d", h), nil)
			}
			hs[i] = types.Horizon(h)
		}
	}
	th := s.cfg.Thresholds
	if req.Thresholds != nil {
		th = *req.Thresholds
		if err := th.Validate(); err != nil {
			return nil, types.Thresholds{}, err
		}
	}
	return types.SortHorizons(hs), th, nil
}

// lastWindSpeed is the wind speed of the feature row at the final grid point,
// or the raw latest observation when that grid point produced no row.
func lastWindSpeed(series types.ObservationSeries, set *types.FeatureSet) float64 {
	if n := len(set.Rows); n > 0 && set.Fresh(set.Rows[n-1]) {
		if idx := set.Schema.Index(forecasts.WindSpeedColumn); idx >= 0 {
			return set.Rows[n-1].Values[idx]
		}
	}
	latest, _ := series.Latest()
	return latest.WindSpeed
}

// alternatives returns the valid times of horizons that pass on their own.
func alternatives(observedAt time.Time, fs types.ForecastSet, th types.Thresholds) ([]time.Time, error) {
	byTime := make(map[time.Time]types.ForecastSet, len(fs))
	for h, fc := range fs {
		byTime[observedAt.Add(h.Duration())] = types.ForecastSet{h: fc}
	}
	return decision.SuggestAlternativeTimes(byTime, th)
}

type noopMetrics struct{}

func (noopMetrics) RecordAdvice(context.Context, string, bool)                    {}
func (noopMetrics) RecordFallback(context.Context, string)                        {}
func (noopMetrics) RecordTailClamp(context.Context, types.Horizon)                {}
func (noopMetrics) RecordRowsExcluded(context.Context, int)                       {}
func (noopMetrics) RecordInferenceLatency(context.Context, string, time.Duration) {}
