// Package app assembles the advisor and its infrastructure from
// configuration. The API server and the queue worker share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"courtwind/internal/advisor"
	"courtwind/internal/config"
	"courtwind/internal/core"
	"courtwind/internal/db"
	"courtwind/internal/external"
	"courtwind/internal/features"
	"courtwind/internal/forecasts"
	"courtwind/internal/modelstore"
	"courtwind/internal/queue"
	"courtwind/internal/telemetry"
	"courtwind/internal/types"
)

// App holds the assembled advisor and the resources it owns.
type App struct {
	Config  *config.Config
	Service *advisor.Service
	Handle  *forecasts.Handle
	Metrics *telemetry.CloudWatchMetrics
	Checks  []core.HealthChecker

	closers []func()
	logger  *slog.Logger
	awsCfg  *aws.Config
}

// Build wires the advisor from cfg. On error every resource opened so far is
// released.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	builder, err := features.NewBuilder(cfg.Features.Builder(), logger)
	if err != nil {
		return nil, err
	}

	handle, err := a.loadHandle(ctx, builder.Schema())
	if err != nil {
		return nil, err
	}
	a.Handle = handle

	deps := advisor.Deps{
		Builder: builder,
		Handle:  handle,
		Clock:   types.RealClock{},
		Logger:  logger,
	}

	if url := cfg.Database.URL.Unmask(); url != "" {
		repo, err := a.openDecisionLog(ctx, url)
		if err != nil {
			return nil, err
		}
		deps.Log = repo
	}

	if cfg.AWS.DecisionQueueURL != "" {
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		deps.Publisher = queue.NewDecisionPublisher(sqs.NewFromConfig(awsCfg, a.sqsEndpoint), cfg.AWS, logger)
	}

	if cfg.Observability.EnableMetrics {
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		a.Metrics = telemetry.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
		deps.Metrics = a.Metrics
	}

	svc, err := advisor.NewService(advisor.Config{
		WindowLength:     cfg.Features.WindowLength,
		Horizons:         cfg.Features.HorizonList(),
		Thresholds:       cfg.Decision.Thresholds(),
		MaxBatch:         cfg.Server.MaxBatchSize,
		BatchConcurrency: cfg.Server.BatchConcurrency,
	}, deps)
	if err != nil {
		return nil, err
	}
	a.Service = svc

	logger.InfoContext(ctx, "advisor ready",
		"model", handle.Model.Name(),
		"model_version", handle.Version,
		"window_length", cfg.Features.WindowLength,
		"horizons", cfg.Features.Horizons,
		"decision_log", deps.Log != nil,
		"publisher", deps.Publisher != nil,
		"metrics", a.Metrics != nil,
	)
	return a, nil
}

// Close releases pools and clients in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// loadHandle resolves the forecast model named by MODEL_SOURCE.
func (a *App) loadHandle(ctx context.Context, schema types.Schema) (*forecasts.Handle, error) {
	cfg := a.Config
	opts := modelstore.LoadOptions{
		Schema:       schema,
		TailStrategy: cfg.Model.TailStrategy,
		TailFactor:   cfg.Model.TailFactor,
	}

	switch cfg.Model.Source {
	case "s3":
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		src := modelstore.NewS3Source(s3.NewFromConfig(awsCfg, a.s3Endpoint), cfg.AWS.ModelBucket)
		return modelstore.NewLoader(src, a.logger).Load(ctx, cfg.Model.ManifestKey, opts)

	case "local":
		return modelstore.NewLoader(modelstore.DirSource{Root: cfg.Model.Dir}, a.logger).Load(ctx, cfg.Model.ManifestKey, opts)

	case "remote":
		client := external.NewInferenceClient(&http.Client{Timeout: cfg.Inference.Timeout}, external.InferenceClientConfig{
			BaseURL: cfg.Inference.URL,
			APIKey:  cfg.Inference.APIKey.Unmask(),
			Logger:  a.logger,
		})
		return &forecasts.Handle{
			Model:        forecasts.NewRemoteModel(client, "remote", cfg.Build.Version),
			Tail:         forecasts.ScalingTail{Factor: cfg.Model.TailFactor},
			Schema:       schema,
			WindowLength: cfg.Features.WindowLength,
			Version:      cfg.Build.Version,
		}, nil

	case "persistence":
		h := forecasts.NewPersistenceHandle(forecasts.ScalingTail{Factor: cfg.Model.TailFactor})
		h.Schema = schema
		h.WindowLength = cfg.Features.WindowLength
		return h, nil
	}
	return nil, types.ConfigError("unknown MODEL_SOURCE %q", cfg.Model.Source)
}

func (a *App) openDecisionLog(ctx context.Context, url string) (*db.DecisionLogRepository, error) {
	dbCfg := a.Config.Database
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, types.ConfigError("invalid DATABASE_URL: %v", err)
	}
	poolCfg.MaxConns = int32(dbCfg.MaxConns)
	poolCfg.MinConns = int32(dbCfg.MinConns)
	poolCfg.MaxConnLifetime = dbCfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to create database pool", err)
	}
	a.closers = append(a.closers, pool.Close)

	pingCtx, cancel := context.WithTimeout(ctx, dbCfg.AcquireTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to reach database", err)
	}

	repo := db.NewDecisionLogRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	a.Checks = append(a.Checks, core.CheckFunc{CheckName: "database", Fn: pool.Ping})
	return repo, nil
}

// aws loads the SDK config once.
func (a *App) aws(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.Config.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS SDK config: %w", err)
	}
	a.awsCfg = &cfg
	return cfg, nil
}

// s3Endpoint and sqsEndpoint point SDK clients at AWS_ENDPOINT_URL
// (LocalStack) when it is set.
func (a *App) s3Endpoint(o *s3.Options) {
	if url := a.Config.AWS.EndpointURL; url != "" {
		o.BaseEndpoint = aws.String(url)
		o.UsePathStyle = true
	}
}

func (a *App) sqsEndpoint(o *sqs.Options) {
	if url := a.Config.AWS.EndpointURL; url != "" {
		o.BaseEndpoint = aws.String(url)
	}
}

// NewLogger builds the JSON logger used by every binary.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
