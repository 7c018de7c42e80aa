// Package config defines the process configuration for courtwind binaries.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// A missing required value or an invalid format fails startup.
package config

import (
	"time"

	"courtwind/internal/features"
	"courtwind/internal/types"
)

// SecretString is an alias for types.SecretString.
type SecretString = types.SecretString

// Config is the top-level configuration struct.
// Sub-components receive only the subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"courtwind"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Security      SecurityConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Model         ModelConfig
	Inference     InferenceConfig
	Features      FeatureConfig
	Decision      DecisionConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port             string        `envconfig:"PORT" default:"8080"`
	ReadTimeout      time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout     time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	RequestTimeout   time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"20s"`
	MaxBatchSize     int           `envconfig:"ADVICE_MAX_BATCH" default:"20" validate:"min=1,max=100"`
	BatchConcurrency int           `envconfig:"ADVICE_BATCH_CONCURRENCY" default:"8" validate:"min=1"`
}

// SecurityConfig holds API access settings. An empty APIKey leaves the API
// open.
type SecurityConfig struct {
	APIKey             SecretString `envconfig:"API_KEY"`
	CorsAllowedOrigins []string     `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// DatabaseConfig holds the decision-log database settings. An empty URL
// disables decision logging.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"omitempty,url"`

	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// AWSConfig holds AWS resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"eu-central-1"`

	ModelBucket      string `envconfig:"MODEL_BUCKET"`
	DecisionQueueURL string `envconfig:"SQS_DECISIONS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ModelConfig selects where the forecast model handle comes from.
//
// Source "s3" reads MODEL_MANIFEST_KEY from MODEL_BUCKET, "local" reads it from
// MODEL_DIR, "remote" uses the inference endpoint, and "persistence" runs
// without a trained model.
type ModelConfig struct {
	Source       string  `envconfig:"MODEL_SOURCE" default:"persistence" validate:"oneof=s3 local remote persistence"`
	ManifestKey  string  `envconfig:"MODEL_MANIFEST_KEY" default:"models/wind/manifest.json"`
	Dir          string  `envconfig:"MODEL_DIR" default:"./models/wind"`
	TailStrategy string  `envconfig:"MODEL_TAIL_STRATEGY" default:"scaling" validate:"oneof=scaling residual"`
	TailFactor   float64 `envconfig:"MODEL_TAIL_FACTOR" default:"1.2" validate:"gte=1"`
}

// InferenceConfig configures the remote inference endpoint used when
// MODEL_SOURCE=remote.
type InferenceConfig struct {
	URL     string        `envconfig:"INFERENCE_URL" validate:"omitempty,url"`
	APIKey  SecretString  `envconfig:"INFERENCE_API_KEY"`
	Timeout time.Duration `envconfig:"INFERENCE_TIMEOUT" default:"5s"`
}

// FeatureConfig mirrors features.Config plus the window length and horizons.
type FeatureConfig struct {
	Cadence               time.Duration `envconfig:"FEATURE_CADENCE" default:"1h"`
	LagOffsets            []int         `envconfig:"FEATURE_LAG_OFFSETS" default:"1,2,3,6,12,24" validate:"min=1,dive,min=1"`
	GustLagOffsets        []int         `envconfig:"FEATURE_GUST_LAG_OFFSETS" default:"1,2,3" validate:"dive,min=1"`
	PressureTendencySteps int           `envconfig:"FEATURE_PRESSURE_TENDENCY_STEPS" default:"3" validate:"min=1"`
	RollingWindow         int           `envconfig:"FEATURE_ROLLING_WINDOW" default:"3" validate:"min=1"`
	MaxGapSteps           int           `envconfig:"FEATURE_MAX_GAP_STEPS" default:"3" validate:"min=0"`
	WindowLength          int           `envconfig:"WINDOW_LENGTH" default:"24" validate:"min=1"`
	Horizons              []int         `envconfig:"FORECAST_HORIZONS" default:"1,3,6" validate:"min=1,dive,min=1"`
}

// Builder converts the configured values into a feature builder config.
func (c FeatureConfig) Builder() features.Config {
	return features.Config{
		Cadence:               c.Cadence,
		LagOffsets:            append([]int(nil), c.LagOffsets...),
		GustLagOffsets:        append([]int(nil), c.GustLagOffsets...),
		PressureTendencySteps: c.PressureTendencySteps,
		RollingWindow:         c.RollingWindow,
		MaxGapSteps:           c.MaxGapSteps,
	}
}

// HorizonList returns the configured horizons, sorted and de-duplicated.
func (c FeatureConfig) HorizonList() []types.Horizon {
	hs := make([]types.Horizon, len(c.Horizons))
	for i, h := range c.Horizons {
		hs[i] = types.Horizon(h)
	}
	return types.SortHorizons(hs)
}

// DecisionConfig holds the default safety thresholds. The defaults follow the
// BWF outdoor guidance (median wind 3.33 m/s, gusts 5.0 m/s).
type DecisionConfig struct {
	MedianMax float64 `envconfig:"THRESHOLD_MEDIAN_MAX_MS" default:"3.33" validate:"gt=0"`
	TailMax   float64 `envconfig:"THRESHOLD_TAIL_MAX_MS" default:"5.0" validate:"gt=0"`
}

// Thresholds returns the configured thresholds.
func (c DecisionConfig) Thresholds() types.Thresholds {
	return types.Thresholds{MedianMax: c.MedianMax, TailMax: c.TailMax}
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"CourtWind"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
