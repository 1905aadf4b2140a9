package workflow

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the engine's runtime switches.
type Config struct {
	// MetricsEnabled records Prometheus metrics for every attempt.
	MetricsEnabled bool `env:"WORKFLOW_METRICS_ENABLED" envDefault:"true"`
	// TracingEnabled opens an OpenTelemetry span for every attempt.
	TracingEnabled bool `env:"WORKFLOW_TRACING_ENABLED" envDefault:"true"`
	// LogTransitions logs every attempt and its outcome.
	LogTransitions bool `env:"WORKFLOW_LOG_TRANSITIONS" envDefault:"true"`
	// RaiseOnHalt makes Fire return a HaltedError for halted attempts.
	RaiseOnHalt bool `env:"WORKFLOW_RAISE_ON_HALT" envDefault:"false"`
	// BulkConcurrency bounds the worker pool used by FireAll.
	BulkConcurrency int `env:"WORKFLOW_BULK_CONCURRENCY" envDefault:"8"`
}

// DefaultConfig matches the environment defaults.
func DefaultConfig() Config {
	return Config{
		MetricsEnabled:  true,
		TracingEnabled:  true,
		LogTransitions:  true,
		BulkConcurrency: 8, //nolint:mnd
	}
}

// LoadConfig reads Config from WORKFLOW_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse workflow config: %w", err)
	}

	if cfg.BulkConcurrency < 1 {
		cfg.BulkConcurrency = 1
	}

	return cfg, nil
}
