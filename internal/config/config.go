// Package config loads the engine's TOML service configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// LogLevel is the logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat is the logging output encoding.
type LogFormat string

const (
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

// BackpressurePolicy selects what happens when the worker pool is saturated
// and the queue is full.
type BackpressurePolicy string

const (
	// BackpressureBlock makes Submit block until a slot frees up.
	BackpressureBlock BackpressurePolicy = "block"
	// BackpressureReject makes Submit return ErrQueueFull immediately.
	BackpressureReject BackpressurePolicy = "reject"
)

// CatalogConfig configures the recipe catalog directory.
type CatalogConfig struct {
	Dir string `toml:"dir"`
}

// PoolConfig configures the bounded worker pool.
type PoolConfig struct {
	Workers      int                `toml:"workers"`
	QueueDepth   int                `toml:"queue_depth"`
	Backpressure BackpressurePolicy `toml:"backpressure"`
}

// TimeoutConfig bounds the two kinds of suspension points a run hits.
type TimeoutConfig struct {
	LLM   time.Duration `toml:"llm"`
	Probe time.Duration `toml:"probe"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  LogLevel  `toml:"level"`
	Format LogFormat `toml:"format"`
}

// Config is the engine's top-level service configuration.
type Config struct {
	Catalog  CatalogConfig `toml:"catalog"`
	Pool     PoolConfig    `toml:"pool"`
	Timeouts TimeoutConfig `toml:"timeouts"`
	Logging  LoggingConfig `toml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Dir: "recipes",
		},
		Pool: PoolConfig{
			Workers:      32,
			QueueDepth:   256,
			Backpressure: BackpressureReject,
		},
		Timeouts: TimeoutConfig{
			LLM:   30 * time.Second,
			Probe: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatJSON,
		},
	}
}

// Load reads path, merging onto Default(). A missing file is not an error;
// Default() is returned unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks the loaded configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Catalog.Dir == "" {
		return fmt.Errorf("catalog.dir is required")
	}
	if c.Pool.Workers <= 0 {
		return fmt.Errorf("pool.workers must be positive")
	}
	if c.Pool.QueueDepth < 0 {
		return fmt.Errorf("pool.queue_depth must not be negative")
	}
	switch c.Pool.Backpressure {
	case BackpressureBlock, BackpressureReject:
	default:
		return fmt.Errorf("pool.backpressure must be %q or %q", BackpressureBlock, BackpressureReject)
	}
	if c.Timeouts.LLM <= 0 {
		return fmt.Errorf("timeouts.llm must be positive")
	}
	if c.Timeouts.Probe <= 0 {
		return fmt.Errorf("timeouts.probe must be positive")
	}
	switch c.Logging.Level {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	switch c.Logging.Format {
	case LogFormatJSON, LogFormatConsole:
	default:
		return fmt.Errorf("logging.format %q is not recognized", c.Logging.Format)
	}
	return nil
}
