// Package config loads the docflow configuration file: engine tuning, logging,
// metrics, event persistence, change-detection cache, daemon schedule, output
// target, module settings and declarative pipelines.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/fsio"
	"git.home.luguber.info/inful/docflow/internal/meta"
)

// Config is the root of the configuration file.
type Config struct {
	Version  string         `yaml:"version"`
	Engine   EngineConfig   `yaml:"engine"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Events   EventsConfig   `yaml:"events"`
	Cache    CacheConfig    `yaml:"cache"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Input    InputConfig    `yaml:"input"`
	Output   OutputConfig   `yaml:"output"`
	// RawSettings is exposed read-only to every module through Settings().
	RawSettings map[string]any   `yaml:"settings,omitempty"`
	Pipelines   []PipelineConfig `yaml:"pipelines"`
}

// EngineConfig tunes the scheduler.
type EngineConfig struct {
	MaxParallel  int `yaml:"max_parallel"`   // pipelines running at once
	Concurrency  int `yaml:"concurrency"`    // documents processed at once per module
	MaxLazyDepth int `yaml:"max_lazy_depth"` // nested lazy metadata resolution bound
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// EventsConfig controls run event persistence and forwarding.
type EventsConfig struct {
	// SQLite is the event store database path. Empty disables persistence.
	SQLite string     `yaml:"sqlite"`
	NATS   NATSConfig `yaml:"nats"`
	// HistorySize bounds the runs kept by the history projection.
	HistorySize int `yaml:"history_size"`
}

// NATSConfig forwards events to NATS when URL is set.
type NATSConfig struct {
	URL       string        `yaml:"url"`
	Subject   string        `yaml:"subject"`
	JetStream bool          `yaml:"jetstream"`
	Timeout   time.Duration `yaml:"timeout"`
	Retry     RetryConfig   `yaml:"retry"`
}

// RetryConfig is a backoff policy as written in the file.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// CacheConfig locates the change-detection object store.
type CacheConfig struct {
	// Directory holds the object store. Empty keeps signatures in memory only,
	// which still skips unchanged pipelines between daemon runs.
	Directory string `yaml:"directory"`
	// Salt invalidates every signature when changed.
	Salt     string `yaml:"salt"`
	Disabled bool   `yaml:"disabled"`
}

// ScheduleConfig drives daemon mode. Cron, a five-field expression, replaces
// Interval when set.
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
	Cron     string        `yaml:"cron"`
	// Prune removes unreferenced cache objects after every run.
	Prune bool `yaml:"prune"`
}

// InputConfig is the content root read by read_files modules.
type InputConfig struct {
	Directory string `yaml:"directory"`
}

// OutputConfig is the target of write_files modules: a local directory or,
// when MinIO is set, an S3 compatible bucket.
type OutputConfig struct {
	Directory string            `yaml:"directory"`
	MinIO     *fsio.MinioConfig `yaml:"minio,omitempty"`
}

// Load reads, expands, defaults and validates the configuration at path. .env
// and .env.local in the working directory are loaded first; variables that are
// already set are left alone.
func Load(path string) (*Config, error) {
	if _, err := LoadEnvFiles(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is provided by the operator
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ferrors.NotFoundError(fmt.Sprintf("configuration file not found: %s", path)).
				WithContext("path", path).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryIO, "failed to read config file").
			WithContext("path", path).
			Build()
	}
	return Parse(data)
}

// Parse decodes a configuration document after ${VAR} expansion, then applies
// defaults and validates it.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse config").Build()
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied and no pipelines.
func Default() *Config {
	cfg := &Config{}
	_ = applyDefaults(cfg)
	return cfg
}

// Settings returns the settings map as read-only metadata.
func (c *Config) Settings() meta.Metadata {
	return meta.New(meta.FromMap(c.RawSettings))
}
