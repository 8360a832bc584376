package config

import (
	"runtime"
	"time"

	"git.home.luguber.info/inful/docflow/internal/meta"
	"git.home.luguber.info/inful/docflow/internal/module"
)

// Default values applied when the file leaves a setting unset.
const (
	DefaultVersion        = "1"
	DefaultMetricsListen  = ":9090"
	DefaultMetricsPath    = "/metrics"
	DefaultNATSSubject    = "docflow.events"
	DefaultNATSTimeout    = 5 * time.Second
	DefaultHistorySize    = 50
	DefaultCacheDirectory = ".docflow"
	DefaultInterval       = 5 * time.Minute
	DefaultInputDir       = "content"
	DefaultOutputDir      = "public"
)

// DefaultApplier applies defaults for one configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

type engineDefaults struct{}

func (engineDefaults) Domain() string { return "engine" }

func (engineDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Engine.MaxParallel <= 0 {
		cfg.Engine.MaxParallel = runtime.GOMAXPROCS(0)
	}
	if cfg.Engine.Concurrency <= 0 {
		cfg.Engine.Concurrency = module.DefaultConcurrency
	}
	if cfg.Engine.MaxLazyDepth <= 0 {
		cfg.Engine.MaxLazyDepth = meta.DefaultMaxDepth
	}
	return nil
}

type loggingDefaults struct{}

func (loggingDefaults) Domain() string { return "logging" }

func (loggingDefaults) ApplyDefaults(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}

type metricsDefaults struct{}

func (metricsDefaults) Domain() string { return "metrics" }

func (metricsDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsListen
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	return nil
}

type eventsDefaults struct{}

func (eventsDefaults) Domain() string { return "events" }

func (eventsDefaults) ApplyDefaults(cfg *Config) error {
	n := &cfg.Events.NATS
	if n.Subject == "" {
		n.Subject = DefaultNATSSubject
	}
	if n.Timeout <= 0 {
		n.Timeout = DefaultNATSTimeout
	}
	if n.Retry.Backoff != "" {
		if mode := NormalizeRetryBackoff(string(n.Retry.Backoff)); mode != "" {
			n.Retry.Backoff = mode
		}
	}
	if cfg.Events.HistorySize <= 0 {
		cfg.Events.HistorySize = DefaultHistorySize
	}
	return nil
}

type storageDefaults struct{}

func (storageDefaults) Domain() string { return "storage" }

func (storageDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Input.Directory == "" {
		cfg.Input.Directory = DefaultInputDir
	}
	if cfg.Output.Directory == "" && cfg.Output.MinIO == nil {
		cfg.Output.Directory = DefaultOutputDir
	}
	if cfg.Schedule.Interval <= 0 {
		cfg.Schedule.Interval = DefaultInterval
	}
	return nil
}

var defaultAppliers = []DefaultApplier{
	engineDefaults{},
	loggingDefaults{},
	metricsDefaults{},
	eventsDefaults{},
	storageDefaults{},
}

func applyDefaults(cfg *Config) error {
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
