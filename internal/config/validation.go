package config

import (
	"fmt"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/modules"
)

// Validate checks the configuration. Every failure is a config category error.
func (c *Config) Validate() error {
	return newConfigurationValidator(c).validate()
}

// configurationValidator validates one domain at a time.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	for _, check := range []func() error{
		cv.validateVersion,
		cv.validateEngine,
		cv.validateMetrics,
		cv.validateEvents,
		cv.validateSchedule,
		cv.validateOutput,
		cv.validatePipelines,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return ferrors.ConfigError(fmt.Sprintf("%s: %s", field, fmt.Sprintf(format, args...))).
		WithContext("field", field).
		Build()
}

func (cv *configurationValidator) validateVersion() error {
	if cv.config.Version != DefaultVersion {
		return invalid("version", "unsupported version %q (expected %q)", cv.config.Version, DefaultVersion)
	}
	return nil
}

func (cv *configurationValidator) validateEngine() error {
	e := cv.config.Engine
	if e.MaxParallel < 1 {
		return invalid("engine.max_parallel", "must be at least 1")
	}
	if e.Concurrency < 1 {
		return invalid("engine.concurrency", "must be at least 1")
	}
	if e.MaxLazyDepth < 1 {
		return invalid("engine.max_lazy_depth", "must be at least 1")
	}
	return nil
}

func (cv *configurationValidator) validateMetrics() error {
	m := cv.config.Metrics
	if !m.Enabled {
		return nil
	}
	if !strings.HasPrefix(m.Path, "/") {
		return invalid("metrics.path", "must start with '/' (got %q)", m.Path)
	}
	return nil
}

func (cv *configurationValidator) validateEvents() error {
	n := cv.config.Events.NATS
	if n.URL == "" {
		return nil
	}
	if n.Retry.Backoff != "" {
		if _, err := retryBackoffNormalizer.Parse(string(n.Retry.Backoff)); err != nil {
			return err
		}
	}
	if n.Retry.MaxRetries < 0 {
		return invalid("events.nats.retry.max_retries", "must not be negative")
	}
	if n.Retry.Initial > 0 && n.Retry.Max > 0 && n.Retry.Initial > n.Retry.Max {
		return invalid("events.nats.retry", "initial delay %s exceeds max %s", n.Retry.Initial, n.Retry.Max)
	}
	return nil
}

func (cv *configurationValidator) validateSchedule() error {
	if cv.config.Schedule.Interval < time.Second {
		return invalid("schedule.interval", "must be at least 1s (got %s)", cv.config.Schedule.Interval)
	}
	return nil
}

func (cv *configurationValidator) validateOutput() error {
	o := cv.config.Output
	if o.MinIO == nil {
		if o.Directory == "" {
			return invalid("output.directory", "must be set")
		}
		return nil
	}
	if o.Directory != "" {
		return invalid("output", "directory and minio are mutually exclusive")
	}
	return o.MinIO.Validate()
}

func (cv *configurationValidator) validatePipelines() error {
	seen := make(map[string]bool, len(cv.config.Pipelines))
	for i, p := range cv.config.Pipelines {
		field := fmt.Sprintf("pipelines[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			return invalid(field+".name", "must not be empty")
		}
		if seen[p.Name] {
			return invalid(field+".name", "duplicate pipeline %q", p.Name)
		}
		seen[p.Name] = true
		if !p.declaresSteps() {
			return invalid(field, "pipeline %q declares no modules, files or dependencies", p.Name)
		}
		for _, phase := range p.phases() {
			if err := validateSpecs(fmt.Sprintf("%s.%s", field, phase.name), phase.specs); err != nil {
				return err
			}
		}
	}
	for i, p := range cv.config.Pipelines {
		for _, dep := range p.Dependencies {
			if !seen[dep] {
				return invalid(fmt.Sprintf("pipelines[%d].dependencies", i), "unknown pipeline %q", dep)
			}
		}
	}
	return nil
}

func validateSpecs(field string, specs []modules.Spec) error {
	for i, s := range specs {
		f := fmt.Sprintf("%s[%d]", field, i)
		if strings.TrimSpace(s.Type) == "" {
			return invalid(f+".type", "must not be empty")
		}
		if err := validateSpecs(f+".modules", s.Modules); err != nil {
			return err
		}
	}
	return nil
}
