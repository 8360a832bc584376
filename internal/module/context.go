package module

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/docflow/internal/document"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/logfields"
	"git.home.luguber.info/inful/docflow/internal/meta"
	"git.home.luguber.info/inful/docflow/internal/metrics"
)

// DefaultConcurrency bounds per-document parallelism when none is configured.
const DefaultConcurrency = 8

// Outputs answers queries for the completed output of other pipelines.
type Outputs interface {
	FromPipelines(names ...string) ([]*document.Document, error)
}

// Context is the execution context handed to every module.
type Context interface {
	// Pipeline and Phase identify where the module runs.
	Pipeline() string
	Phase() string
	// Module is the name of the module currently executing.
	Module() string
	// Inputs is the batch the current module received.
	Inputs() []*document.Document
	Outputs() Outputs
	// Settings is the read-only host configuration.
	Settings() meta.Metadata
	Logger() *slog.Logger
	Recorder() metrics.Recorder
	// Concurrency bounds per-document parallel work inside a module.
	Concurrency() int
	// GetDocument creates a new document honoring the configured metadata limits.
	GetDocument(content document.Content, items meta.Items) *document.Document
	// Execute runs a nested module chain against inputs and returns its outputs.
	Execute(ctx context.Context, modules []Module, inputs []*document.Document) ([]*document.Document, error)
	// ForModule derives the context passed to the named module.
	ForModule(name string, inputs []*document.Document) Context
}

// Config carries the engine-owned collaborators of an execution context.
type Config struct {
	Pipeline     string
	Phase        string
	Outputs      Outputs
	Settings     meta.Metadata
	Logger       *slog.Logger
	Recorder     metrics.Recorder
	Concurrency  int
	MaxLazyDepth int
}

// ExecutionContext is the engine's Context implementation.
type ExecutionContext struct {
	cfg    Config
	module string
	inputs []*document.Document
	logger *slog.Logger
}

// NewContext creates the context for one pipeline phase.
func NewContext(cfg Config, inputs []*document.Document) *ExecutionContext {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NoopRecorder{}
	}
	if cfg.Outputs == nil {
		cfg.Outputs = noOutputs{}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	logger := cfg.Logger
	if cfg.Pipeline != "" {
		logger = logger.With(logfields.Pipeline(cfg.Pipeline))
	}
	if cfg.Phase != "" {
		logger = logger.With(logfields.Phase(cfg.Phase))
	}
	return &ExecutionContext{cfg: cfg, inputs: inputs, logger: logger}
}

func (c *ExecutionContext) Pipeline() string             { return c.cfg.Pipeline }
func (c *ExecutionContext) Phase() string                { return c.cfg.Phase }
func (c *ExecutionContext) Module() string               { return c.module }
func (c *ExecutionContext) Inputs() []*document.Document { return c.inputs }
func (c *ExecutionContext) Outputs() Outputs             { return c.cfg.Outputs }
func (c *ExecutionContext) Settings() meta.Metadata      { return c.cfg.Settings }
func (c *ExecutionContext) Logger() *slog.Logger         { return c.logger }
func (c *ExecutionContext) Recorder() metrics.Recorder   { return c.cfg.Recorder }
func (c *ExecutionContext) Concurrency() int             { return c.cfg.Concurrency }

// GetDocument implements Context.
func (c *ExecutionContext) GetDocument(content document.Content, items meta.Items) *document.Document {
	md := meta.Metadata{}.WithMaxDepth(c.cfg.MaxLazyDepth).With(items)
	return document.NewWithMetadata(content, md)
}

// Execute implements Context.
func (c *ExecutionContext) Execute(ctx context.Context, modules []Module, inputs []*document.Document) ([]*document.Document, error) {
	return RunChain(ctx, c, modules, inputs)
}

// ForModule implements Context.
func (c *ExecutionContext) ForModule(name string, inputs []*document.Document) Context {
	child := *c
	child.module = name
	child.inputs = inputs
	child.logger = c.logger.With(logfields.Module(name))
	return &child
}

type noOutputs struct{}

func (noOutputs) FromPipelines(names ...string) ([]*document.Document, error) {
	return nil, ferrors.ConfigError("pipeline outputs are not available in this context").
		WithContext("pipelines", names).
		Build()
}
