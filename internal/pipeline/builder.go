package pipeline

import (
	"slices"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/module"
)

// StepKind identifies a recorded builder step.
type StepKind string

const (
	StepModules       StepKind = "modules"
	StepReadFiles     StepKind = "read_files"
	StepWriteFiles    StepKind = "write_files"
	StepDependencies  StepKind = "dependencies"
	StepIsolated      StepKind = "isolated"
	StepAlwaysProcess StepKind = "always_process"
)

// Step is one discrete configuration change recorded by a Builder.
type Step struct {
	Kind      StepKind
	Phase     Phase
	Modules   []module.Module
	Names     []string
	Patterns  []string
	Extension string
}

// FileModules supplies the modules behind WithReadFiles and WithWriteFiles.
type FileModules interface {
	ReadFiles(patterns ...string) module.Module
	WriteFiles(extension string) module.Module
}

// Builder records pipeline configuration as explicit steps and applies them in a
// single pass on Build. Dependency snapshots such as AsSerial are resolved when
// the step is recorded, not when Build runs.
type Builder struct {
	name       string
	collection *Collection
	files      FileModules
	steps      []Step
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithFiles provides the file modules used by WithReadFiles and WithWriteFiles.
func WithFiles(files FileModules) BuilderOption {
	return func(b *Builder) { b.files = files }
}

// NewBuilder creates a builder for the named pipeline that registers into c.
func NewBuilder(name string, c *Collection, opts ...BuilderOption) *Builder {
	b := &Builder{name: name, collection: c}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) record(s Step) *Builder {
	b.steps = append(b.steps, s)
	return b
}

func (b *Builder) WithReadModules(modules ...module.Module) *Builder {
	return b.record(Step{Kind: StepModules, Phase: PhaseRead, Modules: modules})
}

func (b *Builder) WithProcessModules(modules ...module.Module) *Builder {
	return b.record(Step{Kind: StepModules, Phase: PhaseProcess, Modules: modules})
}

func (b *Builder) WithRenderModules(modules ...module.Module) *Builder {
	return b.record(Step{Kind: StepModules, Phase: PhaseRender, Modules: modules})
}

func (b *Builder) WithWriteModules(modules ...module.Module) *Builder {
	return b.record(Step{Kind: StepModules, Phase: PhaseWrite, Modules: modules})
}

// WithReadFiles appends a file reader for patterns to the read phase.
func (b *Builder) WithReadFiles(patterns ...string) *Builder {
	return b.record(Step{Kind: StepReadFiles, Phase: PhaseRead, Patterns: patterns})
}

// WithWriteFiles appends a file writer to the write phase. A non-empty extension
// replaces the extension of each document's destination.
func (b *Builder) WithWriteFiles(extension string) *Builder {
	return b.record(Step{Kind: StepWriteFiles, Phase: PhaseWrite, Extension: extension})
}

// WithDependencies records explicit dependencies.
func (b *Builder) WithDependencies(names ...string) *Builder {
	return b.record(Step{Kind: StepDependencies, Names: names})
}

// AsSerial depends on every non-isolated pipeline registered so far. Pipelines
// added after this call are not included.
func (b *Builder) AsSerial() *Builder {
	return b.WithDependencies(b.collection.NonIsolated(b.name)...)
}

// AsIsolated marks the pipeline isolated.
func (b *Builder) AsIsolated() *Builder {
	return b.record(Step{Kind: StepIsolated})
}

// AlwaysProcess marks the pipeline as bypassing change detection.
func (b *Builder) AlwaysProcess() *Builder {
	return b.record(Step{Kind: StepAlwaysProcess})
}

// Steps returns the recorded steps.
func (b *Builder) Steps() []Step { return slices.Clone(b.steps) }

// Build applies the recorded steps to a new pipeline and registers it. A builder
// without steps builds nothing and returns a nil pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if len(b.steps) == 0 {
		return nil, nil
	}
	p := New()
	for _, s := range b.steps {
		switch s.Kind {
		case StepModules:
			for _, m := range s.Modules {
				if m == nil {
					return nil, ferrors.ConfigError("module must not be nil").
						WithContext("pipeline", b.name).
						WithContext("phase", s.Phase.String()).
						Build()
				}
			}
			p.WithModules(s.Phase, s.Modules...)
		case StepReadFiles:
			if b.files == nil {
				return nil, b.missingFiles(s)
			}
			p.WithReadModules(b.files.ReadFiles(s.Patterns...))
			p.WithReadPatterns(s.Patterns...)
		case StepWriteFiles:
			if b.files == nil {
				return nil, b.missingFiles(s)
			}
			p.WithWriteModules(b.files.WriteFiles(s.Extension))
		case StepDependencies:
			p.WithDependencies(s.Names...)
		case StepIsolated:
			p.SetIsolated(true)
		case StepAlwaysProcess:
			p.SetAlwaysProcess(true)
		}
	}
	if err := b.collection.Add(b.name, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *Builder) missingFiles(s Step) error {
	return ferrors.ConfigError("file modules are not configured for this builder").
		WithContext("pipeline", b.name).
		WithContext("step", string(s.Kind)).
		Build()
}
