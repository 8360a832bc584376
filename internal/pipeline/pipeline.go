package pipeline

import (
	"slices"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/module"
)

// Pipeline is a named-by-collection, four-phase module chain. Every With* call
// appends; nothing replaces previously added modules or dependencies.
type Pipeline struct {
	modules       [4][]module.Module
	dependencies  []string
	readPatterns  []string
	isolated      bool
	alwaysProcess bool
}

// New returns an empty pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// WithModules appends modules to a phase.
func (p *Pipeline) WithModules(phase Phase, modules ...module.Module) *Pipeline {
	if phase.valid() {
		p.modules[phase] = append(p.modules[phase], modules...)
	}
	return p
}

func (p *Pipeline) WithReadModules(modules ...module.Module) *Pipeline {
	return p.WithModules(PhaseRead, modules...)
}

func (p *Pipeline) WithProcessModules(modules ...module.Module) *Pipeline {
	return p.WithModules(PhaseProcess, modules...)
}

func (p *Pipeline) WithRenderModules(modules ...module.Module) *Pipeline {
	return p.WithModules(PhaseRender, modules...)
}

func (p *Pipeline) WithWriteModules(modules ...module.Module) *Pipeline {
	return p.WithModules(PhaseWrite, modules...)
}

// WithDependencies records dependency names. Repeated names are kept once.
func (p *Pipeline) WithDependencies(names ...string) *Pipeline {
	for _, n := range names {
		if !slices.Contains(p.dependencies, n) {
			p.dependencies = append(p.dependencies, n)
		}
	}
	return p
}

// WithReadPatterns records the content patterns the pipeline reads. Change
// detection fingerprints the files these patterns match.
func (p *Pipeline) WithReadPatterns(patterns ...string) *Pipeline {
	for _, pat := range patterns {
		if !slices.Contains(p.readPatterns, pat) {
			p.readPatterns = append(p.readPatterns, pat)
		}
	}
	return p
}

// SetIsolated marks the pipeline as excluded from AsSerial wiring.
func (p *Pipeline) SetIsolated(isolated bool) *Pipeline {
	p.isolated = isolated
	return p
}

// SetAlwaysProcess makes the pipeline run even when change detection reports no changes.
func (p *Pipeline) SetAlwaysProcess(always bool) *Pipeline {
	p.alwaysProcess = always
	return p
}

// Modules returns a copy of the modules of a phase.
func (p *Pipeline) Modules(phase Phase) []module.Module {
	if !phase.valid() {
		return nil
	}
	return slices.Clone(p.modules[phase])
}

// Dependencies returns a copy of the dependency names in declaration order.
func (p *Pipeline) Dependencies() []string { return slices.Clone(p.dependencies) }

// ReadPatterns returns a copy of the recorded read patterns.
func (p *Pipeline) ReadPatterns() []string { return slices.Clone(p.readPatterns) }

func (p *Pipeline) Isolated() bool      { return p.isolated }
func (p *Pipeline) AlwaysProcess() bool { return p.alwaysProcess }

// ModuleCount returns the total number of modules across all phases.
func (p *Pipeline) ModuleCount() int {
	n := 0
	for _, mods := range p.modules {
		n += len(mods)
	}
	return n
}

// Validate checks the pipeline in isolation: no nil modules and no empty dependency names.
func (p *Pipeline) Validate(name string) error {
	for _, phase := range Phases {
		for i, m := range p.modules[phase] {
			if m == nil {
				return ferrors.ConfigError("pipeline contains a nil module").
					WithContext("pipeline", name).
					WithContext("phase", phase.String()).
					WithContext("index", i).
					Build()
			}
		}
	}
	for _, dep := range p.dependencies {
		if dep == "" {
			return ferrors.ConfigError("pipeline declares an empty dependency name").
				WithContext("pipeline", name).
				Build()
		}
	}
	return nil
}
