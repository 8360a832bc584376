package config

import (
	"fmt"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/modules"
	"git.home.luguber.info/inful/docflow/internal/pipeline"
)

// PipelineConfig declares one pipeline. Steps are applied in a fixed order:
// flags and dependencies, read_files, then the module lists phase by phase,
// with write_files appended after the write modules.
type PipelineConfig struct {
	Name          string         `yaml:"name"`
	Dependencies  []string       `yaml:"dependencies,omitempty"`
	Serial        bool           `yaml:"serial,omitempty"`
	Isolated      bool           `yaml:"isolated,omitempty"`
	AlwaysProcess bool           `yaml:"always_process,omitempty"`
	ReadFiles     []string       `yaml:"read_files,omitempty"`
	Read          []modules.Spec `yaml:"read,omitempty"`
	Process       []modules.Spec `yaml:"process,omitempty"`
	Render        []modules.Spec `yaml:"render,omitempty"`
	Write         []modules.Spec `yaml:"write,omitempty"`
	WriteFiles    string         `yaml:"write_files,omitempty"`
}

type phaseSpecs struct {
	name  string
	phase pipeline.Phase
	specs []modules.Spec
}

func (p PipelineConfig) phases() []phaseSpecs {
	return []phaseSpecs{
		{"read", pipeline.PhaseRead, p.Read},
		{"process", pipeline.PhaseProcess, p.Process},
		{"render", pipeline.PhaseRender, p.Render},
		{"write", pipeline.PhaseWrite, p.Write},
	}
}

func (p PipelineConfig) declaresSteps() bool {
	return len(p.Dependencies) > 0 || p.Serial || len(p.ReadFiles) > 0 || p.WriteFiles != "" ||
		len(p.Read)+len(p.Process)+len(p.Render)+len(p.Write) > 0
}

// BuildPipelines builds the declared pipelines, in file order, into a new
// collection. Module types are resolved through reg.
func (c *Config) BuildPipelines(reg *modules.Registry) (*pipeline.Collection, error) {
	col := pipeline.NewCollection()
	for _, pc := range c.Pipelines {
		if err := pc.build(col, reg); err != nil {
			if ferrors.HasCategory(err, ferrors.CategoryConfig) {
				return nil, err
			}
			return nil, ferrors.WrapError(err, ferrors.CategoryConfig, fmt.Sprintf("failed to build pipeline %q", pc.Name)).
				WithContext("pipeline", pc.Name).
				Build()
		}
	}
	return col, nil
}

func (pc PipelineConfig) build(col *pipeline.Collection, reg *modules.Registry) error {
	b := pipeline.NewBuilder(pc.Name, col, pipeline.WithFiles(reg.Files()))
	if pc.Serial {
		b.AsSerial()
	}
	if len(pc.Dependencies) > 0 {
		b.WithDependencies(pc.Dependencies...)
	}
	if pc.Isolated {
		b.AsIsolated()
	}
	if pc.AlwaysProcess {
		b.AlwaysProcess()
	}
	if len(pc.ReadFiles) > 0 {
		b.WithReadFiles(pc.ReadFiles...)
	}
	for _, ps := range pc.phases() {
		if len(ps.specs) == 0 {
			continue
		}
		mods, err := reg.BuildAll(ps.specs)
		if err != nil {
			return err
		}
		switch ps.phase {
		case pipeline.PhaseRead:
			b.WithReadModules(mods...)
		case pipeline.PhaseProcess:
			b.WithProcessModules(mods...)
		case pipeline.PhaseRender:
			b.WithRenderModules(mods...)
		case pipeline.PhaseWrite:
			b.WithWriteModules(mods...)
		}
	}
	if pc.WriteFiles != "" {
		b.WithWriteFiles(pc.WriteFiles)
	}
	p, err := b.Build()
	if err != nil {
		return err
	}
	if p == nil {
		return ferrors.ConfigError(fmt.Sprintf("pipeline %q declares nothing", pc.Name)).
			WithContext("pipeline", pc.Name).
			Build()
	}
	return nil
}
