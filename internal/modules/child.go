package modules

import (
	"context"

	"git.home.luguber.info/inful/docflow/internal/document"
	"git.home.luguber.info/inful/docflow/internal/module"
)

// Seed selects the documents a child chain starts from.
type Seed int

const (
	// SeedInputs starts the child chain from the outer module's inputs.
	SeedInputs Seed = iota
	// SeedEmpty starts the child chain from a single empty document.
	SeedEmpty
	// SeedPipelines starts the child chain from other pipelines' outputs.
	SeedPipelines
)

func (s Seed) String() string {
	switch s {
	case SeedInputs:
		return "inputs"
	case SeedEmpty:
		return "empty"
	case SeedPipelines:
		return "pipelines"
	default:
		return "unknown"
	}
}

// Child is a nested module chain together with the documents it runs against.
type Child struct {
	Seed      Seed
	Modules   []module.Module
	Pipelines []string
}

// ChildOf runs modules against the outer inputs.
func ChildOf(modules ...module.Module) Child {
	return Child{Seed: SeedInputs, Modules: modules}
}

// ChildOfEmpty runs modules against a single empty document.
func ChildOfEmpty(modules ...module.Module) Child {
	return Child{Seed: SeedEmpty, Modules: modules}
}

// ChildOfPipelines runs modules against the completed outputs of pipelines.
func ChildOfPipelines(pipelines []string, modules ...module.Module) Child {
	return Child{Seed: SeedPipelines, Modules: modules, Pipelines: pipelines}
}

// Run resolves the seed and executes the chain in the outer module's context.
// An empty chain returns the seed unchanged.
func (c Child) Run(ctx context.Context, mc module.Context) ([]*document.Document, error) {
	seed, err := c.seed(mc)
	if err != nil {
		return nil, err
	}
	if len(c.Modules) == 0 {
		return seed, nil
	}
	return mc.Execute(ctx, c.Modules, seed)
}

func (c Child) seed(mc module.Context) ([]*document.Document, error) {
	switch c.Seed {
	case SeedEmpty:
		return []*document.Document{mc.GetDocument(nil, nil)}, nil
	case SeedPipelines:
		return mc.Outputs().FromPipelines(c.Pipelines...)
	default:
		return mc.Inputs(), nil
	}
}

// contents resolves the content of docs concurrently, keeping their order.
func contents(ctx context.Context, mc module.Context, docs []*document.Document) ([]string, error) {
	return module.ParallelMap(ctx, mc.Concurrency(), docs, func(ctx context.Context, d *document.Document) (string, error) {
		return d.ContentString(ctx)
	})
}
