package pipeline

import (
	"slices"
	"strings"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
)

// Plan is the validated execution order of a collection.
type Plan struct {
	// Order is a topological order; ties are broken by collection insertion order.
	Order []string
	// Levels groups pipelines whose dependencies all sit in earlier levels. Pipelines
	// in one level have no dependency relationship and may run concurrently.
	Levels [][]string
	// Dependencies maps each pipeline to its direct dependencies.
	Dependencies map[string][]string
	// Dependents maps each pipeline to the pipelines that directly depend on it.
	Dependents map[string][]string
}

// BuildPlan validates c and orders it with Kahn's algorithm. Unknown dependency
// names and dependency cycles are config errors.
func BuildPlan(c *Collection) (*Plan, error) {
	plan := &Plan{
		Order:        make([]string, 0, c.Len()),
		Dependencies: make(map[string][]string, c.Len()),
		Dependents:   make(map[string][]string, c.Len()),
	}
	index := make(map[string]int, c.Len())
	for i, name := range c.order {
		index[name] = i
	}

	inDegree := make(map[string]int, c.Len())
	for name, p := range c.All() {
		if err := p.Validate(name); err != nil {
			return nil, err
		}
		deps := p.Dependencies()
		for _, dep := range deps {
			if dep == name {
				return nil, ferrors.ConfigError("pipeline depends on itself").
					WithContext("pipeline", name).
					Build()
			}
			if _, ok := c.byName[dep]; !ok {
				return nil, ferrors.ConfigError("pipeline depends on an unknown pipeline").
					WithContext("pipeline", name).
					WithContext("dependency", dep).
					Build()
			}
			plan.Dependents[dep] = append(plan.Dependents[dep], name)
		}
		plan.Dependencies[name] = deps
		inDegree[name] = len(deps)
	}

	byIndex := func(a, b string) int { return index[a] - index[b] }

	var ready []string
	for _, name := range c.order {
		if inDegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	for len(ready) > 0 {
		level := ready
		plan.Levels = append(plan.Levels, level)
		plan.Order = append(plan.Order, level...)

		var next []string
		for _, current := range level {
			for _, dependent := range plan.Dependents[current] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		slices.SortFunc(next, byIndex)
		ready = next
	}

	if len(plan.Order) != c.Len() {
		var cyclic []string
		for _, name := range c.order {
			if inDegree[name] > 0 {
				cyclic = append(cyclic, name)
			}
		}
		return nil, ferrors.ConfigError("circular dependency detected among pipelines").
			WithContext("pipelines", strings.Join(cyclic, ", ")).
			Build()
	}
	return plan, nil
}

// TransitiveDependencies returns every pipeline name reachable through dependency edges.
func (p *Plan) TransitiveDependencies(name string) map[string]bool {
	seen := make(map[string]bool)
	stack := slices.Clone(p.Dependencies[name])
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		stack = append(stack, p.Dependencies[n]...)
	}
	return seen
}

// TransitiveDependents returns every pipeline that directly or indirectly depends on name.
func (p *Plan) TransitiveDependents(name string) []string {
	seen := make(map[string]bool)
	var out []string
	stack := slices.Clone(p.Dependents[name])
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
		stack = append(stack, p.Dependents[n]...)
	}
	return out
}
