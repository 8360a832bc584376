package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docflow/internal/document"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/module"
)

func passthrough(name string) module.Module {
	return module.Named(name, func(_ context.Context, _ module.Context, in []*document.Document) ([]*document.Document, error) {
		return in, nil
	})
}

func mustAdd(t *testing.T, c *Collection, name string, p *Pipeline) {
	t.Helper()
	require.NoError(t, c.Add(name, p))
}

func TestPhaseNames(t *testing.T) {
	for _, p := range Phases {
		parsed, err := ParsePhase(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	_, err := ParsePhase("compile")
	assert.Error(t, err)
}

func TestPipelineAppends(t *testing.T) {
	p := New().
		WithProcessModules(passthrough("a")).
		WithProcessModules(passthrough("b")).
		WithDependencies("x").
		WithDependencies("y", "x")

	mods := p.Modules(PhaseProcess)
	require.Len(t, mods, 2)
	assert.Equal(t, "a", module.NameOf(mods[0]))
	assert.Equal(t, "b", module.NameOf(mods[1]))
	assert.Equal(t, []string{"x", "y"}, p.Dependencies())
	assert.Empty(t, p.Modules(PhaseRead))
	assert.Equal(t, 2, p.ModuleCount())
}

func TestCollectionRejectsInvalidEntries(t *testing.T) {
	c := NewCollection()
	mustAdd(t, c, "a", New())

	tests := []struct {
		name string
		key  string
		p    *Pipeline
	}{
		{"empty name", "", New()},
		{"nil pipeline", "b", nil},
		{"duplicate", "a", New()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Add(tt.key, tt.p)
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
		})
	}
	assert.Equal(t, []string{"a"}, c.Names())
}

func TestBuildPlanDiamond(t *testing.T) {
	c := NewCollection()
	mustAdd(t, c, "A", New())
	mustAdd(t, c, "B", New().WithDependencies("A"))
	mustAdd(t, c, "C", New().WithDependencies("A"))
	mustAdd(t, c, "D", New().WithDependencies("B", "C"))

	plan, err := BuildPlan(c)
	require.NoError(t, err)

	pos := map[string]int{}
	for i, n := range plan.Order {
		pos[n] = i
	}
	assert.Less(t, pos["A"], pos["B"])
	assert.Less(t, pos["A"], pos["C"])
	assert.Less(t, pos["B"], pos["D"])
	assert.Less(t, pos["C"], pos["D"])
	assert.Equal(t, [][]string{{"A"}, {"B", "C"}, {"D"}}, plan.Levels)

	assert.Equal(t, map[string]bool{"A": true, "B": true, "C": true}, plan.TransitiveDependencies("D"))
	assert.ElementsMatch(t, []string{"B", "C", "D"}, plan.TransitiveDependents("A"))
}

func TestBuildPlanKeepsInsertionOrderForIndependentPipelines(t *testing.T) {
	c := NewCollection()
	for _, n := range []string{"zeta", "alpha", "mid"} {
		mustAdd(t, c, n, New())
	}
	plan, err := BuildPlan(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, plan.Order)
}

func TestBuildPlanRejectsInvalidGraphs(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *Collection)
	}{
		{"cycle", func(c *Collection) {
			_ = c.Add("X", New().WithDependencies("Y"))
			_ = c.Add("Y", New().WithDependencies("X"))
		}},
		{"self", func(c *Collection) {
			_ = c.Add("X", New().WithDependencies("X"))
		}},
		{"unknown", func(c *Collection) {
			_ = c.Add("X", New().WithDependencies("missing"))
		}},
		{"nil module", func(c *Collection) {
			_ = c.Add("X", New().WithReadModules(nil))
		}},
		{"long cycle", func(c *Collection) {
			_ = c.Add("A", New())
			_ = c.Add("B", New().WithDependencies("A", "D"))
			_ = c.Add("C", New().WithDependencies("B"))
			_ = c.Add("D", New().WithDependencies("C"))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollection()
			tt.setup(c)
			_, err := BuildPlan(c)
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
		})
	}
}

func TestVisualize(t *testing.T) {
	c := NewCollection()
	mustAdd(t, c, "content", New())
	mustAdd(t, c, "feed", New().WithDependencies("content").SetAlwaysProcess(true))
	plan, err := BuildPlan(c)
	require.NoError(t, err)

	text, err := plan.Visualize(c, FormatText)
	require.NoError(t, err)
	assert.Contains(t, text, "[feed] (always-process)")
	assert.Contains(t, text, "depends on: content")

	mermaid, err := plan.Visualize(c, FormatMermaid)
	require.NoError(t, err)
	assert.Contains(t, mermaid, "p_content --> p_feed")

	dot, err := plan.Visualize(c, FormatDOT)
	require.NoError(t, err)
	assert.Contains(t, dot, `"content" -> "feed";`)

	_, err = plan.Visualize(c, "svg")
	assert.Error(t, err)
}
