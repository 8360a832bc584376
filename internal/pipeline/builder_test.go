package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/module"
)

type fakeFiles struct {
	read  [][]string
	write []string
}

func (f *fakeFiles) ReadFiles(patterns ...string) module.Module {
	f.read = append(f.read, patterns)
	return passthrough("ReadFiles")
}

func (f *fakeFiles) WriteFiles(ext string) module.Module {
	f.write = append(f.write, ext)
	return passthrough("WriteFiles")
}

func TestBuilderWithoutStepsBuildsNothing(t *testing.T) {
	c := NewCollection()
	p, err := NewBuilder("empty", c).Build()
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, 0, c.Len())
}

func TestBuilderAppliesStepsInOrder(t *testing.T) {
	c := NewCollection()
	files := &fakeFiles{}
	require.NoError(t, c.Add("assets", New()))

	p, err := NewBuilder("content", c, WithFiles(files)).
		WithReadFiles("**/*.md").
		WithProcessModules(passthrough("one")).
		WithProcessModules(passthrough("two")).
		WithWriteFiles(".html").
		WithDependencies("assets").
		AlwaysProcess().
		Build()
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, [][]string{{"**/*.md"}}, files.read)
	assert.Equal(t, []string{".html"}, files.write)
	assert.Equal(t, []string{"**/*.md"}, p.ReadPatterns())
	assert.Len(t, p.Modules(PhaseRead), 1)
	assert.Len(t, p.Modules(PhaseProcess), 2)
	assert.Len(t, p.Modules(PhaseWrite), 1)
	assert.Equal(t, []string{"assets"}, p.Dependencies())
	assert.True(t, p.AlwaysProcess())
	assert.False(t, p.Isolated())

	got, ok := c.Get("content")
	require.True(t, ok)
	assert.Same(t, p, got)
}

func TestAsSerialSnapshotsNonIsolatedPipelines(t *testing.T) {
	c := NewCollection()
	require.NoError(t, c.Add("a", New()))
	require.NoError(t, c.Add("iso", New().SetIsolated(true)))

	b := NewBuilder("serial", c).AsSerial()
	// Registered after AsSerial, so not part of the snapshot.
	require.NoError(t, c.Add("late", New()))

	p, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, p.Dependencies())
}

func TestIsolatedPipelineCanStillBeNamedExplicitly(t *testing.T) {
	c := NewCollection()
	_, err := NewBuilder("iso", c).AsIsolated().WithProcessModules(passthrough("x")).Build()
	require.NoError(t, err)

	p, err := NewBuilder("user", c).WithDependencies("iso").Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"iso"}, p.Dependencies())

	plan, err := BuildPlan(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"iso", "user"}, plan.Order)
}

func TestBuilderErrors(t *testing.T) {
	c := NewCollection()

	_, err := NewBuilder("nilmod", c).WithRenderModules(nil).Build()
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	_, err = NewBuilder("nofiles", c).WithReadFiles("*.md").Build()
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	_, err = NewBuilder("dup", c).AsIsolated().Build()
	require.NoError(t, err)
	_, err = NewBuilder("dup", c).AsIsolated().Build()
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	assert.Equal(t, 1, c.Len())
}
