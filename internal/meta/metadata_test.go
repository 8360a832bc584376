package meta

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
)

func TestWithDoesNotMutateParent(t *testing.T) {
	base := New(Set("a", 1))
	child := base.With(Set("a", 2).Set("b", 3))

	assert.Equal(t, 1, base.Int("a", 0))
	assert.False(t, base.ContainsKey("b"))
	assert.Equal(t, 2, child.Int("a", 0))
	assert.Equal(t, 3, child.Int("b", 0))
	assert.Equal(t, 1, base.Layers())
	assert.Equal(t, 2, child.Layers())
}

func TestWithEmptyItemsKeepsStack(t *testing.T) {
	base := New(Set("a", 1))
	assert.Equal(t, base.Layers(), base.With(nil).Layers())
}

func TestLastDuplicateInLayerWins(t *testing.T) {
	md := New(Set("a", 1).Set("b", 2).Set("a", 3))

	assert.Equal(t, 3, md.Int("a", 0))
	assert.Equal(t, []string{"a", "b"}, md.Keys())
}

func TestGetMissingKey(t *testing.T) {
	md := New(Set("a", 1))

	_, err := md.Get("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Contains(t, err.Error(), "missing")
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	_, err = md.GetRaw("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestEmptyKeyIsInvalid(t *testing.T) {
	md := New(Set("a", 1))

	assert.False(t, md.ContainsKey(""))
	_, err := md.Get("")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = md.GetRaw("")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, ok := TryGet[any](md, "")
	assert.False(t, ok)
}

func TestLazyValueSeesWholeStore(t *testing.T) {
	md := New(Set("greeting", Lazy(func(m Metadata) any {
		return "hello " + m.String("name", "nobody")
	})))
	md = md.With(Set("name", "world"))

	v, err := md.Get("greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello world", v)

	raw, err := md.GetRaw("greeting")
	require.NoError(t, err)
	_, isValue := raw.(Value)
	assert.True(t, isValue)
}

func TestLazyChainResolves(t *testing.T) {
	inner := Lazy(func(Metadata) any { return 42 })
	outer := Lazy(func(Metadata) any { return inner })
	md := New(Set("n", outer))

	assert.Equal(t, 42, md.Int("n", 0))
}

func TestSelfReferencingLazyValueHitsDepthLimit(t *testing.T) {
	md := New(Set("loop", Lazy(func(m Metadata) any {
		v, err := m.Get("loop")
		if err != nil {
			return err
		}
		return v
	})))

	v, err := md.Get("loop")
	require.NoError(t, err)
	resolveErr, ok := v.(error)
	require.True(t, ok)
	assert.ErrorIs(t, resolveErr, ErrResolutionDepth)
}

func TestEndlessLazyChainFails(t *testing.T) {
	var endless Lazy
	endless = func(Metadata) any { return endless }
	md := New(Set("x", endless)).WithMaxDepth(4)

	_, err := md.Get("x")
	assert.ErrorIs(t, err, ErrResolutionDepth)
	_, ok := TryGet[any](md, "x")
	assert.False(t, ok)
}

func TestCountAndKeysIncludeShadowedEntries(t *testing.T) {
	md := New(Set("a", 1).Set("b", 2)).With(Set("a", 10).Set("c", 3))

	assert.Equal(t, 4, md.Count())
	assert.Equal(t, []string{"a", "c", "a", "b"}, md.Keys())
	assert.Equal(t, []any{10, 3, 1, 2}, md.Values())
}

func TestAllStopsEarly(t *testing.T) {
	md := New(Set("a", 1).Set("b", 2).Set("c", 3))

	var seen []string
	for k := range md.All() {
		seen = append(seen, k)
		if k == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)
}

func TestProject(t *testing.T) {
	md := New(Set("a", 1).Set("b", Lazy(func(Metadata) any { return "lazy" })))
	md = md.With(Set("c", true))

	p := md.Project("b", "c", "missing")
	assert.Equal(t, 1, p.Layers())
	assert.Equal(t, []string{"b", "c"}, p.Keys())

	raw, err := p.GetRaw("b")
	require.NoError(t, err)
	assert.Equal(t, "lazy", raw)
}

func TestToMapNewestWins(t *testing.T) {
	md := New(Set("a", 1).Set("b", 2)).With(Set("a", 3))
	assert.Equal(t, map[string]any{"a": 3, "b": 2}, md.ToMap())
}

func TestZeroValueIsEmpty(t *testing.T) {
	var md Metadata
	assert.Equal(t, 0, md.Count())
	assert.Empty(t, md.Keys())
	assert.False(t, md.ContainsKey("a"))
	assert.Equal(t, "def", md.String("a", "def"))
	assert.Equal(t, DefaultMaxDepth, md.MaxDepth())
}

func TestConcurrentReadsAndDerivations(t *testing.T) {
	base := New(Set("shared", Lazy(func(m Metadata) any { return m.Int("n", -1) })))

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			child := base.With(Set("n", n))
			assert.Equal(t, n, child.Int("shared", -2))
			assert.Equal(t, -1, base.Int("shared", -2))
		}(i)
	}
	wg.Wait()
}

func TestGetWrapsResolutionFailure(t *testing.T) {
	var endless Lazy
	endless = func(Metadata) any { return endless }
	md := New(Set("x", endless)).WithMaxDepth(2)

	_, err := md.Get("x")
	var classified *ferrors.ClassifiedError
	require.True(t, errors.As(err, &classified))
	assert.Equal(t, ferrors.CategoryConversion, classified.Category())
}

func TestItemsSetBranchesIndependently(t *testing.T) {
	base := append(make(Items, 0, 4), Item{Key: "a", Value: 1})
	left := base.Set("b", "left")
	right := base.Set("b", "right")

	assert.Len(t, base, 1)
	assert.Equal(t, "left", left[1].Value)
	assert.Equal(t, "right", right[1].Value)
}
