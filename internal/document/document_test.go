package document

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/meta"
)

func TestCloneIsNonDestructive(t *testing.T) {
	ctx := context.Background()
	d1 := New(FromString("body"), meta.Set("title", "one"))
	d2 := d1.Clone(meta.Set("title", "two").Set("extra", true))

	assert.Equal(t, "one", d1.String("title", ""))
	assert.False(t, d1.ContainsKey("extra"))
	assert.Equal(t, "two", d2.String("title", ""))
	assert.True(t, d2.Bool("extra", false))

	c1, err := d1.ContentString(ctx)
	require.NoError(t, err)
	c2, err := d2.ContentString(ctx)
	require.NoError(t, err)
	assert.Equal(t, c1, c2)
	assert.NotEqual(t, d1.ID(), d2.ID())
}

func TestCloneContentKeepsMetadata(t *testing.T) {
	ctx := context.Background()
	d1 := New(FromString("old"), meta.Set("k", "v"))
	d2 := d1.CloneContent(FromString("new"))

	s, err := d2.ContentString(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", s)
	assert.Equal(t, "v", d2.String("k", ""))
	assert.Equal(t, d1.Layers(), d2.Layers())

	s, err = d1.ContentString(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old", s)
}

func TestCloneAddsExactlyOneLayer(t *testing.T) {
	d := New(nil, meta.Set("a", 1))
	for range 100 {
		d = d.Clone(meta.Set("a", d.Int("a", 0)+1))
	}
	assert.Equal(t, 101, d.Layers())
	assert.Equal(t, 101, d.Int("a", 0))
}

func TestEmptyContent(t *testing.T) {
	d := New(nil, nil)
	assert.False(t, d.HasContent())
	b, err := d.Content(context.Background())
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestFromBytesCopies(t *testing.T) {
	src := []byte("abc")
	d := New(FromBytes(src), nil)
	src[0] = 'x'

	s, err := d.ContentString(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", s)
}

func TestDeferredLoadsOnceAcrossDerivations(t *testing.T) {
	var calls atomic.Int32
	content := Deferred(func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("lazy"), nil
	})
	d1 := New(content, nil)
	d2 := d1.Clone(meta.Set("x", 1))

	var wg sync.WaitGroup
	for _, d := range []*Document{d1, d2, d1, d2} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := d.ContentString(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "lazy", s)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestDeferredRetriesAfterFailure(t *testing.T) {
	var calls atomic.Int32
	content := Deferred(func(context.Context) ([]byte, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return []byte("ok"), nil
	})
	d := New(content, meta.Set(KeySource, "a.md"))

	_, err := d.Content(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryIO))

	s, err := d.ContentString(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", s)
}

func TestDeferredObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := New(Deferred(func(context.Context) ([]byte, error) { return []byte("x"), nil }), nil)

	_, err := d.Content(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFingerprintIsContentBased(t *testing.T) {
	ctx := context.Background()
	a := New(FromString("same"), meta.Set("k", 1))
	b := New(FromString("same"), meta.Set("k", 2))
	c := New(FromString("different"), nil)

	fa, err := a.Fingerprint(ctx)
	require.NoError(t, err)
	fb, err := b.Fingerprint(ctx)
	require.NoError(t, err)
	fc, err := c.Fingerprint(ctx)
	require.NoError(t, err)

	assert.Len(t, fa, 64)
	assert.Equal(t, fa, fb)
	assert.NotEqual(t, fa, fc)
}

func TestSourceAndDestination(t *testing.T) {
	d := New(nil, meta.Set(KeySource, "docs/a.md").Set(KeyDestination, "docs/a.html"))
	assert.Equal(t, "docs/a.md", d.Source())
	assert.Equal(t, "docs/a.html", d.Destination())
}
