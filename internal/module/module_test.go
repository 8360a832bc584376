package module

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docflow/internal/document"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/meta"
)

func docs(contents ...string) []*document.Document {
	out := make([]*document.Document, len(contents))
	for i, c := range contents {
		out[i] = document.New(document.FromString(c), meta.Set("index", i))
	}
	return out
}

func contents(t *testing.T, in []*document.Document) []string {
	t.Helper()
	out := make([]string, len(in))
	for i, d := range in {
		s, err := d.ContentString(context.Background())
		require.NoError(t, err)
		out[i] = s
	}
	return out
}

func upper() Module {
	return Map("Upper", func(ctx context.Context, _ Context, d *document.Document) (*document.Document, error) {
		s, err := d.ContentString(ctx)
		if err != nil {
			return nil, err
		}
		b := []byte(s)
		for i := range b {
			if b[i] >= 'a' && b[i] <= 'z' {
				b[i] -= 'a' - 'A'
			}
		}
		return d.CloneContent(document.FromBytes(b)), nil
	})
}

func TestNameOf(t *testing.T) {
	assert.Equal(t, "Upper", NameOf(upper()))
	assert.Equal(t, "Func", NameOf(Func(func(context.Context, Context, []*document.Document) ([]*document.Document, error) {
		return nil, nil
	})))
}

func TestRunChainFeedsOutputsForward(t *testing.T) {
	mc := NewContext(Config{Pipeline: "p", Phase: "process"}, nil)
	dup := PerDocument("Dup", func(_ context.Context, _ Context, d *document.Document) ([]*document.Document, error) {
		return []*document.Document{d, d.Clone(meta.Set("copy", true))}, nil
	})

	out, err := RunChain(context.Background(), mc, []Module{upper(), dup}, docs("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "A", "B", "B"}, contents(t, out))
	assert.True(t, out[1].Bool("copy", false))
}

func TestRunChainSeesInputsAndModuleName(t *testing.T) {
	mc := NewContext(Config{Pipeline: "p", Phase: "read"}, nil)
	var seen []string
	recorder := Named("Recorder", func(_ context.Context, c Context, in []*document.Document) ([]*document.Document, error) {
		seen = append(seen, c.Module(), c.Pipeline(), c.Phase())
		assert.Len(t, c.Inputs(), len(in))
		return in, nil
	})

	_, err := RunChain(context.Background(), mc, []Module{recorder}, docs("x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Recorder", "p", "read"}, seen)
}

func TestRunChainWrapsModuleError(t *testing.T) {
	mc := NewContext(Config{Pipeline: "p", Phase: "render"}, nil)
	boom := errors.New("boom")
	failing := Named("Failing", func(context.Context, Context, []*document.Document) ([]*document.Document, error) {
		return nil, boom
	})
	var ran bool
	after := Named("After", func(_ context.Context, _ Context, in []*document.Document) ([]*document.Document, error) {
		ran = true
		return in, nil
	})

	_, err := RunChain(context.Background(), mc, []Module{failing, after}, docs("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)

	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryModule, ce.Category())
	module, _ := ce.Context().GetString("module")
	assert.Equal(t, "Failing", module)
}

func TestRunChainStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mc := NewContext(Config{}, nil)

	_, err := RunChain(ctx, mc, []Module{upper()}, docs("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ferrors.HasCategory(err, ferrors.CategoryModule))
}

func TestPerDocumentPreservesOrderUnderParallelism(t *testing.T) {
	mc := NewContext(Config{Concurrency: 4}, nil)
	slowFirst := Map("SlowFirst", func(ctx context.Context, _ Context, d *document.Document) (*document.Document, error) {
		if d.Int("index", 0) == 0 {
			time.Sleep(20 * time.Millisecond)
		}
		return d, nil
	})

	out, err := RunChain(context.Background(), mc, []Module{slowFirst}, docs("a", "b", "c", "d", "e"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, contents(t, out))
}

func TestParallelMapRespectsLimit(t *testing.T) {
	var current, peak atomic.Int32
	items := make([]int, 20)
	_, err := ParallelMap(context.Background(), 3, items, func(context.Context, int) (int, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		current.Add(-1)
		return 0, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestParallelMapReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	_, err := ParallelMap(context.Background(), 2, []int{1, 2, 3}, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	assert.ErrorIs(t, err, boom)
}

func TestNestedExecuteUsesSameChainSemantics(t *testing.T) {
	mc := NewContext(Config{Pipeline: "p"}, nil)
	out, err := mc.Execute(context.Background(), []Module{upper()}, docs("q"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Q"}, contents(t, out))
}

func TestGetDocumentAppliesDepthLimit(t *testing.T) {
	mc := NewContext(Config{MaxLazyDepth: 3}, nil)
	d := mc.GetDocument(nil, meta.Set("k", "v"))
	assert.Equal(t, 3, d.MaxDepth())
	assert.Equal(t, "v", d.String("k", ""))
}

func TestDefaultOutputsIsConfigError(t *testing.T) {
	mc := NewContext(Config{}, nil)
	_, err := mc.Outputs().FromPipelines("other")
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}
