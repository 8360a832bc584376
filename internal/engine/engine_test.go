package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docflow/internal/document"
	"git.home.luguber.info/inful/docflow/internal/events"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/fsio"
	"git.home.luguber.info/inful/docflow/internal/incremental"
	"git.home.luguber.info/inful/docflow/internal/meta"
	"git.home.luguber.info/inful/docflow/internal/metrics"
	"git.home.luguber.info/inful/docflow/internal/module"
	"git.home.luguber.info/inful/docflow/internal/pipeline"
	"git.home.luguber.info/inful/docflow/internal/storage"
)

// trace records which pipelines executed modules, in order.
type trace struct {
	mu    sync.Mutex
	calls []string
}

func (t *trace) add(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, s)
}

func (t *trace) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

func (t *trace) index(s string) int {
	for i, c := range t.list() {
		if c == s {
			return i
		}
	}
	return -1
}

// emit records the pipeline and produces one document per content.
func emit(tr *trace, contents ...string) module.Module {
	return module.Named("emit", func(_ context.Context, mc module.Context, _ []*document.Document) ([]*document.Document, error) {
		tr.add(mc.Pipeline())
		out := make([]*document.Document, len(contents))
		for i, c := range contents {
			out[i] = mc.GetDocument(document.FromString(c), meta.Set("pipeline", mc.Pipeline()))
		}
		return out, nil
	})
}

// gather emits the outputs of the named pipelines.
func gather(tr *trace, names ...string) module.Module {
	return module.Named("gather", func(_ context.Context, mc module.Context, _ []*document.Document) ([]*document.Document, error) {
		tr.add(mc.Pipeline())
		return mc.Outputs().FromPipelines(names...)
	})
}

func fail(tr *trace, err error) module.Module {
	return module.Named("fail", func(_ context.Context, mc module.Context, _ []*document.Document) ([]*document.Document, error) {
		tr.add(mc.Pipeline())
		return nil, err
	})
}

func contentsOf(t *testing.T, docs []*document.Document) []string {
	t.Helper()
	out := make([]string, len(docs))
	for i, d := range docs {
		s, err := d.ContentString(context.Background())
		require.NoError(t, err)
		out[i] = s
	}
	return out
}

func collection(t *testing.T, pipelines map[string]*pipeline.Pipeline, order ...string) *pipeline.Collection {
	t.Helper()
	c := pipeline.NewCollection()
	for _, name := range order {
		require.NoError(t, c.Add(name, pipelines[name]))
	}
	return c
}

type fakeDetector struct {
	mu       sync.Mutex
	changed  map[string]bool
	err      error
	checked  []string
	commits  []string
	discards []string
}

func (d *fakeDetector) Changed(_ context.Context, name string, _ *pipeline.Pipeline) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checked = append(d.checked, name)
	if d.err != nil {
		return false, d.err
	}
	return d.changed[name], nil
}

func (d *fakeDetector) Commit(_ context.Context, name string, _ *pipeline.Pipeline) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commits = append(d.commits, name)
	return nil
}

func (d *fakeDetector) Discard(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.discards = append(d.discards, name)
}

type countingRecorder struct {
	metrics.NoopRecorder
	mu       sync.Mutex
	results  map[string]metrics.ResultLabel
	outcomes []metrics.RunOutcomeLabel
}

func (r *countingRecorder) IncPipelineResult(p string, l metrics.ResultLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]metrics.ResultLabel{}
	}
	r.results[p] = l
}

func (r *countingRecorder) IncRunOutcome(o metrics.RunOutcomeLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func TestRunDiamond(t *testing.T) {
	tr := &trace{}
	c := collection(t, map[string]*pipeline.Pipeline{
		"a": pipeline.New().WithReadModules(emit(tr, "a")),
		"b": pipeline.New().WithDependencies("a").WithProcessModules(emit(tr, "b")),
		"c": pipeline.New().WithDependencies("a").WithProcessModules(emit(tr, "c")),
		"d": pipeline.New().WithDependencies("b", "c").WithRenderModules(gather(tr, "b", "c", "a")),
	}, "a", "b", "c", "d")

	res, err := New(c).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c", "d"}, res.Order)
	assert.Equal(t, 0, tr.index("a"))
	assert.Equal(t, 3, tr.index("d"))
	for _, name := range res.Order {
		assert.Equal(t, StatusCompleted, res.Status(name), name)
	}
	assert.Equal(t, []string{"b", "c", "a"}, contentsOf(t, res.Outputs("d")))
	assert.Equal(t, metrics.RunSuccess, res.Outcome())
	assert.NotEmpty(t, res.RunID)
}

func TestRunPhasesInOrder(t *testing.T) {
	var seen []string
	phaseMod := func(tag string) module.Module {
		return module.Func(func(_ context.Context, mc module.Context, in []*document.Document) ([]*document.Document, error) {
			seen = append(seen, mc.Phase()+":"+tag)
			if mc.Phase() == "read" {
				assert.Empty(t, in)
			}
			return append(in, document.New(document.FromString(tag), nil)), nil
		})
	}
	p := pipeline.New().
		WithWriteModules(phaseMod("w")).
		WithReadModules(phaseMod("r")).
		WithRenderModules(phaseMod("n")).
		WithProcessModules(phaseMod("p"))
	c := collection(t, map[string]*pipeline.Pipeline{"only": p}, "only")

	res, err := New(c).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"read:r", "process:p", "render:n", "write:w"}, seen)
	assert.Equal(t, []string{"r", "p", "n", "w"}, contentsOf(t, res.Outputs("only")))
}

func TestRunRejectsInvalidCollectionBeforeRunning(t *testing.T) {
	tr := &trace{}
	c := collection(t, map[string]*pipeline.Pipeline{
		"ok": pipeline.New().WithReadModules(emit(tr, "x")),
		"a":  pipeline.New().WithDependencies("b").WithReadModules(emit(tr, "a")),
		"b":  pipeline.New().WithDependencies("a").WithReadModules(emit(tr, "b")),
	}, "ok", "a", "b")

	res, err := New(c).Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	assert.Empty(t, tr.list())
}

func TestRunFailureCascadesToDependentsOnly(t *testing.T) {
	tr := &trace{}
	boom := errors.New("boom")
	rec := &countingRecorder{}
	c := collection(t, map[string]*pipeline.Pipeline{
		"a":     pipeline.New().WithReadModules(emit(tr, "a")).WithProcessModules(fail(tr, boom)),
		"b":     pipeline.New().WithDependencies("a").WithReadModules(emit(tr, "b")),
		"c":     pipeline.New().WithDependencies("b").WithReadModules(emit(tr, "c")),
		"other": pipeline.New().WithReadModules(emit(tr, "o")),
	}, "a", "b", "c", "other")

	res, err := New(c, WithRecorder(rec)).Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, boom)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryModule))

	a, _ := res.Get("a")
	assert.Equal(t, StatusFailed, a.Status)
	assert.Equal(t, "process", a.Phase)
	assert.Empty(t, a.Cause)

	for _, name := range []string{"b", "c"} {
		pr, ok := res.Get(name)
		require.True(t, ok)
		assert.Equal(t, StatusFailed, pr.Status, name)
		assert.Equal(t, "a", pr.Cause, name)
		assert.True(t, ferrors.HasCategory(pr.Err, ferrors.CategoryScheduler))
		assert.Equal(t, -1, tr.index(name), "%s must not run", name)
	}
	assert.Equal(t, StatusCompleted, res.Status("other"))
	assert.Equal(t, []string{"a", "b", "c"}, res.Names(StatusFailed))
	assert.Equal(t, metrics.RunFailed, res.Outcome())
	assert.NotContains(t, err.Error(), "dependency")

	assert.Equal(t, metrics.ResultFailed, rec.results["b"])
	assert.Equal(t, metrics.ResultCompleted, rec.results["other"])
	assert.Equal(t, []metrics.RunOutcomeLabel{metrics.RunFailed}, rec.outcomes)
}

func TestRunCancellationIsDistinct(t *testing.T) {
	tr := &trace{}
	started := make(chan struct{})
	block := module.Func(func(ctx context.Context, _ module.Context, _ []*document.Document) ([]*document.Document, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c := collection(t, map[string]*pipeline.Pipeline{
		"slow": pipeline.New().WithReadModules(block),
		"next": pipeline.New().WithDependencies("slow").WithReadModules(emit(tr, "n")),
	}, "slow", "next")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-started
		cancel()
	}()

	res, err := New(c).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)

	slow, _ := res.Get("slow")
	assert.Equal(t, StatusCanceled, slow.Status)
	assert.Equal(t, "read", slow.Phase)
	next, _ := res.Get("next")
	assert.Equal(t, StatusCanceled, next.Status)
	assert.Equal(t, "slow", next.Cause)
	assert.Empty(t, res.Names(StatusFailed))
	assert.Equal(t, metrics.RunCanceled, res.Outcome())
	assert.Empty(t, tr.list())
}

func TestRunCanceledBeforeStart(t *testing.T) {
	tr := &trace{}
	c := collection(t, map[string]*pipeline.Pipeline{
		"a": pipeline.New().WithReadModules(emit(tr, "a")),
	}, "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := New(c).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusCanceled, res.Status("a"))
	assert.True(t, ferrors.HasCategory(res.Pipelines["a"].Err, ferrors.CategoryCanceled))
	assert.Empty(t, tr.list())
}

func TestRunOutputsOnlyFromDependencies(t *testing.T) {
	tr := &trace{}
	c := collection(t, map[string]*pipeline.Pipeline{
		"a":    pipeline.New().WithReadModules(emit(tr, "a")),
		"b":    pipeline.New().WithDependencies("a").WithReadModules(emit(tr, "b")),
		"deep": pipeline.New().WithDependencies("b").WithReadModules(gather(tr, "a")),
		"nosy": pipeline.New().WithReadModules(gather(tr, "a")),
	}, "a", "b", "deep", "nosy")

	res, err := New(c).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, contentsOf(t, res.Outputs("deep")))
	nosy, _ := res.Get("nosy")
	assert.Equal(t, StatusFailed, nosy.Status)
	assert.True(t, ferrors.HasCategory(nosy.Err, ferrors.CategoryConfig))
}

func TestRunIndependentPipelinesConcurrently(t *testing.T) {
	var arrived atomic.Int32
	both := make(chan struct{})
	rendezvous := module.Func(func(ctx context.Context, _ module.Context, _ []*document.Document) ([]*document.Document, error) {
		if arrived.Add(1) == 2 {
			close(both)
		}
		select {
		case <-both:
			return nil, nil
		case <-time.After(5 * time.Second):
			return nil, errors.New("pipelines did not overlap")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	c := collection(t, map[string]*pipeline.Pipeline{
		"x": pipeline.New().WithReadModules(rendezvous),
		"y": pipeline.New().WithReadModules(rendezvous),
	}, "x", "y")

	_, err := New(c, WithMaxParallel(2)).Run(context.Background())
	require.NoError(t, err)
}

func TestRunRespectsMaxParallel(t *testing.T) {
	var current, peak atomic.Int32
	track := module.Func(func(_ context.Context, _ module.Context, _ []*document.Document) ([]*document.Document, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return nil, nil
	})
	pipes := map[string]*pipeline.Pipeline{}
	names := []string{"p1", "p2", "p3", "p4"}
	for _, n := range names {
		pipes[n] = pipeline.New().WithReadModules(track)
	}

	_, err := New(collection(t, pipes, names...), WithMaxParallel(1)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), peak.Load())
}

func TestRunSkipsUnchangedPipelines(t *testing.T) {
	tr := &trace{}
	det := &fakeDetector{changed: map[string]bool{}}
	c := collection(t, map[string]*pipeline.Pipeline{
		"a": pipeline.New().WithReadModules(emit(tr, "a1", "a2")),
		"b": pipeline.New().WithDependencies("a").WithReadModules(gather(tr, "a")),
	}, "a", "b")
	eng := New(c, WithChangeDetector(det))

	first, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, first.Status("a"))
	assert.Equal(t, []string{"a", "b"}, det.commits)
	assert.Empty(t, det.checked, "nothing to reuse on the first run")

	second, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, second.Status("a"))
	assert.Equal(t, StatusSkipped, second.Status("b"))
	assert.Equal(t, []string{"a1", "a2"}, contentsOf(t, second.Outputs("b")))
	assert.Len(t, tr.list(), 2)

	det.changed["a"] = true
	third, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, third.Status("a"))
	assert.Equal(t, StatusCompleted, third.Status("b"), "dependents of a changed pipeline run")
	assert.Len(t, tr.list(), 4)
}

func TestRunFailedPipelineDoesNotCommitStaleSignature(t *testing.T) {
	fsys := fstest.MapFS{
		"d/data.md": {Data: []byte("d0")},
		"p/page.md": {Data: []byte("v0")},
	}
	var failPage atomic.Bool
	page := module.Named("page", func(_ context.Context, mc module.Context, _ []*document.Document) ([]*document.Document, error) {
		if failPage.Load() {
			return nil, errors.New("render failed")
		}
		return []*document.Document{mc.GetDocument(document.FromBytes(fsys["p/page.md"].Data), nil)}, nil
	})
	c := collection(t, map[string]*pipeline.Pipeline{
		"d": pipeline.New().WithReadPatterns("d/*.md").WithReadModules(emit(&trace{}, "d")),
		"p": pipeline.New().WithDependencies("d").WithReadPatterns("p/*.md").WithReadModules(page),
	}, "d", "p")
	det := incremental.NewDetector(storage.NewMemoryStore(), fsio.NewFS(fsys))
	eng := New(c, WithChangeDetector(det))
	ctx := context.Background()

	_, err := eng.Run(ctx)
	require.NoError(t, err)

	// p's inputs change and it fails after the detector looked at them.
	fsys["p/page.md"] = &fstest.MapFile{Data: []byte("v1")}
	failPage.Store(true)
	res, err := eng.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, StatusSkipped, res.Status("d"))
	assert.Equal(t, StatusFailed, res.Status("p"))

	// d changes, so p runs without consulting the detector and commits what it read.
	failPage.Store(false)
	fsys["p/page.md"] = &fstest.MapFile{Data: []byte("v2")}
	fsys["d/data.md"] = &fstest.MapFile{Data: []byte("d1")}
	res, err = eng.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status("p"))
	assert.Equal(t, []string{"v2"}, contentsOf(t, res.Outputs("p")))

	// Back to the inputs seen by the failed run: p must not be skipped.
	fsys["p/page.md"] = &fstest.MapFile{Data: []byte("v1")}
	res, err = eng.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, res.Status("d"))
	assert.Equal(t, StatusCompleted, res.Status("p"))
	assert.Equal(t, []string{"v1"}, contentsOf(t, res.Outputs("p")))
}

func TestRunDiscardsDetectorStateWithoutCommit(t *testing.T) {
	det := &fakeDetector{changed: map[string]bool{}}
	c := collection(t, map[string]*pipeline.Pipeline{
		"ok":  pipeline.New().WithReadModules(emit(&trace{}, "x")),
		"bad": pipeline.New().WithReadModules(fail(&trace{}, errors.New("boom"))),
	}, "ok", "bad")
	eng := New(c, WithChangeDetector(det))

	_, err := eng.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"ok"}, det.commits)
	assert.ElementsMatch(t, []string{"ok", "bad"}, det.discards)
}

func TestRunAlwaysProcessBypassesDetector(t *testing.T) {
	tr := &trace{}
	det := &fakeDetector{changed: map[string]bool{}}
	c := collection(t, map[string]*pipeline.Pipeline{
		"live": pipeline.New().SetAlwaysProcess(true).WithReadModules(emit(tr, "x")),
	}, "live")
	eng := New(c, WithChangeDetector(det))

	for range 3 {
		res, err := eng.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, res.Status("live"))
	}
	assert.Len(t, tr.list(), 3)
	assert.Empty(t, det.checked)
	assert.Empty(t, det.commits)
}

func TestRunDetectorErrorProcesses(t *testing.T) {
	tr := &trace{}
	det := &fakeDetector{changed: map[string]bool{}}
	c := collection(t, map[string]*pipeline.Pipeline{
		"a": pipeline.New().WithReadModules(emit(tr, "x")),
	}, "a")
	eng := New(c, WithChangeDetector(det))
	_, err := eng.Run(context.Background())
	require.NoError(t, err)

	det.err = errors.New("cache unavailable")
	res, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status("a"))
	assert.Len(t, tr.list(), 2)
}

func TestRunPublishesEvents(t *testing.T) {
	bus := events.NewBus()
	var mu sync.Mutex
	var got []events.Event
	bus.Subscribe(events.All, func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
		return nil
	})

	tr := &trace{}
	c := collection(t, map[string]*pipeline.Pipeline{
		"a": pipeline.New().WithReadModules(fail(tr, errors.New("nope"))),
		"b": pipeline.New().WithDependencies("a").WithReadModules(emit(tr, "b")),
	}, "a", "b")
	res, err := New(c, WithEventBus(bus)).Run(context.Background())
	require.Error(t, err)

	require.NotEmpty(t, got)
	assert.Equal(t, events.EventRunStarted, got[0].Name())
	last, ok := got[len(got)-1].(events.RunCompleted)
	require.True(t, ok)
	assert.Equal(t, res.RunID, last.RunID)
	assert.Equal(t, "failed", last.Outcome)
	assert.Equal(t, 2, last.Failed)

	var failed []events.PipelineEvent
	for _, e := range got {
		if pe, ok := e.(events.PipelineEvent); ok && pe.Type == events.EventPipelineFailed {
			failed = append(failed, pe)
		}
	}
	require.Len(t, failed, 2)
	assert.Equal(t, "a", failed[0].Pipeline)
	assert.Equal(t, "read", failed[0].Phase)
	assert.Contains(t, failed[0].Error, "nope")
	assert.Equal(t, "b", failed[1].Pipeline)
	assert.Equal(t, "a", failed[1].Cause)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "skipped", StatusSkipped.String())
	assert.Equal(t, "unknown", Status(42).String())
	assert.True(t, StatusCanceled.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusSkipped.Succeeded())
	assert.False(t, StatusFailed.Succeeded())
}
