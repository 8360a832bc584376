package engine

import (
	"context"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/docflow/internal/document"
	"git.home.luguber.info/inful/docflow/internal/events"
	"git.home.luguber.info/inful/docflow/internal/logfields"
	"git.home.luguber.info/inful/docflow/internal/meta"
	"git.home.luguber.info/inful/docflow/internal/metrics"
	"git.home.luguber.info/inful/docflow/internal/observability"
	"git.home.luguber.info/inful/docflow/internal/pipeline"
)

// ChangeDetector decides whether a pipeline's inputs changed since its last
// successful run. incremental.Detector is the production implementation.
type ChangeDetector interface {
	Changed(ctx context.Context, name string, p *pipeline.Pipeline) (bool, error)
	Commit(ctx context.Context, name string, p *pipeline.Pipeline) error
	// Discard forgets anything Changed observed for name when the pipeline
	// ends without a Commit.
	Discard(name string)
}

// Engine runs a pipeline collection. Runs are serialized; outputs of the last
// successful run of each pipeline are retained so unchanged pipelines can be skipped.
type Engine struct {
	collection   *pipeline.Collection
	logger       *slog.Logger
	recorder     metrics.Recorder
	bus          *events.Bus
	detector     ChangeDetector
	settings     meta.Metadata
	maxParallel  int
	concurrency  int
	maxLazyDepth int

	runMu sync.Mutex
	mu    sync.Mutex
	last  map[string][]*document.Document
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithRecorder(r metrics.Recorder) Option { return func(e *Engine) { e.recorder = r } }

// WithEventBus publishes run and pipeline lifecycle events to b.
func WithEventBus(b *events.Bus) Option { return func(e *Engine) { e.bus = b } }

// WithChangeDetector enables skipping of unchanged pipelines.
func WithChangeDetector(d ChangeDetector) Option { return func(e *Engine) { e.detector = d } }

// WithSettings sets the settings visible to every module.
func WithSettings(s meta.Metadata) Option { return func(e *Engine) { e.settings = s } }

// WithMaxParallel bounds how many pipelines run at once. Values below one mean GOMAXPROCS.
func WithMaxParallel(n int) Option { return func(e *Engine) { e.maxParallel = n } }

// WithConcurrency sets the per-module document concurrency.
func WithConcurrency(n int) Option { return func(e *Engine) { e.concurrency = n } }

func WithMaxLazyDepth(n int) Option { return func(e *Engine) { e.maxLazyDepth = n } }

// New creates an engine for c. The collection must not be modified while a run is in progress.
func New(c *pipeline.Collection, opts ...Option) *Engine {
	e := &Engine{
		collection: c,
		logger:     slog.Default(),
		recorder:   metrics.NoopRecorder{},
		settings:   meta.New(nil),
		last:       make(map[string][]*document.Document),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxParallel < 1 {
		e.maxParallel = runtime.GOMAXPROCS(0)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.recorder == nil {
		e.recorder = metrics.NoopRecorder{}
	}
	return e
}

// Plan validates the collection and returns its execution plan.
func (e *Engine) Plan() (*pipeline.Plan, error) {
	return pipeline.BuildPlan(e.collection)
}

func (e *Engine) Collection() *pipeline.Collection { return e.collection }

// Run executes every pipeline once. Configuration errors are returned before
// anything runs, with a nil result. Otherwise the result is always returned; the
// error joins root pipeline failures, or is the context error when the run was
// canceled without failures.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	plan, err := e.Plan()
	if err != nil {
		return nil, err
	}

	r := &run{
		engine:  e,
		plan:    plan,
		id:      uuid.NewString(),
		states:  make(map[string]*PipelineResult, len(plan.Order)),
		waiting: make(map[string]int, len(plan.Order)),
		outputs: newOutputStore(),
		done:    make(chan outcome),
	}
	for _, name := range plan.Order {
		r.states[name] = &PipelineResult{Name: name, Status: StatusPending}
		r.waiting[name] = len(plan.Dependencies[name])
	}

	ctx = observability.WithRunID(ctx, r.id)
	log := observability.Logger(ctx, e.logger)
	log.Info("Run started", slog.Int("pipelines", len(plan.Order)))
	e.publish(ctx, events.RunStarted{RunID: r.id, Order: slices.Clone(plan.Order), Timestamp: time.Now()})

	start := time.Now()
	r.execute(ctx)

	result := &Result{
		RunID:     r.id,
		Order:     slices.Clone(plan.Order),
		Pipelines: r.states,
		Duration:  time.Since(start),
	}
	e.retain(result)

	outcome := result.Outcome()
	e.recorder.ObserveRunDuration(result.Duration)
	e.recorder.IncRunOutcome(outcome)
	e.publish(ctx, events.RunCompleted{
		RunID:      r.id,
		Outcome:    string(outcome),
		Completed:  result.Count(StatusCompleted),
		Skipped:    result.Count(StatusSkipped),
		Failed:     result.Count(StatusFailed),
		Canceled:   result.Count(StatusCanceled),
		DurationMS: result.Duration.Milliseconds(),
		Timestamp:  time.Now(),
	})
	log.Info("Run completed",
		logfields.Status(string(outcome)),
		slog.Int("completed", result.Count(StatusCompleted)),
		slog.Int("skipped", result.Count(StatusSkipped)),
		slog.Int("failed", result.Count(StatusFailed)),
		slog.Int("canceled", result.Count(StatusCanceled)),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))

	if err := result.Err(); err != nil {
		return result, err
	}
	if result.Count(StatusCanceled) > 0 {
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}
	return result, nil
}

// retain keeps the outputs of pipelines that succeeded for the next run's skip decisions.
func (e *Engine) retain(result *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, pr := range result.Pipelines {
		if pr.Status.Succeeded() {
			e.last[name] = slices.Clone(pr.Documents)
		}
	}
}

func (e *Engine) previous(name string) ([]*document.Document, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	docs, ok := e.last[name]
	return docs, ok
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(ctx, ev); err != nil {
		observability.Logger(ctx, e.logger).Warn("Failed to publish event",
			slog.String("event", ev.Name()), logfields.Error(err))
	}
}
