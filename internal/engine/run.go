package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docflow/internal/document"
	"git.home.luguber.info/inful/docflow/internal/events"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/logfields"
	"git.home.luguber.info/inful/docflow/internal/module"
	"git.home.luguber.info/inful/docflow/internal/observability"
	"git.home.luguber.info/inful/docflow/internal/pipeline"
)

// run holds the state of one Engine.Run. states and waiting are owned by the
// coordinator goroutine; workers only report outcomes over done.
type run struct {
	engine  *Engine
	plan    *pipeline.Plan
	id      string
	states  map[string]*PipelineResult
	waiting map[string]int
	outputs *outputStore
	done    chan outcome
}

type outcome struct {
	name     string
	status   Status
	docs     []*document.Document
	phase    string
	duration time.Duration
	err      error
}

// job is everything a worker needs, captured by the coordinator at launch.
type job struct {
	name     string
	p        *pipeline.Pipeline
	deps     map[string]bool
	depsSkip bool
	previous []*document.Document
	hasPrev  bool
}

func (r *run) execute(ctx context.Context) {
	var ready []string
	for _, name := range r.plan.Order {
		if r.waiting[name] == 0 {
			r.states[name].Status = StatusReady
			ready = append(ready, name)
		}
	}

	running := 0
	for {
		for ctx.Err() == nil && len(ready) > 0 && running < r.engine.maxParallel {
			name := ready[0]
			ready = ready[1:]
			j := r.prepare(name)
			r.states[name].Status = StatusRunning
			running++
			r.engine.recorder.SetRunningPipelines(running)
			go func() { r.done <- r.runPipeline(ctx, j) }()
		}
		if running == 0 {
			break
		}
		o := <-r.done
		running--
		r.engine.recorder.SetRunningPipelines(running)
		ready = append(ready, r.finish(ctx, o)...)
	}

	for _, name := range r.plan.Order {
		st := r.states[name]
		if st.Status == StatusPending || st.Status == StatusReady {
			r.settle(ctx, st, StatusCanceled, "", ferrors.CanceledError("run canceled before pipeline started").
				WithContext("pipeline", name).
				WithCause(ctx.Err()).
				Build())
		}
	}
}

func (r *run) prepare(name string) job {
	p, _ := r.engine.collection.Get(name)
	j := job{name: name, p: p, deps: r.plan.TransitiveDependencies(name), depsSkip: true}
	for _, dep := range r.plan.Dependencies[name] {
		if r.states[dep].Status != StatusSkipped {
			j.depsSkip = false
		}
	}
	j.previous, j.hasPrev = r.engine.previous(name)
	return j
}

// finish records o and returns the dependents that became ready, in plan order.
func (r *run) finish(ctx context.Context, o outcome) []string {
	st := r.states[o.name]
	st.Duration = o.duration
	st.Phase = o.phase
	if o.status.Succeeded() {
		st.Documents = o.docs
		r.outputs.publish(o.name, o.docs)
	}
	r.settle(ctx, st, o.status, "", o.err)

	switch o.status {
	case StatusFailed:
		r.cascade(ctx, o.name, StatusFailed)
		return nil
	case StatusCanceled:
		r.cascade(ctx, o.name, StatusCanceled)
		return nil
	}

	var ready []string
	for _, dependent := range r.plan.Dependents[o.name] {
		r.waiting[dependent]--
		if r.waiting[dependent] == 0 && r.states[dependent].Status == StatusPending {
			r.states[dependent].Status = StatusReady
			ready = append(ready, dependent)
		}
	}
	return ready
}

// cascade propagates a failure or cancellation of name to every transitive
// dependent that has not started. Those pipelines never run.
func (r *run) cascade(ctx context.Context, name string, status Status) {
	for _, dependent := range r.plan.TransitiveDependents(name) {
		st := r.states[dependent]
		if st.Status != StatusPending {
			continue
		}
		var err error
		if status == StatusFailed {
			err = ferrors.SchedulerError(fmt.Sprintf("dependency %q failed", name)).
				WithContext("pipeline", dependent).
				WithContext("dependency", name).
				Build()
		} else {
			err = ferrors.CanceledError(fmt.Sprintf("dependency %q was canceled", name)).
				WithContext("pipeline", dependent).
				WithContext("dependency", name).
				Build()
		}
		r.settle(ctx, st, status, name, err)
	}
}

// settle moves st into a terminal status and reports it.
func (r *run) settle(ctx context.Context, st *PipelineResult, status Status, cause string, err error) {
	e := r.engine
	st.Status = status
	st.Cause = cause
	st.Err = err

	pctx := observability.WithPipeline(ctx, st.Name)
	log := observability.Logger(pctx, e.logger)
	attrs := []any{logfields.Status(status.String()), logfields.Documents(len(st.Documents))}
	if st.Phase != "" {
		attrs = append(attrs, logfields.Phase(st.Phase))
	}
	if cause != "" {
		attrs = append(attrs, logfields.Dependency(cause))
	}
	switch status {
	case StatusFailed:
		if err != nil {
			attrs = append(attrs, logfields.Error(err))
		}
		log.Error("Pipeline failed", attrs...)
	case StatusCanceled:
		log.Warn("Pipeline canceled", attrs...)
	default:
		attrs = append(attrs, logfields.DurationMS(float64(st.Duration.Milliseconds())))
		log.Info("Pipeline finished", attrs...)
	}

	if status == StatusCompleted || status == StatusSkipped || cause == "" {
		e.recorder.ObservePipelineDuration(st.Name, st.Duration)
	}
	e.recorder.IncPipelineResult(st.Name, status.resultLabel())

	ev := events.PipelineEvent{
		RunID:      r.id,
		Pipeline:   st.Name,
		Status:     status.String(),
		Phase:      st.Phase,
		Documents:  len(st.Documents),
		DurationMS: st.Duration.Milliseconds(),
		Cause:      cause,
		Timestamp:  time.Now(),
	}
	switch status {
	case StatusCompleted:
		ev.Type = events.EventPipelineCompleted
	case StatusSkipped:
		ev.Type = events.EventPipelineSkipped
	case StatusFailed:
		ev.Type = events.EventPipelineFailed
	default:
		ev.Type = events.EventPipelineCanceled
	}
	if err != nil {
		ev.Error = err.Error()
	}
	e.publish(ctx, ev)
}

// runPipeline runs on a worker goroutine.
func (r *run) runPipeline(ctx context.Context, j job) outcome {
	e := r.engine
	ctx = observability.WithPipeline(ctx, j.name)
	log := observability.Logger(ctx, e.logger)
	start := time.Now()
	if e.detector != nil {
		defer e.detector.Discard(j.name)
	}
	e.publish(ctx, events.PipelineEvent{
		Type:      events.EventPipelineStarted,
		RunID:     r.id,
		Pipeline:  j.name,
		Status:    StatusRunning.String(),
		Timestamp: start,
	})

	if r.skip(ctx, j) {
		log.Debug("Pipeline unchanged, reusing previous outputs", logfields.Documents(len(j.previous)))
		return outcome{name: j.name, status: StatusSkipped, docs: j.previous, duration: time.Since(start)}
	}

	view := outputsView{store: r.outputs, pipeline: j.name, allowed: j.deps}
	var docs []*document.Document
	for _, phase := range pipeline.Phases {
		if err := ctx.Err(); err != nil {
			return outcome{name: j.name, status: StatusCanceled, phase: phase.String(), duration: time.Since(start),
				err: ferrors.CanceledError("pipeline interrupted").WithContext("pipeline", j.name).WithCause(err).Build()}
		}
		modules := j.p.Modules(phase)
		phaseCtx := observability.WithPhase(ctx, phase.String())
		mc := module.NewContext(module.Config{
			Pipeline:     j.name,
			Phase:        phase.String(),
			Outputs:      view,
			Settings:     e.settings,
			Logger:       observability.Logger(ctx, e.logger),
			Recorder:     e.recorder,
			Concurrency:  e.concurrency,
			MaxLazyDepth: e.maxLazyDepth,
		}, docs)

		phaseStart := time.Now()
		out, err := module.RunChain(phaseCtx, mc, modules, docs)
		e.recorder.ObservePhaseDuration(j.name, phase.String(), time.Since(phaseStart))
		if err != nil {
			if ctx.Err() != nil && module.IsCancellation(err) {
				return outcome{name: j.name, status: StatusCanceled, phase: phase.String(), duration: time.Since(start),
					err: ferrors.CanceledError("pipeline interrupted").WithContext("pipeline", j.name).WithCause(err).Build()}
			}
			return outcome{name: j.name, status: StatusFailed, phase: phase.String(), duration: time.Since(start), err: err}
		}
		docs = out
		e.recorder.AddDocuments(j.name, phase.String(), len(docs))
		log.Debug("Phase finished", logfields.Phase(phase.String()), logfields.Documents(len(docs)))
	}

	if e.detector != nil && !j.p.AlwaysProcess() {
		if err := e.detector.Commit(ctx, j.name, j.p); err != nil {
			log.Warn("Failed to record pipeline signature", logfields.Error(err))
		}
	}
	return outcome{name: j.name, status: StatusCompleted, docs: docs, duration: time.Since(start)}
}

// skip reports whether j can reuse its previous outputs: change detection is
// enabled, the pipeline does not always process, every dependency was skipped,
// outputs from an earlier run exist and the detector reports no change.
func (r *run) skip(ctx context.Context, j job) bool {
	e := r.engine
	if e.detector == nil || j.p.AlwaysProcess() || !j.depsSkip || !j.hasPrev {
		return false
	}
	changed, err := e.detector.Changed(ctx, j.name, j.p)
	if err != nil {
		observability.Logger(ctx, e.logger).Warn("Change detection failed, processing pipeline",
			logfields.Error(err), slog.Bool("changed", true))
		return false
	}
	return !changed
}
