package engine

import (
	"errors"
	"time"

	"git.home.luguber.info/inful/docflow/internal/document"
	"git.home.luguber.info/inful/docflow/internal/metrics"
)

// PipelineResult is the outcome of one pipeline.
type PipelineResult struct {
	Name   string
	Status Status
	// Documents is the published Write-phase output of a completed or skipped pipeline.
	Documents []*document.Document
	Duration  time.Duration
	// Phase is the phase that failed or was interrupted.
	Phase string
	// Cause names the upstream pipeline whose failure or cancellation this
	// pipeline inherited. It is empty for root failures.
	Cause string
	Err   error
}

// Result summarizes a run.
type Result struct {
	RunID     string
	Order     []string
	Pipelines map[string]*PipelineResult
	Duration  time.Duration
}

// Get returns the result of one pipeline.
func (r *Result) Get(name string) (*PipelineResult, bool) {
	pr, ok := r.Pipelines[name]
	return pr, ok
}

// Status returns the status of name, or StatusPending when unknown.
func (r *Result) Status(name string) Status {
	if pr, ok := r.Pipelines[name]; ok {
		return pr.Status
	}
	return StatusPending
}

// Outputs returns the published documents of name.
func (r *Result) Outputs(name string) []*document.Document {
	if pr, ok := r.Pipelines[name]; ok {
		return pr.Documents
	}
	return nil
}

// Names returns the pipelines with the given status in plan order.
func (r *Result) Names(status Status) []string {
	var out []string
	for _, n := range r.Order {
		if pr, ok := r.Pipelines[n]; ok && pr.Status == status {
			out = append(out, n)
		}
	}
	return out
}

// Count returns how many pipelines ended with status.
func (r *Result) Count(status Status) int { return len(r.Names(status)) }

// Outcome classifies the run: failed when any pipeline failed, canceled when
// any was canceled, success otherwise.
func (r *Result) Outcome() metrics.RunOutcomeLabel {
	switch {
	case r.Count(StatusFailed) > 0:
		return metrics.RunFailed
	case r.Count(StatusCanceled) > 0:
		return metrics.RunCanceled
	default:
		return metrics.RunSuccess
	}
}

// Err joins the errors of root failures, in plan order. Inherited failures are
// left out since they repeat their cause.
func (r *Result) Err() error {
	var errs []error
	for _, n := range r.Order {
		pr := r.Pipelines[n]
		if pr != nil && pr.Status == StatusFailed && pr.Cause == "" && pr.Err != nil {
			errs = append(errs, pr.Err)
		}
	}
	return errors.Join(errs...)
}
