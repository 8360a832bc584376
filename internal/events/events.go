// Package events carries run lifecycle events from the engine to persistence and
// external subscribers.
package events

import "time"

// Event is a domain event published by the engine and consumed by handlers.
type Event interface{ Name() string }

// RunScoped is implemented by events that belong to a run.
type RunScoped interface{ GetRunID() string }

// Event names published during a run.
const (
	EventRunStarted        = "RunStarted"
	EventPipelineStarted   = "PipelineStarted"
	EventPipelineCompleted = "PipelineCompleted"
	EventPipelineSkipped   = "PipelineSkipped"
	EventPipelineFailed    = "PipelineFailed"
	EventPipelineCanceled  = "PipelineCanceled"
	EventRunCompleted      = "RunCompleted"
)

// SimpleEvent is a named event without payload.
type SimpleEvent struct{ E string }

func (s SimpleEvent) Name() string { return s.E }

// RunStarted is published once the plan is built and before any pipeline runs.
type RunStarted struct {
	RunID     string    `json:"run_id"`
	Order     []string  `json:"order"`
	Timestamp time.Time `json:"timestamp"`
}

func (RunStarted) Name() string       { return EventRunStarted }
func (e RunStarted) GetRunID() string { return e.RunID }

// PipelineEvent reports a pipeline state transition. Type is one of the
// EventPipeline* names.
type PipelineEvent struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	Pipeline   string    `json:"pipeline"`
	Status     string    `json:"status"`
	Phase      string    `json:"phase,omitempty"`
	Documents  int       `json:"documents"`
	DurationMS int64     `json:"duration_ms"`
	Cause      string    `json:"cause,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e PipelineEvent) Name() string     { return e.Type }
func (e PipelineEvent) GetRunID() string { return e.RunID }

// RunCompleted summarizes a finished run.
type RunCompleted struct {
	RunID      string    `json:"run_id"`
	Outcome    string    `json:"outcome"`
	Completed  int       `json:"completed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Canceled   int       `json:"canceled"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

func (RunCompleted) Name() string       { return EventRunCompleted }
func (e RunCompleted) GetRunID() string { return e.RunID }
