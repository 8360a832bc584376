package engine

import "git.home.luguber.info/inful/docflow/internal/metrics"

// Status is the state of one pipeline within a run.
type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusRunning
	StatusCompleted
	StatusSkipped
	StatusFailed
	StatusCanceled
)

var statusNames = [...]string{
	StatusPending:   "pending",
	StatusReady:     "ready",
	StatusRunning:   "running",
	StatusCompleted: "completed",
	StatusSkipped:   "skipped",
	StatusFailed:    "failed",
	StatusCanceled:  "canceled",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Terminal reports whether the status is final for the run.
func (s Status) Terminal() bool { return s >= StatusCompleted }

// Succeeded reports whether the pipeline published outputs.
func (s Status) Succeeded() bool { return s == StatusCompleted || s == StatusSkipped }

func (s Status) resultLabel() metrics.ResultLabel {
	switch s {
	case StatusCompleted:
		return metrics.ResultCompleted
	case StatusSkipped:
		return metrics.ResultSkipped
	case StatusCanceled:
		return metrics.ResultCanceled
	default:
		return metrics.ResultFailed
	}
}
