package eventstore

import (
	"context"
	"encoding/json"
	"maps"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/docflow/internal/events"
)

const runStatusRunning = "running"

// PipelineSummary is the last reported state of one pipeline within a run.
type PipelineSummary struct {
	Status     string `json:"status"`
	Phase      string `json:"phase,omitempty"`
	Documents  int    `json:"documents"`
	DurationMS int64  `json:"duration_ms"`
	Cause      string `json:"cause,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RunSummary is a read model summarizing a completed or in-progress run.
type RunSummary struct {
	RunID       string                     `json:"run_id"`
	Status      string                     `json:"status"` // running, or the RunCompleted outcome
	StartedAt   time.Time                  `json:"started_at"`
	CompletedAt *time.Time                 `json:"completed_at,omitempty"`
	Duration    time.Duration              `json:"duration,omitempty"`
	Order       []string                   `json:"order,omitempty"`
	Pipelines   map[string]PipelineSummary `json:"pipelines"`
}

func (s *RunSummary) clone() *RunSummary {
	cp := *s
	cp.Order = slices.Clone(s.Order)
	cp.Pipelines = maps.Clone(s.Pipelines)
	return &cp
}

// RunHistoryProjection maintains an in-memory view of run history,
// reconstructed from events stored in the event store.
type RunHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	runs     map[string]*RunSummary // runID -> summary
	history  []*RunSummary          // finished runs, newest first
	maxSize  int
	lastSync time.Time
}

// NewRunHistoryProjection creates a new projection backed by the given store.
func NewRunHistoryProjection(store Store, maxHistorySize int) *RunHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &RunHistoryProjection{
		store:   store,
		runs:    make(map[string]*RunSummary),
		history: make([]*RunSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *RunHistoryProjection) Rebuild(ctx context.Context) error {
	evs, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.runs = make(map[string]*RunSummary)
	p.history = make([]*RunSummary, 0, p.maxSize)
	for _, e := range evs {
		p.applyEventLocked(e)
	}
	slices.SortStableFunc(p.history, func(a, b *RunSummary) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneRunsLocked()
	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event and updates the projection.
func (p *RunHistoryProjection) Apply(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(e)
}

func (p *RunHistoryProjection) applyEventLocked(e Event) {
	runID := e.RunID()
	if runID == "" || runID == "unknown" {
		return
	}

	summary, exists := p.runs[runID]
	if !exists {
		summary = &RunSummary{
			RunID:     runID,
			Status:    runStatusRunning,
			StartedAt: e.Timestamp(),
			Pipelines: map[string]PipelineSummary{},
		}
		p.runs[runID] = summary
	}

	switch e.Type() {
	case events.EventRunStarted:
		summary.StartedAt = e.Timestamp()
		var payload events.RunStarted
		if err := json.Unmarshal(e.Payload(), &payload); err == nil {
			summary.Order = payload.Order
		}

	case events.EventPipelineStarted, events.EventPipelineCompleted, events.EventPipelineSkipped,
		events.EventPipelineFailed, events.EventPipelineCanceled:
		var payload events.PipelineEvent
		if err := json.Unmarshal(e.Payload(), &payload); err == nil && payload.Pipeline != "" {
			summary.Pipelines[payload.Pipeline] = PipelineSummary{
				Status:     payload.Status,
				Phase:      payload.Phase,
				Documents:  payload.Documents,
				DurationMS: payload.DurationMS,
				Cause:      payload.Cause,
				Error:      payload.Error,
			}
		}

	case events.EventRunCompleted:
		now := e.Timestamp()
		summary.CompletedAt = &now
		summary.Duration = now.Sub(summary.StartedAt)
		summary.Status = "completed"
		var payload events.RunCompleted
		if err := json.Unmarshal(e.Payload(), &payload); err == nil && payload.Outcome != "" {
			summary.Status = payload.Outcome
		}
		p.addToHistoryLocked(summary)
	}
}

func (p *RunHistoryProjection) addToHistoryLocked(summary *RunSummary) {
	for _, h := range p.history {
		if h.RunID == summary.RunID {
			return
		}
	}
	p.history = append([]*RunSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneRunsLocked()
}

// pruneRunsLocked drops finished runs that fell out of the bounded history.
// Caller must hold p.mu (write lock).
func (p *RunHistoryProjection) pruneRunsLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.RunID] = struct{}{}
	}
	for id, summary := range p.runs {
		if summary.Status == runStatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.runs, id)
		}
	}
}

// GetHistory returns finished runs, newest first.
func (p *RunHistoryProjection) GetHistory() []*RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]*RunSummary, len(p.history))
	for i, s := range p.history {
		result[i] = s.clone()
	}
	return result
}

// GetRun returns the summary for a specific run.
func (p *RunHistoryProjection) GetRun(runID string) (*RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, exists := p.runs[runID]
	if !exists {
		return nil, false
	}
	return summary.clone(), true
}

// GetActiveRun returns a currently running run if any.
func (p *RunHistoryProjection) GetActiveRun() *RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, summary := range p.runs {
		if summary.Status == runStatusRunning {
			return summary.clone()
		}
	}
	return nil
}

// LastSyncTime returns when the projection was last synchronized.
func (p *RunHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
