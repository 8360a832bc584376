package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/docflow/internal/logfields"
)

// EventStore defines the interface for persisting events.
// This is a subset of eventstore.Store to avoid circular dependencies.
type EventStore interface {
	Append(ctx context.Context, runID, eventType string, payload []byte, metadata map[string]string) error
}

// Handler processes an Event; return error to signal failure.
type Handler func(ctx context.Context, e Event) error

// All subscribes a handler to every event name.
const All = "*"

// Bus is a simple synchronous pub/sub event bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	eventStore  EventStore // optional event store for persistence
}

func NewBus() *Bus { return &Bus{subscribers: map[string][]Handler{}} }

// NewBusWithEventStore creates a bus that persists events to the store.
func NewBusWithEventStore(store EventStore) *Bus {
	return &Bus{
		subscribers: map[string][]Handler{},
		eventStore:  store,
	}
}

// Subscribe registers a handler for a given event name, or All.
func (b *Bus) Subscribe(event string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.subscribers[event] = append(b.subscribers[event], h)
	b.mu.Unlock()
}

// Publish persists the event when a store is configured and then delivers it to
// the handlers of its name followed by All handlers. Persistence failures are
// logged and never fail the publish; the first handler error is returned after
// every handler has run.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if b.eventStore != nil {
		b.persist(ctx, e)
	}

	b.mu.RLock()
	hs := append([]Handler(nil), b.subscribers[e.Name()]...)
	hs = append(hs, b.subscribers[All]...)
	b.mu.RUnlock()

	var first error
	for _, h := range hs {
		if err := h(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (b *Bus) persist(ctx context.Context, e Event) {
	runID := "unknown"
	if rs, ok := e.(RunScoped); ok {
		runID = rs.GetRunID()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		slog.Warn("Failed to encode event for persistence", slog.String("event", e.Name()), logfields.Error(err))
		return
	}
	var md map[string]string
	if pe, ok := e.(PipelineEvent); ok {
		md = map[string]string{logfields.KeyPipeline: pe.Pipeline, logfields.KeyStatus: pe.Status}
	}
	if err := b.eventStore.Append(ctx, runID, e.Name(), payload, md); err != nil {
		slog.Warn("Failed to persist event", slog.String("event", e.Name()), logfields.RunID(runID), logfields.Error(err))
	}
}
