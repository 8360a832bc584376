package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedEvent struct {
	runID     string
	eventType string
	payload   []byte
	metadata  map[string]string
}

// MockEventStore implements EventStore for testing.
type MockEventStore struct {
	mu     sync.Mutex
	events []storedEvent
	err    error
}

func (m *MockEventStore) Append(_ context.Context, runID, eventType string, payload []byte, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, storedEvent{runID, eventType, payload, metadata})
	return nil
}

func TestBusDeliversToNamedAndWildcardHandlers(t *testing.T) {
	bus := NewBus()
	var got []string
	bus.Subscribe(EventPipelineFailed, func(_ context.Context, e Event) error {
		got = append(got, "named:"+e.Name())
		return nil
	})
	bus.Subscribe(All, func(_ context.Context, e Event) error {
		got = append(got, "all:"+e.Name())
		return nil
	})
	bus.Subscribe("x", nil)

	require.NoError(t, bus.Publish(context.Background(), PipelineEvent{Type: EventPipelineFailed}))
	require.NoError(t, bus.Publish(context.Background(), SimpleEvent{E: "Other"}))
	assert.Equal(t, []string{"named:PipelineFailed", "all:PipelineFailed", "all:Other"}, got)
}

func TestBusRunsEveryHandlerAndReturnsFirstError(t *testing.T) {
	bus := NewBus()
	first := errors.New("first")
	calls := 0
	bus.Subscribe("E", func(context.Context, Event) error { calls++; return first })
	bus.Subscribe("E", func(context.Context, Event) error { calls++; return errors.New("second") })

	err := bus.Publish(context.Background(), SimpleEvent{E: "E"})
	assert.ErrorIs(t, err, first)
	assert.Equal(t, 2, calls)
}

func TestBusPersistsJSONPayload(t *testing.T) {
	store := &MockEventStore{}
	bus := NewBusWithEventStore(store)

	ev := PipelineEvent{Type: EventPipelineCompleted, RunID: "run-1", Pipeline: "content", Status: "completed", Documents: 3}
	require.NoError(t, bus.Publish(context.Background(), ev))
	require.NoError(t, bus.Publish(context.Background(), SimpleEvent{E: "Loose"}))

	require.Len(t, store.events, 2)
	assert.Equal(t, "run-1", store.events[0].runID)
	assert.Equal(t, EventPipelineCompleted, store.events[0].eventType)
	assert.Equal(t, "content", store.events[0].metadata["pipeline"])

	var decoded PipelineEvent
	require.NoError(t, json.Unmarshal(store.events[0].payload, &decoded))
	assert.Equal(t, 3, decoded.Documents)

	assert.Equal(t, "unknown", store.events[1].runID)
}

func TestBusIgnoresStoreFailures(t *testing.T) {
	bus := NewBusWithEventStore(&MockEventStore{err: errors.New("disk full")})
	called := false
	bus.Subscribe(EventRunStarted, func(context.Context, Event) error { called = true; return nil })

	require.NoError(t, bus.Publish(context.Background(), RunStarted{RunID: "r"}))
	assert.True(t, called)
}
