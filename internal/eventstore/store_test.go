package eventstore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
)

const testRunID = "run-123"

func newStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEventStoreAppendAndRetrieve(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	payload := []byte(`{"test": "data"}`)

	require.NoError(t, store.Append(ctx, testRunID, "TestEvent", payload, map[string]string{"key": "value"}))

	evs, err := store.GetByRunID(ctx, testRunID)
	require.NoError(t, err)
	require.Len(t, evs, 1)

	e := evs[0]
	assert.Equal(t, testRunID, e.RunID())
	assert.Equal(t, "TestEvent", e.Type())
	assert.Equal(t, payload, e.Payload())
	assert.Equal(t, "value", e.Metadata()["key"])
	assert.Positive(t, e.ID())
	assert.WithinDuration(t, time.Now(), e.Timestamp(), time.Minute)
}

func TestEventStoreGetRange(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()
	now := time.Now()

	for range 3 {
		require.NoError(t, store.Append(ctx, "run-1", "Event", []byte("data"), nil))
	}

	evs, err := store.GetRange(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, evs, 3)

	evs, err = store.GetRange(ctx, now.Add(time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, evs)
}

func TestEventStoreMultipleRuns(t *testing.T) {
	store := newStore(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, "run-1", "Event1", []byte("data1"), nil))
	require.NoError(t, store.Append(ctx, "run-2", "Event2", []byte("data2"), nil))
	require.NoError(t, store.Append(ctx, "run-1", "Event3", nil, nil))

	evs, err := store.GetByRunID(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "Event1", evs[0].Type())
	assert.Equal(t, "Event3", evs[1].Type())
	assert.Empty(t, evs[1].Payload())

	evs, err = store.GetByRunID(ctx, "run-2")
	require.NoError(t, err)
	assert.Len(t, evs, 1)
}

func TestEventStoreErrorsMatchSentinels(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	err = store.Append(t.Context(), "r", "E", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEventAppendFailed))
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryEventStore))

	_, err = store.GetByRunID(t.Context(), "r")
	assert.True(t, errors.Is(err, ErrEventQueryFailed))
}
