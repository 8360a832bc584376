package modules

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docflow/internal/document"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/module"
	"git.home.luguber.info/inful/docflow/internal/retry"
)

func flaky(failures int32, err error, calls *atomic.Int32) module.Module {
	return module.Named("flaky", func(_ context.Context, _ module.Context, in []*document.Document) ([]*document.Document, error) {
		if calls.Add(1) <= failures {
			return nil, err
		}
		return in, nil
	})
}

func fastPolicy(retries int) retry.Policy {
	return retry.NewPolicy(retry.BackoffFixed, time.Millisecond, time.Millisecond, retries)
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	var calls atomic.Int32
	m, err := Retry(fastPolicy(3), flaky(2, errors.New("temporary outage"), &calls))
	require.NoError(t, err)

	out := mustExecute(t, m, docs("a"))
	assert.Equal(t, []string{"a"}, contentsOf(t, out))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetry_GivesUp(t *testing.T) {
	var calls atomic.Int32
	m, err := Retry(fastPolicy(1), flaky(10, errors.New("down"), &calls))
	require.NoError(t, err)

	_, err = execute(t, m, nil, docs("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, int32(2), calls.Load())
}

func TestRetry_DoesNotRetryConfigErrors(t *testing.T) {
	var calls atomic.Int32
	m, err := Retry(fastPolicy(3), flaky(10, ferrors.ConfigError("bad option").Build(), &calls))
	require.NoError(t, err)

	_, err = execute(t, m, nil, docs("a"))
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetry_InvalidConstruction(t *testing.T) {
	_, err := Retry(fastPolicy(1))
	require.Error(t, err)
	_, err = Retry(fastPolicy(1), nil)
	require.Error(t, err)
}
