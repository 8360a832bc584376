package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/logfields"
	"git.home.luguber.info/inful/docflow/internal/retry"
)

// IsRetryable reports whether err is worth another attempt: classified errors
// that allow retry, or errors that report themselves as temporary.
func IsRetryable(err error) bool {
	if ce, ok := ferrors.AsClassified(err); ok {
		return ce.CanRetry()
	}
	var tempErr interface{ Temporary() bool }
	return errors.As(err, &tempErr) && tempErr.Temporary()
}

// WithRetry wraps a handler with retry logic according to the policy. Events whose
// handler still fails after the last attempt are sent to dlq when it is not nil.
func WithRetry(h Handler, policy retry.Policy, retryable func(error) bool, dlq *DeadLetterQueue) Handler {
	if retryable == nil {
		retryable = IsRetryable
	}
	return func(ctx context.Context, e Event) error {
		attempts := 0
		var lastErr error
		for {
			attempts++
			lastErr = h(ctx, e)
			if lastErr == nil {
				return nil
			}
			if !retryable(lastErr) {
				slog.Warn("Non-retryable error encountered", slog.String("event", e.Name()), logfields.Error(lastErr))
				break
			}
			if attempts > policy.MaxRetries {
				break
			}
			slog.Info("Retrying after failure",
				slog.String("event", e.Name()),
				logfields.Attempt(attempts),
				slog.Duration("backoff", policy.Delay(attempts)),
				logfields.Error(lastErr))
			if err := policy.Wait(ctx, attempts); err != nil {
				lastErr = err
				break
			}
		}
		slog.Error("Handler failed after retries", slog.String("event", e.Name()), logfields.Attempt(attempts), logfields.Error(lastErr))
		if dlq != nil {
			dlq.Enqueue(FailedEvent{Event: e, Error: lastErr, Attempts: attempts, Timestamp: time.Now()})
		}
		return fmt.Errorf("handler failed after %d attempts: %w", attempts, lastErr)
	}
}
