package modules

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/docflow/internal/document"
	ferrors "git.home.luguber.info/inful/docflow/internal/foundation/errors"
	"git.home.luguber.info/inful/docflow/internal/logfields"
	"git.home.luguber.info/inful/docflow/internal/module"
	"git.home.luguber.info/inful/docflow/internal/retry"
)

type retryModule struct {
	policy    retry.Policy
	modules   []module.Module
	retryable func(error) bool
}

// Retry runs modules against the inputs and re-runs the whole chain with backoff
// when it fails with a retryable error. Configuration, validation and
// cancellation errors are never retried.
func Retry(policy retry.Policy, modules ...module.Module) (module.Module, error) {
	if err := policy.Validate(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid retry policy").Build()
	}
	if len(modules) == 0 {
		return nil, ferrors.ConfigError("retry needs at least one module").Build()
	}
	for _, m := range modules {
		if m == nil {
			return nil, ferrors.ConfigError("retry received a nil module").Build()
		}
	}
	return retryModule{policy: policy, modules: modules, retryable: retryableError}, nil
}

func (r retryModule) Name() string { return "retry" }

func (r retryModule) Execute(ctx context.Context, mc module.Context, inputs []*document.Document) ([]*document.Document, error) {
	attempts := 0
	for {
		attempts++
		out, err := mc.Execute(ctx, r.modules, inputs)
		if err == nil {
			return out, nil
		}
		if !r.retryable(err) {
			return nil, err
		}
		if attempts > r.policy.MaxRetries {
			mc.Recorder().IncModuleRetryExhausted(mc.Module())
			return nil, fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}

		mc.Recorder().IncModuleRetry(mc.Module())
		mc.Logger().WarnContext(ctx, "Retrying module chain after failure",
			logfields.Attempt(attempts),
			slog.Duration("backoff", r.policy.Delay(attempts)),
			logfields.Error(err))
		if werr := r.policy.Wait(ctx, attempts); werr != nil {
			return nil, werr
		}
	}
}

func retryableError(err error) bool {
	if module.IsCancellation(err) {
		return false
	}
	if ferrors.HasCategory(err, ferrors.CategoryConfig) || ferrors.HasCategory(err, ferrors.CategoryValidation) {
		return false
	}
	return true
}
