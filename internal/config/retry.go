package config

import (
	"git.home.luguber.info/inful/docflow/internal/foundation/normalization"
	"git.home.luguber.info/inful/docflow/internal/retry"
)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer("retry backoff", map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, "")

// NormalizeRetryBackoff converts user input (case-insensitive) into a typed mode,
// returning empty string for unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffNormalizer.Normalize(raw)
}

// Policy converts the configuration into a retry policy. Unset fields fall back
// to retry.DefaultPolicy.
func (r RetryConfig) Policy() retry.Policy {
	retries := r.MaxRetries
	if retries == 0 {
		retries = -1
	}
	return retry.NewPolicy(retry.BackoffMode(r.Backoff), r.Initial, r.Max, retries)
}
