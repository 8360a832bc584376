package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyPipeline   = "pipeline"
	KeyPhase      = "phase"
	KeyModule     = "module"
	KeyDocuments  = "documents"
	KeyStatus     = "status"
	KeyDependency = "dependency"
	KeyKey        = "key"
	KeyPath       = "path"
	KeyPattern    = "pattern"
	KeyAttempt    = "attempt"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Pipeline(name string) slog.Attr   { return slog.String(KeyPipeline, name) }
func Phase(name string) slog.Attr      { return slog.String(KeyPhase, name) }
func Module(name string) slog.Attr     { return slog.String(KeyModule, name) }
func Documents(n int) slog.Attr        { return slog.Int(KeyDocuments, n) }
func Status(s string) slog.Attr        { return slog.String(KeyStatus, s) }
func Dependency(name string) slog.Attr { return slog.String(KeyDependency, name) }
func Key(k string) slog.Attr           { return slog.String(KeyKey, k) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Pattern(p string) slog.Attr       { return slog.String(KeyPattern, p) }
func Attempt(n int) slog.Attr          { return slog.Int(KeyAttempt, n) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
