package daemon

import (
	"encoding/json"
	"net/http"
	"time"

	"git.home.luguber.info/inful/docflow/internal/metrics"
	"git.home.luguber.info/inful/docflow/internal/version"
)

// HealthStatus represents the overall health of the daemon
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Uptime    string       `json:"uptime"`
	Version   string       `json:"version"`
	Runs      Status       `json:"runs"`
}

// Health evaluates the last run: healthy after a successful or canceled run or
// before the first one, degraded after a failed run, unhealthy when the engine
// returned no result at all.
func (d *Daemon) Health() *HealthResponse {
	st := d.Status()
	resp := &HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Version:   version.Version,
		Runs:      st,
	}
	d.mu.RLock()
	if !d.startTime.IsZero() {
		resp.Uptime = time.Since(d.startTime).Truncate(time.Second).String()
	}
	d.mu.RUnlock()

	switch st.LastOutcome {
	case "", string(metrics.RunSuccess), string(metrics.RunCanceled):
		resp.Message = "Daemon is running normally"
	case string(metrics.RunFailed):
		resp.Status = HealthStatusDegraded
		resp.Message = "Last run had failing pipelines"
	default:
		resp.Status = HealthStatusUnhealthy
		resp.Message = "Last run could not start: " + st.LastError
	}
	return resp
}

// HealthHandler serves Health as JSON. Unhealthy responses use status 503.
func (d *Daemon) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := d.Health()
		w.Header().Set("Content-Type", "application/json")
		if resp.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
}
