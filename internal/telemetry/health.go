package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthStatus is the liveness state of a long-running serve/watch process.
type HealthStatus string

const (
	HealthStatusOK        HealthStatus = "ok"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResponse is the liveness probe response body.
type HealthCheckResponse struct {
	Status         HealthStatus `json:"status"`
	Version        string       `json:"version"`
	UptimeSeconds  int64        `json:"uptime_seconds"`
	ActiveSessions int          `json:"active_sessions"`
	Timestamp      string       `json:"timestamp"`
}

// HealthChecker tracks process uptime and the count of active sync sessions
// for a serve or watch process. LeafSync has no multi-backend topology, so
// unlike the retrieved daemon's per-component checks, there is one liveness
// signal: whether the process can still accept sessions.
type HealthChecker struct {
	version   string
	startTime time.Time
	active    func() int
}

// NewHealthChecker creates a health checker. activeSessions reports the
// current number of in-flight sync sessions.
func NewHealthChecker(version string, activeSessions func() int) *HealthChecker {
	if activeSessions == nil {
		activeSessions = func() int { return 0 }
	}
	return &HealthChecker{version: version, startTime: time.Now(), active: activeSessions}
}

// Check returns the current liveness snapshot.
func (hc *HealthChecker) Check() HealthCheckResponse {
	return HealthCheckResponse{
		Status:         HealthStatusOK,
		Version:        hc.version,
		UptimeSeconds:  int64(time.Since(hc.startTime).Seconds()),
		ActiveSessions: hc.active(),
		Timestamp:      time.Now().Format(time.RFC3339),
	}
}

// Handler returns an HTTP handler for the liveness probe.
func (hc *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		_ = ctx
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(hc.Check())
	}
}
