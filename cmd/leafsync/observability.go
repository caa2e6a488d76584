package main

import (
	"context"
	"net/http"

	"github.com/leafsync/leafsync/internal/telemetry"
)

// startObservabilityServer exposes /metrics and /health for a long-running
// serve or watch process (SPEC_FULL.md §C health/readiness endpoint).
func startObservabilityServer(ctx context.Context, addr string, metrics *telemetry.Metrics, health *telemetry.HealthChecker, logger *telemetry.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", health.Handler())

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	logger.Info("observability server listening on " + addr + " (metrics, health)")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error(err, "observability server error")
	}
}
