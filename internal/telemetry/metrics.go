package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics exposed by a serve/watch process.
type Metrics struct {
	SessionsTotal         *prometheus.CounterVec
	SessionsActive        prometheus.Gauge
	SessionDuration       prometheus.Histogram
	BytesTransferredTotal *prometheus.CounterVec
	ChunksSentTotal       prometheus.Counter
	ChunksReceivedTotal   prometheus.Counter
	ChunksRetransmitted   *prometheus.CounterVec
	MerkleVerifications   *prometheus.CounterVec
	FilesFinalizedTotal   prometheus.Counter
	FilesFailedTotal      *prometheus.CounterVec
	MirrorTrashedTotal    prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "leafsync_sessions_total", Help: "Total sync sessions initiated"},
			[]string{"outcome"},
		),
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{Name: "leafsync_sessions_active", Help: "Currently active sync sessions"},
		),
		SessionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "leafsync_session_duration_seconds",
				Help:    "Sync session duration",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),
		BytesTransferredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "leafsync_bytes_transferred_total", Help: "Total bytes transferred"},
			[]string{"direction"},
		),
		ChunksSentTotal: promauto.NewCounter(
			prometheus.CounterOpts{Name: "leafsync_chunks_sent_total", Help: "Total chunks sent"},
		),
		ChunksReceivedTotal: promauto.NewCounter(
			prometheus.CounterOpts{Name: "leafsync_chunks_received_total", Help: "Total chunks received"},
		),
		ChunksRetransmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "leafsync_chunks_retransmitted_total", Help: "Chunks requiring retransmission"},
			[]string{"reason"},
		),
		MerkleVerifications: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "leafsync_merkle_verifications_total", Help: "Merkle root verifications"},
			[]string{"result"},
		),
		FilesFinalizedTotal: promauto.NewCounter(
			prometheus.CounterOpts{Name: "leafsync_files_finalized_total", Help: "Files successfully finalized"},
		),
		FilesFailedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{Name: "leafsync_files_failed_total", Help: "Files aborted, by error kind"},
			[]string{"kind"},
		),
		MirrorTrashedTotal: promauto.NewCounter(
			prometheus.CounterOpts{Name: "leafsync_mirror_trashed_total", Help: "Files moved to trash by mirror delete"},
		),
	}
}

func (m *Metrics) RecordSessionStart() { m.SessionsActive.Inc() }

func (m *Metrics) RecordSessionEnd(outcome string, durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(outcome).Inc()
	m.SessionDuration.Observe(durationSeconds)
}

func (m *Metrics) RecordChunkSent(bytes int) {
	m.ChunksSentTotal.Inc()
	m.BytesTransferredTotal.WithLabelValues("sent").Add(float64(bytes))
}

func (m *Metrics) RecordChunkReceived(bytes int) {
	m.ChunksReceivedTotal.Inc()
	m.BytesTransferredTotal.WithLabelValues("received").Add(float64(bytes))
}

func (m *Metrics) RecordRetransmit(reason string) {
	m.ChunksRetransmitted.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordMerkleVerification(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.MerkleVerifications.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordFileFinalized() { m.FilesFinalizedTotal.Inc() }

func (m *Metrics) RecordFileFailed(kind string) {
	m.FilesFailedTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordMirrorTrashed() { m.MirrorTrashedTotal.Inc() }

// Handler exposes the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
