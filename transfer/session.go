package transfer

import (
	"context"

	"github.com/google/uuid"

	"github.com/leafsync/leafsync/daemon/config"
	"github.com/leafsync/leafsync/internal/history"
	"github.com/leafsync/leafsync/internal/telemetry"
	"github.com/leafsync/leafsync/internal/transport"
	"github.com/leafsync/leafsync/internal/wire"
)

// RunSession opens one stream on conn, assigns a fresh session ID, and
// drives a full client-role sync (spec §4.E client state machine:
// IDLE → HANDSHAKE → SUMMARY → per-file → BYE → DONE).
func RunSession(ctx context.Context, conn transport.Conn, cfg *config.Config, rootDir, scopeFile string, mirror bool, logger *telemetry.Logger, metrics *telemetry.Metrics) (string, *Summary, error) {
	sessionID := uuid.New().String()
	sessionLogger := logger.WithSession(sessionID).WithPeer(conn.RemoteAddr())
	sessionLogger.SyncStarted(sessionID, "client", conn.RemoteAddr())

	stream, err := conn.OpenStream(ctx)
	if err != nil {
		return sessionID, nil, err
	}
	defer func() {
		_ = sendFrame(stream, wire.EncodeBye())
		stream.Close()
	}()

	engine := NewEngine(rootDir, cfg, mirror, sessionLogger, metrics)
	summary, err := engine.Run(ctx, stream, scopeFile)
	recordHistory(cfg.HistoryPath, sessionID, summary, sessionLogger)
	return sessionID, summary, err
}

// recordHistory appends the session's per-file outcomes to the optional
// transfer-history log. A failure to open or write history never fails the
// sync session itself — the log is for operator visibility only.
func recordHistory(historyPath, sessionID string, summary *Summary, logger *telemetry.Logger) {
	if historyPath == "" || summary == nil {
		return
	}
	store, err := history.Open(historyPath)
	if err != nil {
		logger.Error(err, "failed to open transfer history log")
		return
	}
	defer store.Close()

	for _, f := range summary.Files {
		err := store.Append(sessionID, f.RelativePath, history.Outcome(f.Outcome), string(f.FailureKind), f.BytesApplied)
		if err != nil {
			logger.Error(err, "failed to append transfer history record")
		}
	}
}
