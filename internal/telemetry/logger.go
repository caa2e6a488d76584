package telemetry

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging across sync sessions.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger. Output defaults to stdout.
func NewLogger(service, version string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{logger: logger}
}

// NewPrettyLogger creates a console-formatted logger for interactive use.
func NewPrettyLogger(service, version string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	cw := zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	logger := zerolog.New(cw).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
	return &Logger{logger: logger}
}

// WithSession adds session_id context to the logger.
func (l *Logger) WithSession(sessionID string) *Logger {
	return &Logger{logger: l.logger.With().Str("session_id", sessionID).Logger()}
}

// WithPeer adds peer address context to the logger.
func (l *Logger) WithPeer(peerAddr string) *Logger {
	return &Logger{logger: l.logger.With().Str("peer_addr", peerAddr).Logger()}
}

// WithFile adds file context to the logger.
func (l *Logger) WithFile(relativePath string, size int64) *Logger {
	return &Logger{logger: l.logger.With().
		Str("relative_path", relativePath).
		Int64("size", size).
		Logger(),
	}
}

func (l *Logger) Debug(msg string) { l.logger.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.logger.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.logger.Warn().Msg(msg) }

func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

func (l *Logger) Fatal(err error, msg string) {
	l.logger.Fatal().Err(err).Msg(msg)
}

// SyncStarted logs the beginning of a sync session.
func (l *Logger) SyncStarted(sessionID, role, peerAddr string) {
	l.logger.Info().
		Str("session_id", sessionID).
		Str("role", role).
		Str("peer_addr", peerAddr).
		Msg("sync session started")
}

// FileUpToDate logs that a file required no transfer.
func (l *Logger) FileUpToDate(relativePath string) {
	l.logger.Info().Str("relative_path", relativePath).Msg("up to date")
}

// ChunksRequested logs a diff plan being issued for a file.
func (l *Logger) ChunksRequested(relativePath string, count int) {
	l.logger.Info().
		Str("relative_path", relativePath).
		Int("chunk_count", count).
		Msg("requesting chunks")
}

// FileFinalized logs a successful finalize.
func (l *Logger) FileFinalized(relativePath string, size int64, duration time.Duration) {
	l.logger.Info().
		Str("relative_path", relativePath).
		Int64("size", size).
		Float64("duration_seconds", duration.Seconds()).
		Msg("file finalized")
}

// IntegrityFailure logs a chunk or root mismatch.
func (l *Logger) IntegrityFailure(relativePath string, reason string) {
	l.logger.Error().
		Str("relative_path", relativePath).
		Str("reason", reason).
		Msg("integrity check failed")
}

// ConnectionEstablished logs a new transport connection.
func (l *Logger) ConnectionEstablished(remoteAddr string) {
	l.logger.Info().Str("remote_addr", remoteAddr).Msg("connection established")
}

// ConnectionFailed logs a failed connection attempt.
func (l *Logger) ConnectionFailed(remoteAddr string, err error) {
	l.logger.Error().Str("remote_addr", remoteAddr).Err(err).Msg("connection failed")
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
