// Package transport defines the "secure multiplexed transport"
// collaborator contract (spec §6) and a concrete QUIC-backed
// implementation. The core transfer engine depends only on this
// interface, never on quic-go directly.
package transport

import (
	"context"
	"io"
	"time"
)

// Stream is an ordered, reliable, byte-oriented bidirectional stream.
// Deadline methods let a caller enforce the handshake and per-message idle
// timeouts (spec §5 "Timeouts") without depending on quic-go directly.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
	SetDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

// Conn is one established peer connection, yielding bidirectional streams.
type Conn interface {
	// OpenStream opens a new bidirectional stream to the peer.
	OpenStream(ctx context.Context) (Stream, error)
	// AcceptStream accepts the next bidirectional stream opened by the peer.
	AcceptStream(ctx context.Context) (Stream, error)
	// RemoteAddr is the peer's network address, used as the trust-store key.
	RemoteAddr() string
	// Close tears down the connection.
	Close() error
}

// Dialer is the client-side half of the transport collaborator:
// connect(addr) -> secure stream factory, where verification consults the
// trust store before the connection is considered established.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Conn, error)
}

// Listener is the server-side half: listen(addr) -> accept loop yielding
// per-connection contexts.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() string
	Close() error
}
