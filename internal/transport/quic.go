package transport

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/quic-go/quic-go"

	"github.com/leafsync/leafsync/internal/identity"
	"github.com/leafsync/leafsync/internal/quicutil"
	"github.com/leafsync/leafsync/internal/syncerr"
	"github.com/leafsync/leafsync/internal/trust"
)

const alpn = "leafsync/1"

// quicStream adapts quic-go's Stream to the transport.Stream interface.
type quicStream struct {
	quic.Stream
}

func (s *quicStream) Close() error { return s.Stream.Close() }

// quicConn adapts quic-go's Connection to the transport.Conn interface.
type quicConn struct {
	conn quic.Connection
}

func (c *quicConn) OpenStream(ctx context.Context) (Stream, error) {
	s, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, syncerr.New(syncerr.KindTransport, "open_stream", err)
	}
	return &quicStream{s}, nil
}

func (c *quicConn) AcceptStream(ctx context.Context) (Stream, error) {
	s, err := c.conn.AcceptStream(ctx)
	if err != nil {
		return nil, syncerr.New(syncerr.KindTransport, "accept_stream", err)
	}
	return &quicStream{s}, nil
}

func (c *quicConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

func (c *quicConn) Close() error {
	return c.conn.CloseWithError(0, "session closed")
}

// QUICDialer connects to a LeafSync responder, verifying the presented
// certificate fingerprint against a TOFU trust store before the connection
// is considered established.
type QUICDialer struct {
	TrustStore  *trust.Store
	AcceptFirst bool
}

func (d *QUICDialer) Dial(ctx context.Context, addr string) (Conn, error) {
	var verifyErr error
	tlsConf := quicutil.MakeClientTLSConfig(func(certDER []byte) error {
		fp := identity.Fingerprint(certDER)
		if err := trust.Verify(d.TrustStore, addr, fp, d.AcceptFirst); err != nil {
			verifyErr = err
			return err
		}
		return nil
	})
	tlsConf.NextProtos = []string{alpn}

	conn, err := quic.DialAddr(ctx, addr, tlsConf, &quic.Config{})
	if err != nil {
		if verifyErr != nil {
			return nil, verifyErr
		}
		return nil, syncerr.New(syncerr.KindTransport, "dial", err)
	}
	return &quicConn{conn: conn}, nil
}

// QUICListener accepts inbound LeafSync sessions over QUIC.
type QUICListener struct {
	listener *quic.Listener
	addr     string
}

// ErrTLSInit marks a failure setting up the listener's TLS material
// (certificate generation or config), distinct from a bind/listen failure.
var ErrTLSInit = fmt.Errorf("tls initialization failed")

// ListenQUIC binds a QUIC listener at addr using a freshly generated
// self-signed certificate (spec treats certificate generation as part of
// the external transport collaborator's contract).
func ListenQUIC(addr string) (*QUICListener, error) {
	certPEM, keyPEM, err := quicutil.GenerateSelfSignedCert()
	if err != nil {
		return nil, fmt.Errorf("%w: generate self-signed cert: %v", ErrTLSInit, err)
	}
	tlsConf, err := quicutil.MakeTLSConfig(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: make tls config: %v", ErrTLSInit, err)
	}
	tlsConf.NextProtos = []string{alpn}
	tlsConf.ClientAuth = tls.NoClientCert

	ln, err := quic.ListenAddr(addr, tlsConf, &quic.Config{})
	if err != nil {
		return nil, syncerr.New(syncerr.KindTransport, "listen", err)
	}
	return &QUICListener{listener: ln, addr: addr}, nil
}

func (l *QUICListener) Accept(ctx context.Context) (Conn, error) {
	conn, err := l.listener.Accept(ctx)
	if err != nil {
		return nil, syncerr.New(syncerr.KindTransport, "accept", err)
	}
	return &quicConn{conn: conn}, nil
}

func (l *QUICListener) Addr() string { return l.addr }

func (l *QUICListener) Close() error { return l.listener.Close() }
