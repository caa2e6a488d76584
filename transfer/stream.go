package transfer

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/leafsync/leafsync/internal/syncerr"
	"github.com/leafsync/leafsync/internal/transport"
	"github.com/leafsync/leafsync/internal/wire"
)

// sendFrame encodes and writes one message over s.
func sendFrame(s transport.Stream, payload []byte) error {
	return wire.WriteFrame(s, payload)
}

// recvTagged reads the next frame and returns its tag and body (the payload
// with the leading tag byte stripped).
func recvTagged(s transport.Stream) (wire.Tag, []byte, error) {
	payload, err := wire.ReadFrame(s)
	if err != nil {
		return 0, nil, err
	}
	return wire.PeekTag(payload)
}

// recvExpect reads the next frame and requires it carry the given tag,
// surfacing ERROR frames as syncerr.KindProtocol and unexpected tags the
// same way.
func recvExpect(s transport.Stream, want wire.Tag) ([]byte, error) {
	tag, body, err := recvTagged(s)
	if err != nil {
		return nil, err
	}
	if tag == wire.TagError {
		em, decErr := wire.DecodeError(body)
		if decErr != nil {
			return nil, decErr
		}
		return nil, syncerr.New(syncerr.KindProtocol, "remote_error", fmt.Errorf("code=%d: %s", em.Code, em.Message))
	}
	if tag != want {
		return nil, syncerr.New(syncerr.KindProtocol, "recv_expect", fmt.Errorf("expected tag 0x%02x, got 0x%02x", want, tag))
	}
	return body, nil
}

// withDeadline runs fn with s's deadline set to timeout from now, clearing
// it again before returning. A zero timeout disables the deadline entirely.
// Any deadline-exceeded error from fn is reclassified as syncerr.KindTimeout
// (spec §5 "Timeouts").
func withDeadline(s transport.Stream, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		return fn()
	}
	if err := s.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	defer s.SetDeadline(time.Time{})

	err := fn()
	if err != nil && isTimeoutErr(err) {
		return syncerr.New(syncerr.KindTimeout, "deadline_exceeded", err)
	}
	return err
}

func isTimeoutErr(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
