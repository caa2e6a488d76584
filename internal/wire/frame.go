// Package wire implements the LeafSync length-prefixed frame protocol
// (spec §4.D): one bidirectional byte stream per sync session, carrying a
// sequence of u32-little-endian-length-prefixed frames.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/leafsync/leafsync/internal/syncerr"
)

// MaxFrameLength is the spec §4.D cap; larger declared lengths abort the
// session with ProtocolError.
const MaxFrameLength = 16 << 20 // 16 MiB

// WriteFrame writes a length-prefixed frame: u32 little-endian length
// followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameLength {
		return syncerr.New(syncerr.KindProtocol, "write_frame", fmt.Errorf("payload %d bytes exceeds max %d", len(payload), MaxFrameLength))
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return syncerr.New(syncerr.KindTransport, "write_frame_length", err)
	}
	if _, err := w.Write(payload); err != nil {
		return syncerr.New(syncerr.KindTransport, "write_frame_payload", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame, rejecting declared lengths
// above MaxFrameLength with ProtocolError.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, syncerr.New(syncerr.KindTransport, "read_frame_length", err)
	}
	length := binary.LittleEndian.Uint32(lenBuf[:])
	if length > MaxFrameLength {
		return nil, syncerr.New(syncerr.KindProtocol, "read_frame_length", fmt.Errorf("declared length %d exceeds max %d", length, MaxFrameLength))
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, syncerr.New(syncerr.KindTransport, "read_frame_payload", err)
		}
	}
	return payload, nil
}
