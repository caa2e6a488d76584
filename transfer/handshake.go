package transfer

import (
	"fmt"
	"time"

	"github.com/leafsync/leafsync/internal/syncerr"
	"github.com/leafsync/leafsync/internal/transport"
	"github.com/leafsync/leafsync/internal/wire"
)

// ClientHandshake sends HELLO and validates the echoed HELLO_OK, rejecting
// any version or chunk-size mismatch (spec §4.D "Versioning"). The whole
// exchange must complete within timeout (spec §5 "Timeouts", handshake);
// timeout <= 0 disables the deadline.
func ClientHandshake(s transport.Stream, chunkSize uint32, timeout time.Duration) error {
	return withDeadline(s, timeout, func() error {
		hello := wire.Hello{
			Version:   wire.ProtocolVersion,
			ChunkSize: chunkSize,
			HashAlgo:  wire.HashAlgoBLAKE3,
		}
		if err := sendFrame(s, wire.EncodeHello(hello)); err != nil {
			return err
		}

		body, err := recvExpect(s, wire.TagHelloOK)
		if err != nil {
			return err
		}
		ok, err := wire.DecodeHelloOK(body)
		if err != nil {
			return err
		}
		if ok.Version != hello.Version {
			return syncerr.New(syncerr.KindProtocol, "handshake", fmt.Errorf("server negotiated version %d, wanted %d", ok.Version, hello.Version))
		}
		if ok.ChunkSize != hello.ChunkSize {
			return syncerr.New(syncerr.KindProtocol, "handshake", fmt.Errorf("server negotiated chunk_size %d, wanted %d", ok.ChunkSize, hello.ChunkSize))
		}
		return nil
	})
}

// ServerHandshake reads the client HELLO, rejects version or chunk-size
// mismatches with an ERROR frame, and otherwise echoes HELLO_OK. The whole
// exchange must complete within timeout; timeout <= 0 disables the deadline.
func ServerHandshake(s transport.Stream, chunkSize uint32, timeout time.Duration) error {
	return withDeadline(s, timeout, func() error {
		body, err := recvExpect(s, wire.TagHello)
		if err != nil {
			return err
		}
		hello, err := wire.DecodeHello(body)
		if err != nil {
			return err
		}

		if hello.Version != wire.ProtocolVersion {
			_ = sendFrame(s, wire.EncodeError(wire.ErrorMsg{Code: wire.ErrCodeVersion, Message: "protocol version mismatch"}))
			return syncerr.New(syncerr.KindProtocol, "handshake", fmt.Errorf("client requested version %d", hello.Version))
		}
		if hello.ChunkSize != chunkSize {
			_ = sendFrame(s, wire.EncodeError(wire.ErrorMsg{Code: wire.ErrCodeChunkSize, Message: "chunk size mismatch"}))
			return syncerr.New(syncerr.KindProtocol, "handshake", fmt.Errorf("client requested chunk_size %d, server has %d", hello.ChunkSize, chunkSize))
		}

		return sendFrame(s, wire.EncodeHelloOK(wire.HelloOK{
			Version:   wire.ProtocolVersion,
			ChunkSize: chunkSize,
			HashAlgo:  wire.HashAlgoBLAKE3,
		}))
	})
}
