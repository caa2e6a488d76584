package transfer

import (
	"time"

	"github.com/leafsync/leafsync/internal/chunker"
	"github.com/leafsync/leafsync/internal/summary"
	"github.com/leafsync/leafsync/internal/syncerr"
	"github.com/leafsync/leafsync/internal/transport"
	"github.com/leafsync/leafsync/internal/wire"
)

// FetchSummary requests a directory summary, optionally scoped to one file
// (spec §4.E "Summary request"). The round trip must complete within
// idleTimeout (spec §5 "Timeouts", per-message idle); idleTimeout <= 0
// disables the deadline.
func FetchSummary(s transport.Stream, scopePath string, idleTimeout time.Duration) (*summary.DirectorySummary, error) {
	var out *summary.DirectorySummary
	err := withDeadline(s, idleTimeout, func() error {
		if err := sendFrame(s, wire.EncodeReqSummary(wire.ReqSummary{ScopePath: scopePath})); err != nil {
			return err
		}
		body, err := recvExpect(s, wire.TagRespSummary)
		if err != nil {
			return err
		}
		resp, err := wire.DecodeRespSummary(body)
		if err != nil {
			return err
		}

		out = &summary.DirectorySummary{Entries: make([]summary.Entry, 0, len(resp.Entries))}
		for _, e := range resp.Entries {
			out.Entries = append(out.Entries, summary.Entry{RelativePath: e.RelativePath, Size: e.Size, Root: e.Root})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchManifest requests one file's manifest. A nil manifest with nil error
// means the remote reported the file as not found. idleTimeout <= 0
// disables the deadline.
func FetchManifest(s transport.Stream, relativePath string, idleTimeout time.Duration) (*chunker.FileManifest, error) {
	var out *chunker.FileManifest
	err := withDeadline(s, idleTimeout, func() error {
		if err := sendFrame(s, wire.EncodeReqManifest(wire.ReqManifest{RelativePath: relativePath})); err != nil {
			return err
		}
		body, err := recvExpect(s, wire.TagRespManifest)
		if err != nil {
			return err
		}
		resp, err := wire.DecodeRespManifest(body)
		if err != nil {
			return err
		}
		if resp.NotFound {
			return nil
		}
		out = resp.Manifest
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ChunkDelivery is one received, not yet verified chunk passed to the
// FetchChunks callback.
type ChunkDelivery struct {
	Index uint32
	Data  []byte
}

// FetchChunks requests the given indices for relativePath and streams back
// each RESP_CHUNK via the callback until RESP_CHUNKS_END (spec §4.D, §4.E
// "Fetching"). indices must already be sorted and deduplicated. The
// deadline resets before every message so idleTimeout bounds the gap
// between messages, not the whole transfer; idleTimeout <= 0 disables it.
func FetchChunks(s transport.Stream, relativePath string, indices []uint32, idleTimeout time.Duration, onChunk func(ChunkDelivery) error) error {
	if err := withDeadline(s, idleTimeout, func() error {
		return sendFrame(s, wire.EncodeReqChunks(wire.ReqChunks{RelativePath: relativePath, Indices: indices}))
	}); err != nil {
		return err
	}

	remaining := len(indices)
	for remaining > 0 {
		var tag wire.Tag
		var body []byte
		err := withDeadline(s, idleTimeout, func() error {
			var recvErr error
			tag, body, recvErr = recvTagged(s)
			return recvErr
		})
		if err != nil {
			return err
		}
		switch tag {
		case wire.TagRespChunk:
			rc, err := wire.DecodeRespChunk(body)
			if err != nil {
				return err
			}
			if err := onChunk(ChunkDelivery{Index: rc.Index, Data: rc.Data}); err != nil {
				return err
			}
			remaining--
		case wire.TagError:
			em, err := wire.DecodeError(body)
			if err != nil {
				return err
			}
			return syncerr.New(syncerr.KindProtocol, "fetch_chunks", errAsProtocol(em))
		case wire.TagRespChunksEnd:
			// Server ended the stream before delivering every requested
			// index: treat as a resumable partial failure, not a protocol
			// error — the caller persists whatever bitmap bits were set.
			return errEarlyEnd
		default:
			return syncerr.New(syncerr.KindProtocol, "fetch_chunks", errUnexpectedTag(tag))
		}
	}

	if err := withDeadline(s, idleTimeout, func() error {
		_, err := recvExpect(s, wire.TagRespChunksEnd)
		return err
	}); err != nil {
		return err
	}
	return nil
}
