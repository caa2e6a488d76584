package transfer

import (
	"sort"
	"time"

	"github.com/leafsync/leafsync/internal/chunker"
	"github.com/leafsync/leafsync/internal/ignore"
	"github.com/leafsync/leafsync/internal/summary"
	"github.com/leafsync/leafsync/internal/syncerr"
	"github.com/leafsync/leafsync/internal/telemetry"
	"github.com/leafsync/leafsync/internal/transport"
	"github.com/leafsync/leafsync/internal/wire"
)

// ServerConfig bundles the responder-side state one connection needs.
type ServerConfig struct {
	RootDir       string
	ChunkSize     uint32
	IgnoreList    *ignore.List
	ManifestCache *chunker.Cache
	Logger        *telemetry.Logger
	// ForcedScope restricts every request on this connection to one
	// relative path, overriding any client-supplied scope (the CLI's
	// `serve --file REL`). Empty means no restriction.
	ForcedScope string
	// Metrics, when set, records per-connection Prometheus counters
	// (spec's observability collaborator). Nil disables recording.
	Metrics *telemetry.Metrics
	// HandshakeTimeout and IdleTimeout bound the handshake and each
	// per-message round trip (spec §5 "Timeouts"). Zero disables the
	// corresponding deadline.
	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
}

// ServeConn handles one accepted connection for its full lifetime: the
// handshake, then a loop of summary/manifest/chunk requests, until the peer
// sends BYE or the stream closes (spec §4.E, responder side).
func ServeConn(s transport.Stream, cfg ServerConfig) error {
	if err := ServerHandshake(s, cfg.ChunkSize, cfg.HandshakeTimeout); err != nil {
		return err
	}

	cache := cfg.ManifestCache
	if cache == nil {
		cache = chunker.NewCache()
	}
	ignoreList := cfg.IgnoreList
	if ignoreList == nil {
		ignoreList = ignore.Empty()
	}

	start := time.Now()
	if cfg.Metrics != nil {
		cfg.Metrics.RecordSessionStart()
	}
	outcome := "ok"
	defer func() {
		if cfg.Metrics != nil {
			cfg.Metrics.RecordSessionEnd(outcome, time.Since(start).Seconds())
		}
	}()

	for {
		var tag wire.Tag
		var body []byte
		err := withDeadline(s, cfg.IdleTimeout, func() error {
			var recvErr error
			tag, body, recvErr = recvTagged(s)
			return recvErr
		})
		if err != nil {
			outcome = "error"
			return err
		}

		switch tag {
		case wire.TagReqSummary:
			if err := handleReqSummary(s, cfg, ignoreList, cache, body); err != nil {
				outcome = "error"
				return err
			}
		case wire.TagReqManifest:
			if err := handleReqManifest(s, cfg, cache, body); err != nil {
				outcome = "error"
				return err
			}
		case wire.TagReqChunks:
			if err := handleReqChunks(s, cfg, body); err != nil {
				outcome = "error"
				return err
			}
		case wire.TagBye:
			return nil
		default:
			_ = sendFrame(s, wire.EncodeError(wire.ErrorMsg{Code: wire.ErrCodeProtocol, Message: "unexpected tag"}))
			outcome = "error"
			return syncerr.New(syncerr.KindProtocol, "serve_conn", errUnexpectedTag(tag))
		}
	}
}

func handleReqSummary(s transport.Stream, cfg ServerConfig, ignoreList *ignore.List, cache *chunker.Cache, body []byte) error {
	req, err := wire.DecodeReqSummary(body)
	if err != nil {
		return err
	}

	scope := req.ScopePath
	if cfg.ForcedScope != "" {
		scope = cfg.ForcedScope
	}

	var ds *summary.DirectorySummary
	if scope == "" {
		ds, err = summary.Build(cfg.RootDir, int(cfg.ChunkSize), ignoreList, cache)
	} else {
		ds, err = summary.BuildScoped(cfg.RootDir, scope, int(cfg.ChunkSize), cache)
	}
	if err != nil {
		_ = sendFrame(s, wire.EncodeError(wire.ErrorMsg{Code: wire.ErrCodeBadPath, Message: err.Error()}))
		return syncerr.New(syncerr.KindIo, "req_summary", err)
	}

	resp := wire.RespSummary{Entries: make([]wire.RespSummaryEntry, 0, len(ds.Entries))}
	for _, e := range ds.Entries {
		resp.Entries = append(resp.Entries, wire.RespSummaryEntry{RelativePath: e.RelativePath, Size: e.Size, Root: e.Root})
	}
	payload, err := wire.EncodeRespSummary(resp)
	if err != nil {
		return err
	}
	return sendFrame(s, payload)
}

func handleReqManifest(s transport.Stream, cfg ServerConfig, cache *chunker.Cache, body []byte) error {
	req, err := wire.DecodeReqManifest(body)
	if err != nil {
		return err
	}

	if cfg.ForcedScope != "" && req.RelativePath != cfg.ForcedScope {
		_ = sendFrame(s, wire.EncodeError(wire.ErrorMsg{Code: wire.ErrCodeBadPath, Message: "path outside forced single-file scope"}))
		return syncerr.New(syncerr.KindProtocol, "req_manifest", errBadPath)
	}

	absPath, ok := resolveScopedPath(cfg.RootDir, req.RelativePath)
	if !ok {
		_ = sendFrame(s, wire.EncodeError(wire.ErrorMsg{Code: wire.ErrCodeBadPath, Message: "path escapes serving root"}))
		return syncerr.New(syncerr.KindProtocol, "req_manifest", errBadPath)
	}

	manifest, err := cache.Get(absPath, req.RelativePath, int(cfg.ChunkSize))
	if err != nil {
		payload, encErr := wire.EncodeRespManifest(wire.RespManifest{NotFound: true})
		if encErr != nil {
			return encErr
		}
		return sendFrame(s, payload)
	}

	payload, err := wire.EncodeRespManifest(wire.RespManifest{Manifest: manifest})
	if err != nil {
		return err
	}
	return sendFrame(s, payload)
}

func handleReqChunks(s transport.Stream, cfg ServerConfig, body []byte) error {
	req, err := wire.DecodeReqChunks(body)
	if err != nil {
		return err
	}

	if cfg.ForcedScope != "" && req.RelativePath != cfg.ForcedScope {
		_ = sendFrame(s, wire.EncodeError(wire.ErrorMsg{Code: wire.ErrCodeBadPath, Message: "path outside forced single-file scope"}))
		return syncerr.New(syncerr.KindProtocol, "req_chunks", errBadPath)
	}

	absPath, ok := resolveScopedPath(cfg.RootDir, req.RelativePath)
	if !ok {
		_ = sendFrame(s, wire.EncodeError(wire.ErrorMsg{Code: wire.ErrCodeBadPath, Message: "path escapes serving root"}))
		return syncerr.New(syncerr.KindProtocol, "req_chunks", errBadPath)
	}

	indices := append([]uint32(nil), req.Indices...)
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	for _, idx := range indices {
		data, err := chunker.ReadChunk(absPath, int(idx), int(cfg.ChunkSize))
		if err != nil {
			_ = sendFrame(s, wire.EncodeError(wire.ErrorMsg{Code: wire.ErrCodeNotFound, Message: err.Error()}))
			return syncerr.New(syncerr.KindIo, "req_chunks", err)
		}
		if err := sendFrame(s, wire.EncodeRespChunk(wire.RespChunk{RelativePath: req.RelativePath, Index: idx, Data: data})); err != nil {
			return err
		}
		if cfg.Metrics != nil {
			cfg.Metrics.RecordChunkSent(len(data))
		}
	}

	return sendFrame(s, wire.EncodeRespChunksEnd(wire.RespChunksEnd{RelativePath: req.RelativePath}))
}
