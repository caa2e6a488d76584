package transfer

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/leafsync/leafsync/daemon/config"
	"github.com/leafsync/leafsync/internal/chunker"
	"github.com/leafsync/leafsync/internal/diffplan"
	"github.com/leafsync/leafsync/internal/ignore"
	"github.com/leafsync/leafsync/internal/staging"
	"github.com/leafsync/leafsync/internal/summary"
	"github.com/leafsync/leafsync/internal/syncerr"
	"github.com/leafsync/leafsync/internal/telemetry"
	"github.com/leafsync/leafsync/internal/transport"
)

// Engine drives one client-role sync session against an already-handshaken
// stream (spec §4.E, client state machine).
type Engine struct {
	RootDir string
	Cfg     *config.Config
	Mirror  bool
	Logger  *telemetry.Logger
	Cache   *chunker.Cache
	// Metrics, when set, records per-session Prometheus counters (spec's
	// observability collaborator). Nil disables recording.
	Metrics *telemetry.Metrics
}

// NewEngine builds an Engine with a fresh manifest cache. metrics may be
// nil to disable metric recording.
func NewEngine(rootDir string, cfg *config.Config, mirror bool, logger *telemetry.Logger, metrics *telemetry.Metrics) *Engine {
	return &Engine{RootDir: rootDir, Cfg: cfg, Mirror: mirror, Logger: logger, Cache: chunker.NewCache(), Metrics: metrics}
}

// Run performs the summary → per-file (manifest → plan → fetch → verify →
// finalize) → mirror-delete sequence over stream. Files are dispatched to at
// most Cfg.MaxConcurrentFiles goroutines (spec §5 "Concurrency shape"), but
// all of them share the one stream, so each file's request/response
// exchanges hold the stream exclusively and run one file at a time.
func (e *Engine) Run(ctx context.Context, stream transport.Stream, scopeFile string) (*Summary, error) {
	if err := ClientHandshake(stream, uint32(e.Cfg.ChunkSize), e.Cfg.HandshakeTimeout); err != nil {
		return nil, err
	}

	remote, err := FetchSummary(stream, scopeFile, e.Cfg.IdleTimeout)
	if err != nil {
		return nil, err
	}

	ignoreList, err := ignore.Load(filepath.Join(e.RootDir, ".leafsyncignore"))
	if err != nil {
		ignoreList = ignore.Empty()
	}

	var local *summary.DirectorySummary
	if scopeFile == "" {
		local, err = summary.Build(e.RootDir, int(e.Cfg.ChunkSize), ignoreList, e.Cache)
	} else {
		local, err = summary.BuildScoped(e.RootDir, scopeFile, int(e.Cfg.ChunkSize), e.Cache)
	}
	if err != nil {
		return nil, syncerr.New(syncerr.KindIo, "build_local_summary", err)
	}

	summaryResult := &Summary{}
	var mu sync.Mutex
	var streamMu sync.Mutex
	sem := semaphore.NewWeighted(int64(maxInt(e.Cfg.MaxConcurrentFiles, 1)))
	var wg sync.WaitGroup

	for _, entry := range remote.Entries {
		entry := entry
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer sem.Release(1)
			defer wg.Done()
			streamMu.Lock()
			result := e.syncOneFile(stream, entry.RelativePath)
			streamMu.Unlock()
			mu.Lock()
			summaryResult.Add(result)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if e.Mirror && scopeFile == "" {
		sessionStart := time.Now().UTC().Format("20060102T150405Z")
		for _, relPath := range MirrorDeletes(local, remote) {
			if err := staging.TrashPath(e.RootDir, relPath, sessionStart); err != nil {
				summaryResult.Add(FileResult{RelativePath: relPath, Outcome: OutcomeFailed, FailureKind: syncerr.KindOf(err)})
				continue
			}
			summaryResult.Add(FileResult{RelativePath: relPath, Outcome: OutcomeTrashed})
			if e.Metrics != nil {
				e.Metrics.RecordMirrorTrashed()
			}
		}
	}

	return summaryResult, nil
}

// syncOneFile drives the per-file sub-machine for one remote entry. Errors
// are contained to this file (spec §7 "Propagation policy").
func (e *Engine) syncOneFile(stream transport.Stream, relPath string) FileResult {
	remoteManifest, err := FetchManifest(stream, relPath, e.Cfg.IdleTimeout)
	if err != nil {
		return FileResult{RelativePath: relPath, Outcome: OutcomeFailed, FailureKind: syncerr.KindOf(err)}
	}
	if remoteManifest == nil {
		return FileResult{RelativePath: relPath, Outcome: OutcomeSkipped}
	}

	absPath := filepath.Join(e.RootDir, filepath.FromSlash(relPath))
	localManifest, lerr := e.Cache.Get(absPath, relPath, int(remoteManifest.ChunkSize))
	var local *chunker.FileManifest
	if lerr == nil {
		local = localManifest
	}

	plan := diffplan.Compute(local, remoteManifest)
	if plan.Action == diffplan.ActionNone && !plan.Truncate {
		e.Logger.FileUpToDate(relPath)
		return FileResult{RelativePath: relPath, Outcome: OutcomeUpToDate}
	}

	e.Logger.ChunksRequested(relPath, len(plan.Indices))

	handle, err := staging.Open(absPath, remoteManifest.Root, remoteManifest.Size, remoteManifest.ChunkSize)
	if err != nil {
		kind := syncerr.KindOf(err)
		if kind == syncerr.KindBusy {
			e.Logger.Info("staging busy, skipping " + relPath)
			return FileResult{RelativePath: relPath, Outcome: OutcomeSkipped, FailureKind: kind}
		}
		return FileResult{RelativePath: relPath, Outcome: OutcomeFailed, FailureKind: kind}
	}

	if err := e.seedUnchangedChunks(handle, local, remoteManifest, plan); err != nil {
		handle.Discard()
		return FileResult{RelativePath: relPath, Outcome: OutcomeFailed, FailureKind: syncerr.KindOf(err)}
	}

	toFetch := indicesNeeded(handle, plan.Indices)

	var integrityErr error
	fetchErr := FetchChunks(stream, relPath, toFetch, e.Cfg.IdleTimeout, func(cd ChunkDelivery) error {
		if int(cd.Index) >= len(remoteManifest.ChunkHashes) {
			integrityErr = fmt.Errorf("chunk index %d out of bounds", cd.Index)
			return nil
		}
		if chunker.HashBytes(cd.Data) != remoteManifest.ChunkHashes[cd.Index] {
			integrityErr = fmt.Errorf("chunk %d hash mismatch", cd.Index)
			e.Logger.IntegrityFailure(relPath, "chunk hash mismatch")
			return nil
		}
		if err := handle.WriteChunk(cd.Index, cd.Data); err != nil {
			return err
		}
		if e.Metrics != nil {
			e.Metrics.RecordChunkReceived(len(cd.Data))
		}
		return nil
	})

	if fetchErr != nil {
		handle.Flush()
		kind := syncerr.KindOf(fetchErr)
		if fetchErr == errEarlyEnd {
			kind = syncerr.KindTransport
		}
		e.recordFileFailed(kind)
		return FileResult{RelativePath: relPath, Outcome: OutcomeFailed, FailureKind: kind}
	}

	if integrityErr != nil {
		handle.Discard()
		e.recordFileFailed(syncerr.KindIntegrity)
		return FileResult{RelativePath: relPath, Outcome: OutcomeFailed, FailureKind: syncerr.KindIntegrity}
	}

	ok, verr := handle.VerifyRoot()
	if e.Metrics != nil {
		e.Metrics.RecordMerkleVerification(verr == nil && ok)
	}
	if verr != nil {
		handle.Discard()
		kind := syncerr.KindOf(verr)
		e.recordFileFailed(kind)
		return FileResult{RelativePath: relPath, Outcome: OutcomeFailed, FailureKind: kind}
	}
	if !ok {
		e.Logger.IntegrityFailure(relPath, "final root mismatch")
		handle.Discard()
		e.recordFileFailed(syncerr.KindIntegrity)
		return FileResult{RelativePath: relPath, Outcome: OutcomeFailed, FailureKind: syncerr.KindIntegrity}
	}

	start := time.Now()
	if err := handle.Finalize(remoteManifest.ModeBits); err != nil {
		kind := syncerr.KindOf(err)
		e.recordFileFailed(kind)
		return FileResult{RelativePath: relPath, Outcome: OutcomeFailed, FailureKind: kind}
	}
	e.Cache.Invalidate(absPath)
	e.Logger.FileFinalized(relPath, int64(remoteManifest.Size), time.Since(start))
	if e.Metrics != nil {
		e.Metrics.RecordFileFinalized()
	}

	return FileResult{RelativePath: relPath, Outcome: OutcomeOK, BytesApplied: int64(remoteManifest.Size)}
}

// recordFileFailed records a failed-file outcome in Metrics, when set.
func (e *Engine) recordFileFailed(kind syncerr.Kind) {
	if e.Metrics != nil {
		e.Metrics.RecordFileFailed(string(kind))
	}
}

// seedUnchangedChunks copies chunk bytes that are unchanged between local
// and remote directly into staging, so finalize need not depend on bytes
// that were never requested over the wire.
func (e *Engine) seedUnchangedChunks(handle *staging.Handle, local *chunker.FileManifest, remote *chunker.FileManifest, plan diffplan.Plan) error {
	if local == nil {
		return nil
	}
	needFetch := make(map[uint32]bool, len(plan.Indices))
	for _, i := range plan.Indices {
		needFetch[i] = true
	}

	localAbs := filepath.Join(e.RootDir, filepath.FromSlash(local.RelativePath))
	for i := 0; i < remote.ChunkCount(); i++ {
		idx := uint32(i)
		if needFetch[idx] || handle.Record().HasChunk(idx) {
			continue
		}
		data, err := chunker.ReadChunk(localAbs, i, int(remote.ChunkSize))
		if err != nil {
			return err
		}
		if err := handle.WriteChunk(idx, data); err != nil {
			return err
		}
	}
	return nil
}

func indicesNeeded(handle *staging.Handle, planIndices []uint32) []uint32 {
	out := make([]uint32, 0, len(planIndices))
	for _, idx := range planIndices {
		if !handle.Record().HasChunk(idx) {
			out = append(out, idx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
