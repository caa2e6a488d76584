package staging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/leafsync/leafsync/internal/chunker"
	"github.com/leafsync/leafsync/internal/syncerr"
)

// StagingDirName is the per-directory hidden staging folder (spec §6).
const StagingDirName = ".leafsync-staging"

// TrashDirName is the mirror-delete safe-delete root (spec §6).
const TrashDirName = ".leafsync_trash"

// PersistEveryChunks and PersistEveryInterval set the spec §4.F cadence:
// "periodically persists the record (at minimum: on every N chunks or
// every T seconds, and always before a graceful session end)".
const (
	PersistEveryChunks   = 16
	PersistEveryInterval = 5 * time.Second
)

// Handle is an open staging artifact for one destination file.
type Handle struct {
	destPath    string
	partPath    string
	recPath     string
	lockPath    string
	lockFile    *os.File
	part        *os.File
	record      *Record
	chunksSince int
	lastPersist time.Time
}

func stagingPaths(destPath string) (dir, part, rec, lock string) {
	dir = filepath.Join(filepath.Dir(destPath), StagingDirName)
	name := filepath.Base(destPath)
	return dir, filepath.Join(dir, name+".part"), filepath.Join(dir, name+".rec"), filepath.Join(dir, name+".lock")
}

// Open creates or reopens the staging artifact for destPath. Any existing
// .rec is validated against the requested file identity; on mismatch the
// staging artifact is discarded and a fresh one begins.
func Open(destPath string, expectedRoot chunker.Hash, expectedSize uint64, chunkSize uint32) (*Handle, error) {
	dir, partPath, recPath, lockPath := stagingPaths(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, syncerr.New(syncerr.KindIo, "open_staging", err)
	}

	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, syncerr.New(syncerr.KindBusy, "open_staging", fmt.Errorf("lockfile held: %s", lockPath))
		}
		return nil, syncerr.New(syncerr.KindIo, "open_staging", err)
	}

	chunkCount := uint32(chunker.ChunkCount(int64(expectedSize), int(chunkSize)))

	var record *Record
	if existing, err := Load(recPath); err == nil && existing.Matches(expectedRoot, expectedSize, chunkSize) {
		record = existing
	} else {
		record = NewRecord(expectedRoot, expectedSize, chunkSize, chunkCount)
		_ = os.Remove(partPath)
	}

	part, err := os.OpenFile(partPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		lockFile.Close()
		os.Remove(lockPath)
		return nil, syncerr.New(syncerr.KindIo, "open_staging", err)
	}

	h := &Handle{
		destPath:    destPath,
		partPath:    partPath,
		recPath:     recPath,
		lockPath:    lockPath,
		lockFile:    lockFile,
		part:        part,
		record:      record,
		lastPersist: time.Now(),
	}

	if err := record.Save(recPath); err != nil {
		h.releaseLock()
		return nil, syncerr.New(syncerr.KindIo, "open_staging", err)
	}

	return h, nil
}

// Record exposes the current bitmap state for resume planning.
func (h *Handle) Record() *Record { return h.record }

// WriteChunk writes bytes at index*chunk_size, sets the bitmap bit, and
// persists the record per the spec §4.F cadence.
func (h *Handle) WriteChunk(index uint32, data []byte) error {
	offset := int64(index) * int64(h.record.ChunkSize)
	if _, err := h.part.WriteAt(data, offset); err != nil {
		return syncerr.New(syncerr.KindIo, "write_chunk", err)
	}
	h.record.SetChunk(index)
	h.chunksSince++

	if h.chunksSince >= PersistEveryChunks || time.Since(h.lastPersist) >= PersistEveryInterval {
		if err := h.persist(); err != nil {
			return err
		}
	}
	return nil
}

// Flush forces a record persist regardless of cadence, used before a
// graceful session end or cancellation (spec §5 "Cancellation").
func (h *Handle) Flush() error { return h.persist() }

func (h *Handle) persist() error {
	if err := h.record.Save(h.recPath); err != nil {
		return syncerr.New(syncerr.KindIo, "persist_record", err)
	}
	h.chunksSince = 0
	h.lastPersist = time.Now()
	return nil
}

// VerifyRoot re-hashes the full staging file and compares its Merkle root
// to the record's expected root (spec §4.E "Verify").
func (h *Handle) VerifyRoot() (bool, error) {
	if _, err := h.part.Seek(0, io.SeekStart); err != nil {
		return false, syncerr.New(syncerr.KindIo, "verify_root", err)
	}
	hashes := make([]chunker.Hash, 0, h.record.ChunkCount)
	buf := make([]byte, h.record.ChunkSize)
	for i := uint32(0); i < h.record.ChunkCount; i++ {
		n, err := io.ReadFull(h.part, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return false, syncerr.New(syncerr.KindIo, "verify_root", err)
		}
		hashes = append(hashes, chunker.HashBytes(buf[:n]))
	}
	root := chunker.MerkleRoot(hashes)
	return root == h.record.ExpectedRoot, nil
}

// Finalize truncates staging to expected_size, fsyncs it, atomically
// renames it over the destination (creating parent directories as
// needed), applies mode bits, and deletes the StagingRecord.
func (h *Handle) Finalize(modeBits uint32) error {
	if !h.record.Complete() {
		return syncerr.New(syncerr.KindIntegrity, "finalize", fmt.Errorf("bitmap incomplete"))
	}

	if err := h.part.Truncate(int64(h.record.ExpectedSize)); err != nil {
		return syncerr.New(syncerr.KindIo, "finalize", err)
	}
	if err := h.part.Sync(); err != nil {
		return syncerr.New(syncerr.KindIo, "finalize", err)
	}
	if err := h.part.Close(); err != nil {
		return syncerr.New(syncerr.KindIo, "finalize", err)
	}

	if err := os.MkdirAll(filepath.Dir(h.destPath), 0755); err != nil {
		return syncerr.New(syncerr.KindIo, "finalize", err)
	}

	if err := renameAcrossFilesystems(h.partPath, h.destPath); err != nil {
		return syncerr.New(syncerr.KindIo, "finalize", err)
	}

	if modeBits != 0 {
		_ = os.Chmod(h.destPath, os.FileMode(modeBits))
	}

	os.Remove(h.recPath)
	h.releaseLock()
	return nil
}

// Discard deletes the staging file and record without touching the
// destination (spec invariant: "No destination file is mutated except by
// atomic rename from a staging artifact").
func (h *Handle) Discard() error {
	h.part.Close()
	os.Remove(h.partPath)
	os.Remove(h.recPath)
	h.releaseLock()
	return nil
}

func (h *Handle) releaseLock() {
	if h.lockFile != nil {
		h.lockFile.Close()
		os.Remove(h.lockPath)
		h.lockFile = nil
	}
}

// renameAcrossFilesystems performs an atomic rename when src and dst share
// a filesystem, falling back to copy-then-rename (landing the copy on the
// destination filesystem first) when they do not (spec §4.F).
func renameAcrossFilesystems(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDeviceError(err) {
		return err
	}

	tmp := dst + ".leafsync-tmp"
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	os.Remove(src)
	return nil
}

// TrashPath moves a locally-extra file into the mirror-delete trash root,
// preserving its relative path under a timestamped subdirectory (spec §4.C,
// §6). sessionStartISO8601 must be the same value for every file trashed
// within one session.
func TrashPath(rootDir, relativePath, sessionStartISO8601 string) error {
	src := filepath.Join(rootDir, filepath.FromSlash(relativePath))
	dst := filepath.Join(rootDir, TrashDirName, sessionStartISO8601, filepath.FromSlash(relativePath))

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return syncerr.New(syncerr.KindIo, "trash", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return syncerr.New(syncerr.KindIo, "trash", err)
	}
	return nil
}
