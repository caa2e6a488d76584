package staging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leafsync/leafsync/internal/chunker"
)

func TestOpenWriteFinalize(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dest.bin")

	chunkSize := 8
	chunkA := []byte("AAAAAAAA")
	chunkB := []byte("BB")
	hashes := []chunker.Hash{chunker.HashBytes(chunkA), chunker.HashBytes(chunkB)}
	root := chunker.MerkleRoot(hashes)
	size := uint64(len(chunkA) + len(chunkB))

	h, err := Open(dest, root, size, uint32(chunkSize))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := h.WriteChunk(0, chunkA); err != nil {
		t.Fatalf("WriteChunk(0): %v", err)
	}
	if err := h.WriteChunk(1, chunkB); err != nil {
		t.Fatalf("WriteChunk(1): %v", err)
	}

	ok, err := h.VerifyRoot()
	if err != nil {
		t.Fatalf("VerifyRoot: %v", err)
	}
	if !ok {
		t.Fatalf("VerifyRoot returned false, want true")
	}

	if err := h.Finalize(0o644); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read finalized file: %v", err)
	}
	want := append(append([]byte{}, chunkA...), chunkB...)
	if string(got) != string(want) {
		t.Fatalf("finalized content = %q, want %q", got, want)
	}

	if _, err := os.Stat(filepath.Join(dir, StagingDirName, "dest.bin.rec")); !os.IsNotExist(err) {
		t.Fatalf("expected .rec to be removed after finalize, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, StagingDirName, "dest.bin.lock")); !os.IsNotExist(err) {
		t.Fatalf("expected .lock to be removed after finalize, stat err = %v", err)
	}
}

func TestOpenConcurrentIsBusy(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dest.bin")

	root := chunker.HashBytes(nil)
	h1, err := Open(dest, root, 0, 8)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	defer h1.Discard()

	if _, err := Open(dest, root, 0, 8); err == nil {
		t.Fatalf("expected second Open to fail with Busy")
	}
}

func TestResumePreservesBitmap(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dest.bin")

	chunkSize := 4
	chunkA := []byte("AAAA")
	chunkB := []byte("BBBB")
	hashes := []chunker.Hash{chunker.HashBytes(chunkA), chunker.HashBytes(chunkB)}
	root := chunker.MerkleRoot(hashes)
	size := uint64(8)

	h1, err := Open(dest, root, size, uint32(chunkSize))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := h1.WriteChunk(0, chunkA); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}
	if err := h1.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	h1.releaseLock()

	h2, err := Open(dest, root, size, uint32(chunkSize))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer h2.Discard()

	if !h2.Record().HasChunk(0) {
		t.Fatalf("expected chunk 0 to already be marked present after resume")
	}
	if h2.Record().HasChunk(1) {
		t.Fatalf("expected chunk 1 to still be missing after resume")
	}
}

func TestDiscardRemovesArtifacts(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "dest.bin")

	root := chunker.HashBytes(nil)
	h, err := Open(dest, root, 0, 8)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := h.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, StagingDirName, "dest.bin.part")); !os.IsNotExist(err) {
		t.Fatalf("expected .part removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, StagingDirName, "dest.bin.lock")); !os.IsNotExist(err) {
		t.Fatalf("expected .lock removed, stat err = %v", err)
	}
}

func TestTrashPath(t *testing.T) {
	dir := t.TempDir()
	rel := filepath.Join("sub", "old.txt")
	src := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(src), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(src, []byte("gone"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := TrashPath(dir, filepath.ToSlash(rel), "20260731T000000Z"); err != nil {
		t.Fatalf("TrashPath: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source removed, stat err = %v", err)
	}
	trashed := filepath.Join(dir, TrashDirName, "20260731T000000Z", rel)
	if _, err := os.Stat(trashed); err != nil {
		t.Fatalf("expected trashed file at %s: %v", trashed, err)
	}
}
