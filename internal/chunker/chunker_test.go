package chunker

import (
	"os"
	"path/filepath"
	"testing"
)

func TestComputeManifest_SmallFile(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "small.bin")

	testData := []byte("Hello, LeafSync!")
	if err := os.WriteFile(testFile, testData, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	manifest, err := ComputeManifest(testFile, "small.bin", DefaultChunkSize)
	if err != nil {
		t.Fatalf("ComputeManifest failed: %v", err)
	}

	if manifest.ChunkCount() != 1 {
		t.Errorf("expected 1 chunk, got %d", manifest.ChunkCount())
	}
	if manifest.Size != uint64(len(testData)) {
		t.Errorf("expected size %d, got %d", len(testData), manifest.Size)
	}
	if manifest.Root.IsZero() {
		t.Error("merkle root should not be zero")
	}
}

func TestComputeManifest_MultipleChunks(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "multi.bin")

	chunkSize := 1024 * 1024
	testData := make([]byte, chunkSize*2+chunkSize/2)
	for i := range testData {
		testData[i] = byte(i % 256)
	}
	if err := os.WriteFile(testFile, testData, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	manifest, err := ComputeManifest(testFile, "multi.bin", chunkSize)
	if err != nil {
		t.Fatalf("ComputeManifest failed: %v", err)
	}

	if manifest.ChunkCount() != 3 {
		t.Fatalf("expected 3 chunks, got %d", manifest.ChunkCount())
	}
}

func TestComputeManifest_Deterministic(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "deterministic.bin")

	testData := []byte("deterministic test data")
	if err := os.WriteFile(testFile, testData, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	m1, err := ComputeManifest(testFile, "deterministic.bin", DefaultChunkSize)
	if err != nil {
		t.Fatalf("first ComputeManifest failed: %v", err)
	}
	m2, err := ComputeManifest(testFile, "deterministic.bin", DefaultChunkSize)
	if err != nil {
		t.Fatalf("second ComputeManifest failed: %v", err)
	}

	if m1.ChunkHashes[0] != m2.ChunkHashes[0] {
		t.Error("chunk hashes should be identical for same file")
	}
	if m1.Root != m2.Root {
		t.Error("merkle roots should be identical for same file")
	}
}

func TestComputeManifest_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "empty.bin")

	if err := os.WriteFile(testFile, []byte{}, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	manifest, err := ComputeManifest(testFile, "empty.bin", DefaultChunkSize)
	if err != nil {
		t.Fatalf("ComputeManifest failed: %v", err)
	}

	if manifest.Size != 0 {
		t.Errorf("expected size 0, got %d", manifest.Size)
	}
	if manifest.ChunkCount() != 0 {
		t.Errorf("expected 0 chunks for empty file, got %d", manifest.ChunkCount())
	}
	if manifest.Root != HashBytes(nil) {
		t.Error("empty file root should equal H(\"\")")
	}
}

func TestComputeManifest_FileNotFound(t *testing.T) {
	_, err := ComputeManifest("/nonexistent/file.bin", "file.bin", DefaultChunkSize)
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestReadChunk(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "chunks.bin")

	chunkSize := 1024
	testData := make([]byte, chunkSize*3)
	for i := range testData {
		testData[i] = byte(i % 256)
	}
	if err := os.WriteFile(testFile, testData, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	chunk0, err := ReadChunk(testFile, 0, chunkSize)
	if err != nil {
		t.Fatalf("ReadChunk(0) failed: %v", err)
	}
	if len(chunk0) != chunkSize {
		t.Errorf("expected chunk size %d, got %d", chunkSize, len(chunk0))
	}

	chunk1, err := ReadChunk(testFile, 1, chunkSize)
	if err != nil {
		t.Fatalf("ReadChunk(1) failed: %v", err)
	}
	for i := 0; i < chunkSize; i++ {
		if chunk0[i] != testData[i] {
			t.Fatalf("chunk 0 byte %d mismatch", i)
		}
		if chunk1[i] != testData[chunkSize+i] {
			t.Fatalf("chunk 1 byte %d mismatch", i)
		}
	}
}
