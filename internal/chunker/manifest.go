package chunker

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// FileManifest is the ordered chunk-hash list plus size and root for one
// file (spec §3).
type FileManifest struct {
	RelativePath string `json:"relative_path"`
	Size         uint64 `json:"size"`
	ChunkSize    uint32 `json:"chunk_size"`
	ChunkHashes  []Hash `json:"chunk_hashes"`
	Root         Hash   `json:"root"`
	ModeBits     uint32 `json:"mode_bits"`
}

// ChunkCount returns the number of chunk hashes in the manifest.
func (m *FileManifest) ChunkCount() int { return len(m.ChunkHashes) }

// ComputeManifest reads absPath once, streaming chunks and accumulating
// per-chunk hashes, computing the root in a single pass (spec §4.B).
func ComputeManifest(absPath, relativePath string, chunkSize int) (*FileManifest, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}

	var modeBits uint32
	if info.Mode().IsRegular() {
		modeBits = uint32(info.Mode().Perm())
	}

	r, err := NewReader(absPath, chunkSize)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	hashes := make([]Hash, 0, ChunkCount(info.Size(), chunkSize))
	for {
		chunk, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, HashBytes(chunk.Data))
	}

	return &FileManifest{
		RelativePath: relativePath,
		Size:         uint64(info.Size()),
		ChunkSize:    uint32(chunkSize),
		ChunkHashes:  hashes,
		Root:         MerkleRoot(hashes),
		ModeBits:     modeBits,
	}, nil
}

// Verify recomputes the manifest root from the bytes at absPath and
// compares it against m.Root (spec §4.B).
func Verify(m *FileManifest, absPath string) (bool, error) {
	fresh, err := ComputeManifest(absPath, m.RelativePath, int(m.ChunkSize))
	if err != nil {
		return false, err
	}
	return fresh.Root == m.Root, nil
}

// cacheEntry is keyed by (absPath, size, mtime) per spec §4.B cache policy.
type cacheEntry struct {
	size     int64
	mtime    int64
	manifest *FileManifest
}

// Cache memoizes manifests by (abs_path, size, mtime_nanos). A mismatch in
// size or mtime invalidates the entry.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCache creates an empty manifest cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Get returns a cached manifest for absPath if its current size and mtime
// still match, computing and storing it otherwise.
func (c *Cache) Get(absPath, relativePath string, chunkSize int) (*FileManifest, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}
	mtime := info.ModTime().UnixNano()

	c.mu.Lock()
	entry, ok := c.entries[absPath]
	c.mu.Unlock()
	if ok && entry.size == info.Size() && entry.mtime == mtime {
		return entry.manifest, nil
	}

	manifest, err := ComputeManifest(absPath, relativePath, chunkSize)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[absPath] = cacheEntry{size: info.Size(), mtime: mtime, manifest: manifest}
	c.mu.Unlock()

	return manifest, nil
}

// Invalidate drops any cached entry for absPath.
func (c *Cache) Invalidate(absPath string) {
	c.mu.Lock()
	delete(c.entries, absPath)
	c.mu.Unlock()
}
