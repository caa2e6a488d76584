// Package summary builds directory summaries and drives the manifest
// engine's directory walk (spec §4.B).
package summary

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/leafsync/leafsync/internal/chunker"
	"github.com/leafsync/leafsync/internal/ignore"
)

// Entry is one (relative_path, size, root) triple.
type Entry struct {
	RelativePath string
	Size         uint64
	Root         chunker.Hash
}

// DirectorySummary is the ordered, path-sorted set of entries for a
// directory tree.
type DirectorySummary struct {
	Entries []Entry
}

// Build walks rootDir depth-first, emitting entries for regular files only.
// Symlinks are not followed. Paths excluded by ignoreList are omitted.
// Entries are sorted lexicographically by path (spec §3).
func Build(rootDir string, chunkSize int, ignoreList *ignore.List, cache *chunker.Cache) (*DirectorySummary, error) {
	if ignoreList == nil {
		ignoreList = ignore.Empty()
	}
	if cache == nil {
		cache = chunker.NewCache()
	}

	var entries []Entry

	err := filepath.Walk(rootDir, func(absPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if absPath == rootDir {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if info.IsDir() {
			if isReservedDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(rootDir, absPath)
		if err != nil {
			return err
		}
		relSlash, err := Normalize(filepath.ToSlash(rel))
		if err != nil {
			return nil // skip unrepresentable paths rather than failing the whole walk
		}
		if ignoreList.Match(relSlash) {
			return nil
		}

		manifest, err := cache.Get(absPath, relSlash, chunkSize)
		if err != nil {
			return fmt.Errorf("manifest for %s: %w", relSlash, err)
		}

		entries = append(entries, Entry{
			RelativePath: relSlash,
			Size:         manifest.Size,
			Root:         manifest.Root,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RelativePath < entries[j].RelativePath })

	return &DirectorySummary{Entries: entries}, nil
}

// BuildScoped restricts the summary to a single file, rejecting paths that
// escape rootDir (spec §9 "Single-file mode").
func BuildScoped(rootDir, relativePath string, chunkSize int, cache *chunker.Cache) (*DirectorySummary, error) {
	relSlash, err := Normalize(relativePath)
	if err != nil {
		return nil, fmt.Errorf("scope path rejected: %w", err)
	}
	absPath := filepath.Join(rootDir, filepath.FromSlash(relSlash))

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &DirectorySummary{}, nil
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return &DirectorySummary{}, nil
	}

	if cache == nil {
		cache = chunker.NewCache()
	}
	manifest, err := cache.Get(absPath, relSlash, chunkSize)
	if err != nil {
		return nil, err
	}

	return &DirectorySummary{Entries: []Entry{{
		RelativePath: relSlash,
		Size:         manifest.Size,
		Root:         manifest.Root,
	}}}, nil
}

func isReservedDir(name string) bool {
	return name == ".leafsync-staging" || name == ".leafsync_trash"
}
