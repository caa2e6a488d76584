// Package notifier implements the "change notifier" collaborator (spec §6):
// a debounced stream of relative-path change events driven by fsnotify.
package notifier

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the minimum debounce window the spec requires (≥200ms).
const DefaultDebounce = 200 * time.Millisecond

// Reserved directory names never watched or reported as changes.
const (
	StagingReservedDir = ".leafsync-staging"
	TrashReservedDir   = ".leafsync_trash"
)

// Event announces that the file at RelativePath changed (created, written,
// renamed, or removed) and settled for at least the debounce window.
type Event struct {
	RelativePath string
}

// Notifier watches a directory tree and emits debounced Changed events.
type Notifier struct {
	root     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	events   chan Event

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New starts watching rootDir recursively, skipping the reserved
// .leafsync-staging and .leafsync_trash directories.
func New(rootDir string, debounce time.Duration) (*Notifier, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	n := &Notifier{
		root:     rootDir,
		debounce: debounce,
		watcher:  w,
		events:   make(chan Event, 64),
		pending:  make(map[string]*time.Timer),
	}

	if err := n.addTree(rootDir); err != nil {
		w.Close()
		return nil, err
	}

	go n.run()
	return n, nil
}

func (n *Notifier) addTree(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		name := info.Name()
		if name == StagingReservedDir || name == TrashReservedDir {
			return filepath.SkipDir
		}
		return n.watcher.Add(path)
	})
}

func statIsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Events returns the channel of debounced change events. Closed when the
// notifier is closed.
func (n *Notifier) Events() <-chan Event { return n.events }

func (n *Notifier) run() {
	for {
		select {
		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			n.handleRaw(ev)
		case _, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (n *Notifier) handleRaw(ev fsnotify.Event) {
	rel, err := filepath.Rel(n.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, ".leafsync-staging/") || strings.HasPrefix(rel, ".leafsync_trash/") {
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := statIsDir(ev.Name); statErr == nil && info {
			n.watcher.Add(ev.Name)
		}
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if t, ok := n.pending[rel]; ok {
		t.Stop()
	}
	n.pending[rel] = time.AfterFunc(n.debounce, func() {
		n.mu.Lock()
		delete(n.pending, rel)
		n.mu.Unlock()
		select {
		case n.events <- Event{RelativePath: rel}:
		default:
		}
	})
}

// Close stops watching and releases the underlying OS resources.
func (n *Notifier) Close() error {
	n.mu.Lock()
	for _, t := range n.pending {
		t.Stop()
	}
	n.mu.Unlock()
	err := n.watcher.Close()
	close(n.events)
	return err
}
