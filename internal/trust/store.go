// Package trust implements the TOFU (trust-on-first-use) fingerprint
// store (spec §6 trust-store collaborator, §9 "TOFU layering"). Trust
// verification is kept as one function of (peer endpoint, presented
// fingerprint, store, accept-first flag), independent of the transport
// adapter; its only side effect is pinning on first contact.
package trust

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/leafsync/leafsync/internal/syncerr"
)

// Store persists pinned peer fingerprints keyed by peer endpoint
// (host:port).
type Store struct {
	mu   sync.Mutex
	path string
	pins map[string]string
}

// Open loads (or creates) the trust store at path.
func Open(path string) (*Store, error) {
	s := &Store{path: path, pins: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read trust store: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.pins); err != nil {
			return nil, fmt.Errorf("parse trust store: %w", err)
		}
	}
	return s, nil
}

// Lookup returns the pinned fingerprint for peerEndpoint, if any.
func (s *Store) Lookup(peerEndpoint string) (fingerprint string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.pins[peerEndpoint]
	return fp, ok
}

// Pin records fingerprint as trusted for peerEndpoint and persists it.
func (s *Store) Pin(peerEndpoint, fingerprint string) error {
	s.mu.Lock()
	s.pins[peerEndpoint] = fingerprint
	snapshot := make(map[string]string, len(s.pins))
	for k, v := range s.pins {
		snapshot[k] = v
	}
	s.mu.Unlock()
	return s.persist(snapshot)
}

// Remove deletes any pin for peerEndpoint.
func (s *Store) Remove(peerEndpoint string) error {
	s.mu.Lock()
	delete(s.pins, peerEndpoint)
	snapshot := make(map[string]string, len(s.pins))
	for k, v := range s.pins {
		snapshot[k] = v
	}
	s.mu.Unlock()
	return s.persist(snapshot)
}

// List returns a copy of all pinned endpoints and fingerprints.
func (s *Store) List() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.pins))
	for k, v := range s.pins {
		out[k] = v
	}
	return out
}

func (s *Store) persist(pins map[string]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create trust store directory: %w", err)
	}
	data, err := json.MarshalIndent(pins, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trust store: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write trust store: %w", err)
	}
	return nil
}

// Verify is the TOFU decision function: given the peer endpoint, its
// presented fingerprint, the trust store, and whether --accept-first was
// set, decide whether the connection should proceed. When no pin exists and
// acceptFirst is set, it pins the presented fingerprint in store, which
// writes the store to disk.
func Verify(store *Store, peerEndpoint, presentedFingerprint string, acceptFirst bool) error {
	pinned, ok := store.Lookup(peerEndpoint)
	if !ok {
		if !acceptFirst {
			return syncerr.New(syncerr.KindTrust, "verify", fmt.Errorf("no pinned fingerprint for %s and --accept-first not set", peerEndpoint))
		}
		if err := store.Pin(peerEndpoint, presentedFingerprint); err != nil {
			return syncerr.New(syncerr.KindTrust, "verify", err)
		}
		return nil
	}
	if pinned != presentedFingerprint {
		return syncerr.New(syncerr.KindTrust, "verify", fmt.Errorf("fingerprint mismatch for %s: pinned %s, presented %s", peerEndpoint, pinned, presentedFingerprint))
	}
	return nil
}
