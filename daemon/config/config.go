// Package config holds LeafSync daemon configuration: session parameters,
// timeouts, and filesystem locations for keys and trust data.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Config holds the session-level parameters a sync session negotiates and
// the local filesystem locations it depends on.
type Config struct {
	ChunkSize              int64         `json:"chunk_size"`
	MaxConcurrentFiles     int           `json:"max_concurrent_files"`
	HandshakeTimeout       time.Duration `json:"handshake_timeout"`
	IdleTimeout            time.Duration `json:"idle_timeout"`
	BitmapPersistInterval  time.Duration `json:"bitmap_persist_interval"`
	BitmapPersistChunks    int           `json:"bitmap_persist_chunks"`
	KeysDirectory          string        `json:"keys_directory"`
	TrustStorePath         string        `json:"trust_store_path"`
	HistoryPath            string        `json:"history_path"`
	MirrorDeleteEnabled    bool          `json:"mirror_delete_enabled"`
	WatchDebounce          time.Duration `json:"watch_debounce"`
}

// DefaultConfig returns the default configuration (spec §5, §9).
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	base := filepath.Join(homeDir, ".local", "share", "leafsync")

	return &Config{
		ChunkSize:             1048576, // 1 MiB
		MaxConcurrentFiles:    4,
		HandshakeTimeout:      10 * time.Second,
		IdleTimeout:           60 * time.Second,
		BitmapPersistInterval: 5 * time.Second,
		BitmapPersistChunks:   16,
		KeysDirectory:         filepath.Join(base, "keys"),
		TrustStorePath:        filepath.Join(base, "trust.json"),
		HistoryPath:           filepath.Join(base, "history.db"),
		MirrorDeleteEnabled:   false,
		WatchDebounce:         200 * time.Millisecond,
	}
}

// LoadConfig loads configuration from a JSON file at configPath, falling
// back to DefaultConfig when the file does not exist. Fields absent from
// the file keep their default value.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
