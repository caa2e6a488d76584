// Package identity manages the local peer's long-lived Ed25519 keypair and
// the certificate fingerprint derived from it. There is no app-layer key
// exchange here — the transport collaborator (QUIC+TLS) secures the
// session; this package only gives the peer a stable identity to pin via
// TOFU (spec §6, §9 "TOFU layering").
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
)

// KeyPair is the local peer's long-lived Ed25519 identity.
type KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// Generate creates a new Ed25519 identity keypair.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 keypair: %w", err)
	}
	return &KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// DefaultKeystorePath returns the platform-conventional keystore path.
func DefaultKeystorePath() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "leafsync", "identity.key")
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "leafsync", "identity.key")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".local", "share", "leafsync", "identity.key")
}

// LoadOrCreate loads the identity keypair at keystorePath, generating and
// persisting a new one if none exists.
func LoadOrCreate(keystorePath, passphrase string) (*KeyPair, error) {
	_, plainErr := os.Stat(keystorePath)
	_, insecureErr := os.Stat(keystorePath + ".insecure")
	if plainErr == nil || insecureErr == nil {
		priv, err := LoadKey(keystorePath, passphrase)
		if err != nil {
			return nil, err
		}
		pub := priv[32:]
		return &KeyPair{PublicKey: ed25519.PublicKey(pub), PrivateKey: ed25519.PrivateKey(priv)}, nil
	}

	kp, err := Generate()
	if err != nil {
		return nil, err
	}
	if err := SaveKey(kp.PrivateKey, keystorePath, passphrase); err != nil {
		return nil, err
	}
	return kp, nil
}
