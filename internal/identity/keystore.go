package identity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

const (
	argon2Time      = 3
	argon2Memory    = 65536
	argon2Threads   = 4
	argon2KeyLen    = 32
	saltSize        = 32
	keystoreVersion = 1
)

// ErrInvalidPassphrase is returned when the passphrase fails to decrypt the
// keystore.
var ErrInvalidPassphrase = errors.New("invalid passphrase or corrupted keystore")

// entry is the on-disk encrypted keystore format.
type entry struct {
	Version       int    `json:"version"`
	KDF           string `json:"kdf"`
	Argon2Time    int    `json:"argon2_time"`
	Argon2Memory  int    `json:"argon2_memory"`
	Argon2Threads int    `json:"argon2_threads"`
	Salt          []byte `json:"salt"`
	Nonce         []byte `json:"nonce"`
	Ciphertext    []byte `json:"ciphertext"`
}

// SaveKey encrypts and saves an Ed25519 private key to disk. If passphrase
// is empty, the key is stored unencrypted under a ".insecure" suffix
// (development use only).
func SaveKey(privateKey []byte, keystorePath, passphrase string) error {
	if len(privateKey) != 64 {
		return errors.New("ed25519 private key must be 64 bytes")
	}

	dir := filepath.Dir(keystorePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create keystore directory: %w", err)
	}

	var data []byte
	if passphrase == "" {
		data = privateKey
		keystorePath += ".insecure"
	} else {
		e, err := encryptKey(privateKey, passphrase)
		if err != nil {
			return fmt.Errorf("encrypt key: %w", err)
		}
		data, err = json.MarshalIndent(e, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal keystore entry: %w", err)
		}
	}

	if err := os.WriteFile(keystorePath, data, 0600); err != nil {
		return fmt.Errorf("write keystore file: %w", err)
	}
	return nil
}

// LoadKey loads and decrypts an Ed25519 private key from disk.
func LoadKey(keystorePath, passphrase string) ([]byte, error) {
	insecurePath := keystorePath + ".insecure"
	if _, err := os.Stat(insecurePath); err == nil {
		data, err := os.ReadFile(insecurePath)
		if err != nil {
			return nil, fmt.Errorf("read keystore file: %w", err)
		}
		if len(data) != 64 {
			return nil, errors.New("invalid unencrypted keystore: expected 64 bytes")
		}
		return data, nil
	}

	data, err := os.ReadFile(keystorePath)
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("unmarshal keystore entry: %w", err)
	}

	return decryptKey(&e, passphrase)
}

func encryptKey(privateKey []byte, passphrase string) (*entry, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	derivedKey := argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext, err := seal(derivedKey, nonce, nil, privateKey)
	if err != nil {
		return nil, err
	}

	return &entry{
		Version:       keystoreVersion,
		KDF:           "argon2id",
		Argon2Time:    argon2Time,
		Argon2Memory:  argon2Memory,
		Argon2Threads: argon2Threads,
		Salt:          salt,
		Nonce:         nonce,
		Ciphertext:    ciphertext,
	}, nil
}

func decryptKey(e *entry, passphrase string) ([]byte, error) {
	if e.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported keystore version: %d", e.Version)
	}
	if e.KDF != "argon2id" {
		return nil, fmt.Errorf("unsupported KDF: %s", e.KDF)
	}

	derivedKey := argon2.IDKey([]byte(passphrase), e.Salt, uint32(e.Argon2Time), uint32(e.Argon2Memory), uint8(e.Argon2Threads), argon2KeyLen)

	plaintext, err := open(derivedKey, e.Nonce, nil, e.Ciphertext)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	if len(plaintext) != 64 {
		return nil, errors.New("decrypted key has invalid size")
	}
	return plaintext, nil
}

func seal(key, nonce, aad, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

func open(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	return plaintext, nil
}
