// Package keystore resolves the local store's encryption key. A random
// per-device secret is generated once and persisted with owner-only
// permissions; the cipher key is derived from it, so the file on disk is
// never the raw AES key.
package keystore

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	secretLen  = 32
	saltLen    = 16
	iterations = 100_000
)

// KeySize is the length of the derived cipher key in bytes.
const KeySize = 32

// Load returns the derived 32-byte cipher key, generating and persisting
// a fresh secret if the file does not exist yet.
func Load(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return generate(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return parse(string(raw))
}

func generate(path string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	secret := make([]byte, secretLen)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	encoded := base64.RawStdEncoding.EncodeToString(salt) + "$" +
		base64.RawStdEncoding.EncodeToString(secret)

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(encoded+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	return derive(secret, salt), nil
}

func parse(raw string) ([]byte, error) {
	parts := strings.Split(strings.TrimSpace(raw), "$")
	if len(parts) != 2 {
		return nil, fmt.Errorf("malformed key file")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	secret, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode secret: %w", err)
	}
	if len(salt) != saltLen || len(secret) != secretLen {
		return nil, fmt.Errorf("malformed key file")
	}
	return derive(secret, salt), nil
}

func derive(secret, salt []byte) []byte {
	return pbkdf2.Key(secret, salt, iterations, KeySize, sha256.New)
}
