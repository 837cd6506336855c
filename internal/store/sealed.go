package store

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
)

// Sealed wraps a Backend and encrypts every value with NaCl secretbox.
//
// Values that fail to open are reported as ErrCorrupt so the store treats
// them like any other unreadable checkpoint.
type Sealed struct {
	inner Backend
	key   [keySize]byte
}

var _ Backend = (*Sealed)(nil)

// NewSealed returns a Sealed backend using a 32-byte key.
func NewSealed(inner Backend, key []byte) (*Sealed, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("invalid key length: %d (expected %d)", len(key), keySize)
	}
	s := &Sealed{inner: inner}
	copy(s.key[:], key)
	return s, nil
}

// Get implements Backend.
func (s *Sealed) Get(key string) ([]byte, error) {
	sealed, err := s.inner.Get(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%w: sealed value too short", ErrCorrupt)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, fmt.Errorf("%w: authentication failed", ErrCorrupt)
	}
	return plain, nil
}

// Put implements Backend.
func (s *Sealed) Put(key string, value []byte) error {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], value, &nonce, &s.key)
	return s.inner.Put(key, out)
}

// Delete implements Backend.
func (s *Sealed) Delete(key string) error {
	return s.inner.Delete(key)
}

// LoadOrCreateKey loads a base64 key from path, generating and saving a new
// one when the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("failed to decode key: %w", err)
		}
		if len(key) != keySize {
			return nil, fmt.Errorf("invalid key length: %d (expected %d)", len(key), keySize)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString(key)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write key: %w", err)
	}
	return key, nil
}
