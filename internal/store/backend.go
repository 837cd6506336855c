package store

import "errors"

var (
	// ErrNotFound is returned by a Backend when the key has no value.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrCorrupt is returned when a stored value cannot be decoded.
	ErrCorrupt = errors.New("checkpoint corrupt")
)

// Backend is a durable key -> bytes repository.
//
// Implementations must make Put an unconditional overwrite and Delete of a
// missing key a no-op.
type Backend interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}
