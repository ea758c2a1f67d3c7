// Package kvstore defines the byte oriented key/value store that the trie,
// the block store and the ledger tables are persisted through.
package kvstore

//go:generate mockgen -source kvstore.go -destination kvstore_mocks.go -package kvstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("key not found")

// Store interface represents the behavior required to be implemented by any
// package providing persistent key/value storage. Keys and values are raw
// bytes and the store imposes no schema. Operations against the same key
// must be serialized by the caller.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Save(ctx context.Context, key []byte, value []byte) error
	Delete(ctx context.Context, key []byte) error
	Close() error
}

// =============================================================================

// IOError reports a failure of the media backing a store.
type IOError struct {
	Op  string
	Key []byte
	Err error
}

// NewIOError wraps a backend failure for the specified operation and key.
func NewIOError(op string, key []byte, err error) error {
	return &IOError{Op: op, Key: key, Err: err}
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("store %s %x: %v", e.Op, e.Key, e.Err)
}

// Unwrap returns the underlying backend error.
func (e *IOError) Unwrap() error {
	return e.Err
}

// IsIOError checks if an error of type IOError exists.
func IsIOError(err error) bool {
	var ioe *IOError
	return errors.As(err, &ioe)
}
