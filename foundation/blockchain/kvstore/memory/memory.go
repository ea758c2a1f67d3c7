// Package memory implements the ability to read and write key/value pairs
// to memory using a map.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
)

// ErrClosed is returned when the store is used after Close.
var ErrClosed = errors.New("memory store closed")

// Memory represents the storage implementation for reading and storing
// key/value pairs in memory using a map. This implements the kvstore.Store
// interface.
type Memory struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// New constructs an Memory value for use.
func New() *Memory {
	return &Memory{
		data: make(map[string][]byte),
	}
}

// Get retrieves a copy of the value stored under key.
func (m *Memory) Get(ctx context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, kvstore.NewIOError("get", key, ErrClosed)
	}

	value, exists := m.data[string(key)]
	if !exists {
		return nil, kvstore.ErrNotFound
	}

	return clone(value), nil
}

// Save stores a copy of the value under key.
func (m *Memory) Save(ctx context.Context, key []byte, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return kvstore.NewIOError("save", key, ErrClosed)
	}

	m.data[string(key)] = clone(value)
	return nil
}

// Delete removes the key. Removing a key that does not exist is not an error.
func (m *Memory) Delete(ctx context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return kvstore.NewIOError("delete", key, ErrClosed)
	}

	delete(m.data, string(key))
	return nil
}

// Close marks the store closed. Any further use fails.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// Len returns the number of keys held in the store.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}

// Reset will clear out all the keys in the store.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data = make(map[string][]byte)
}

// =============================================================================

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}

	cpy := make([]byte, len(b))
	copy(cpy, b)
	return cpy
}
