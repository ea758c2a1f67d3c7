// Package pebble implements the kvstore.Store interface on top of Pebble.
package pebble

import (
	"context"
	"errors"

	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Pebble is a Pebble backed kvstore.Store implementation.
type Pebble struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
}

// Open opens or creates the database found in the specified directory.
func Open(dir string) (*Pebble, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}

	return &Pebble{db: db, writeOpts: pebble.Sync}, nil
}

// OpenInMemory constructs a database backed by an in memory file system.
func OpenInMemory() (*Pebble, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, err
	}

	return &Pebble{db: db, writeOpts: pebble.NoSync}, nil
}

// Get retrieves a copy of the value for the given key.
func (p *Pebble) Get(ctx context.Context, key []byte) ([]byte, error) {
	data, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, kvstore.ErrNotFound
		}
		return nil, kvstore.NewIOError("get", key, err)
	}
	defer closer.Close()

	// The slice returned by pebble is only valid until the closer is called.
	value := make([]byte, len(data))
	copy(value, data)

	return value, nil
}

// Save sets the value for the given key.
func (p *Pebble) Save(ctx context.Context, key []byte, value []byte) error {
	if err := p.db.Set(key, value, p.writeOpts); err != nil {
		return kvstore.NewIOError("save", key, err)
	}

	return nil
}

// Delete removes the given key. Pebble does not report missing keys.
func (p *Pebble) Delete(ctx context.Context, key []byte) error {
	if err := p.db.Delete(key, p.writeOpts); err != nil {
		return kvstore.NewIOError("delete", key, err)
	}

	return nil
}

// Close releases the database.
func (p *Pebble) Close() error {
	return p.db.Close()
}
