// Package badger implements the kvstore.Store interface on top of Badger.
package badger

import (
	"context"
	"errors"

	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"github.com/dgraph-io/badger/v2"
)

// Badger is a Badger backed kvstore.Store implementation.
type Badger struct {
	db *badger.DB
}

// Open opens or creates the database found in the specified directory.
func Open(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Badger{db: db}, nil
}

// OpenInMemory constructs a database that keeps everything in memory.
func OpenInMemory() (*Badger, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Badger{db: db}, nil
}

// Get retrieves a copy of the value for the given key.
func (b *Badger) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, kvstore.ErrNotFound
		}
		return nil, kvstore.NewIOError("get", key, err)
	}

	if value == nil {
		value = []byte{}
	}

	return value, nil
}

// Save sets the value for the given key in its own transaction.
func (b *Badger) Save(ctx context.Context, key []byte, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})

	if err != nil {
		return kvstore.NewIOError("save", key, err)
	}

	return nil
}

// Delete removes the given key. Badger does not report missing keys.
func (b *Badger) Delete(ctx context.Context, key []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})

	if err != nil {
		return kvstore.NewIOError("delete", key, err)
	}

	return nil
}

// Close releases the database.
func (b *Badger) Close() error {
	return b.db.Close()
}
