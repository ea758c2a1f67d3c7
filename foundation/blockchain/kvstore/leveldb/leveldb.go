// Package leveldb implements the kvstore.Store interface on top of LevelDB.
package leveldb

import (
	"context"
	"errors"

	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDB is a LevelDB backed kvstore.Store implementation.
type LevelDB struct {
	db   *leveldb.DB
	sync bool
}

// Open opens or creates the database found at the specified path. When sync
// is true every write is flushed to disk before returning.
func Open(path string, sync bool) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}

	return &LevelDB{db: db, sync: sync}, nil
}

// OpenInMemory constructs a database that keeps everything in memory.
func OpenInMemory() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}

	return &LevelDB{db: db}, nil
}

// Get retrieves the value for the given key.
func (l *LevelDB) Get(ctx context.Context, key []byte) ([]byte, error) {
	value, err := l.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, kvstore.ErrNotFound
		}
		return nil, kvstore.NewIOError("get", key, err)
	}

	return value, nil
}

// Save sets the value for the given key, overwriting any previous value.
func (l *LevelDB) Save(ctx context.Context, key []byte, value []byte) error {
	if err := l.db.Put(key, value, l.writeOptions()); err != nil {
		return kvstore.NewIOError("save", key, err)
	}

	return nil
}

// Delete removes the given key. LevelDB does not report missing keys.
func (l *LevelDB) Delete(ctx context.Context, key []byte) error {
	if err := l.db.Delete(key, l.writeOptions()); err != nil {
		return kvstore.NewIOError("delete", key, err)
	}

	return nil
}

// Close releases the database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

func (l *LevelDB) writeOptions() *opt.WriteOptions {
	return &opt.WriteOptions{Sync: l.sync}
}
