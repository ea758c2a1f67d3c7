// Package disk implements the ability to read and write key/value pairs
// to disk, one file per key.
package disk

import (
	"context"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
)

// Disk represents the storage implementation for reading and storing
// key/value pairs in their own separate files on disk. This implements the
// kvstore.Store interface.
type Disk struct {
	dbPath string
}

// New constructs a Disk value for use.
func New(dbPath string) (*Disk, error) {
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, err
	}

	return &Disk{dbPath: dbPath}, nil
}

// Close in this implementation has nothing to do since a new file is
// written to disk for each save and then immediately closed.
func (d *Disk) Close() error {
	return nil
}

// Get reads the file for the specified key.
func (d *Disk) Get(ctx context.Context, key []byte) ([]byte, error) {
	data, err := os.ReadFile(d.getPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, kvstore.ErrNotFound
		}
		return nil, kvstore.NewIOError("get", key, err)
	}

	return data, nil
}

// Save writes the value into the file for the specified key. The value is
// written to a temporary file first and renamed so a reader never sees a
// partially written value.
func (d *Disk) Save(ctx context.Context, key []byte, value []byte) error {
	path := d.getPath(key)

	// Create a temp file next to the final location.
	f, err := os.CreateTemp(d.dbPath, ".save-*")
	if err != nil {
		return kvstore.NewIOError("save", key, err)
	}
	tmp := f.Name()

	// Write the value to the temp file.
	if _, err := f.Write(value); err != nil {
		f.Close()
		os.Remove(tmp)
		return kvstore.NewIOError("save", key, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return kvstore.NewIOError("save", key, err)
	}

	// Move the temp file into place.
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return kvstore.NewIOError("save", key, err)
	}

	return nil
}

// Delete removes the file for the specified key.
func (d *Disk) Delete(ctx context.Context, key []byte) error {
	if err := os.Remove(d.getPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return kvstore.NewIOError("delete", key, err)
	}

	return nil
}

// getPath forms the path to the file for the specified key. Keys are hex
// encoded so any byte sequence maps to a valid file name.
func (d *Disk) getPath(key []byte) string {
	return filepath.Join(d.dbPath, "k"+hex.EncodeToString(key))
}
