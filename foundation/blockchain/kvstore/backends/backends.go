// Package backends selects and opens a kvstore.Store implementation by name.
package backends

import (
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/badger"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/cache"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/disk"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/leveldb"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/memory"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/pebble"
)

// Set of backends that can be opened.
const (
	Memory  = "memory"
	Disk    = "disk"
	LevelDB = "leveldb"
	Badger  = "badger"
	Pebble  = "pebble"
)

// Config represents the information needed to open a backend.
type Config struct {
	Kind      string
	Path      string
	CacheSize int
}

// Open constructs the configured backend. When a cache size is provided the
// backend is wrapped with an LRU read cache.
func Open(cfg Config) (kvstore.Store, error) {
	var store kvstore.Store

	switch cfg.Kind {
	case Memory:
		store = memory.New()

	case Disk:
		d, err := disk.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening disk store: %w", err)
		}
		store = d

	case LevelDB:
		l, err := leveldb.Open(cfg.Path, true)
		if err != nil {
			return nil, fmt.Errorf("opening leveldb store: %w", err)
		}
		store = l

	case Badger:
		b, err := badger.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening badger store: %w", err)
		}
		store = b

	case Pebble:
		p, err := pebble.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("opening pebble store: %w", err)
		}
		store = p

	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}

	if cfg.CacheSize <= 0 {
		return store, nil
	}

	c, err := cache.New(store, cfg.CacheSize)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("constructing cache: %w", err)
	}

	return c, nil
}
