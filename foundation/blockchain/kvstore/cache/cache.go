// Package cache provides a read-through LRU cache in front of any
// kvstore.Store. Content addressed trie nodes are immutable, which makes them
// a good fit for caching.
package cache

import (
	"context"
	"sync"

	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache wraps a store with a fixed size LRU cache of values.
type Cache struct {
	store kvstore.Store
	cache *lru.Cache[string, []byte]

	mu     sync.Mutex
	hits   uint64
	misses uint64
}

// New constructs a cache holding at most size values in front of store.
func New(store kvstore.Store, size int) (*Cache, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}

	return &Cache{store: store, cache: c}, nil
}

// Get returns the cached value or reads it through from the store. Missing
// keys are not cached.
func (c *Cache) Get(ctx context.Context, key []byte) ([]byte, error) {
	if value, ok := c.cache.Get(string(key)); ok {
		c.count(true)
		return clone(value), nil
	}
	c.count(false)

	value, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	c.cache.Add(string(key), clone(value))
	return value, nil
}

// Save writes to the store and then refreshes the cache.
func (c *Cache) Save(ctx context.Context, key []byte, value []byte) error {
	if err := c.store.Save(ctx, key, value); err != nil {
		c.cache.Remove(string(key))
		return err
	}

	c.cache.Add(string(key), clone(value))
	return nil
}

// Delete removes the key from the store and the cache.
func (c *Cache) Delete(ctx context.Context, key []byte) error {
	c.cache.Remove(string(key))
	return c.store.Delete(ctx, key)
}

// Close purges the cache and closes the underlying store.
func (c *Cache) Close() error {
	c.cache.Purge()
	return c.store.Close()
}

// Stats returns the number of hits and misses seen so far.
func (c *Cache) Stats() (hits uint64, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.hits, c.misses
}

func (c *Cache) count(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hit {
		c.hits++
		return
	}
	c.misses++
}

func clone(b []byte) []byte {
	cpy := make([]byte, len(b))
	copy(cpy, b)
	return cpy
}
