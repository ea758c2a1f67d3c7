package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/cache"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/memory"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/storetest"
	"github.com/golang/mock/gomock"
)

func TestCache(t *testing.T) {
	storetest.Run(t, func(t *testing.T) kvstore.Store {
		c, err := cache.New(memory.New(), 4)
		if err != nil {
			t.Fatalf("constructing cache: %v", err)
		}
		return c
	})
}

func TestCacheReadsThroughOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := kvstore.NewMockStore(ctrl)
	ctx := context.Background()

	store.EXPECT().Get(gomock.Any(), []byte("k")).Return([]byte("v"), nil).Times(1)

	c, err := cache.New(store, 4)
	if err != nil {
		t.Fatalf("constructing cache: %v", err)
	}

	for i := 0; i < 3; i++ {
		value, err := c.Get(ctx, []byte("k"))
		if err != nil || string(value) != "v" {
			t.Fatalf("expected cached value, got %q %v", value, err)
		}
	}

	hits, misses := c.Stats()
	if hits != 2 || misses != 1 {
		t.Fatalf("expected 2 hits and 1 miss, got %d and %d", hits, misses)
	}
}

func TestCacheDoesNotHideFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := kvstore.NewMockStore(ctrl)
	ctx := context.Background()

	ioErr := kvstore.NewIOError("save", []byte("k"), errors.New("disk full"))
	store.EXPECT().Save(gomock.Any(), []byte("k"), []byte("v")).Return(ioErr)
	store.EXPECT().Get(gomock.Any(), []byte("k")).Return(nil, kvstore.ErrNotFound)

	c, err := cache.New(store, 4)
	if err != nil {
		t.Fatalf("constructing cache: %v", err)
	}

	if err := c.Save(ctx, []byte("k"), []byte("v")); !kvstore.IsIOError(err) {
		t.Fatalf("expected io error, got %v", err)
	}

	if _, err := c.Get(ctx, []byte("k")); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("expected failed save to stay out of the cache, got %v", err)
	}
}
