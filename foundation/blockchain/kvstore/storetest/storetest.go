// Package storetest provides a conformance suite every kvstore.Store
// implementation is expected to pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"github.com/stretchr/testify/require"
)

// Run executes the conformance suite against stores produced by open. The
// function is called once per sub test so every case starts empty.
func Run(t *testing.T, open func(t *testing.T) kvstore.Store) {
	t.Run("get missing", func(t *testing.T) {
		store := open(t)

		_, err := store.Get(context.Background(), []byte("missing"))
		require.ErrorIs(t, err, kvstore.ErrNotFound)
	})

	t.Run("save then get", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		require.NoError(t, store.Save(ctx, []byte("k1"), []byte("v1")))

		value, err := store.Get(ctx, []byte("k1"))
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), value)
	})

	t.Run("overwrite", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		require.NoError(t, store.Save(ctx, []byte("k1"), []byte("v1")))
		require.NoError(t, store.Save(ctx, []byte("k1"), []byte("v2")))

		value, err := store.Get(ctx, []byte("k1"))
		require.NoError(t, err)
		require.Equal(t, []byte("v2"), value)
	})

	t.Run("empty value", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		require.NoError(t, store.Save(ctx, []byte("k1"), []byte{}))

		value, err := store.Get(ctx, []byte("k1"))
		require.NoError(t, err)
		require.Len(t, value, 0)
	})

	t.Run("binary keys", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		key := []byte{0x00, 0xFF, '/', 0x10}
		require.NoError(t, store.Save(ctx, key, []byte{0x01}))

		value, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.Equal(t, []byte{0x01}, value)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		require.NoError(t, store.Save(ctx, []byte("k1"), []byte("v1")))
		require.NoError(t, store.Delete(ctx, []byte("k1")))
		require.NoError(t, store.Delete(ctx, []byte("k1")))
		require.NoError(t, store.Delete(ctx, []byte("never")))

		_, err := store.Get(ctx, []byte("k1"))
		require.ErrorIs(t, err, kvstore.ErrNotFound)
	})

	t.Run("returned values are copies", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		value := []byte("v1")
		require.NoError(t, store.Save(ctx, []byte("k1"), value))
		value[0] = 'x'

		got, err := store.Get(ctx, []byte("k1"))
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), got)

		got[0] = 'y'
		again, err := store.Get(ctx, []byte("k1"))
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), again)
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		a := kvstore.Namespace(store, "poolDB")
		b := kvstore.Namespace(store, "trie")

		require.NoError(t, a.Save(ctx, []byte("k"), []byte("a")))
		require.NoError(t, b.Save(ctx, []byte("k"), []byte("b")))

		va, err := a.Get(ctx, []byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("a"), va)

		require.NoError(t, b.Delete(ctx, []byte("k")))

		_, err = b.Get(ctx, []byte("k"))
		require.ErrorIs(t, err, kvstore.ErrNotFound)

		va, err = a.Get(ctx, []byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("a"), va)
	})

	t.Run("concurrent keys", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		const goroutines = 8
		var wg sync.WaitGroup
		wg.Add(goroutines)

		errs := make(chan error, goroutines)
		for g := 0; g < goroutines; g++ {
			go func(g int) {
				defer wg.Done()
				key := []byte(fmt.Sprintf("key-%d", g))
				if err := store.Save(ctx, key, []byte{byte(g)}); err != nil {
					errs <- err
					return
				}
				value, err := store.Get(ctx, key)
				if err != nil {
					errs <- err
					return
				}
				if len(value) != 1 || value[0] != byte(g) {
					errs <- errors.New("value mismatch for " + string(key))
				}
			}(g)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
	})
}
