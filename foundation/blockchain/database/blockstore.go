package database

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ardanlabs/statechain/foundation/blockchain/codec"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
)

// ErrBlockNotFound is returned when a block is not in the store.
var ErrBlockNotFound = errors.New("block not found")

// Set of key prefixes used by the block store.
var (
	keyLatest = []byte("latest")
	keyBlock  = []byte("b/")
	keyNumber = []byte("n/")
)

// BlockStore persists blocks keyed by their identity. Blocks are numbered in
// the order they are written, starting at 1, and the latest one is tracked.
type BlockStore struct {
	mu    sync.Mutex
	store kvstore.Store
}

// NewBlockStore constructs a block store over the key/value store.
func NewBlockStore(store kvstore.Store) *BlockStore {
	return &BlockStore{
		store: store,
	}
}

// Write validates and persists the block as the next block in the chain and
// returns its number.
func (bs *BlockStore) Write(ctx context.Context, b Block) (uint64, error) {
	if err := b.VerifyIdentity(); err != nil {
		return 0, err
	}

	data, err := b.Encode()
	if err != nil {
		return 0, err
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()

	_, number, err := bs.latest(ctx)
	switch {
	case errors.Is(err, ErrBlockNotFound):
	case err != nil:
		return 0, err
	}
	number++

	if err := bs.store.Save(ctx, blockKey(b.Identity), data); err != nil {
		return 0, fmt.Errorf("save block: %w", err)
	}

	if err := bs.store.Save(ctx, numberKey(number), b.Identity); err != nil {
		return 0, fmt.Errorf("save block number: %w", err)
	}

	w := codec.NewWriter(digest.Size + 10)
	w.Bytes1(b.Identity)
	w.BigInt(new(big.Int).SetUint64(number))
	latest, err := w.Result()
	if err != nil {
		return 0, err
	}

	if err := bs.store.Save(ctx, keyLatest, latest); err != nil {
		return 0, fmt.Errorf("save latest: %w", err)
	}

	return number, nil
}

// Get returns the block with the specified identity. The block read back
// must hash to the identity it was stored under.
func (bs *BlockStore) Get(ctx context.Context, identity digest.Digest) (Block, error) {
	data, err := bs.store.Get(ctx, blockKey(identity.Bytes()))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return Block{}, fmt.Errorf("%w: %s", ErrBlockNotFound, identity)
		}
		return Block{}, err
	}

	b, err := DecodeBlock(data)
	if err != nil {
		return Block{}, fmt.Errorf("block %s: %w", identity, err)
	}

	if b.Hash() != identity {
		return Block{}, fmt.Errorf("%w: stored under %s", ErrIdentityMismatch, identity)
	}

	if err := b.VerifyIdentity(); err != nil {
		return Block{}, fmt.Errorf("block %s: %w", identity, err)
	}

	return b, nil
}

// GetByNumber returns the block written with the specified number.
func (bs *BlockStore) GetByNumber(ctx context.Context, number uint64) (Block, error) {
	id, err := bs.store.Get(ctx, numberKey(number))
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return Block{}, fmt.Errorf("%w: number %d", ErrBlockNotFound, number)
		}
		return Block{}, err
	}

	identity, err := digest.FromBytes(id)
	if err != nil {
		return Block{}, fmt.Errorf("block number %d: %w", number, err)
	}

	return bs.Get(ctx, identity)
}

// Latest returns the last block written and its number.
func (bs *BlockStore) Latest(ctx context.Context) (Block, uint64, error) {
	bs.mu.Lock()
	identity, number, err := bs.latest(ctx)
	bs.mu.Unlock()

	if err != nil {
		return Block{}, 0, err
	}

	b, err := bs.Get(ctx, identity)
	if err != nil {
		return Block{}, 0, err
	}

	return b, number, nil
}

// ForEach calls fn for every block from number 1 up to the latest block.
func (bs *BlockStore) ForEach(ctx context.Context, fn func(number uint64, b Block) error) error {
	bs.mu.Lock()
	_, last, err := bs.latest(ctx)
	bs.mu.Unlock()

	switch {
	case errors.Is(err, ErrBlockNotFound):
		return nil
	case err != nil:
		return err
	}

	for number := uint64(1); number <= last; number++ {
		b, err := bs.GetByNumber(ctx, number)
		if err != nil {
			return err
		}

		if err := fn(number, b); err != nil {
			return err
		}
	}

	return nil
}

func (bs *BlockStore) latest(ctx context.Context) (digest.Digest, uint64, error) {
	data, err := bs.store.Get(ctx, keyLatest)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return digest.Zero, 0, ErrBlockNotFound
		}
		return digest.Zero, 0, err
	}

	r := codec.NewReader(data)

	id, err := r.Bytes1()
	if err != nil {
		return digest.Zero, 0, fmt.Errorf("latest: %w", err)
	}

	number, err := r.BigInt()
	if err != nil {
		return digest.Zero, 0, fmt.Errorf("latest: %w", err)
	}

	if err := r.Done(); err != nil {
		return digest.Zero, 0, fmt.Errorf("latest: %w", err)
	}

	identity, err := digest.FromBytes(id)
	if err != nil {
		return digest.Zero, 0, fmt.Errorf("latest: %w", err)
	}

	if !number.IsUint64() {
		return digest.Zero, 0, fmt.Errorf("latest: %w: block number out of range", codec.ErrMalformedEncoding)
	}

	return identity, number.Uint64(), nil
}

func blockKey(identity []byte) []byte {
	return append(append([]byte{}, keyBlock...), identity...)
}

func numberKey(number uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, keyNumber...), number)
}
