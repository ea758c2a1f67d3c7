// Package ledger maintains a persisted table of amounts owed to keys, such
// as the rewards accumulated by the miners of a pool. The table lives in
// memory in insertion order and is mirrored to a key/value store under a
// single fixed key.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ardanlabs/statechain/foundation/blockchain/codec"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"go.uber.org/zap"
)

// TableKey is the store key the serialized table is saved under.
const TableKey = "minersList"

// Set of error variables for table operations.
var (
	ErrExists         = errors.New("entry already exists")
	ErrNotFound       = errors.New("entry not found")
	ErrNegativeAmount = errors.New("amount cannot be negative")
	ErrMissingAmount  = errors.New("amount is required")
)

// Entry is the amount held for a single key.
type Entry struct {
	Key    []byte
	Amount *big.Int
}

// Table is an ordered collection of entries with at most one entry per key.
// Every mutation is saved to the store before it is applied in memory, so a
// failed save leaves the table as it was.
type Table struct {
	log   *zap.SugaredLogger
	store kvstore.Store

	mu      sync.Mutex
	entries []Entry
}

// New constructs an empty table persisted through the store.
func New(log *zap.SugaredLogger, store kvstore.Store) *Table {
	return &Table{
		log:   log,
		store: store,
	}
}

// Add inserts a new entry. It fails with ErrExists if the key is present.
func (t *Table) Add(ctx context.Context, key []byte, amount *big.Int) error {
	if amount == nil {
		return ErrMissingAmount
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.index(key) != -1 {
		return fmt.Errorf("%w: %x", ErrExists, key)
	}

	next := append(t.clone(), Entry{Key: bytes.Clone(key), Amount: new(big.Int).Set(amount)})

	return t.commit(ctx, next)
}

// Upsert inserts the entry or replaces the amount of an existing one. An
// existing entry keeps its position.
func (t *Table) Upsert(ctx context.Context, key []byte, amount *big.Int) error {
	if amount == nil {
		return ErrMissingAmount
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.clone()

	switch i := t.index(key); i {
	case -1:
		next = append(next, Entry{Key: bytes.Clone(key), Amount: new(big.Int).Set(amount)})
	default:
		next[i].Amount = new(big.Int).Set(amount)
	}

	return t.commit(ctx, next)
}

// Remove deletes the entry for the key. The remaining entries keep their
// relative order.
func (t *Table) Remove(ctx context.Context, key []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.index(key)
	if i == -1 {
		return fmt.Errorf("%w: %x", ErrNotFound, key)
	}

	next := t.clone()
	next = append(next[:i], next[i+1:]...)

	return t.commit(ctx, next)
}

// AdjustAmount adds delta, which may be negative, to the amount of an
// existing entry.
func (t *Table) AdjustAmount(ctx context.Context, key []byte, delta *big.Int) error {
	if delta == nil {
		return ErrMissingAmount
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.index(key)
	if i == -1 {
		return fmt.Errorf("%w: %x", ErrNotFound, key)
	}

	amount := new(big.Int).Add(t.entries[i].Amount, delta)
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: %x would hold %s", ErrNegativeAmount, key, amount)
	}

	next := t.clone()
	next[i].Amount = amount

	return t.commit(ctx, next)
}

// Amount returns the amount held for the key, zero if there is no entry.
func (t *Table) Amount(key []byte) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.index(key)
	if i == -1 {
		return new(big.Int)
	}

	return new(big.Int).Set(t.entries[i].Amount)
}

// Entries returns a copy of the entries in table order.
func (t *Table) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.clone()
}

// Len returns the number of entries.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}

// Set replaces the entries held in memory. The table is not saved.
func (t *Table) Set(entries []Entry) error {
	next := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Amount == nil || e.Amount.Sign() < 0 {
			return fmt.Errorf("%w: %x", ErrNegativeAmount, e.Key)
		}
		if index(next, e.Key) != -1 {
			return fmt.Errorf("%w: %x", ErrExists, e.Key)
		}
		next = append(next, Entry{Key: bytes.Clone(e.Key), Amount: new(big.Int).Set(e.Amount)})
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = next

	return nil
}

// Serialize returns the binary form of the table.
//
//	Len2(count) ++ { Bytes1(key) ++ BigInt(amount) }
func (t *Table) Serialize() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return serialize(t.entries)
}

// Save writes the table to the store.
func (t *Table) Save(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.save(ctx, t.entries)
}

// Load replaces the table with the one found in the store. On any failure
// the table is left untouched.
func (t *Table) Load(ctx context.Context) error {
	data, err := t.store.Get(ctx, []byte(TableKey))
	if err != nil {
		t.log.Errorw("ledger", "status", "load", "key", TableKey, "ERROR", err)
		return fmt.Errorf("load table: %w", err)
	}

	entries, err := Deserialize(data)
	if err != nil {
		t.log.Errorw("ledger", "status", "load", "key", TableKey, "ERROR", err)
		return fmt.Errorf("load table: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = entries

	return nil
}

// Equal reports whether the tables hold equal entries at the same positions.
func (t *Table) Equal(other *Table) bool {
	return Equal(t.Entries(), other.Entries())
}

// =============================================================================

// Deserialize decodes entries written by Serialize.
func Deserialize(data []byte) ([]Entry, error) {
	r := codec.NewReader(data)

	count, err := r.Len2()
	if err != nil {
		return nil, err
	}

	// Every entry takes at least two bytes.
	if count > r.Remaining()/2 {
		return nil, fmt.Errorf("%w: %d entries in %d bytes", codec.ErrMalformedEncoding, count, r.Remaining())
	}

	entries := make([]Entry, 0, count)
	for i := 0; i < count; i++ {
		key, err := r.Bytes1()
		if err != nil {
			return nil, fmt.Errorf("entry %d key: %w", i, err)
		}

		amount, err := r.BigInt()
		if err != nil {
			return nil, fmt.Errorf("entry %d amount: %w", i, err)
		}

		if index(entries, key) != -1 {
			return nil, fmt.Errorf("%w: duplicate key %x", codec.ErrMalformedEncoding, key)
		}

		entries = append(entries, Entry{Key: key, Amount: amount})
	}

	if err := r.Done(); err != nil {
		return nil, err
	}

	return entries, nil
}

// Equal reports whether both lists have the same length and equal key and
// amount at every position. Order matters.
func Equal(a, b []Entry) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !bytes.Equal(a[i].Key, b[i].Key) || a[i].Amount.Cmp(b[i].Amount) != 0 {
			return false
		}
	}

	return true
}

// =============================================================================

// commit saves the next version of the table and then makes it current.
func (t *Table) commit(ctx context.Context, next []Entry) error {
	if err := t.save(ctx, next); err != nil {
		return err
	}

	t.entries = next

	return nil
}

func (t *Table) save(ctx context.Context, entries []Entry) error {
	data, err := serialize(entries)
	if err != nil {
		t.log.Errorw("ledger", "status", "save", "key", TableKey, "ERROR", err)
		return fmt.Errorf("serialize table: %w", err)
	}

	if err := t.store.Save(ctx, []byte(TableKey), data); err != nil {
		t.log.Errorw("ledger", "status", "save", "key", TableKey, "ERROR", err)
		return fmt.Errorf("save table: %w", err)
	}

	return nil
}

func (t *Table) index(key []byte) int {
	return index(t.entries, key)
}

func (t *Table) clone() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = Entry{Key: bytes.Clone(e.Key), Amount: new(big.Int).Set(e.Amount)}
	}
	return out
}

func serialize(entries []Entry) ([]byte, error) {
	w := codec.NewWriter(2 + len(entries)*32)
	w.Len2(len(entries))
	for _, e := range entries {
		w.Bytes1(e.Key)
		w.BigInt(e.Amount)
	}

	return w.Result()
}

func index(entries []Entry, key []byte) int {
	for i, e := range entries {
		if bytes.Equal(e.Key, key) {
			return i
		}
	}
	return -1
}
