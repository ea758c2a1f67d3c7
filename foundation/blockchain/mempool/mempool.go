// Package mempool maintains the transfers accepted into the state but not yet
// carried by a block.
package mempool

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
)

// entry is a transfer with the sequence it was first accepted at.
type entry struct {
	seq uint64
	tx  database.Tx
}

// Mempool represents a cache of transfers organized by account:nonce. Block
// assembly takes them in the order they were accepted since every transfer
// was applied to the state in that order.
type Mempool struct {
	mu   sync.RWMutex
	pool map[string]entry
	seq  uint64
}

// New constructs a new, empty mempool.
func New() *Mempool {
	return &Mempool{
		pool: make(map[string]entry),
	}
}

// Count returns the current number of transfers in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transfer in the pool. A replaced transfer keeps
// its position.
func (mp *Mempool) Upsert(tx database.Tx) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	key := mapKey(tx)

	e, exists := mp.pool[key]
	if !exists {
		mp.seq++
		e.seq = mp.seq
	}
	e.tx = tx
	mp.pool[key] = e

	return len(mp.pool)
}

// Delete removes a transfer from the pool.
func (mp *Mempool) Delete(tx database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, mapKey(tx))
}

// Truncate clears all the transfers from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]entry)
}

// PickBest returns up to howMany transfers in the order they were accepted.
// A value of -1 returns them all.
func (mp *Mempool) PickBest(howMany int) []database.Tx {
	mp.mu.RLock()
	entries := make([]entry, 0, len(mp.pool))
	for _, e := range mp.pool {
		entries = append(entries, e)
	}
	mp.mu.RUnlock()

	slices.SortFunc(entries, func(a, b entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})

	if howMany == -1 || howMany > len(entries) {
		howMany = len(entries)
	}

	txs := make([]database.Tx, howMany)
	for i := range txs {
		txs[i] = entries[i].tx
	}

	return txs
}

// =============================================================================

// mapKey is used to generate the map key. The sender is keyed in canonical
// form so ids that differ only by case land on the same entry.
func mapKey(tx database.Tx) string {
	return fmt.Sprintf("%s:%d", tx.FromID.Canonical(), tx.Nonce)
}
