package state

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"github.com/ardanlabs/statechain/foundation/blockchain/ledger"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
	"go.uber.org/multierr"
)

// AssembleBlock takes every transfer in the mempool, credits the miner with
// the mining reward and writes a new block committing to the resulting
// state root. The miner is also credited in the ledger.
func (s *State) AssembleBlock(ctx context.Context) (database.Block, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs := s.mempool.PickBest(-1)
	if len(txs) == 0 {
		return database.Block{}, 0, ErrNoTransactions
	}

	s.evHandler("state: AssembleBlock: started: txs[%d]", len(txs))
	defer s.evHandler("state: AssembleBlock: completed")

	records := make([]database.BlockTx, len(txs))
	for i, tx := range txs {
		record, err := tx.Encode()
		if err != nil {
			return database.Block{}, 0, fmt.Errorf("tx %s: %w", tx, err)
		}
		records[i] = record
	}

	reward := new(big.Int).SetUint64(s.genesis.MiningReward)

	undo, err := credit(ctx, s.trie, s.minerAccountID, reward)
	if err != nil {
		return database.Block{}, 0, fmt.Errorf("crediting miner: %w", err)
	}

	// From here on the reward must be taken back on failure or the next
	// attempt would credit it twice.
	fail := func(err error) (database.Block, uint64, error) {
		if uerr := undo(ctx); uerr != nil {
			err = multierr.Append(err, fmt.Errorf("undoing miner credit: %w", uerr))
		}
		s.evHandler("state: AssembleBlock: ERROR: %s", err)
		return database.Block{}, 0, err
	}

	root, err := s.trie.Commit(ctx)
	if err != nil {
		return fail(fmt.Errorf("committing trie: %w", err))
	}

	block, err := database.NewBlock(s.minerAccountID.Bytes(), records, root)
	if err != nil {
		return fail(err)
	}

	number, err := s.blocks.Write(ctx, block)
	if err != nil {
		return fail(fmt.Errorf("writing block: %w", err))
	}

	for _, tx := range txs {
		s.mempool.Delete(tx)
	}

	// The block is written, a ledger failure is reported but does not undo it.
	if err := s.creditLedger(ctx, reward); err != nil {
		s.evHandler("state: AssembleBlock: ledger: ERROR: %s", err)
		return block, number, fmt.Errorf("crediting ledger: %w", err)
	}

	s.evHandler("viewer: block[%d] identity[%s] root[%s] txs[%d]", number, block.Hash(), root, len(records))

	return block, number, nil
}

// VerifyBlock checks the block is well formed, that its identity matches its
// contents and that replaying its transfers on top of the latest block
// produces the state root it carries.
func (s *State) VerifyBlock(ctx context.Context, b database.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.latestRoot(ctx)
	if err != nil {
		return err
	}

	return verifyBlock(ctx, s.trieStore, parent, b, s.genesis.MiningReward)
}

// =============================================================================

func (s *State) creditLedger(ctx context.Context, reward *big.Int) error {
	key := s.minerAccountID.Bytes()

	err := s.ledger.AdjustAmount(ctx, key, reward)
	if errors.Is(err, ledger.ErrNotFound) {
		return s.ledger.Add(ctx, key, reward)
	}

	return err
}

// latestRoot returns the state root of the latest block, the genesis root
// when there is none.
func (s *State) latestRoot(ctx context.Context) (digest.Digest, error) {
	b, _, err := s.blocks.Latest(ctx)
	switch {
	case errors.Is(err, database.ErrBlockNotFound):
		return s.genesisRoot, nil
	case err != nil:
		return digest.Zero, err
	}

	return b.StateRoot, nil
}

// verifyBlock replays the block on a trie opened at the parent root. The
// replay is never committed so nothing is written to the store.
func verifyBlock(ctx context.Context, store kvstore.Store, parent digest.Digest, b database.Block, reward uint64) error {
	if err := b.Validate(); err != nil {
		return err
	}

	if err := b.VerifyIdentity(); err != nil {
		return err
	}

	miner, err := database.BytesToAccountID(b.MinerAddress)
	if err != nil {
		return err
	}

	tr := trie.Open(store, parent)

	for i, record := range b.Transactions {
		tx, err := record.Decode()
		if err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}

		if err := tx.Validate(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}

		if err := applyTx(ctx, tr, tx); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}

	if _, err := credit(ctx, tr, miner, new(big.Int).SetUint64(reward)); err != nil {
		return fmt.Errorf("crediting miner: %w", err)
	}

	root, err := tr.RootDigest()
	if err != nil {
		return err
	}

	if root != b.StateRoot {
		return fmt.Errorf("%w: got %s, exp %s", ErrStateRootMismatch, root, b.StateRoot)
	}

	return nil
}
