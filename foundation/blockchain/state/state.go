// Package state is the core API for the blockchain. It keeps the account
// trie, the blocks that commit to it and the miners ledger on one store and
// implements the rules for changing them.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
	"github.com/ardanlabs/statechain/foundation/blockchain/genesis"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"github.com/ardanlabs/statechain/foundation/blockchain/ledger"
	"github.com/ardanlabs/statechain/foundation/blockchain/mempool"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Set of namespaces the state keeps its data under inside the store.
const (
	NamespaceTrie   = "trie"
	NamespaceBlocks = "blocks"
	NamespaceLedger = "poolDB"
)

// Set of error variables for state processing.
var (
	ErrNoTransactions     = errors.New("no transactions in mempool")
	ErrInvalidNonce       = errors.New("invalid nonce")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrSelfTransfer       = errors.New("transfer to the sending account")
	ErrStateRootMismatch  = errors.New("state root does not match the transactions")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInvalidMinerConfig = errors.New("invalid miner account")
)

// =============================================================================

// EventHandler defines a function that is called when events
// occur in the processing of persisting blocks.
type EventHandler func(v string, args ...any)

// Worker interface represents the behavior required to be implemented by any
// package providing support for assembling blocks in the background.
type Worker interface {
	Shutdown()
	SignalStartAssembly()
}

// =============================================================================

// Config represents the configuration required to start
// the blockchain node.
type Config struct {
	MinerAccountID database.AccountID
	Store          kvstore.Store
	Genesis        genesis.Genesis
	Log            *zap.SugaredLogger
	EvHandler      EventHandler
}

// State manages the blockchain database.
type State struct {
	minerAccountID database.AccountID
	genesis        genesis.Genesis
	genesisRoot    digest.Digest
	evHandler      EventHandler

	mu        sync.Mutex
	store     kvstore.Store
	trieStore kvstore.Store
	trie      *trie.Trie
	blocks    *database.BlockStore
	ledger    *ledger.Table
	mempool   *mempool.Mempool

	Worker Worker
}

// New constructs the state over the store. The genesis accounts are written
// into the trie, every stored block is replayed on top of them and the trie
// is opened at the state root of the latest block. The state takes ownership
// of the store.
func New(ctx context.Context, cfg Config) (*State, error) {
	if !cfg.MinerAccountID.IsAccountID() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMinerConfig, cfg.MinerAccountID)
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	trieStore := kvstore.Namespace(cfg.Store, NamespaceTrie)

	// The genesis trie is written every time, its nodes are keyed by digest
	// so nothing changes when they are already stored.
	genesisRoot, err := seed(ctx, trieStore, cfg.Genesis)
	if err != nil {
		return nil, fmt.Errorf("seeding genesis: %w", err)
	}
	ev("state: New: genesis root[%s]", genesisRoot)

	blocks := database.NewBlockStore(kvstore.Namespace(cfg.Store, NamespaceBlocks))

	// Replay every stored block so a chain that does not produce the state
	// roots it claims is never served.
	root := genesisRoot
	verify := func(number uint64, b database.Block) error {
		if err := verifyBlock(ctx, trieStore, root, b, cfg.Genesis.MiningReward); err != nil {
			return fmt.Errorf("block %d: %w", number, err)
		}

		ev("state: New: block[%d] verified identity[%s]", number, b.Hash())
		root = b.StateRoot

		return nil
	}

	if err := blocks.ForEach(ctx, verify); err != nil {
		return nil, fmt.Errorf("verifying chain: %w", err)
	}

	tbl := ledger.New(log, kvstore.Namespace(cfg.Store, NamespaceLedger))
	if err := tbl.Load(ctx); err != nil && !errors.Is(err, kvstore.ErrNotFound) {
		return nil, err
	}

	state := State{
		minerAccountID: cfg.MinerAccountID,
		genesis:        cfg.Genesis,
		genesisRoot:    genesisRoot,
		evHandler:      ev,

		store:     cfg.Store,
		trieStore: trieStore,
		trie:      trie.Open(trieStore, root),
		blocks:    blocks,
		ledger:    tbl,
		mempool:   mempool.New(),
	}

	// The Worker is not set here. The call to worker.Run will assign itself
	// and start everything up and running for the node.

	return &state, nil
}

// Shutdown cleanly brings the node down. The ledger is saved one last time
// and the store is closed.
func (s *State) Shutdown() error {
	s.evHandler("state: Shutdown: started")
	defer s.evHandler("state: Shutdown: completed")

	// Stop all blockchain writing activity.
	if s.Worker != nil {
		s.Worker.Shutdown()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.ledger.Save(context.Background())
	err = multierr.Append(err, s.store.Close())

	return err
}

// Genesis returns a copy of the genesis information.
func (s *State) Genesis() genesis.Genesis {
	return s.genesis
}

// MinerAccountID returns the account credited for assembled blocks.
func (s *State) MinerAccountID() database.AccountID {
	return s.minerAccountID
}

// =============================================================================

// seed writes the genesis accounts into a new trie and commits it.
func seed(ctx context.Context, store kvstore.Store, gen genesis.Genesis) (digest.Digest, error) {
	accounts, err := gen.Accounts()
	if err != nil {
		return digest.Zero, err
	}

	tr := trie.New(store)
	for _, acct := range accounts {
		if err := putAccount(ctx, tr, acct); err != nil {
			return digest.Zero, err
		}
	}

	return tr.Commit(ctx)
}
