package state

import (
	"context"
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
	"github.com/ardanlabs/statechain/foundation/blockchain/ledger"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
)

// QueryLastest represents to query the latest block in the chain.
const QueryLastest = ^uint64(0) >> 1

// AccountProof is an account together with the proof that the account trie
// identified by Root holds it.
type AccountProof struct {
	Account database.Account
	Root    digest.Digest
	Proof   trie.Proof
}

// NumberedBlock is a block with its position in the chain.
type NumberedBlock struct {
	Number uint64
	Block  database.Block
}

// =============================================================================

// QueryRoot returns the root digest of the account trie, including the
// transfers that are not yet in a block.
func (s *State) QueryRoot() (digest.Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.trie.RootDigest()
}

// QueryAccount returns the account from the trie.
func (s *State) QueryAccount(ctx context.Context, accountID database.AccountID) (database.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queryAccount(ctx, accountID)
}

func (s *State) queryAccount(ctx context.Context, accountID database.AccountID) (database.Account, error) {
	acct, exists, err := getAccount(ctx, s.trie, accountID)
	if err != nil {
		return database.Account{}, err
	}

	if !exists {
		return database.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}

	return acct, nil
}

// QueryAccountProof returns the account with a proof of its presence under
// the current root digest.
func (s *State) QueryAccountProof(ctx context.Context, accountID database.AccountID) (AccountProof, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, err := s.queryAccount(ctx, accountID)
	if err != nil {
		return AccountProof{}, err
	}

	root, err := s.trie.RootDigest()
	if err != nil {
		return AccountProof{}, err
	}

	proof, err := s.trie.Prove(ctx, accountID.Bytes())
	if err != nil {
		return AccountProof{}, err
	}

	ap := AccountProof{
		Account: acct,
		Root:    root,
		Proof:   proof,
	}

	return ap, nil
}

// QueryAccounts returns every account held by the trie in address order.
func (s *State) QueryAccounts(ctx context.Context) ([]database.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var accounts []database.Account

	fn := func(key []byte, value []byte) error {
		accountID, err := database.BytesToAccountID(key)
		if err != nil {
			return err
		}

		acct, err := database.DecodeAccount(accountID, value)
		if err != nil {
			return fmt.Errorf("account %s: %w", accountID, err)
		}

		accounts = append(accounts, acct)
		return nil
	}

	if err := s.trie.ForEach(ctx, fn); err != nil {
		return nil, err
	}

	return accounts, nil
}

// QueryMempoolLength returns the current length of the mempool.
func (s *State) QueryMempoolLength() int {
	return s.mempool.Count()
}

// QueryMempool returns the pending transfers in the order they were accepted.
func (s *State) QueryMempool() []database.Tx {
	return s.mempool.PickBest(-1)
}

// QueryLedger returns the entries of the miners ledger.
func (s *State) QueryLedger() []ledger.Entry {
	return s.ledger.Entries()
}

// QueryLatestBlock returns the latest block and its number.
func (s *State) QueryLatestBlock(ctx context.Context) (database.Block, uint64, error) {
	return s.blocks.Latest(ctx)
}

// QueryBlockByIdentity returns the block with the specified identity.
func (s *State) QueryBlockByIdentity(ctx context.Context, identity digest.Digest) (database.Block, error) {
	return s.blocks.Get(ctx, identity)
}

// QueryBlocksByNumber returns the set of blocks based on block numbers. Use
// QueryLastest for either bound to mean the latest block.
func (s *State) QueryBlocksByNumber(ctx context.Context, from uint64, to uint64) ([]NumberedBlock, error) {
	if from == QueryLastest || to == QueryLastest {
		_, latest, err := s.blocks.Latest(ctx)
		if err != nil {
			return nil, err
		}

		if from == QueryLastest {
			from = latest
		}
		if to == QueryLastest {
			to = latest
		}
	}

	var out []NumberedBlock
	for number := from; number <= to; number++ {
		b, err := s.blocks.GetByNumber(ctx, number)
		if err != nil {
			return nil, err
		}
		out = append(out, NumberedBlock{Number: number, Block: b})
	}

	return out, nil
}
