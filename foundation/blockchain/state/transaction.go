package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
	"go.uber.org/multierr"
)

// Transfer applies the transfer to the account trie and adds it to the
// mempool for the next block. The nonce must be one more than the nonce of
// the sending account.
func (s *State) Transfer(ctx context.Context, tx database.Tx) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	// Held transfers and events always show the ids as a block record
	// decodes them.
	tx.FromID = tx.FromID.Canonical()
	tx.ToID = tx.ToID.Canonical()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := applyTx(ctx, s.trie, tx); err != nil {
		return err
	}

	n := s.mempool.Upsert(tx)
	s.evHandler("state: Transfer: accepted tx[%s] value[%s] mempool[%d]", tx, tx.Value, n)

	// Once enough transfers are pending, ask for a block to be assembled.
	if perBlock := int(s.genesis.TransPerBlock); perBlock > 0 && n >= perBlock && s.Worker != nil {
		s.Worker.SignalStartAssembly()
	}

	return nil
}

// =============================================================================

// applyTx moves the value between the accounts. Either both accounts are
// written or neither is.
func applyTx(ctx context.Context, tr *trie.Trie, tx database.Tx) error {
	if bytes.Equal(tx.FromID.Bytes(), tx.ToID.Bytes()) {
		return fmt.Errorf("%w: %s sends to itself", ErrSelfTransfer, tx.FromID)
	}

	from, _, err := getAccount(ctx, tr, tx.FromID)
	if err != nil {
		return err
	}

	to, _, err := getAccount(ctx, tr, tx.ToID)
	if err != nil {
		return err
	}

	if tx.Nonce != from.Nonce+1 {
		return fmt.Errorf("%w: got %d, exp %d", ErrInvalidNonce, tx.Nonce, from.Nonce+1)
	}

	if from.Balance.Cmp(tx.Value) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, tx.FromID, from.Balance, tx.Value)
	}

	nextFrom := database.Account{
		AccountID: from.AccountID,
		Nonce:     tx.Nonce,
		Balance:   new(big.Int).Sub(from.Balance, tx.Value),
	}

	nextTo := database.Account{
		AccountID: to.AccountID,
		Nonce:     to.Nonce,
		Balance:   new(big.Int).Add(to.Balance, tx.Value),
	}

	if err := putAccount(ctx, tr, nextFrom); err != nil {
		return err
	}

	if err := putAccount(ctx, tr, nextTo); err != nil {
		return multierr.Append(err, putAccount(ctx, tr, from))
	}

	return nil
}

// credit adds the amount to the balance of the account, creating the
// account when it does not exist. It returns a function that undoes the
// change.
func credit(ctx context.Context, tr *trie.Trie, accountID database.AccountID, amount *big.Int) (func(context.Context) error, error) {
	acct, exists, err := getAccount(ctx, tr, accountID)
	if err != nil {
		return nil, err
	}

	next := database.Account{
		AccountID: acct.AccountID,
		Nonce:     acct.Nonce,
		Balance:   new(big.Int).Add(acct.Balance, amount),
	}

	if err := putAccount(ctx, tr, next); err != nil {
		return nil, err
	}

	undo := func(ctx context.Context) error {
		if !exists {
			return tr.Delete(ctx, accountID.Bytes())
		}
		return putAccount(ctx, tr, acct)
	}

	return undo, nil
}

// getAccount reads the account from the trie. A missing account is returned
// with a zero balance and exists set to false.
func getAccount(ctx context.Context, tr *trie.Trie, accountID database.AccountID) (database.Account, bool, error) {
	data, err := tr.Get(ctx, accountID.Bytes())
	if err != nil {
		if errors.Is(err, trie.ErrNotFound) {
			return database.NewAccount(accountID, nil), false, nil
		}
		return database.Account{}, false, err
	}

	acct, err := database.DecodeAccount(accountID, data)
	if err != nil {
		return database.Account{}, false, fmt.Errorf("account %s: %w", accountID, err)
	}

	return acct, true, nil
}

func putAccount(ctx context.Context, tr *trie.Trie, acct database.Account) error {
	data, err := acct.Encode()
	if err != nil {
		return fmt.Errorf("account %s: %w", acct.AccountID, err)
	}

	return tr.Put(ctx, acct.AccountID.Bytes(), data)
}
