package state_test

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
	"github.com/ardanlabs/statechain/foundation/blockchain/genesis"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/memory"
	"github.com/ardanlabs/statechain/foundation/blockchain/state"
	"github.com/ardanlabs/statechain/foundation/blockchain/trie"
	"go.uber.org/zap"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const (
	miner = database.AccountID("0xFef311483Cc040e1A89fb9bb469eeB8A70935EF8")
	alice = database.AccountID("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
	bob   = database.AccountID("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
)

var gen = genesis.Genesis{
	ChainID:      1,
	MiningReward: 700,
	Balances: map[string]uint64{
		string(alice): 1000,
	},
}

// nopStore keeps the shared memory store open when a state is shut down so
// the same data can be opened again.
type nopStore struct {
	kvstore.Store
}

func (nopStore) Close() error { return nil }

func newState(t *testing.T, store kvstore.Store) *state.State {
	t.Helper()

	st, err := state.New(context.Background(), state.Config{
		MinerAccountID: miner,
		Store:          nopStore{store},
		Genesis:        gen,
		Log:            zap.NewNop().Sugar(),
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the state: %v", failed, err)
	}

	return st
}

func balance(t *testing.T, st *state.State, id database.AccountID) int64 {
	t.Helper()

	acct, err := st.QueryAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to query %s: %v", failed, id, err)
	}

	return acct.Balance.Int64()
}

func transfer(nonce uint64, from, to database.AccountID, value int64) database.Tx {
	return database.Tx{Nonce: nonce, FromID: from, ToID: to, Value: big.NewInt(value)}
}

// =============================================================================

func TestGenesis(t *testing.T) {
	t.Log("Given the need to start from the genesis balances.")
	{
		t.Logf("\tTest 0:\tWhen constructing a new state.")
		{
			st := newState(t, memory.New())

			if got := balance(t, st, alice); got != 1000 {
				t.Fatalf("\t%s\tTest 0:\tShould seed alice with 1000, got %d.", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould seed the genesis balances.", success)

			if _, err := st.QueryAccount(context.Background(), bob); !errors.Is(err, state.ErrAccountNotFound) {
				t.Fatalf("\t%s\tTest 0:\tShould get ErrAccountNotFound for bob: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get ErrAccountNotFound for unknown accounts.", success)

			if _, _, err := st.QueryLatestBlock(context.Background()); !errors.Is(err, database.ErrBlockNotFound) {
				t.Fatalf("\t%s\tTest 0:\tShould have no blocks: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould have no blocks.", success)
		}

		t.Logf("\tTest 1:\tWhen the miner account is not an address.")
		{
			_, err := state.New(context.Background(), state.Config{
				MinerAccountID: "miner1",
				Store:          memory.New(),
				Genesis:        gen,
			})
			if !errors.Is(err, state.ErrInvalidMinerConfig) {
				t.Fatalf("\t%s\tTest 1:\tShould get ErrInvalidMinerConfig: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get ErrInvalidMinerConfig.", success)
		}
	}
}

func TestTransfer(t *testing.T) {
	t.Log("Given the need to move value between accounts.")
	{
		ctx := context.Background()
		st := newState(t, memory.New())

		t.Logf("\tTest 0:\tWhen the transfer is valid.")
		{
			if err := st.Transfer(ctx, transfer(1, alice, bob, 10)); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to transfer: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to transfer.", success)

			if balance(t, st, alice) != 990 || balance(t, st, bob) != 10 {
				t.Fatalf("\t%s\tTest 0:\tShould move the value.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould move the value.", success)

			if st.QueryMempoolLength() != 1 {
				t.Fatalf("\t%s\tTest 0:\tShould hold the transfer in the mempool.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould hold the transfer in the mempool.", success)
		}

		t.Logf("\tTest 1:\tWhen the transfer is rejected.")
		{
			before, err := st.QueryRoot()
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to get the root: %v", failed, err)
			}

			if err := st.Transfer(ctx, transfer(1, alice, bob, 10)); !errors.Is(err, state.ErrInvalidNonce) {
				t.Fatalf("\t%s\tTest 1:\tShould get ErrInvalidNonce for a replay: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get ErrInvalidNonce for a replay.", success)

			if err := st.Transfer(ctx, transfer(2, alice, bob, 5000)); !errors.Is(err, state.ErrInsufficientFunds) {
				t.Fatalf("\t%s\tTest 1:\tShould get ErrInsufficientFunds: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get ErrInsufficientFunds.", success)

			if err := st.Transfer(ctx, transfer(2, alice, alice, 1)); !errors.Is(err, database.ErrInvalidTx) {
				t.Fatalf("\t%s\tTest 1:\tShould get ErrInvalidTx: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get ErrInvalidTx.", success)

			after, err := st.QueryRoot()
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to get the root: %v", failed, err)
			}

			if before != after {
				t.Fatalf("\t%s\tTest 1:\tShould leave the state unchanged.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould leave the state unchanged.", success)
		}
	}
}

func TestTransferAccountCase(t *testing.T) {
	t.Log("Given the need to treat account ids that differ only by case as one account.")
	{
		ctx := context.Background()
		store := memory.New()
		st := newState(t, store)

		lowerAlice := database.AccountID(strings.ToLower(string(alice)))
		lowerBob := database.AccountID(strings.ToLower(string(bob)))

		t.Logf("\tTest 0:\tWhen alice sends to her own id in another case.")
		{
			for i := 0; i < 3; i++ {
				if err := st.Transfer(ctx, transfer(1, alice, lowerAlice, 10)); !errors.Is(err, database.ErrInvalidTx) {
					t.Fatalf("\t%s\tTest 0:\tShould get ErrInvalidTx: %v", failed, err)
				}
			}
			t.Logf("\t%s\tTest 0:\tShould get ErrInvalidTx.", success)

			acct, err := st.QueryAccount(ctx, alice)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to query alice: %v", failed, err)
			}
			if acct.Balance.Int64() != 1000 || acct.Nonce != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould leave alice unchanged: nonce %d balance %s", failed, acct.Nonce, acct.Balance)
			}
			t.Logf("\t%s\tTest 0:\tShould leave alice unchanged.", success)

			if st.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould hold nothing in the mempool.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould hold nothing in the mempool.", success)
		}

		t.Logf("\tTest 1:\tWhen a transfer names its accounts in lower case.")
		{
			if err := st.Transfer(ctx, transfer(1, lowerAlice, lowerBob, 10)); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to transfer: %v", failed, err)
			}
			if balance(t, st, alice) != 990 || balance(t, st, bob) != 10 {
				t.Fatalf("\t%s\tTest 1:\tShould move the value between the canonical accounts.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould move the value between the canonical accounts.", success)

			if err := st.Transfer(ctx, transfer(1, alice, bob, 10)); !errors.Is(err, state.ErrInvalidNonce) {
				t.Fatalf("\t%s\tTest 1:\tShould reject the nonce again in canonical case: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the nonce again in canonical case.", success)

			pending := st.QueryMempool()
			if len(pending) != 1 || pending[0].FromID != alice.Canonical() || pending[0].ToID != bob.Canonical() {
				t.Fatalf("\t%s\tTest 1:\tShould hold the transfer with canonical ids: %+v", failed, pending)
			}
			t.Logf("\t%s\tTest 1:\tShould hold the transfer with canonical ids.", success)
		}

		t.Logf("\tTest 2:\tWhen the block is replayed on restart.")
		{
			if _, _, err := st.AssembleBlock(ctx); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to assemble: %v", failed, err)
			}
			if err := st.Shutdown(); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to shut down: %v", failed, err)
			}

			reopened := newState(t, store)
			if balance(t, reopened, alice) != 990 || balance(t, reopened, bob) != 10 {
				t.Fatalf("\t%s\tTest 2:\tShould replay to the same balances.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould replay to the same balances.", success)
		}
	}
}

func TestAssembleBlock(t *testing.T) {
	t.Log("Given the need to commit transfers into blocks.")
	{
		ctx := context.Background()
		store := memory.New()
		st := newState(t, store)

		if _, _, err := st.AssembleBlock(ctx); !errors.Is(err, state.ErrNoTransactions) {
			t.Fatalf("\t%s\tShould get ErrNoTransactions on an empty mempool: %v", failed, err)
		}

		for i, tx := range []database.Tx{transfer(1, alice, bob, 10), transfer(1, bob, alice, 4), transfer(2, alice, bob, 1)} {
			if err := st.Transfer(ctx, tx); err != nil {
				t.Fatalf("\t%s\tShould be able to apply transfer %d: %v", failed, i, err)
			}
		}

		var block database.Block

		t.Logf("\tTest 0:\tWhen assembling the pending transfers.")
		{
			b, number, err := st.AssembleBlock(ctx)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to assemble a block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould be able to assemble a block.", success)
			block = b

			if number != 1 || len(b.Transactions) != 3 {
				t.Fatalf("\t%s\tTest 0:\tShould be block 1 with 3 transfers, got %d with %d.", failed, number, len(b.Transactions))
			}
			t.Logf("\t%s\tTest 0:\tShould be block 1 with 3 transfers.", success)

			if err := b.VerifyIdentity(); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould carry a valid identity: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould carry a valid identity.", success)

			root, err := st.QueryRoot()
			if err != nil || root != b.StateRoot {
				t.Fatalf("\t%s\tTest 0:\tShould commit to the current root: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould commit to the current root.", success)

			if got := balance(t, st, miner); got != 700 {
				t.Fatalf("\t%s\tTest 0:\tShould credit the miner with 700, got %d.", failed, got)
			}
			t.Logf("\t%s\tTest 0:\tShould credit the miner.", success)

			entries := st.QueryLedger()
			if len(entries) != 1 || entries[0].Amount.Int64() != 700 {
				t.Fatalf("\t%s\tTest 0:\tShould credit the miner in the ledger: %v", failed, entries)
			}
			t.Logf("\t%s\tTest 0:\tShould credit the miner in the ledger.", success)

			if st.QueryMempoolLength() != 0 {
				t.Fatalf("\t%s\tTest 0:\tShould empty the mempool.", failed)
			}
			t.Logf("\t%s\tTest 0:\tShould empty the mempool.", success)
		}

		t.Logf("\tTest 1:\tWhen assembling a second block.")
		{
			if err := st.Transfer(ctx, transfer(2, bob, miner, 2)); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to transfer: %v", failed, err)
			}

			_, number, err := st.AssembleBlock(ctx)
			if err != nil || number != 2 {
				t.Fatalf("\t%s\tTest 1:\tShould assemble block 2: %d %v", failed, number, err)
			}
			t.Logf("\t%s\tTest 1:\tShould assemble block 2.", success)

			entries := st.QueryLedger()
			if len(entries) != 1 || entries[0].Amount.Int64() != 1400 {
				t.Fatalf("\t%s\tTest 1:\tShould accumulate the ledger amount: %v", failed, entries)
			}
			t.Logf("\t%s\tTest 1:\tShould accumulate the ledger amount.", success)

			blocks, err := st.QueryBlocksByNumber(ctx, 1, state.QueryLastest)
			if err != nil || len(blocks) != 2 || blocks[0].Block.Hash() != block.Hash() {
				t.Fatalf("\t%s\tTest 1:\tShould query both blocks: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould query both blocks.", success)
		}

		t.Logf("\tTest 2:\tWhen reopening the store.")
		{
			before, err := st.QueryRoot()
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to get the root: %v", failed, err)
			}

			if err := st.Shutdown(); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to shut down: %v", failed, err)
			}

			reopened := newState(t, store)

			after, err := reopened.QueryRoot()
			if err != nil || before != after {
				t.Fatalf("\t%s\tTest 2:\tShould reopen at the same root: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reopen at the same root.", success)

			if balance(t, reopened, miner) != 1402 || balance(t, reopened, alice) != 993 {
				t.Fatalf("\t%s\tTest 2:\tShould read back the balances.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould read back the balances.", success)

			entries := reopened.QueryLedger()
			if len(entries) != 1 || entries[0].Amount.Int64() != 1400 {
				t.Fatalf("\t%s\tTest 2:\tShould load the ledger: %v", failed, entries)
			}
			t.Logf("\t%s\tTest 2:\tShould load the ledger.", success)

			got, err := reopened.QueryBlockByIdentity(ctx, block.Hash())
			if err != nil || got.Hash() != block.Hash() {
				t.Fatalf("\t%s\tTest 2:\tShould find block 1 by identity: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould find block 1 by identity.", success)
		}
	}
}

func TestVerifyBlock(t *testing.T) {
	t.Log("Given the need to verify a block proposed on top of the chain.")
	{
		ctx := context.Background()

		producer := newState(t, memory.New())
		verifier := newState(t, memory.New())

		if err := producer.Transfer(ctx, transfer(1, alice, bob, 25)); err != nil {
			t.Fatalf("\t%s\tShould be able to transfer: %v", failed, err)
		}

		block, _, err := producer.AssembleBlock(ctx)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to assemble a block: %v", failed, err)
		}

		t.Logf("\tTest 0:\tWhen the block replays to its state root.")
		{
			if err := verifier.VerifyBlock(ctx, block); err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould verify the block: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould verify the block.", success)
		}

		t.Logf("\tTest 1:\tWhen the state root was changed after hashing.")
		{
			tampered := block
			tampered.StateRoot = digest.Sum([]byte("forged"))

			if err := verifier.VerifyBlock(ctx, tampered); !errors.Is(err, database.ErrIdentityMismatch) {
				t.Fatalf("\t%s\tTest 1:\tShould get ErrIdentityMismatch: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get ErrIdentityMismatch.", success)
		}

		t.Logf("\tTest 2:\tWhen the block commits to a root its transfers do not produce.")
		{
			forged, err := database.NewBlock(block.MinerAddress, block.Transactions, digest.Sum([]byte("forged")))
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to build the block: %v", failed, err)
			}

			if err := verifier.VerifyBlock(ctx, forged); !errors.Is(err, state.ErrStateRootMismatch) {
				t.Fatalf("\t%s\tTest 2:\tShould get ErrStateRootMismatch: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould get ErrStateRootMismatch.", success)
		}

		t.Logf("\tTest 3:\tWhen the block is missing its identity.")
		{
			broken := block
			broken.Identity = nil

			if err := verifier.VerifyBlock(ctx, broken); !errors.Is(err, database.ErrInvalidHash) {
				t.Fatalf("\t%s\tTest 3:\tShould get ErrInvalidHash: %v", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould get ErrInvalidHash.", success)
		}
	}
}

func TestAccountProof(t *testing.T) {
	t.Log("Given the need to prove an account is held by the state.")
	{
		ctx := context.Background()
		st := newState(t, memory.New())

		if err := st.Transfer(ctx, transfer(1, alice, bob, 30)); err != nil {
			t.Fatalf("\t%s\tShould be able to transfer: %v", failed, err)
		}

		t.Logf("\tTest 0:\tWhen proving bob's account.")
		{
			ap, err := st.QueryAccountProof(ctx, bob)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to build the proof: %v", failed, err)
			}

			value, err := trie.VerifyProof(ap.Root, bob.Bytes(), ap.Proof)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould verify against the root: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould verify against the root.", success)

			acct, err := database.DecodeAccount(bob, value)
			if err != nil || acct.Balance.Int64() != 30 {
				t.Fatalf("\t%s\tTest 0:\tShould prove a balance of 30: %v", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould prove a balance of 30.", success)
		}

		t.Logf("\tTest 1:\tWhen listing every account.")
		{
			accounts, err := st.QueryAccounts(ctx)
			if err != nil || len(accounts) != 2 {
				t.Fatalf("\t%s\tTest 1:\tShould list two accounts: %v %v", failed, accounts, err)
			}
			t.Logf("\t%s\tTest 1:\tShould list two accounts.", success)
		}
	}
}
