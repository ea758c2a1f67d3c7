// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ardanlabs/statechain/business/web/errs"
	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
	"github.com/ardanlabs/statechain/foundation/blockchain/state"
	"github.com/ardanlabs/statechain/foundation/events"
	"github.com/ardanlabs/statechain/foundation/nameservice"
	"github.com/ardanlabs/statechain/foundation/web"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// rules maps the errors of the state to the status they are reported with.
var rules = []errs.Rule{
	{Target: database.ErrInvalidAccountID, Status: http.StatusBadRequest},
	{Target: database.ErrInvalidTx, Status: http.StatusBadRequest},
	{Target: database.ErrInvalidMinerAddress, Status: http.StatusBadRequest},
	{Target: database.ErrInvalidHash, Status: http.StatusBadRequest},
	{Target: database.ErrIdentityMismatch, Status: http.StatusBadRequest},
	{Target: state.ErrInvalidNonce, Status: http.StatusBadRequest},
	{Target: state.ErrInsufficientFunds, Status: http.StatusBadRequest},
	{Target: state.ErrStateRootMismatch, Status: http.StatusBadRequest},
	{Target: state.ErrNoTransactions, Status: http.StatusBadRequest},
	{Target: state.ErrAccountNotFound, Status: http.StatusNotFound},
	{Target: database.ErrBlockNotFound, Status: http.StatusNotFound},
	{Target: database.ErrTxNotInBlock, Status: http.StatusNotFound},
}

// Handlers manages the set of state endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.State.Genesis(), http.StatusOK)
}

// Root returns the root digest of the account trie.
func (h Handlers) Root(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	d, err := h.State.QueryRoot()
	if err != nil {
		return err
	}

	resp := root{
		Root:    d,
		Mempool: h.State.QueryMempoolLength(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Accounts returns every account held by the state.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accounts, err := h.State.QueryAccounts(ctx)
	if err != nil {
		return err
	}

	resp := make([]account, len(accounts))
	for i, acct := range accounts {
		resp[i] = h.toAccount(acct)
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Account returns the account at the address.
func (h Handlers) Account(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := database.ToAccountID(web.Param(r, "address"))
	if err != nil {
		return errs.Classify(err, rules...)
	}

	acct, err := h.State.QueryAccount(ctx, accountID)
	if err != nil {
		return errs.Classify(err, rules...)
	}

	return web.Respond(ctx, w, h.toAccount(acct), http.StatusOK)
}

// AccountProof returns the account at the address with the proof that the
// current root digest commits to it.
func (h Handlers) AccountProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID, err := database.ToAccountID(web.Param(r, "address"))
	if err != nil {
		return errs.Classify(err, rules...)
	}

	ap, err := h.State.QueryAccountProof(ctx, accountID)
	if err != nil {
		return errs.Classify(err, rules...)
	}

	resp := accountProof{
		account: h.toAccount(ap.Account),
		Root:    ap.Root,
		Proof:   make([]hexutil.Bytes, len(ap.Proof.Nodes)),
	}
	for i, n := range ap.Proof.Nodes {
		resp.Proof[i] = n
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Transfer applies a transfer between two accounts and holds it in the
// mempool for the next block.
func (h Handlers) Transfer(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req transferRequest
	if err := web.Decode(r, &req); err != nil {
		if web.IsFieldErrors(err) {
			return err
		}
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	value, ok := new(big.Int).SetString(req.Value, 10)
	if !ok {
		return errs.NewTrusted(fmt.Errorf("value %q is not a number", req.Value), http.StatusBadRequest)
	}

	fromID, err := database.ToAccountID(req.From)
	if err != nil {
		return errs.Classify(err, rules...)
	}

	toID, err := database.ToAccountID(req.To)
	if err != nil {
		return errs.Classify(err, rules...)
	}

	tx := database.Tx{
		Nonce:  req.Nonce,
		FromID: fromID,
		ToID:   toID,
		Value:  value,
	}

	h.Log.Infow("transfer", "traceid", web.GetTraceID(ctx), "from:nonce", tx, "to", tx.ToID, "value", tx.Value)

	if err := h.State.Transfer(ctx, tx); err != nil {
		return errs.Classify(err, rules...)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "transfer added to mempool",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Mempool returns the set of transfers not yet in a block.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mempool := h.State.QueryMempool()

	trans := make([]tx, len(mempool))
	for i, tran := range mempool {
		trans[i] = tx{
			FromAccount: tran.FromID,
			FromName:    h.NS.Lookup(tran.FromID),
			To:          tran.ToID,
			ToName:      h.NS.Lookup(tran.ToID),
			Nonce:       tran.Nonce,
			Value:       tran.Value.String(),
		}
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// LatestBlock returns the latest block written.
func (h Handlers) LatestBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	b, number, err := h.State.QueryLatestBlock(ctx)
	if err != nil {
		return errs.Classify(err, rules...)
	}

	return h.respondBlock(ctx, w, number, b)
}

// BlocksByNumber returns the blocks in the inclusive range. Either bound can
// be the word latest.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, err := blockNumber(web.Param(r, "from"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	to, err := blockNumber(web.Param(r, "to"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if from > to {
		return errs.NewTrusted(errors.New("from is greater than to"), http.StatusBadRequest)
	}

	blocks, err := h.State.QueryBlocksByNumber(ctx, from, to)
	if err != nil {
		return errs.Classify(err, rules...)
	}

	resp := make([]block, len(blocks))
	for i, nb := range blocks {
		bd, err := database.NewBlockData(nb.Block)
		if err != nil {
			return err
		}
		resp[i] = block{Number: nb.Number, Block: bd}
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlockByIdentity returns the block with the identity.
func (h Handlers) BlockByIdentity(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	identity, err := digest.FromHex(web.Param(r, "identity"))
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid identity: %w", err), http.StatusBadRequest)
	}

	b, err := h.State.QueryBlockByIdentity(ctx, identity)
	if err != nil {
		return errs.Classify(err, rules...)
	}

	bd, err := database.NewBlockData(b)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, bd, http.StatusOK)
}

// TxProof returns the transaction at the index of the block with the proof
// that the block identity commits to it.
func (h Handlers) TxProof(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	identity, err := digest.FromHex(web.Param(r, "identity"))
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid identity: %w", err), http.StatusBadRequest)
	}

	index, err := strconv.Atoi(web.Param(r, "index"))
	if err != nil {
		return errs.NewTrusted(fmt.Errorf("invalid index %q", web.Param(r, "index")), http.StatusBadRequest)
	}

	b, err := h.State.QueryBlockByIdentity(ctx, identity)
	if err != nil {
		return errs.Classify(err, rules...)
	}

	p, err := b.ProveTx(index)
	if err != nil {
		return errs.Classify(err, rules...)
	}

	return web.Respond(ctx, w, p, http.StatusOK)
}

// AssembleBlock writes the transfers in the mempool into a new block.
func (h Handlers) AssembleBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	b, number, err := h.State.AssembleBlock(ctx)
	if err != nil {
		return errs.Classify(err, rules...)
	}

	return h.respondBlock(ctx, w, number, b)
}

// VerifyBlock checks a block proposed on top of the latest block.
func (h Handlers) VerifyBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var bd database.BlockData
	if err := web.Decode(r, &bd); err != nil {
		return errs.NewTrusted(fmt.Errorf("unable to decode payload: %w", err), http.StatusBadRequest)
	}

	if err := h.State.VerifyBlock(ctx, database.ToBlock(bd)); err != nil {
		return errs.Classify(err, rules...)
	}

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "block verified",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Ledger returns the amounts credited to miners.
func (h Handlers) Ledger(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	entries := h.State.QueryLedger()

	resp := make([]ledgerEntry, len(entries))
	for i, e := range entries {
		resp[i] = ledgerEntry{
			Key:    e.Key,
			Name:   string(e.Key),
			Amount: e.Amount.String(),
		}

		if accountID, err := database.BytesToAccountID(e.Key); err == nil {
			resp[i].Name = h.NS.Lookup(accountID)
		}
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

func (h Handlers) toAccount(acct database.Account) account {
	return account{
		Account: acct.AccountID,
		Name:    h.NS.Lookup(acct.AccountID),
		Nonce:   acct.Nonce,
		Balance: acct.Balance.String(),
	}
}

func (h Handlers) respondBlock(ctx context.Context, w http.ResponseWriter, number uint64, b database.Block) error {
	bd, err := database.NewBlockData(b)
	if err != nil {
		return err
	}

	return web.Respond(ctx, w, block{Number: number, Block: bd}, http.StatusOK)
}

func blockNumber(s string) (uint64, error) {
	if s == "latest" {
		return state.QueryLastest, nil
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid block number %q", s)
	}

	return n, nil
}
