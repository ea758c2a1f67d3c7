package public

import (
	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type root struct {
	Root    digest.Digest `json:"root"`
	Mempool int           `json:"mempool"`
}

type account struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name"`
	Nonce   uint64             `json:"nonce"`
	Balance string             `json:"balance"`
}

type accountProof struct {
	account
	Root  digest.Digest   `json:"root"`
	Proof []hexutil.Bytes `json:"proof"`
}

type transferRequest struct {
	From  string `json:"from" validate:"required,eth_addr"`
	To    string `json:"to" validate:"required,eth_addr,nefield=From"`
	Nonce uint64 `json:"nonce" validate:"required"`
	Value string `json:"value" validate:"required,numeric"`
}

type tx struct {
	FromAccount database.AccountID `json:"from"`
	FromName    string             `json:"from_name"`
	To          database.AccountID `json:"to"`
	ToName      string             `json:"to_name"`
	Nonce       uint64             `json:"nonce"`
	Value       string             `json:"value"`
}

type block struct {
	Number uint64             `json:"number"`
	Block  database.BlockData `json:"block"`
}

type ledgerEntry struct {
	Key    hexutil.Bytes `json:"key"`
	Name   string        `json:"name"`
	Amount string        `json:"amount"`
}
