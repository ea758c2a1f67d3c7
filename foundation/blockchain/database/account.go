package database

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ardanlabs/statechain/foundation/blockchain/codec"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressLength is the fixed width of an account address in bytes.
const AddressLength = common.AddressLength

// ErrInvalidAccountID is returned when a string is not a hex-encoded address.
var ErrInvalidAccountID = errors.New("invalid account format")

// Account represents information stored in the state trie for an individual
// account.
type Account struct {
	AccountID AccountID `json:"account"`
	Nonce     uint64    `json:"nonce"`
	Balance   *big.Int  `json:"balance"`
}

// NewAccount constructs a new account value for use.
func NewAccount(accountID AccountID, balance *big.Int) Account {
	if balance == nil {
		balance = new(big.Int)
	}

	return Account{
		AccountID: accountID,
		Balance:   new(big.Int).Set(balance),
	}
}

// Encode returns the bytes stored in the trie for the account. The account
// id is the trie key and is not part of the value.
//
//	BigInt(nonce) ++ BigInt(balance)
func (a Account) Encode() ([]byte, error) {
	balance := a.Balance
	if balance == nil {
		balance = new(big.Int)
	}

	w := codec.NewWriter(2 + 8 + len(balance.Bytes()))
	w.BigInt(new(big.Int).SetUint64(a.Nonce))
	w.BigInt(balance)

	return w.Result()
}

// DecodeAccount reads an account value stored under the account id.
func DecodeAccount(accountID AccountID, data []byte) (Account, error) {
	r := codec.NewReader(data)

	nonce, err := r.BigInt()
	if err != nil {
		return Account{}, fmt.Errorf("nonce: %w", err)
	}

	if !nonce.IsUint64() {
		return Account{}, fmt.Errorf("%w: nonce out of range", codec.ErrMalformedEncoding)
	}

	balance, err := r.BigInt()
	if err != nil {
		return Account{}, fmt.Errorf("balance: %w", err)
	}

	if err := r.Done(); err != nil {
		return Account{}, err
	}

	acct := Account{
		AccountID: accountID,
		Nonce:     nonce.Uint64(),
		Balance:   balance,
	}

	return acct, nil
}

// =============================================================================

// AccountID represents an account id that is used to identify an account in
// the state trie and as the miner of a block.
type AccountID string

// ToAccountID converts a hex-encoded string to an account and validates the
// hex-encoded string is formatted correctly.
func ToAccountID(hex string) (AccountID, error) {
	a := AccountID(hex)
	if !a.IsAccountID() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountID, hex)
	}

	return AccountID(common.HexToAddress(hex).Hex()), nil
}

// BytesToAccountID converts a fixed width address to an account id.
func BytesToAccountID(b []byte) (AccountID, error) {
	if len(b) != AddressLength {
		return "", fmt.Errorf("%w: %d bytes", ErrInvalidAccountID, len(b))
	}

	return AccountID(common.BytesToAddress(b).Hex()), nil
}

// PublicKeyToAccountID converts the public key to an account value.
func PublicKeyToAccountID(pk ecdsa.PublicKey) AccountID {
	return AccountID(crypto.PubkeyToAddress(pk).Hex())
}

// IsAccountID verifies whether the underlying data represents a valid
// hex-encoded account.
func (a AccountID) IsAccountID() bool {
	return common.IsHexAddress(string(a))
}

// Canonical returns the checksummed form of the account id. Ids that differ
// only by letter case name the same account and share one canonical form.
func (a AccountID) Canonical() AccountID {
	return AccountID(common.HexToAddress(string(a)).Hex())
}

// Bytes returns the fixed width address. This is the key of the account in
// the state trie.
func (a AccountID) Bytes() []byte {
	return common.HexToAddress(string(a)).Bytes()
}
