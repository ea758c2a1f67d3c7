package database

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/ardanlabs/statechain/foundation/blockchain/codec"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
)

// ErrInvalidTx is returned when a transfer is not well formed.
var ErrInvalidTx = errors.New("invalid transaction")

// Tx is a transfer of value between two accounts.
type Tx struct {
	Nonce  uint64    `json:"nonce"`
	FromID AccountID `json:"from"`
	ToID   AccountID `json:"to"`
	Value  *big.Int  `json:"value"`
}

// NewTx constructs a new transaction with the account ids in canonical form.
func NewTx(nonce uint64, fromID AccountID, toID AccountID, value *big.Int) (Tx, error) {
	tx := Tx{
		Nonce:  nonce,
		FromID: fromID,
		ToID:   toID,
		Value:  value,
	}

	if err := tx.Validate(); err != nil {
		return Tx{}, err
	}

	tx.FromID = tx.FromID.Canonical()
	tx.ToID = tx.ToID.Canonical()

	return tx, nil
}

// Validate checks the accounts and the value of the transfer.
func (tx Tx) Validate() error {
	if !tx.FromID.IsAccountID() {
		return fmt.Errorf("%w: from account is not properly formatted", ErrInvalidTx)
	}

	if !tx.ToID.IsAccountID() {
		return fmt.Errorf("%w: to account is not properly formatted", ErrInvalidTx)
	}

	if bytes.Equal(tx.FromID.Bytes(), tx.ToID.Bytes()) {
		return fmt.Errorf("%w: sending money to yourself, from %s, to %s", ErrInvalidTx, tx.FromID, tx.ToID)
	}

	if tx.Value == nil || tx.Value.Sign() <= 0 {
		return fmt.Errorf("%w: value must be positive", ErrInvalidTx)
	}

	return nil
}

// Encode returns the record of the transaction as it is carried by a block.
//
//	Bytes1(from) ++ Bytes1(to) ++ BigInt(nonce) ++ BigInt(value)
func (tx Tx) Encode() (BlockTx, error) {
	w := codec.NewWriter(2*(AddressLength+1) + 20)
	w.Bytes1(tx.FromID.Bytes())
	w.Bytes1(tx.ToID.Bytes())
	w.BigInt(new(big.Int).SetUint64(tx.Nonce))
	w.BigInt(tx.Value)

	data, err := w.Result()
	if err != nil {
		return nil, err
	}

	return BlockTx(data), nil
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:%d", tx.FromID, tx.Nonce)
}

// =============================================================================

// BlockTx is a transaction record as it is carried by a block. The block
// treats it as opaque bytes.
type BlockTx []byte

// Hash implements the merkle Hashable interface.
func (tx BlockTx) Hash() (digest.Digest, error) {
	return digest.Sum(tx), nil
}

// Equals implements the merkle Hashable interface.
func (tx BlockTx) Equals(other BlockTx) bool {
	return bytes.Equal(tx, other)
}

// Decode reads the transfer held by the record.
func (tx BlockTx) Decode() (Tx, error) {
	r := codec.NewReader(tx)

	from, err := r.Bytes1()
	if err != nil {
		return Tx{}, err
	}

	to, err := r.Bytes1()
	if err != nil {
		return Tx{}, err
	}

	nonce, err := r.BigInt()
	if err != nil {
		return Tx{}, err
	}

	value, err := r.BigInt()
	if err != nil {
		return Tx{}, err
	}

	if err := r.Done(); err != nil {
		return Tx{}, err
	}

	fromID, err := BytesToAccountID(from)
	if err != nil {
		return Tx{}, fmt.Errorf("%w: %w", codec.ErrMalformedEncoding, err)
	}

	toID, err := BytesToAccountID(to)
	if err != nil {
		return Tx{}, fmt.Errorf("%w: %w", codec.ErrMalformedEncoding, err)
	}

	if !nonce.IsUint64() {
		return Tx{}, fmt.Errorf("%w: nonce out of range", codec.ErrMalformedEncoding)
	}

	decoded := Tx{
		Nonce:  nonce.Uint64(),
		FromID: fromID,
		ToID:   toID,
		Value:  value,
	}

	return decoded, nil
}
