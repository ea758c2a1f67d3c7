// Package database handles the records that commit to the state of the
// blockchain: accounts stored in the state trie, transactions and the blocks
// that carry them.
package database

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/codec"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
	"github.com/ardanlabs/statechain/foundation/blockchain/merkle"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-playground/validator/v10"
)

// Set of error variables for block validation.
var (
	ErrInvalidMinerAddress = errors.New("invalid miner address")
	ErrInvalidHash         = errors.New("invalid hash")
	ErrIdentityMismatch    = errors.New("identity does not match block contents")
	ErrTxNotInBlock        = errors.New("transaction is not in the block")
)

// validate holds the settings and caches for validating block fields.
var validate = validator.New()

// =============================================================================

// Block represents a group of transactions batched together along with the
// state root they produce. The identity is computed from the header fields
// and is never changed in place.
type Block struct {
	MinerAddress []byte        `validate:"required,len=20"`
	Transactions []BlockTx     `validate:"-"`
	StateRoot    digest.Digest `validate:"-"`
	Identity     []byte        `validate:"required,len=32"`
}

// NewBlock constructs a block produced locally and computes its identity.
func NewBlock(minerAddress []byte, txs []BlockTx, stateRoot digest.Digest) (Block, error) {
	if len(minerAddress) != AddressLength {
		return Block{}, fmt.Errorf("%w: got %d bytes, exp %d", ErrInvalidMinerAddress, len(minerAddress), AddressLength)
	}

	b := Block{
		MinerAddress: bytes.Clone(minerAddress),
		Transactions: cloneTxs(txs),
		StateRoot:    stateRoot,
	}

	id, err := ComputeIdentity(b)
	if err != nil {
		return Block{}, err
	}
	b.Identity = id.Bytes()

	return b, nil
}

// ComputeIdentity returns the double hash of the canonical header bytes.
func ComputeIdentity(b Block) (digest.Digest, error) {
	header, err := CanonicalHeaderBytes(b)
	if err != nil {
		return digest.Zero, err
	}

	return digest.DoubleSum(header), nil
}

// CanonicalHeaderBytes encodes the header fields the identity commits to.
//
//	Bytes1(minerAddress) ++ stateRoot ++ txRoot ++ Len2(txCount)
//
// The transaction root is the merkle root of the transaction records, or
// the zero digest when the block carries none.
func CanonicalHeaderBytes(b Block) ([]byte, error) {
	txRoot, err := TxRoot(b.Transactions)
	if err != nil {
		return nil, err
	}

	return headerBytes(b.MinerAddress, b.StateRoot, txRoot, len(b.Transactions))
}

// TxRoot returns the merkle root of the transaction records.
func TxRoot(txs []BlockTx) (digest.Digest, error) {
	if len(txs) == 0 {
		return digest.Zero, nil
	}

	tree, err := merkle.NewTree(txs)
	if err != nil {
		return digest.Zero, err
	}

	return tree.Root(), nil
}

// Validate checks the miner address and identity are present and of the
// right width. It does not recompute the identity.
func (b Block) Validate() error {
	err := validate.Struct(b)
	if err == nil {
		return nil
	}

	var verrors validator.ValidationErrors
	if !errors.As(err, &verrors) {
		return err
	}

	switch verrors[0].StructField() {
	case "MinerAddress":
		return fmt.Errorf("%w: %d bytes", ErrInvalidMinerAddress, len(b.MinerAddress))
	case "Identity":
		return fmt.Errorf("%w: %d bytes", ErrInvalidHash, len(b.Identity))
	}

	return err
}

// VerifyIdentity recomputes the identity and compares it with the one the
// block carries.
func (b Block) VerifyIdentity() error {
	if err := b.Validate(); err != nil {
		return err
	}

	id, err := ComputeIdentity(b)
	if err != nil {
		return err
	}

	if !bytes.Equal(id[:], b.Identity) {
		return fmt.Errorf("%w: got %s, exp %s", ErrIdentityMismatch, hexutil.Encode(b.Identity), id)
	}

	return nil
}

// Hash returns the identity of the block as a digest.
func (b Block) Hash() digest.Digest {
	d, err := digest.FromBytes(b.Identity)
	if err != nil {
		return digest.Zero
	}

	return d
}

// Encode returns the binary form of the block used for storage.
//
//	Bytes1(minerAddress) ++ stateRoot ++ Len2(txCount) ++ {Bytes2(tx)} ++ Bytes1(identity)
func (b Block) Encode() ([]byte, error) {
	w := codec.NewWriter(64 + len(b.MinerAddress) + len(b.Transactions)*64)
	w.Bytes1(b.MinerAddress)
	w.Fixed(b.StateRoot[:])
	w.Len2(len(b.Transactions))
	for _, tx := range b.Transactions {
		w.Bytes2(tx)
	}
	w.Bytes1(b.Identity)

	return w.Result()
}

// DecodeBlock reads a block written by Encode. The identity is kept as
// supplied and must be checked with VerifyIdentity by the caller.
func DecodeBlock(data []byte) (Block, error) {
	r := codec.NewReader(data)

	var b Block
	var err error

	if b.MinerAddress, err = r.Bytes1(); err != nil {
		return Block{}, fmt.Errorf("miner address: %w", err)
	}

	root, err := r.Fixed(digest.Size)
	if err != nil {
		return Block{}, fmt.Errorf("state root: %w", err)
	}
	copy(b.StateRoot[:], root)

	count, err := r.Len2()
	if err != nil {
		return Block{}, fmt.Errorf("tx count: %w", err)
	}

	if count > r.Remaining()/2 {
		return Block{}, fmt.Errorf("%w: %d transactions in %d bytes", codec.ErrMalformedEncoding, count, r.Remaining())
	}

	b.Transactions = make([]BlockTx, 0, count)
	for i := 0; i < count; i++ {
		tx, err := r.Bytes2()
		if err != nil {
			return Block{}, fmt.Errorf("tx %d: %w", i, err)
		}
		b.Transactions = append(b.Transactions, tx)
	}

	if b.Identity, err = r.Bytes1(); err != nil {
		return Block{}, fmt.Errorf("identity: %w", err)
	}

	if err := r.Done(); err != nil {
		return Block{}, err
	}

	return b, nil
}

// =============================================================================

// BlockData represents the block as it is exchanged in JSON.
type BlockData struct {
	Identity     hexutil.Bytes   `json:"identity"`
	MinerAddress hexutil.Bytes   `json:"miner_address"`
	StateRoot    digest.Digest   `json:"state_root"`
	TxRoot       digest.Digest   `json:"tx_root"`
	Transactions []hexutil.Bytes `json:"transactions"`
}

// NewBlockData constructs the JSON form of the block.
func NewBlockData(b Block) (BlockData, error) {
	txRoot, err := TxRoot(b.Transactions)
	if err != nil {
		return BlockData{}, err
	}

	bd := BlockData{
		Identity:     bytes.Clone(b.Identity),
		MinerAddress: bytes.Clone(b.MinerAddress),
		StateRoot:    b.StateRoot,
		TxRoot:       txRoot,
		Transactions: make([]hexutil.Bytes, len(b.Transactions)),
	}

	for i, tx := range b.Transactions {
		bd.Transactions[i] = bytes.Clone(tx)
	}

	return bd, nil
}

// ToBlock converts the JSON form into a block. The identity is kept as
// supplied.
func ToBlock(bd BlockData) Block {
	b := Block{
		MinerAddress: bytes.Clone(bd.MinerAddress),
		StateRoot:    bd.StateRoot,
		Identity:     bytes.Clone(bd.Identity),
		Transactions: make([]BlockTx, len(bd.Transactions)),
	}

	for i, tx := range bd.Transactions {
		b.Transactions[i] = bytes.Clone(tx)
	}

	return b
}

// =============================================================================

// TxProofData is a transaction record with the header fields of its block
// and the merkle path from the record to the transaction root. Together
// they let a client tie the record to the block identity.
type TxProofData struct {
	Identity     hexutil.Bytes `json:"identity"`
	MinerAddress hexutil.Bytes `json:"miner_address"`
	StateRoot    digest.Digest `json:"state_root"`
	TxRoot       digest.Digest `json:"tx_root"`
	TxCount      int           `json:"tx_count"`
	Index        int           `json:"index"`
	Tx           hexutil.Bytes `json:"tx"`
	Proof        merkle.Proof  `json:"proof"`
}

// ProveTx returns the record at the index with the proof that the block
// identity commits to it.
func (b Block) ProveTx(index int) (TxProofData, error) {
	if index < 0 || index >= len(b.Transactions) {
		return TxProofData{}, fmt.Errorf("%w: index %d of %d", ErrTxNotInBlock, index, len(b.Transactions))
	}

	tree, err := merkle.NewTree(b.Transactions)
	if err != nil {
		return TxProofData{}, err
	}

	proof, err := tree.Proof(b.Transactions[index])
	if err != nil {
		return TxProofData{}, err
	}

	p := TxProofData{
		Identity:     bytes.Clone(b.Identity),
		MinerAddress: bytes.Clone(b.MinerAddress),
		StateRoot:    b.StateRoot,
		TxRoot:       tree.Root(),
		TxCount:      len(b.Transactions),
		Index:        index,
		Tx:           bytes.Clone(b.Transactions[index]),
		Proof:        proof,
	}

	return p, nil
}

// VerifyTxProof checks the header fields produce the identity and the record
// with its proof produces the transaction root. It returns the transfer the
// record holds.
func VerifyTxProof(p TxProofData) (Tx, error) {
	if p.Index < 0 || p.Index >= p.TxCount {
		return Tx{}, fmt.Errorf("%w: index %d of %d", ErrTxNotInBlock, p.Index, p.TxCount)
	}

	header, err := headerBytes(p.MinerAddress, p.StateRoot, p.TxRoot, p.TxCount)
	if err != nil {
		return Tx{}, err
	}

	if id := digest.DoubleSum(header); !bytes.Equal(id[:], p.Identity) {
		return Tx{}, fmt.Errorf("%w: got %s, exp %s", ErrIdentityMismatch, hexutil.Encode(p.Identity), id)
	}

	leaf, err := BlockTx(p.Tx).Hash()
	if err != nil {
		return Tx{}, err
	}

	if err := merkle.VerifyProof(p.TxRoot, leaf, p.Proof); err != nil {
		return Tx{}, fmt.Errorf("tx %d: %w", p.Index, err)
	}

	return BlockTx(p.Tx).Decode()
}

// =============================================================================

// headerBytes encodes the fields the identity commits to.
func headerBytes(minerAddress []byte, stateRoot digest.Digest, txRoot digest.Digest, txCount int) ([]byte, error) {
	if len(minerAddress) != AddressLength {
		return nil, fmt.Errorf("%w: got %d bytes, exp %d", ErrInvalidMinerAddress, len(minerAddress), AddressLength)
	}

	w := codec.NewWriter(1 + AddressLength + 2*digest.Size + 2)
	w.Bytes1(minerAddress)
	w.Fixed(stateRoot[:])
	w.Fixed(txRoot[:])
	w.Len2(txCount)

	return w.Result()
}

func cloneTxs(txs []BlockTx) []BlockTx {
	out := make([]BlockTx, len(txs))
	for i, tx := range txs {
		out[i] = bytes.Clone(tx)
	}
	return out
}
