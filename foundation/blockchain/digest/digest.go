// Package digest provides the fixed cryptographic hash used across the
// blockchain. Trie nodes are identified by a single application of the hash
// and blocks by a chained double application.
package digest

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Size is the number of bytes produced by the hash function.
const Size = sha256.Size

// ErrInvalidLength is returned when bytes of the wrong width are converted
// into a digest.
var ErrInvalidLength = errors.New("invalid digest length")

// Digest represents the output of the hash function.
type Digest [Size]byte

// Zero represents a digest of all zeros.
var Zero Digest

// =============================================================================

// Sum returns the single hash of the data. This is what identifies a trie node.
func Sum(data []byte) Digest {
	return sha256.Sum256(data)
}

// DoubleSum returns the hash of the hash of the data. This is what
// identifies a block.
func DoubleSum(data []byte) Digest {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// FromBytes converts a slice of bytes into a digest. The slice must be
// exactly Size bytes long.
func FromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != Size {
		return d, fmt.Errorf("%w: got %d, exp %d", ErrInvalidLength, len(b), Size)
	}

	copy(d[:], b)
	return d, nil
}

// FromHex converts a 0x prefixed hex string into a digest.
func FromHex(s string) (Digest, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return Zero, err
	}

	return FromBytes(b)
}

// =============================================================================

// Bytes returns a copy of the digest as a slice.
func (d Digest) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, d[:])
	return b
}

// IsZero reports whether the digest is all zeros.
func (d Digest) IsZero() bool {
	return d == Zero
}

// Hex returns the 0x prefixed hex encoding of the digest.
func (d Digest) Hex() string {
	return hexutil.Encode(d[:])
}

// String implements the Stringer interface.
func (d Digest) String() string {
	return d.Hex()
}

// MarshalText implements the TextMarshaler interface so digests serialize
// as hex strings in JSON.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

// UnmarshalText implements the TextUnmarshaler interface.
func (d *Digest) UnmarshalText(text []byte) error {
	v, err := FromHex(string(text))
	if err != nil {
		return err
	}

	*d = v
	return nil
}
