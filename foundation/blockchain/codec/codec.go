// Package codec provides the length prefixed binary encoding shared by trie
// nodes, blocks and ledger tables. All multi-byte integers are big endian.
//
// Every decode function takes the buffer and the offset to start reading at
// and returns the decoded value with the offset just past it. Decoders never
// read past the declared length and report ErrMalformedEncoding rather than
// truncating.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

// Set of error variables for encoding and decoding.
var (
	ErrMalformedEncoding = errors.New("malformed encoding")
	ErrLengthOverflow    = errors.New("length does not fit prefix")
	ErrNegativeBigInt    = errors.New("negative big integer")
)

// Maximum values that fit the fixed width prefixes.
const (
	MaxLen1 = 0xFF
	MaxLen2 = 0xFFFF
)

// =============================================================================

// EncodeLen1 encodes n as a single byte.
func EncodeLen1(n int) ([]byte, error) {
	if n < 0 || n > MaxLen1 {
		return nil, fmt.Errorf("%w: %d exceeds 1 byte", ErrLengthOverflow, n)
	}

	return []byte{byte(n)}, nil
}

// EncodeLen2 encodes n as two bytes.
func EncodeLen2(n int) ([]byte, error) {
	if n < 0 || n > MaxLen2 {
		return nil, fmt.Errorf("%w: %d exceeds 2 bytes", ErrLengthOverflow, n)
	}

	return binary.BigEndian.AppendUint16(nil, uint16(n)), nil
}

// EncodeBytes1 encodes b with a 1 byte length prefix.
func EncodeBytes1(b []byte) ([]byte, error) {
	prefix, err := EncodeLen1(len(b))
	if err != nil {
		return nil, err
	}

	return append(prefix, b...), nil
}

// EncodeBytes2 encodes b with a 2 byte length prefix.
func EncodeBytes2(b []byte) ([]byte, error) {
	prefix, err := EncodeLen2(len(b))
	if err != nil {
		return nil, err
	}

	return append(prefix, b...), nil
}

// EncodeBigInt encodes a non-negative integer as a 1 byte length followed by
// the big endian magnitude. Zero is encoded as a zero length.
func EncodeBigInt(n *big.Int) ([]byte, error) {
	if n == nil {
		n = new(big.Int)
	}

	if n.Sign() < 0 {
		return nil, ErrNegativeBigInt
	}

	return EncodeBytes1(n.Bytes())
}

// =============================================================================

// DecodeFixed returns the n bytes found at offset.
func DecodeFixed(buf []byte, offset int, n int) ([]byte, int, error) {
	if offset < 0 || n < 0 || offset > len(buf) || len(buf)-offset < n {
		return nil, offset, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrMalformedEncoding, n, offset, len(buf)-offset)
	}

	out := make([]byte, n)
	copy(out, buf[offset:offset+n])

	return out, offset + n, nil
}

// DecodeLen1 decodes a 1 byte length.
func DecodeLen1(buf []byte, offset int) (int, int, error) {
	b, next, err := DecodeFixed(buf, offset, 1)
	if err != nil {
		return 0, offset, err
	}

	return int(b[0]), next, nil
}

// DecodeLen2 decodes a 2 byte length.
func DecodeLen2(buf []byte, offset int) (int, int, error) {
	b, next, err := DecodeFixed(buf, offset, 2)
	if err != nil {
		return 0, offset, err
	}

	return int(binary.BigEndian.Uint16(b)), next, nil
}

// DecodeBytes1 decodes a byte string with a 1 byte length prefix.
func DecodeBytes1(buf []byte, offset int) ([]byte, int, error) {
	n, next, err := DecodeLen1(buf, offset)
	if err != nil {
		return nil, offset, err
	}

	b, next, err := DecodeFixed(buf, next, n)
	if err != nil {
		return nil, offset, err
	}

	return b, next, nil
}

// DecodeBytes2 decodes a byte string with a 2 byte length prefix.
func DecodeBytes2(buf []byte, offset int) ([]byte, int, error) {
	n, next, err := DecodeLen2(buf, offset)
	if err != nil {
		return nil, offset, err
	}

	b, next, err := DecodeFixed(buf, next, n)
	if err != nil {
		return nil, offset, err
	}

	return b, next, nil
}

// DecodeBigInt decodes an integer written by EncodeBigInt. A magnitude with
// a leading zero byte is not canonical and is rejected.
func DecodeBigInt(buf []byte, offset int) (*big.Int, int, error) {
	mag, next, err := DecodeBytes1(buf, offset)
	if err != nil {
		return nil, offset, err
	}

	if len(mag) > 0 && mag[0] == 0 {
		return nil, offset, fmt.Errorf("%w: big integer has leading zero", ErrMalformedEncoding)
	}

	return new(big.Int).SetBytes(mag), next, nil
}
