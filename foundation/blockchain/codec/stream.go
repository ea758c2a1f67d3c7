package codec

import (
	"fmt"
	"math/big"
)

// Writer appends encoded values to a buffer. The first error is kept and
// every write after it is ignored, so a sequence of writes can be checked
// once at the end.
type Writer struct {
	buf []byte
	err error
}

// NewWriter constructs a writer with the specified initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

func (w *Writer) append(b []byte, err error) {
	if w.err != nil {
		return
	}

	if err != nil {
		w.err = err
		return
	}

	w.buf = append(w.buf, b...)
}

// Len1 writes a 1 byte length.
func (w *Writer) Len1(n int) { w.append(EncodeLen1(n)) }

// Len2 writes a 2 byte length.
func (w *Writer) Len2(n int) { w.append(EncodeLen2(n)) }

// Bytes1 writes a byte string with a 1 byte length prefix.
func (w *Writer) Bytes1(b []byte) { w.append(EncodeBytes1(b)) }

// Bytes2 writes a byte string with a 2 byte length prefix.
func (w *Writer) Bytes2(b []byte) { w.append(EncodeBytes2(b)) }

// BigInt writes a non-negative big integer.
func (w *Writer) BigInt(n *big.Int) { w.append(EncodeBigInt(n)) }

// Fixed writes b without any prefix.
func (w *Writer) Fixed(b []byte) { w.append(b, nil) }

// Byte writes a single raw byte.
func (w *Writer) Byte(b byte) { w.append([]byte{b}, nil) }

// Result returns the encoded bytes or the first error encountered.
func (w *Writer) Result() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}

	return w.buf, nil
}

// =============================================================================

// Reader decodes values from a buffer, tracking the offset.
type Reader struct {
	buf    []byte
	offset int
}

// NewReader constructs a reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the current read position.
func (r *Reader) Offset() int {
	return r.offset
}

// Remaining returns the number of bytes not yet read.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.offset
}

// Len1 reads a 1 byte length.
func (r *Reader) Len1() (int, error) {
	n, next, err := DecodeLen1(r.buf, r.offset)
	if err != nil {
		return 0, err
	}

	r.offset = next
	return n, nil
}

// Len2 reads a 2 byte length.
func (r *Reader) Len2() (int, error) {
	n, next, err := DecodeLen2(r.buf, r.offset)
	if err != nil {
		return 0, err
	}

	r.offset = next
	return n, nil
}

// Bytes1 reads a byte string with a 1 byte length prefix.
func (r *Reader) Bytes1() ([]byte, error) {
	b, next, err := DecodeBytes1(r.buf, r.offset)
	if err != nil {
		return nil, err
	}

	r.offset = next
	return b, nil
}

// Bytes2 reads a byte string with a 2 byte length prefix.
func (r *Reader) Bytes2() ([]byte, error) {
	b, next, err := DecodeBytes2(r.buf, r.offset)
	if err != nil {
		return nil, err
	}

	r.offset = next
	return b, nil
}

// BigInt reads a non-negative big integer.
func (r *Reader) BigInt() (*big.Int, error) {
	n, next, err := DecodeBigInt(r.buf, r.offset)
	if err != nil {
		return nil, err
	}

	r.offset = next
	return n, nil
}

// Fixed reads exactly n bytes.
func (r *Reader) Fixed(n int) ([]byte, error) {
	b, next, err := DecodeFixed(r.buf, r.offset, n)
	if err != nil {
		return nil, err
	}

	r.offset = next
	return b, nil
}

// Byte reads a single raw byte.
func (r *Reader) Byte() (byte, error) {
	b, err := r.Fixed(1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// Done fails if there are unread bytes left in the buffer.
func (r *Reader) Done() error {
	if r.Remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedEncoding, r.Remaining())
	}

	return nil
}
