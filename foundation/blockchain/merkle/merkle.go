// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.
// This code has been cleaned up, refactored, and turned into generics.

// Package merkle provides a merkle tree used to commit to the ordered set of
// transactions carried by a block.
package merkle

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
)

// Set of error variables for building and checking trees.
var (
	ErrNoValues     = errors.New("cannot construct tree with no content")
	ErrValueUnknown = errors.New("unable to find data in tree")
	ErrInvalidProof = errors.New("merkle root is not equivalent to the root calculated on the path")
)

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() (digest.Digest, error)
	Equals(other T) bool
}

// Side says where a proof hash is placed when it is combined with the hash
// computed so far.
type Side int8

// Set of sides a proof hash can be concatenated on.
const (
	Left  Side = 0
	Right Side = 1
)

// Proof is the set of sibling hashes from a leaf to the root.
type Proof struct {
	Hashes []digest.Digest `json:"hashes"`
	Order  []Side          `json:"order"`
}

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits
// the behavior defined by the Hashable constraint. Levels are stored bottom
// up, the leaves first and the root last, and a level with an odd number of
// hashes pairs its last hash with itself.
type Tree[T Hashable[T]] struct {
	values []T
	levels [][]digest.Digest
}

// NewTree constructs a merkle tree over the values in their given order.
func NewTree[T Hashable[T]](values []T) (*Tree[T], error) {
	if len(values) == 0 {
		return nil, ErrNoValues
	}

	leaves := make([]digest.Digest, len(values))
	for i, value := range values {
		h, err := value.Hash()
		if err != nil {
			return nil, fmt.Errorf("hash value %d: %w", i, err)
		}
		leaves[i] = h
	}

	t := Tree[T]{
		values: append([]T(nil), values...),
		levels: [][]digest.Digest{leaves},
	}

	for level := leaves; len(level) > 1; {
		level = parents(level)
		t.levels = append(t.levels, level)
	}

	return &t, nil
}

// Root returns the merkle root of the tree.
func (t *Tree[T]) Root() digest.Digest {
	return t.levels[len(t.levels)-1][0]
}

// RootHex converts the merkle root to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return t.Root().Hex()
}

// Values returns the values the tree was built from.
func (t *Tree[T]) Values() []T {
	return append([]T(nil), t.values...)
}

// Proof returns the set of hashes and the order of concatenating those
// hashes for proving a value is in the tree.
//
// Hash the value in question, then for every hash in the proof combine the
// running hash with it, placing the proof hash first when its order is Left
// and second when its order is Right. The final hash equals the root.
func (t *Tree[T]) Proof(data T) (Proof, error) {
	index := -1
	for i, value := range t.values {
		if value.Equals(data) {
			index = i
			break
		}
	}

	if index == -1 {
		return Proof{}, ErrValueUnknown
	}

	var proof Proof
	for _, level := range t.levels[:len(t.levels)-1] {
		switch {
		case index%2 == 1:
			proof.Hashes = append(proof.Hashes, level[index-1])
			proof.Order = append(proof.Order, Left)

		case index+1 < len(level):
			proof.Hashes = append(proof.Hashes, level[index+1])
			proof.Order = append(proof.Order, Right)

		default:
			proof.Hashes = append(proof.Hashes, level[index])
			proof.Order = append(proof.Order, Right)
		}

		index /= 2
	}

	return proof, nil
}

// Verify recomputes every level of the tree from the values and checks the
// result against the stored root.
func (t *Tree[T]) Verify() error {
	rebuilt, err := NewTree(t.values)
	if err != nil {
		return err
	}

	if rebuilt.Root() != t.Root() {
		return ErrInvalidProof
	}

	return nil
}

// VerifyData indicates whether a given piece of data is in the tree and if
// the hashes on its path produce the root.
func (t *Tree[T]) VerifyData(data T) error {
	proof, err := t.Proof(data)
	if err != nil {
		return err
	}

	h, err := data.Hash()
	if err != nil {
		return err
	}

	return VerifyProof(t.Root(), h, proof)
}

// =============================================================================

// VerifyProof checks that the leaf hash combined with the proof produces the
// specified root.
func VerifyProof(root digest.Digest, leaf digest.Digest, proof Proof) error {
	if len(proof.Hashes) != len(proof.Order) {
		return fmt.Errorf("%w: %d hashes for %d sides", ErrInvalidProof, len(proof.Hashes), len(proof.Order))
	}

	h := leaf
	for i, sibling := range proof.Hashes {
		switch proof.Order[i] {
		case Left:
			h = combine(sibling, h)
		case Right:
			h = combine(h, sibling)
		default:
			return fmt.Errorf("%w: unknown side %d", ErrInvalidProof, proof.Order[i])
		}
	}

	if h != root {
		return ErrInvalidProof
	}

	return nil
}

// parents computes the level above the specified one.
func parents(level []digest.Digest) []digest.Digest {
	next := make([]digest.Digest, 0, (len(level)+1)/2)

	for i := 0; i < len(level); i += 2 {
		right := i + 1
		if right == len(level) {
			right = i
		}
		next = append(next, combine(level[i], level[right]))
	}

	return next
}

func combine(left, right digest.Digest) digest.Digest {
	var buf [2 * digest.Size]byte
	copy(buf[:digest.Size], left[:])
	copy(buf[digest.Size:], right[:])

	return digest.Sum(buf[:])
}
