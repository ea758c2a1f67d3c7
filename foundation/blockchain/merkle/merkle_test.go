// Copyright 2017 Cameron Bergoon
// https://github.com/cbergoon/merkletree
// Licensed under the MIT License, see LICENCE file for details.

package merkle_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
	"github.com/ardanlabs/statechain/foundation/blockchain/merkle"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// Data is a transaction like value for the tree.
type Data struct {
	x string
}

// Hash hashes the value.
func (d Data) Hash() (digest.Digest, error) {
	return digest.Sum([]byte(d.x)), nil
}

// Equals tests for equality of two piece of data.
func (d Data) Equals(other Data) bool {
	return d.x == other.x
}

func values(n int) []Data {
	data := make([]Data, n)
	for i := range data {
		data[i] = Data{x: fmt.Sprintf("tx-%d", i)}
	}
	return data
}

// =============================================================================

func TestRoot(t *testing.T) {
	t.Log("Given the need to commit to an ordered set of values.")
	{
		t.Logf("\tTest 0:\tWhen building trees by hand.")
		{
			a, _ := Data{x: "a"}.Hash()
			b, _ := Data{x: "b"}.Hash()
			c, _ := Data{x: "c"}.Hash()

			pair := func(l, r digest.Digest) digest.Digest {
				return digest.Sum(append(l.Bytes(), r.Bytes()...))
			}

			tt := []struct {
				data []Data
				exp  digest.Digest
			}{
				{data: []Data{{"a"}}, exp: a},
				{data: []Data{{"a"}, {"b"}}, exp: pair(a, b)},
				{data: []Data{{"a"}, {"b"}, {"c"}}, exp: pair(pair(a, b), pair(c, c))},
			}

			for i, tst := range tt {
				tree, err := merkle.NewTree(tst.data)
				if err != nil {
					t.Fatalf("\t%s\tTest 0:\tShould be able to build tree %d: %v", failed, i, err)
				}

				if tree.Root() != tst.exp {
					t.Fatalf("\t%s\tTest 0:\tShould get the expected root for tree %d: got %s", failed, i, tree.RootHex())
				}
			}
			t.Logf("\t%s\tTest 0:\tShould get the expected roots.", success)
		}

		t.Logf("\tTest 1:\tWhen building a tree with no values.")
		{
			if _, err := merkle.NewTree([]Data{}); !errors.Is(err, merkle.ErrNoValues) {
				t.Fatalf("\t%s\tTest 1:\tShould get ErrNoValues: %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould get ErrNoValues.", success)
		}

		t.Logf("\tTest 2:\tWhen changing the order of the values.")
		{
			data := values(4)

			first, err := merkle.NewTree(data)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to build the tree: %v", failed, err)
			}

			data[0], data[1] = data[1], data[0]
			second, err := merkle.NewTree(data)
			if err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould be able to build the tree: %v", failed, err)
			}

			if first.Root() == second.Root() {
				t.Fatalf("\t%s\tTest 2:\tShould get a different root.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould get a different root.", success)

			if err := first.Verify(); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould verify the tree: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould verify the tree.", success)
		}
	}
}

func TestProof(t *testing.T) {
	t.Log("Given the need to prove a value is part of the tree.")
	{
		for testID, size := range []int{1, 2, 3, 5, 8, 13} {
			t.Logf("\tTest %d:\tWhen the tree holds %d values.", testID, size)
			{
				data := values(size)

				tree, err := merkle.NewTree(data)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to build the tree: %v", failed, testID, err)
				}

				for _, d := range data {
					if err := tree.VerifyData(d); err != nil {
						t.Fatalf("\t%s\tTest %d:\tShould verify %s: %v", failed, testID, d.x, err)
					}
				}
				t.Logf("\t%s\tTest %d:\tShould verify every value.", success, testID)

				if err := tree.VerifyData(Data{x: "unknown"}); !errors.Is(err, merkle.ErrValueUnknown) {
					t.Fatalf("\t%s\tTest %d:\tShould not find an unknown value: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould not find an unknown value.", success, testID)

				proof, err := tree.Proof(data[0])
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to build a proof: %v", failed, testID, err)
				}

				other, _ := Data{x: "forged"}.Hash()
				if err := merkle.VerifyProof(tree.Root(), other, proof); !errors.Is(err, merkle.ErrInvalidProof) {
					t.Fatalf("\t%s\tTest %d:\tShould reject a proof for other data: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould reject a proof for other data.", success, testID)
			}
		}
	}
}
