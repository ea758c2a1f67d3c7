package trie

import (
	"bytes"
	"fmt"
	"math"
	"slices"

	"github.com/ardanlabs/statechain/foundation/blockchain/codec"
	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
)

// Node is the canonical, storable form of a trie node. Children are
// represented by their digest and not their subtree, which bounds the hashed
// payload by the branching factor and is what makes compact proofs possible.
type Node struct {
	Value    []byte
	HasValue bool
	Edges    []Edge
}

// Edge is a labeled link from a node to a child identified by digest.
type Edge struct {
	Label []byte
	Child digest.Digest
}

// Set of presence markers that lead every serialized node. An empty value
// is distinct from no value.
const (
	valueAbsent  byte = 0
	valuePresent byte = 1
)

// Serialize returns the canonical bytes of the node:
//
//	presence(1) [++ Bytes2(value)] [++ Len2(edgeCount) ++ { Bytes1(label) ++ childDigest }]
//
// Edges are written in ascending order of their first label byte. The edge
// count is two bytes wide since a node can hold 256 edges, one per distinct
// first byte, which does not fit in one.
func (n Node) Serialize(includeEdges bool) ([]byte, error) {
	w := codec.NewWriter(3 + len(n.Value) + len(n.Edges)*(digest.Size+8))

	if n.HasValue {
		w.Byte(valuePresent)
		w.Bytes2(n.Value)
	} else {
		w.Byte(valueAbsent)
	}

	if includeEdges {
		edges := n.Edges
		if !slices.IsSortedFunc(edges, compareEdges) {
			edges = slices.Clone(edges)
			slices.SortFunc(edges, compareEdges)
		}

		w.Len2(len(edges))
		for _, e := range edges {
			w.Bytes1(e.Label)
			w.Fixed(e.Child[:])
		}
	}

	return w.Result()
}

// Digest returns the hash of the node serialized with its edges.
func (n Node) Digest() (digest.Digest, error) {
	data, err := n.Serialize(true)
	if err != nil {
		return digest.Zero, err
	}

	return digest.Sum(data), nil
}

// DeserializeNode decodes bytes produced by Serialize. Edges must be
// non-empty, sorted and have distinct first bytes, and no bytes may trail.
func DeserializeNode(data []byte, includeEdges bool) (Node, error) {
	r := codec.NewReader(data)

	var n Node

	presence, err := r.Byte()
	if err != nil {
		return Node{}, err
	}

	switch presence {
	case valueAbsent:
	case valuePresent:
		value, err := r.Bytes2()
		if err != nil {
			return Node{}, err
		}
		n.Value = value
		n.HasValue = true
	default:
		return Node{}, fmt.Errorf("%w: invalid value marker %d", codec.ErrMalformedEncoding, presence)
	}

	if includeEdges {
		count, err := r.Len2()
		if err != nil {
			return Node{}, err
		}

		if count > math.MaxUint8+1 {
			return Node{}, fmt.Errorf("%w: %d edges", codec.ErrMalformedEncoding, count)
		}

		n.Edges = make([]Edge, 0, count)
		for i := 0; i < count; i++ {
			label, err := r.Bytes1()
			if err != nil {
				return Node{}, err
			}

			if len(label) == 0 {
				return Node{}, fmt.Errorf("%w: empty edge label", codec.ErrMalformedEncoding)
			}

			if i > 0 && n.Edges[i-1].Label[0] >= label[0] {
				return Node{}, fmt.Errorf("%w: edges out of order", codec.ErrMalformedEncoding)
			}

			child, err := r.Fixed(digest.Size)
			if err != nil {
				return Node{}, err
			}

			e := Edge{Label: label}
			copy(e.Child[:], child)
			n.Edges = append(n.Edges, e)
		}
	}

	if err := r.Done(); err != nil {
		return Node{}, err
	}

	return n, nil
}

// edge returns the edge whose label starts with b.
func (n Node) edge(b byte) (Edge, bool) {
	i, found := slices.BinarySearchFunc(n.Edges, b, func(e Edge, b byte) int {
		return int(e.Label[0]) - int(b)
	})
	if !found {
		return Edge{}, false
	}

	return n.Edges[i], true
}

func compareEdges(a, b Edge) int {
	return bytes.Compare(a.Label, b.Label)
}
