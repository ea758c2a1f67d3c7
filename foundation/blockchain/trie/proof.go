package trie

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
)

// Proof is the sequence of serialized nodes on the path from the root toward
// a key. It proves either the value at the key or that the key is absent.
type Proof struct {
	Nodes [][]byte `json:"nodes"`
}

// Prove builds a proof for the key against the current root digest.
func (t *Trie) Prove(ctx context.Context, key []byte) (Proof, error) {
	if len(key) > MaxKeyLength {
		return Proof{}, ErrKeyTooLong
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.rootDigest(); err != nil {
		return Proof{}, err
	}

	var proof Proof
	visit := func(id nodeID) error {
		data, err := t.view(id).Serialize(true)
		if err != nil {
			return err
		}
		proof.Nodes = append(proof.Nodes, data)
		return nil
	}

	if _, _, err := t.walk(ctx, key, visit); err != nil {
		return Proof{}, err
	}

	return proof, nil
}

// VerifyProof checks the proof against the root digest and returns the value
// it proves for the key. ErrNotFound means the proof is valid and shows the
// key is absent.
func VerifyProof(root digest.Digest, key []byte, proof Proof) ([]byte, error) {
	if len(proof.Nodes) == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrInvalidProof)
	}

	want := root
	rest := key
	last := len(proof.Nodes) - 1

	for i, data := range proof.Nodes {
		if digest.Sum(data) != want {
			return nil, fmt.Errorf("%w: node %d does not match digest %s", ErrInvalidProof, i, want)
		}

		n, err := DeserializeNode(data, true)
		if err != nil {
			return nil, fmt.Errorf("%w: node %d: %w", ErrInvalidProof, i, err)
		}

		if len(rest) == 0 {
			if i != last {
				return nil, fmt.Errorf("%w: trailing nodes", ErrInvalidProof)
			}
			if !n.HasValue {
				return nil, ErrNotFound
			}
			return n.Value, nil
		}

		e, found := n.edge(rest[0])
		if !found || !bytes.HasPrefix(rest, e.Label) {
			if i != last {
				return nil, fmt.Errorf("%w: trailing nodes", ErrInvalidProof)
			}
			return nil, ErrNotFound
		}

		want = e.Child
		rest = rest[len(e.Label):]
	}

	return nil, fmt.Errorf("%w: path ends early", ErrInvalidProof)
}
