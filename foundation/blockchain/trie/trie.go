// Package trie implements an authenticated radix trie. The root digest
// commits to every key/value pair held by the trie and is independent of the
// order the pairs were inserted or deleted in. Nodes are stored in a
// key/value store keyed by their own digest and loaded on first access.
package trie

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
)

// Limits imposed by the node encoding.
const (
	MaxKeyLength   = math.MaxUint8
	MaxValueLength = math.MaxUint16
)

// Set of error variables for trie operations.
var (
	ErrNotFound      = errors.New("key not found")
	ErrCorruptNode   = errors.New("corrupt node")
	ErrMissingNode   = errors.New("missing node")
	ErrKeyTooLong    = errors.New("key too long")
	ErrValueTooLarge = errors.New("value too large")
	ErrInvalidProof  = errors.New("invalid proof")
)

// Trie is an authenticated radix trie backed by a key/value store. Every
// operation takes exclusive access for its duration.
type Trie struct {
	mu    sync.Mutex
	store kvstore.Store
	arena arena
	root  childRef
}

// New constructs an empty trie that persists its nodes into the store.
func New(store kvstore.Store) *Trie {
	t := Trie{
		store: store,
	}

	id := t.arena.alloc(node{parent: noNode})
	t.arena.markDirty(id)
	t.root = residentRef(id)

	return &t
}

// Open constructs a trie whose content is identified by the root digest. No
// node is read until it is needed. A zero digest opens an empty trie.
func Open(store kvstore.Store, root digest.Digest) *Trie {
	if root.IsZero() {
		return New(store)
	}

	return &Trie{
		store: store,
		root:  onDiskRef(root),
	}
}

// Get returns the value stored at the key.
func (t *Trie) Get(ctx context.Context, key []byte) ([]byte, error) {
	if len(key) > MaxKeyLength {
		return nil, ErrKeyTooLong
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id, rest, err := t.walk(ctx, key, nil)
	if err != nil {
		return nil, err
	}

	n := t.arena.get(id)
	if len(rest) > 0 || !n.hasValue {
		return nil, ErrNotFound
	}

	return slices.Clone(n.value), nil
}

// Put stores the value at the key, replacing any existing value. Storing the
// same value again does not change the trie.
func (t *Trie) Put(ctx context.Context, key []byte, value []byte) error {
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if len(value) > MaxValueLength {
		return ErrValueTooLarge
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Every node the change touches is loaded before the structure is
	// modified, so a store failure leaves the trie as it was.
	id, rest, err := t.walk(ctx, key, nil)
	if err != nil {
		return err
	}

	value = append([]byte{}, value...)

	// The key ends at an existing node.
	if len(rest) == 0 {
		n := t.arena.get(id)
		if n.hasValue && bytes.Equal(n.value, value) {
			return nil
		}

		n.value = value
		n.hasValue = true
		t.arena.markDirty(id)
		return nil
	}

	i, found := t.arena.get(id).findEdge(rest[0])

	// No edge shares a first byte with the rest of the key.
	if !found {
		leaf := t.arena.alloc(node{parent: id, value: value, hasValue: true})
		t.arena.get(id).insertEdge(edge{label: slices.Clone(rest), child: residentRef(leaf)})
		t.arena.markDirty(leaf)
		return nil
	}

	// The edge label and the rest of the key diverge part way. The edge is
	// split by an intermediate node owning the old child and the new value.
	old := t.arena.get(id).edges[i]
	common := commonPrefix(old.label, rest)

	mid := t.arena.alloc(node{
		parent: id,
		edges:  []edge{{label: slices.Clone(old.label[common:]), child: old.child}},
	})
	if old.child.resident {
		t.arena.get(old.child.id).parent = mid
	}

	dirty := mid
	switch {
	case common == len(rest):
		m := t.arena.get(mid)
		m.value = value
		m.hasValue = true

	default:
		leaf := t.arena.alloc(node{parent: mid, value: value, hasValue: true})
		t.arena.get(mid).insertEdge(edge{label: slices.Clone(rest[common:]), child: residentRef(leaf)})
		dirty = leaf
	}

	t.arena.get(id).edges[i] = edge{label: slices.Clone(old.label[:common]), child: residentRef(mid)}
	t.arena.markDirty(dirty)

	return nil
}

// Delete removes the value stored at the key. Nodes left without a value or
// edges are removed and nodes left with a single edge and no value are
// merged into their child.
func (t *Trie) Delete(ctx context.Context, key []byte) error {
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	id, rest, err := t.walk(ctx, key, nil)
	if err != nil {
		return err
	}

	n := t.arena.get(id)
	if len(rest) > 0 || !n.hasValue {
		return ErrNotFound
	}

	n.value = nil
	n.hasValue = false

	if n.parent == noNode {
		t.arena.markDirty(id)
		return nil
	}

	switch len(n.edges) {
	case 0:
		parent := n.parent
		p := t.arena.get(parent)
		j := p.edgeTo(id)
		p.edges = slices.Delete(p.edges, j, j+1)
		t.arena.release(id)
		t.arena.markDirty(parent)

		if p.parent != noNode && !p.hasValue && len(p.edges) == 1 {
			t.collapse(parent)
		}

	case 1:
		t.collapse(id)

	default:
		t.arena.markDirty(id)
	}

	return nil
}

// RootDigest recomputes the digests invalidated since the last call and
// returns the digest of the root node.
func (t *Trie) RootDigest() (digest.Digest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.rootDigest()
}

// Commit writes every node changed since the last commit into the store
// keyed by its digest and returns the root digest. Children are written
// before their parents so a stored node never references a missing child.
func (t *Trie) Commit(ctx context.Context) (digest.Digest, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	root, err := t.rootDigest()
	if err != nil {
		return digest.Zero, err
	}

	if t.root.resident {
		if err := t.save(ctx, t.root.id); err != nil {
			return digest.Zero, err
		}
	}

	return root, nil
}

// ForEach calls fn for every key/value pair in ascending key order. The
// trie must not be used from within fn.
func (t *Trie) ForEach(ctx context.Context, fn func(key []byte, value []byte) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, err := t.resolveRoot(ctx)
	if err != nil {
		return err
	}

	return t.forEach(ctx, id, nil, fn)
}

// ResidentNodes returns the number of nodes currently held in memory.
func (t *Trie) ResidentNodes() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.arena.resident()
}

// =============================================================================

// walk follows the key from the root and returns the deepest node whose
// path is a prefix of the key along with the part of the key left over.
// Every node passed through is loaded. When visit is not nil it is called
// for each node on the path.
func (t *Trie) walk(ctx context.Context, key []byte, visit func(id nodeID) error) (nodeID, []byte, error) {
	id, err := t.resolveRoot(ctx)
	if err != nil {
		return noNode, nil, err
	}

	rest := key
	for {
		if visit != nil {
			if err := visit(id); err != nil {
				return noNode, nil, err
			}
		}

		if len(rest) == 0 {
			return id, rest, nil
		}

		n := t.arena.get(id)
		i, found := n.findEdge(rest[0])
		if !found || !bytes.HasPrefix(rest, n.edges[i].label) {
			return id, rest, nil
		}
		label := n.edges[i].label

		child, err := t.resolveChild(ctx, id, i)
		if err != nil {
			return noNode, nil, err
		}

		id = child
		rest = rest[len(label):]
	}
}

// collapse merges a valueless non-root node with a single edge into the
// edge leading to it.
func (t *Trie) collapse(id nodeID) {
	n := t.arena.get(id)
	only := n.edges[0]
	parent := n.parent

	p := t.arena.get(parent)
	j := p.edgeTo(id)
	label := append(slices.Clone(p.edges[j].label), only.label...)
	p.edges[j] = edge{label: label, child: only.child}

	if only.child.resident {
		t.arena.get(only.child.id).parent = parent
	}

	t.arena.release(id)
	t.arena.markDirty(parent)
}

func (t *Trie) rootDigest() (digest.Digest, error) {
	if !t.root.resident {
		return t.root.digest, nil
	}

	return t.hash(t.root.id)
}

// hash recomputes the digest of a dirty node after its dirty children.
func (t *Trie) hash(id nodeID) (digest.Digest, error) {
	n := t.arena.get(id)
	if !n.dirty {
		return n.digest, nil
	}

	for _, e := range n.edges {
		if e.child.resident {
			if _, err := t.hash(e.child.id); err != nil {
				return digest.Zero, err
			}
		}
	}

	d, err := t.view(id).Digest()
	if err != nil {
		return digest.Zero, err
	}

	n.digest = d
	n.dirty = false

	return d, nil
}

// save writes the unsaved nodes of the subtree. Digests must be current.
func (t *Trie) save(ctx context.Context, id nodeID) error {
	n := t.arena.get(id)
	if !n.unsaved {
		return nil
	}

	for _, e := range n.edges {
		if e.child.resident {
			if err := t.save(ctx, e.child.id); err != nil {
				return err
			}
		}
	}

	data, err := t.view(id).Serialize(true)
	if err != nil {
		return err
	}

	if err := t.store.Save(ctx, n.digest.Bytes(), data); err != nil {
		return fmt.Errorf("save node %s: %w", n.digest, err)
	}

	n.unsaved = false

	return nil
}

// view returns the canonical form of a resident node. The digests of its
// resident children must be current.
func (t *Trie) view(id nodeID) Node {
	n := t.arena.get(id)

	v := Node{
		Value:    n.value,
		HasValue: n.hasValue,
		Edges:    make([]Edge, len(n.edges)),
	}

	for i, e := range n.edges {
		v.Edges[i] = Edge{Label: e.label, Child: t.childDigest(e.child)}
	}

	return v
}

func (t *Trie) childDigest(ref childRef) digest.Digest {
	if ref.resident {
		return t.arena.get(ref.id).digest
	}

	return ref.digest
}

func (t *Trie) forEach(ctx context.Context, id nodeID, prefix []byte, fn func(key []byte, value []byte) error) error {
	n := t.arena.get(id)
	if n.hasValue {
		if err := fn(slices.Clone(prefix), slices.Clone(n.value)); err != nil {
			return err
		}
	}

	for i := 0; i < len(t.arena.get(id).edges); i++ {
		child, err := t.resolveChild(ctx, id, i)
		if err != nil {
			return err
		}

		key := append(slices.Clone(prefix), t.arena.get(id).edges[i].label...)
		if err := t.forEach(ctx, child, key, fn); err != nil {
			return err
		}
	}

	return nil
}

// =============================================================================

// resolveRoot loads the root node if it is still on disk.
func (t *Trie) resolveRoot(ctx context.Context) (nodeID, error) {
	if t.root.resident {
		return t.root.id, nil
	}

	id, err := t.load(ctx, t.root.digest, noNode)
	if err != nil {
		return noNode, err
	}

	t.root = residentRef(id)

	return id, nil
}

// resolveChild loads the child behind the i-th edge of the node if it is
// still on disk.
func (t *Trie) resolveChild(ctx context.Context, parent nodeID, i int) (nodeID, error) {
	ref := t.arena.get(parent).edges[i].child
	if ref.resident {
		return ref.id, nil
	}

	id, err := t.load(ctx, ref.digest, parent)
	if err != nil {
		return noNode, err
	}

	t.arena.get(parent).edges[i].child = residentRef(id)

	return id, nil
}

// load reads the node stored under the digest and places it in the arena.
// The bytes read must hash to the digest that was asked for.
func (t *Trie) load(ctx context.Context, d digest.Digest, parent nodeID) (nodeID, error) {
	data, err := t.store.Get(ctx, d.Bytes())
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return noNode, fmt.Errorf("%w %s: %w", ErrMissingNode, d, err)
		}
		return noNode, fmt.Errorf("load node %s: %w", d, err)
	}

	if digest.Sum(data) != d {
		return noNode, fmt.Errorf("%w: %s: digest mismatch", ErrCorruptNode, d)
	}

	sn, err := DeserializeNode(data, true)
	if err != nil {
		return noNode, fmt.Errorf("%w: %s: %w", ErrCorruptNode, d, err)
	}

	n := node{
		parent:   parent,
		value:    sn.Value,
		hasValue: sn.HasValue,
		digest:   d,
		edges:    make([]edge, len(sn.Edges)),
	}
	for i, e := range sn.Edges {
		n.edges[i] = edge{label: e.Label, child: onDiskRef(e.Child)}
	}

	return t.arena.alloc(n), nil
}

// commonPrefix returns the length of the longest shared prefix.
func commonPrefix(a, b []byte) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
