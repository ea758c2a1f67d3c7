package trie

import (
	"math"
	"slices"

	"github.com/ardanlabs/statechain/foundation/blockchain/digest"
)

// nodeID addresses a node slot in the arena. It is process local and never
// persisted.
type nodeID uint32

// noNode marks the absence of a node, such as the parent of the root.
const noNode nodeID = math.MaxUint32

// childRef is either a resident node in the arena or a node that is still
// on disk and only known by its digest.
type childRef struct {
	resident bool
	id       nodeID
	digest   digest.Digest
}

func residentRef(id nodeID) childRef {
	return childRef{resident: true, id: id}
}

func onDiskRef(d digest.Digest) childRef {
	return childRef{digest: d}
}

// edge links a node to an exclusively owned child.
type edge struct {
	label []byte
	child childRef
}

// node is the in memory form of a trie node. The parent is a slot index and
// does not own the parent.
type node struct {
	parent   nodeID
	edges    []edge // ascending by first label byte
	value    []byte
	hasValue bool

	digest  digest.Digest
	dirty   bool // digest must be recomputed before it is read
	unsaved bool // not yet written to the store under its digest
	inUse   bool
}

// findEdge locates the edge whose label starts with b.
func (n *node) findEdge(b byte) (int, bool) {
	return slices.BinarySearchFunc(n.edges, b, func(e edge, b byte) int {
		return int(e.label[0]) - int(b)
	})
}

// insertEdge adds the edge keeping the canonical order.
func (n *node) insertEdge(e edge) {
	i, _ := n.findEdge(e.label[0])
	n.edges = slices.Insert(n.edges, i, e)
}

// edgeTo returns the index of the edge pointing at the resident child.
func (n *node) edgeTo(child nodeID) int {
	for i, e := range n.edges {
		if e.child.resident && e.child.id == child {
			return i
		}
	}
	return -1
}

// =============================================================================

// arena owns every resident node. Slots of removed nodes are reused.
type arena struct {
	nodes []node
	free  []nodeID
}

func (a *arena) alloc(n node) nodeID {
	n.inUse = true

	if l := len(a.free); l > 0 {
		id := a.free[l-1]
		a.free = a.free[:l-1]
		a.nodes[id] = n
		return id
	}

	a.nodes = append(a.nodes, n)
	return nodeID(len(a.nodes) - 1)
}

func (a *arena) release(id nodeID) {
	a.nodes[id] = node{}
	a.free = append(a.free, id)
}

func (a *arena) get(id nodeID) *node {
	return &a.nodes[id]
}

func (a *arena) resident() int {
	return len(a.nodes) - len(a.free)
}

// markDirty invalidates the digest of the node and every ancestor. A dirty
// node always has dirty ancestors, so the walk stops at the first one.
func (a *arena) markDirty(id nodeID) {
	for id != noNode {
		n := &a.nodes[id]
		if n.dirty {
			return
		}

		n.dirty = true
		n.unsaved = true
		id = n.parent
	}
}
