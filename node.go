// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package ipcontainer

import "github.com/mmalicki2/IpContainer/internal/arena"

// kind discriminates the node variants. The branch bit of an inner
// node lives in its own field, so a plain enum tag replaces the
// union-with-flag layout of old.
type kind uint8

const (
	kindRoot kind = iota
	kindInner
	kindLeaf
)

// node is the tagged variant stored in the node arena.
//
//	kindRoot:  zero is the child slot (possibly None), parent is None.
//	           The root exists so the top of the tree lives in a slot
//	           the relocation machinery already knows how to fix.
//	kindInner: bit is the branch bit in [0,31], zero and one are the
//	           children, both always non-None.
//	kindLeaf:  data is the payload handle in the data pool.
type node struct {
	kind   kind
	bit    uint8 // branch bit, kindInner only
	parent arena.Handle
	zero   arena.Handle // child slot for kindRoot
	one    arena.Handle
	data   arena.Handle // kindLeaf only
}

// isDisconnected, a node parked for freeing has no parent.
func (n *node) isDisconnected() bool {
	return n.kind != kindRoot && n.parent == arena.None
}

// nodeMoved is the arena relocation callback: the node formerly at
// old now lives at new, repair every reference that still says old.
//
// One incoming edge needs fixing (the parent's child slot) and, when
// the moved node is an inner, the two outgoing back-edges (the
// children's parent fields). A disconnected node has nothing pointing
// at it, and the root never relocates: it is allocated first, freed
// last, and compaction only ever moves the last slot.
func (t *Table) nodeMoved(new, old arena.Handle) {
	n := t.nodes.At(new)
	if n.kind == kindRoot || n.isDisconnected() {
		return
	}

	p := t.nodes.At(n.parent)
	switch {
	case p.kind == kindRoot:
		p.zero = new
	case p.zero == old:
		p.zero = new
	default:
		p.one = new
	}

	if n.kind == kindInner && n.zero != arena.None {
		t.nodes.At(n.zero).parent = new
		t.nodes.At(n.one).parent = new
	}
}

// disconnect clears all references held by the node at h, so a
// following Free finds it isolated and has nothing to repair.
func (t *Table) disconnect(h arena.Handle) {
	n := t.nodes.At(h)
	switch n.kind {
	case kindInner:
		n.parent, n.zero, n.one = arena.None, arena.None, arena.None
	case kindLeaf:
		n.parent = arena.None
	case kindRoot:
		n.zero = arena.None
	}
}
