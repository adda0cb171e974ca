// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package ipcontainer

import (
	"encoding/binary"
	"math/bits"
	"net/netip"

	"github.com/pkg/errors"

	"github.com/mmalicki2/IpContainer/internal/arena"
)

// Table is a longest-prefix-match index over IPv4 CIDR prefixes,
// backed by a relocating node arena and a stable payload pool.
//
// Handles are invalidated by any mutating call, nothing may be cached
// across operations. A Table is not safe for concurrent use.
type Table struct {
	nodes *arena.Arena[node]
	data  *arena.Pool[payload]
	root  arena.Handle
	size  int // stored (base, mask) pairs
}

// New returns an empty table. The root node is allocated up front, it
// anchors the top of the tree inside the arena so that relocation can
// repair it like any other parent.
func New() *Table {
	t := &Table{data: arena.NewPool[payload]()}
	t.nodes = arena.New[node](t.nodeMoved)

	t.root = t.nodes.Alloc()
	t.nodes.At(t.root).kind = kindRoot
	return t
}

// Close empties the table and releases the root. The table is dead
// afterwards.
//
// Deletion runs through Del leaf by leaf, so the collapse and
// relocation machinery unwinds the tree instead of a bulk drop.
func (t *Table) Close() {
	for !t.isEmpty() {
		h := t.findAny()
		p := t.data.At(t.nodes.At(h).data)
		t.Del(p.key, p.masks.max())
	}

	t.disconnect(t.root)
	t.nodes.Free(t.root)
	t.root = arena.None
}

// Size returns the number of stored (base, mask) pairs.
func (t *Table) Size() int {
	return t.size
}

func (t *Table) isEmpty() bool {
	return t.rootChild() == arena.None
}

func (t *Table) rootChild() arena.Handle {
	return t.nodes.At(t.root).zero
}

func (t *Table) setRootChild(h arena.Handle) {
	t.nodes.At(t.root).zero = h
}

// valid reports whether (base, mask) is a well-formed prefix: mask in
// [0,32] and no host bits set in base.
//
// Keys are restricted to the lower half of the address space, with an
// inclusive bound: 1<<31 itself passes. See DESIGN.md.
func valid(base uint32, mask int8) bool {
	if mask < 0 || mask > 32 {
		return false
	}
	if base > 1<<31 {
		return false
	}
	// host mask: all-ones shifted right by mask, /32 leaves nothing
	return base&(^uint32(0)>>uint(mask)) == 0
}

// diffBit returns the highest bit index where a and b differ.
// Only called with a != b.
func diffBit(a, b uint32) uint8 {
	return uint8(bits.Len32(a^b)) - 1
}

// findLeaf descends from the root child to the candidate leaf for
// key, selecting one or zero by the branch bit of each inner node.
// The tree must not be empty.
//
// Patricia descent compares branch bits only, the reached leaf is a
// candidate. Add compares its key, Check verifies through the mask
// scan, Del compares no key (see Del).
func (t *Table) findLeaf(key uint32) arena.Handle {
	h := t.rootChild()
	for {
		n := t.nodes.At(h)
		if n.kind != kindInner {
			return h
		}
		if key&(1<<n.bit) != 0 {
			h = n.one
		} else {
			h = n.zero
		}
	}
}

// findAny returns some leaf, deterministically: always descend one.
// The tree must not be empty.
func (t *Table) findAny() arena.Handle {
	h := t.rootChild()
	for {
		n := t.nodes.At(h)
		if n.kind != kindInner {
			return h
		}
		h = n.one
	}
}

// newLeaf allocates a leaf with payload {key, {mask}}. The leaf is
// still disconnected, the caller wires parent and child slots.
func (t *Table) newLeaf(key uint32, mask int8) arena.Handle {
	d := t.data.Alloc()
	pl := t.data.At(d)
	pl.key = key
	pl.masks.insert(mask)

	h := t.nodes.Alloc()
	n := t.nodes.At(h)
	n.kind = kindLeaf
	n.data = d
	return h
}

// leafKey returns the payload key of the leaf at h.
func (t *Table) leafKey(h arena.Handle) uint32 {
	return t.data.At(t.nodes.At(h).data).key
}

// newBranch creates an inner node with branch bit bit over the fresh
// leaf and its sibling subtree. The side is decided by the leaf's key:
// bit set goes to one. Both children get their parent rewired, the
// branch itself is still unparented.
func (t *Table) newBranch(leafH, siblingH arena.Handle, bit uint8) arena.Handle {
	zero, one := leafH, siblingH
	if t.leafKey(leafH)&(1<<bit) != 0 {
		zero, one = one, zero
	}

	h := t.nodes.Alloc()
	n := t.nodes.At(h)
	n.kind = kindInner
	n.bit = bit
	n.zero = zero
	n.one = one

	t.nodes.At(zero).parent = h
	t.nodes.At(one).parent = h
	return h
}

// freeNode releases the node at h, and its payload first if it is a
// leaf. The node must already be disconnected.
func (t *Table) freeNode(h arena.Handle) {
	if n := t.nodes.At(h); n.kind == kindLeaf {
		t.data.Free(n.data)
	}
	t.nodes.Free(h)
}

// Add inserts the prefix (base, mask) and returns 0, or -1 on invalid
// input. Inserting a prefix twice is a successful no-op.
func (t *Table) Add(base uint32, mask int8) int {
	if !valid(base, mask) {
		return -1
	}

	// empty tree, the new leaf is the root child
	if t.isEmpty() {
		h := t.newLeaf(base, mask)
		t.nodes.At(h).parent = t.root
		t.setRootChild(h)
		t.size++
		return 0
	}

	leafH := t.findLeaf(base)
	if t.leafKey(leafH) == base {
		if t.data.At(t.nodes.At(leafH).data).masks.insert(mask) {
			t.size++
		}
		return 0
	}

	// keys differ, split at the highest differing bit
	d := diffBit(t.leafKey(leafH), base)

	// new top: the lone root-child leaf, or an inner whose branch bit
	// is below the divergence, is pushed under a fresh branch
	childH := t.rootChild()
	if leafH == childH || t.nodes.At(childH).bit < d {
		h := t.newBranch(t.newLeaf(base, mask), childH, d)
		t.nodes.At(h).parent = t.root
		t.setRootChild(h)
		t.size++
		return 0
	}

	// interior splice: climb from the candidate leaf until the
	// ancestor's branch bit exceeds the divergence bit. Strict
	// inequality is guaranteed, keys in the trie are distinct.
	nodeH := leafH
	parentH := t.nodes.At(leafH).parent
	for t.nodes.At(parentH).bit < d {
		nodeH = parentH
		parentH = t.nodes.At(parentH).parent
	}

	branchH := t.newBranch(t.newLeaf(base, mask), nodeH, d)
	t.nodes.At(branchH).parent = parentH

	p := t.nodes.At(parentH)
	if p.zero == nodeH {
		p.zero = branchH
	} else {
		p.one = branchH
	}
	t.size++
	return 0
}

// Check descends to the candidate leaf for ip and returns the longest
// mask stored on that leaf whose prefix matches ip, or -1 if none
// does. Other leaves are not consulted: a matching prefix stored under
// a different key is missed when descent does not end at its leaf.
func (t *Table) Check(ip uint32) int8 {
	if t.isEmpty() {
		return -1
	}
	h := t.findLeaf(ip)
	return t.data.At(t.nodes.At(h).data).maxMatch(ip)
}

// Del removes the prefix (base, mask) and returns 0, or -1 if the
// removal fails or the input is invalid. A failed Del leaves the
// table untouched.
//
// The removal runs against the candidate leaf without a key
// comparison: had base been stored, descent would have reached its
// own leaf. A mismatched candidate usually lacks the mask and the set
// removal reports the miss; a mismatched candidate holding the same
// mask length absorbs the removal. See DESIGN.md.
func (t *Table) Del(base uint32, mask int8) int {
	if !valid(base, mask) {
		return -1
	}
	if t.isEmpty() {
		return -1
	}

	leafH := t.findLeaf(base)
	if !t.data.At(t.nodes.At(leafH).data).masks.remove(mask) {
		return -1
	}
	t.size--

	if !t.data.At(t.nodes.At(leafH).data).masks.isEmpty() {
		return 0
	}

	// last mask gone, unlink the leaf
	if leafH == t.rootChild() {
		t.setRootChild(arena.None)
		t.disconnect(leafH)
		t.freeNode(leafH)
		return 0
	}

	// splice the sibling into the grandparent, then drop leaf and
	// parent
	parentH := t.nodes.At(leafH).parent
	p := t.nodes.At(parentH)
	grandH := p.parent

	sibH := p.one
	if p.one == leafH {
		sibH = p.zero
	}
	t.nodes.At(sibH).parent = grandH

	g := t.nodes.At(grandH)
	switch {
	case g.kind == kindRoot:
		g.zero = sibH
	case g.zero == parentH:
		g.zero = sibH
	default:
		g.one = sibH
	}

	// free the higher handle first: freeing the lower one would
	// relocate the last slot, which may be the other doomed node
	hi, lo := leafH, parentH
	if hi < lo {
		hi, lo = lo, hi
	}
	t.disconnect(hi)
	t.disconnect(lo)
	t.freeNode(hi)
	t.freeNode(lo)
	return 0
}

// baseFromAddr converts a dotted-quad address into the big-endian
// 32-bit key, first octet in bits 31..24.
func baseFromAddr(ip netip.Addr) (uint32, error) {
	if !ip.Is4() {
		return 0, errors.Errorf("not an IPv4 address: %s", ip)
	}
	a4 := ip.As4()
	return binary.BigEndian.Uint32(a4[:]), nil
}

// InsertPrefix is the netip convenience wrapper around Add.
func (t *Table) InsertPrefix(pfx netip.Prefix) error {
	base, err := baseFromAddr(pfx.Addr())
	if err != nil {
		return errors.Wrapf(err, "insert %s", pfx)
	}
	if t.Add(base, int8(pfx.Bits())) != 0 {
		return errors.Errorf("invalid prefix: %s", pfx)
	}
	return nil
}

// DeletePrefix is the netip convenience wrapper around Del.
func (t *Table) DeletePrefix(pfx netip.Prefix) error {
	base, err := baseFromAddr(pfx.Addr())
	if err != nil {
		return errors.Wrapf(err, "delete %s", pfx)
	}
	if t.Del(base, int8(pfx.Bits())) != 0 {
		return errors.Errorf("no such prefix: %s", pfx)
	}
	return nil
}

// Lookup is the netip convenience wrapper around Check, non-IPv4
// addresses never match.
func (t *Table) Lookup(ip netip.Addr) int8 {
	base, err := baseFromAddr(ip)
	if err != nil {
		return -1
	}
	return t.Check(base)
}
