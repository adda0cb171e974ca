// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package ipcontainer

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/mmalicki2/IpContainer/internal/arena"
)

// All returns an iterator over all leaves as (key, ascending mask
// lengths) pairs, in pre-order, zero subtree before one subtree.
//
// The order is deterministic for a given tree shape, no ordering
// across insertions is guaranteed. The table must not be mutated
// during iteration.
func (t *Table) All() iter.Seq2[uint32, []uint8] {
	return func(yield func(uint32, []uint8) bool) {
		if t.isEmpty() {
			return
		}
		t.allRec(t.rootChild(), yield)
	}
}

// allRec, pre-order rec-descent, zero before one.
func (t *Table) allRec(h arena.Handle, yield func(uint32, []uint8) bool) bool {
	n := t.nodes.At(h)
	if n.kind == kindInner {
		return t.allRec(n.zero, yield) && t.allRec(n.one, yield)
	}

	pl := t.data.At(n.data)
	return yield(pl.key, pl.masks.all(make([]uint8, 0, pl.masks.size())))
}

// String renders each leaf as dotted-quad key and mask list, one line
// per leaf, in All order.
func (t *Table) String() string {
	w := new(strings.Builder)
	for key, masks := range t.All() {
		fmt.Fprintf(w, "%s:", quadString(key))
		for i, m := range masks {
			if i != 0 {
				fmt.Fprintf(w, ",")
			}
			fmt.Fprintf(w, " %d", m)
		}
		fmt.Fprintln(w, ";")
	}
	return w.String()
}

// ##################################################
//  useful during development, debugging and testing
// ##################################################

// dumpString is just a wrapper for dump.
func (t *Table) dumpString() string {
	w := new(strings.Builder)
	t.dump(w)

	return w.String()
}

// dump the tree structure with arena handles and branch bits to w.
func (t *Table) dump(w io.Writer) {
	fmt.Fprintf(w, "### size(%d), nodes(%d), payloads(%d)\n",
		t.size, t.nodes.Len(), t.data.Len())

	if !t.isEmpty() {
		t.dumpRec(w, t.rootChild(), 0)
	}
}

// dumpRec, rec-descent the trie.
func (t *Table) dumpRec(w io.Writer, h arena.Handle, depth int) {
	n := t.nodes.At(h)
	indent := strings.Repeat(".", depth)

	switch n.kind {
	case kindInner:
		fmt.Fprintf(w, "%s[inner] handle: %d bit: %d\n", indent, h, n.bit)
		t.dumpRec(w, n.zero, depth+1)
		t.dumpRec(w, n.one, depth+1)
	case kindLeaf:
		pl := t.data.At(n.data)
		fmt.Fprintf(w, "%s[leaf] handle: %d key: %s masks: %v\n",
			indent, h, quadString(pl.key), pl.masks.all(nil))
	}
}

// quadString, dotted-quad rendering of a key without going through
// netip.
func quadString(key uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d",
		key>>24&0xff, key>>16&0xff, key>>8&0xff, key&0xff)
}
