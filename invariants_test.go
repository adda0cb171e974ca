// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package ipcontainer

import (
	"math/rand"
	"testing"

	"github.com/mmalicki2/IpContainer/internal/arena"
	"github.com/mmalicki2/IpContainer/internal/golden"
)

// checkInvariants walks the whole tree and verifies the structural
// invariants that must hold between operations:
//
//  1. exactly one root, its child empty or valid
//  2. every inner has two children, both pointing back
//  3. every leaf has a parent
//  4. branch bits strictly decrease along any descent
//  5. leaves in a zero/one subtree agree on all constrained bits
//  6. no leaf has an empty mask set
//  7. all keys are distinct
//
// plus the arena bookkeeping: node and payload counts match the tree.
func checkInvariants(t *testing.T, tbl *Table) {
	t.Helper()

	root := tbl.nodes.At(tbl.root)
	if root.kind != kindRoot {
		t.Fatalf("root handle %d is not a root node", tbl.root)
	}
	if root.parent != arena.None {
		t.Fatalf("root has a parent: %d", root.parent)
	}

	seen := map[uint32]bool{}
	inners, leaves, pairs := 0, 0, 0

	var walk func(h, parent arena.Handle, maxBit int, wantBits, wantMask uint32)
	walk = func(h, parent arena.Handle, maxBit int, wantBits, wantMask uint32) {
		n := tbl.nodes.At(h)
		if n.parent != parent {
			t.Fatalf("node %d: parent = %d, want %d", h, n.parent, parent)
		}

		switch n.kind {
		case kindInner:
			inners++
			if n.zero == arena.None || n.one == arena.None {
				t.Fatalf("inner %d: missing child (zero=%d one=%d)", h, n.zero, n.one)
			}
			if int(n.bit) >= maxBit {
				t.Fatalf("inner %d: branch bit %d not below ancestor bit %d", h, n.bit, maxBit)
			}
			bit := uint32(1) << n.bit
			walk(n.zero, h, int(n.bit), wantBits, wantMask|bit)
			walk(n.one, h, int(n.bit), wantBits|bit, wantMask|bit)

		case kindLeaf:
			leaves++
			pl := tbl.data.At(n.data)
			if pl.key&wantMask != wantBits {
				t.Fatalf("leaf %d: key %#x violates ancestor constraints (want %#x under %#x)",
					h, pl.key, wantBits, wantMask)
			}
			if pl.masks.isEmpty() {
				t.Fatalf("leaf %d: empty mask set", h)
			}
			if seen[pl.key] {
				t.Fatalf("duplicate key %#x", pl.key)
			}
			seen[pl.key] = true
			pairs += pl.masks.size()

		default:
			t.Fatalf("node %d: unexpected kind %d below the root", h, n.kind)
		}
	}

	if root.zero != arena.None {
		walk(root.zero, tbl.root, 32, 0, 0)
	}

	if leaves > 0 && inners != leaves-1 {
		t.Fatalf("%d inner nodes for %d leaves, want %d", inners, leaves, leaves-1)
	}
	if got, want := tbl.nodes.Len(), 1+inners+leaves; got != want {
		t.Fatalf("node arena holds %d slots, tree has %d", got, want)
	}
	if got := tbl.data.Len(); got != leaves {
		t.Fatalf("data pool holds %d payloads, tree has %d leaves", got, leaves)
	}
	if tbl.size != pairs {
		t.Fatalf("size = %d, tree stores %d (base, mask) pairs", tbl.size, pairs)
	}
}

// randomPrefix draws a valid (base, mask) pair, keys from a small pool
// so masks pile up on shared leaves.
func randomPrefix(prng *rand.Rand) (base uint32, mask int8) {
	mask = int8(prng.Intn(33))
	base = prng.Uint32() & 0x7fff_ffff & netMask(uint(mask))
	if prng.Intn(64) == 0 && mask > 0 {
		base = 1 << 31 // the validator's upper edge
	}
	if prng.Intn(2) == 0 {
		// narrow the key space, collisions wanted
		base &= 0x0f0f_0000
	}
	return base, mask
}

// TestRandomOpsAgainstGolden drives the trie and the golden reference
// with the same operation stream and compares result codes, sizes,
// lookups for every stored base and the full leaf listing.
func TestRandomOpsAgainstGolden(t *testing.T) {
	prng := rand.New(rand.NewSource(42))

	tbl := New()
	defer tbl.Close()
	gold := golden.Table{}

	for op := 0; op < 2_000; op++ {
		base, mask := randomPrefix(prng)

		if prng.Intn(10) < 7 {
			if got, want := tbl.Add(base, mask), gold.Add(base, mask); got != want {
				t.Fatalf("op %d: Add(%#x, %d) = %d, golden %d", op, base, mask, got, want)
			}
		} else {
			// delete against stored bases only: such a base is its own
			// candidate leaf, so trie and golden agree on every
			// outcome, including invalid masks and absent masks
			if n := gold.Len(); n > 0 {
				base = gold[prng.Intn(n)].Base
				mask = int8(prng.Intn(35)) - 1
			}
			if got, want := tbl.Del(base, mask), gold.Del(base, mask); got != want {
				t.Fatalf("op %d: Del(%#x, %d) = %d, golden %d", op, base, mask, got, want)
			}
		}

		if tbl.Size() != gold.Len() {
			t.Fatalf("op %d: Size() = %d, golden %d", op, tbl.Size(), gold.Len())
		}

		if op%64 == 0 {
			checkInvariants(t, tbl)
		}
	}
	checkInvariants(t, tbl)

	// lookups: a stored base is its own candidate leaf, the trie and
	// the brute force must agree (see DESIGN.md)
	for _, item := range gold.AllSorted() {
		if got, want := tbl.Check(item.Base), gold.Check(item.Base); got != want {
			t.Fatalf("Check(%#x) = %d, golden %d", item.Base, got, want)
		}
	}

	// full listing, engine order is pre-order, compare as sets
	got := map[golden.Item]bool{}
	for key, masks := range tbl.All() {
		for _, m := range masks {
			got[golden.Item{Base: key, Mask: int8(m)}] = true
		}
	}
	if len(got) != gold.Len() {
		t.Fatalf("All() yields %d pairs, golden %d", len(got), gold.Len())
	}
	for _, item := range gold.AllSorted() {
		if !got[item] {
			t.Fatalf("All() misses %v", item)
		}
	}
}

// TestRoundTrip: any add sequence, deleted in random order, leaves an
// empty tree and a drained arena.
func TestRoundTrip(t *testing.T) {
	prng := rand.New(rand.NewSource(1))

	tbl := New()
	defer tbl.Close()

	added := map[golden.Item]bool{}
	for i := 0; i < 500; i++ {
		base, mask := randomPrefix(prng)
		if tbl.Add(base, mask) == 0 {
			added[golden.Item{Base: base, Mask: mask}] = true
		}
	}
	checkInvariants(t, tbl)

	items := make([]golden.Item, 0, len(added))
	for item := range added {
		items = append(items, item)
	}
	prng.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })

	for _, item := range items {
		if tbl.Del(item.Base, item.Mask) != 0 {
			t.Fatalf("Del(%v) failed", item)
		}
	}

	if !tbl.isEmpty() || tbl.Size() != 0 {
		t.Fatalf("tree not empty after deleting everything, size %d", tbl.Size())
	}
	if got := tbl.nodes.Len(); got != 1 {
		t.Fatalf("node arena holds %d slots, want 1 (the root)", got)
	}
	if got := tbl.data.Len(); got != 0 {
		t.Fatalf("data pool holds %d payloads, want 0", got)
	}
	checkInvariants(t, tbl)
}

// TestIdempotentAdd: re-adding must succeed and must not change the
// size or break the tree invariants.
func TestIdempotentAdd(t *testing.T) {
	prng := rand.New(rand.NewSource(7))

	tbl := New()
	defer tbl.Close()

	type pair struct {
		base uint32
		mask int8
	}
	var stored []pair
	for i := 0; i < 200; i++ {
		base, mask := randomPrefix(prng)
		tbl.Add(base, mask)
		stored = append(stored, pair{base, mask})
	}

	size := tbl.Size()
	for _, p := range stored {
		if tbl.Add(p.base, p.mask) != 0 {
			t.Fatalf("re-Add(%#x, %d) failed", p.base, p.mask)
		}
	}
	if tbl.Size() != size {
		t.Fatalf("Size changed by re-adds: %d -> %d", size, tbl.Size())
	}
	checkInvariants(t, tbl)
}
