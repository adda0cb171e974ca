// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package ipcontainer

import "github.com/mmalicki2/IpContainer/internal/bitset"

// payload is the per-leaf record in the data pool: one key and the
// set of prefix lengths stored for it. All keys in the trie are
// distinct, masks for the same key share one payload.
type payload struct {
	key   uint32
	masks prefixSet
}

// prefixSet is the set of mask lengths [0..32] attached to one key,
// one bit per length. Ascending iteration comes for free, max-match
// is a bit scan from the top.
type prefixSet struct {
	bits bitset.BitSet64
}

// insert adds mask to the set, reporting true if it was not present.
func (s *prefixSet) insert(mask int8) bool {
	if s.bits.Test(uint(mask)) {
		return false
	}
	s.bits.MustSet(uint(mask))
	return true
}

// remove deletes mask from the set, reporting false if absent.
func (s *prefixSet) remove(mask int8) bool {
	if !s.bits.Test(uint(mask)) {
		return false
	}
	s.bits.MustClear(uint(mask))
	return true
}

func (s prefixSet) contains(mask int8) bool {
	return s.bits.Test(uint(mask))
}

func (s prefixSet) isEmpty() bool {
	return s.bits.IsEmpty()
}

func (s prefixSet) size() int {
	return s.bits.Size()
}

// max returns the largest stored mask, -1 on the empty set.
func (s prefixSet) max() int8 {
	if last, ok := s.bits.LastSet(); ok {
		return int8(last)
	}
	return -1
}

// all appends the stored masks in ascending order to buf.
func (s prefixSet) all(buf []uint8) []uint8 {
	for _, m := range s.bits.All() {
		buf = append(buf, uint8(m))
	}
	return buf
}

// netMask is the network mask for a prefix length, all-ones shifted
// left by the host bits. mask 0 yields 0, matching everything.
func netMask(mask uint) uint32 {
	return ^uint32(0) << (32 - mask)
}

// maxMatch returns the largest stored mask m for which the payload key
// and ip agree on the top m bits, or -1.
//
// Scans descending: the first hit is the longest match.
func (p *payload) maxMatch(ip uint32) int8 {
	for b := p.masks.bits; !b.IsEmpty(); {
		m, _ := b.LastSet()
		if p.key&netMask(m) == ip&netMask(m) {
			return int8(m)
		}
		b.MustClear(m)
	}
	return -1
}
