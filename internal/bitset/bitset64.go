// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package bitset implements a tiny fixed-size bitset, a mapping
// between small non-negative integers and boolean values.
//
// One machine word is all the prefix-length domain [0..32] needs,
// so everything stays branch-poor and inlineable.
package bitset

import (
	"fmt"
	"math/bits"
)

// BitSet64 represents a fixed size bitset from [0..63]
type BitSet64 uint64

func (b BitSet64) String() string {
	return fmt.Sprint(b.All())
}

// MustSet sets the bit, it panic's if bit is > 63 by intention!
func (b *BitSet64) MustSet(bit uint) {
	if bit > 63 {
		panic("bitset: bit out of range")
	}
	*b |= 1 << bit
}

// MustClear clears the bit, it panic's if bit is > 63 by intention!
func (b *BitSet64) MustClear(bit uint) {
	if bit > 63 {
		panic("bitset: bit out of range")
	}
	*b &^= 1 << bit
}

// Test if the bit is set.
func (b BitSet64) Test(bit uint) bool {
	if bit > 63 {
		return false
	}
	return b&(1<<bit) != 0
}

// IsEmpty returns true if no bit is set.
func (b BitSet64) IsEmpty() bool {
	return b == 0
}

// Size is the number of set bits (popcount).
func (b BitSet64) Size() int {
	return bits.OnesCount64(uint64(b))
}

// FirstSet returns the lowest bit set along with an ok code.
func (b BitSet64) FirstSet() (first uint, ok bool) {
	if b == 0 {
		return
	}
	return uint(bits.TrailingZeros64(uint64(b))), true
}

// LastSet returns the highest bit set along with an ok code.
func (b BitSet64) LastSet() (last uint, ok bool) {
	if b == 0 {
		return
	}
	return uint(bits.Len64(uint64(b))) - 1, true
}

// NextSet returns the next bit set from the specified start bit,
// including possibly the current bit along with an ok code.
func (b BitSet64) NextSet(bit uint) (uint, bool) {
	if bit > 63 {
		return 0, false
	}
	if rest := b >> bit; rest != 0 {
		return bit + uint(bits.TrailingZeros64(uint64(rest))), true
	}
	return 0, false
}

// AsSlice returns all set bits as slice of uint without
// heap allocations.
//
// This is faster than All, but also more dangerous,
// it panics if the capacity of buf is < b.Size()
func (b BitSet64) AsSlice(buf []uint) []uint {
	buf = buf[:cap(buf)] // use cap as max len

	size := 0
	word := uint64(b)
	for ; word != 0; size++ {
		// panics if capacity of buf is exceeded.
		buf[size] = uint(bits.TrailingZeros64(word))

		// clear the rightmost set bit
		word &= word - 1
	}

	buf = buf[:size]
	return buf
}

// All returns all set bits. This has a simpler API but is slower than AsSlice.
func (b BitSet64) All() []uint {
	return b.AsSlice(make([]uint, 0, 64))
}
