// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package ipcontainer provides a dynamic longest-prefix-match index
// for IPv4 CIDR prefixes.
//
// The engine is a binary radix (Patricia) trie over 32-bit big-endian
// keys. All trie nodes live in a relocating, index-compacted arena:
// freeing a node moves the last slot into the hole and the moved node
// repairs its incoming parent and child references. Per-key prefix
// lengths are kept in a small bitset inside the leaf payload.
//
// Three operations are supported, with C-style result codes on the
// numeric core:
//
//   - Add inserts a (base, mask) prefix, idempotent on duplicates
//   - Del removes a prefix, reporting absence
//   - Check answers the longest matching mask stored on the address's
//     candidate leaf (no backtracking to other leaves)
//
// netip-based wrappers (InsertPrefix, DeletePrefix, Lookup) cover the
// dotted-quad conversion for callers that prefer errors over codes.
//
// A Table is not safe for concurrent use and must be released with
// Close.
package ipcontainer
