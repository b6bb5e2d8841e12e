// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv

// HashIndex selects one of the three functions that fold a key into a
// slot in [0, P) of the .h table. HashAdditive is the target of both
// on-disk values 0 and 1, an intentional alias rather than a bug.
type HashIndex uint32

const (
	HashAdditive HashIndex = 1
	HashXOR      HashIndex = 2
	HashFNV      HashIndex = 3
)

// normalizeHashIndex validates a raw hidx value and maps it to the
// HashIndex it denotes. Any value outside {0,1,2,3} is rejected.
func normalizeHashIndex(raw uint32) (HashIndex, error) {
	switch raw {
	case 0, 1:
		return HashAdditive, nil
	case 2:
		return HashXOR, nil
	case 3:
		return HashFNV, nil
	default:
		return 0, wrapf(ErrInvalid, "invalid hash index %d", raw)
	}
}

// HashSlot computes the .h table slot a key would map to under hidx,
// without needing an open database. It is exported for diagnostic use
// (see cmd/kvhash).
func HashSlot(hidx uint32, key []byte) (uint32, error) {
	h, err := normalizeHashIndex(hidx)
	if err != nil {
		return 0, err
	}
	return hashKey(h, key), nil
}

func hashKey(h HashIndex, key []byte) uint32 {
	switch h {
	case HashAdditive:
		return hashAdditive(key)
	case HashXOR:
		return hashXOR(key)
	case HashFNV:
		return hashFNV(key)
	default:
		panic("kv: unreachable hash index")
	}
}

// hashAdditive sums byte values modulo P, the simplest of the three.
func hashAdditive(key []byte) uint32 {
	var hash uint32
	for _, b := range key {
		hash += uint32(b)
		hash %= hashTableSize
	}
	return hash
}

// hashXOR shifts each byte left by its position modulo 32 before XORing
// it in; bits shifted past the top of the word are dropped, not rotated.
func hashXOR(key []byte) uint32 {
	var hash uint32
	for i, b := range key {
		hash ^= uint32(b) << (uint(i) % 32)
		hash %= hashTableSize
	}
	return hash
}

// hashFNV is an FNV-1a-like accumulator. Unlike hashXOR/hashAdditive
// above, which fold in the raw unsigned byte value, this one XORs in
// the byte as a signed int8 so a high-bit byte sign-extends before
// folding into the unsigned accumulator -- an asymmetry between the
// three functions that is intentional, not a typo.
func hashFNV(key []byte) uint32 {
	hash := uint32(2166136261)
	for _, b := range key {
		hash ^= uint32(int32(int8(b)))
		hash *= 16777619
		hash %= hashTableSize
	}
	return hash
}
