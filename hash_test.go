// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv

import (
	"testing"
)

func TestHashTableSizeIsPrime(t *testing.T) {
	n := hashTableSize
	if n < 2 {
		t.Fatalf("hashTableSize %d is not prime", n)
	}
	for d := uint32(2); d*d <= n; d++ {
		if n%d == 0 {
			t.Fatalf("hashTableSize %d is not prime: divisible by %d", n, d)
		}
	}
}

func TestHashIndexAlias(t *testing.T) {
	for _, raw := range []uint32{0, 1} {
		hi, err := normalizeHashIndex(raw)
		if err != nil {
			t.Fatalf("normalizeHashIndex(%d): %v", raw, err)
		}
		if hi != HashAdditive {
			t.Fatalf("normalizeHashIndex(%d) = %v, want HashAdditive", raw, hi)
		}
	}
}

func TestNormalizeHashIndexRejectsUnknown(t *testing.T) {
	if _, err := normalizeHashIndex(4); err == nil {
		t.Fatal("expected error for hidx 4")
	}
}

func TestHashFunctionsStayInRange(t *testing.T) {
	keys := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("My key1"),
		{0x00, 0xff, 0x7f, 0x80},
		[]byte("a fairly long key used to exercise the rotation in hash_fun2"),
	}
	for _, h := range []HashIndex{HashAdditive, HashXOR, HashFNV} {
		for _, k := range keys {
			got := hashKey(h, k)
			if got >= hashTableSize {
				t.Fatalf("hashKey(%v, %q) = %d, out of range [0,%d)", h, k, got, hashTableSize)
			}
		}
	}
}

func TestHashFunctionsDeterministic(t *testing.T) {
	key := []byte("determinism matters for round-tripping")
	for _, h := range []HashIndex{HashAdditive, HashXOR, HashFNV} {
		a := hashKey(h, key)
		b := hashKey(h, key)
		if a != b {
			t.Fatalf("hashKey(%v, ...) not deterministic: %d != %d", h, a, b)
		}
	}
}

func TestHashSlot(t *testing.T) {
	slot, err := HashSlot(2, []byte("k"))
	if err != nil {
		t.Fatal(err)
	}
	if slot != hashXOR([]byte("k")) {
		t.Fatalf("HashSlot mismatch: got %d", slot)
	}
	if _, err := HashSlot(99, []byte("k")); err == nil {
		t.Fatal("expected error for invalid hidx")
	}
}
