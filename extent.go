// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv

import (
	"math"
	"sort"

	"github.com/cznic/mathutil"
)

// entrySize is the width of one on-disk dkv_entry: a (mem_usage,
// offset) pair.
const entrySize = 2 * lenSize

// extent describes one contiguous region of the .kv payload file,
// either USED (holding a live record) or FREE.
type extent struct {
	memUsage uint32 // top bit: USED flag; low 31 bits: size
	offset   uint32
}

func usedExtent(offset, size uint32) extent { return extent{memUsage: usedFlag | size, offset: offset} }
func freeExtent(offset, size uint32) extent { return extent{memUsage: size, offset: offset} }

func (e extent) isUsed() bool { return e.memUsage&usedFlag != 0 }
func (e extent) size() uint32 { return e.memUsage &^ usedFlag }

// allocKind distinguishes reusing a FREE extent from appending past
// end_kv.
type allocKind int

const (
	allocAppend allocKind = iota
	allocReuse
)

type allocPlan struct {
	kind   allocKind
	slot   uint32 // index into db.dkv; only meaningful when kind == allocReuse
	offset uint32
}

// allocate selects a placement for a new size-byte payload record
// according to the handle's AllocPolicy.
func (db *DB) allocate(size uint32) (allocPlan, error) {
	switch db.policy {
	case FirstFit:
		return db.firstFit(size)
	case WorstFit:
		return db.worstFit(size)
	case BestFit:
		return db.bestFit(size)
	default:
		return allocPlan{}, wrapf(ErrInvalid, "invalid allocation policy %d", db.policy)
	}
}

func (db *DB) appendPlan(size uint32) (allocPlan, error) {
	room := uint32(math.MaxUint32) - db.endKV
	if size > room {
		return allocPlan{}, wrapf(ErrNoSpace, "payload file exhausted at %d bytes", db.endKV)
	}
	return allocPlan{kind: allocAppend, offset: db.endKV}, nil
}

// firstFit returns the first FREE extent large enough, scanning in
// offset order.
func (db *DB) firstFit(size uint32) (allocPlan, error) {
	for i, e := range db.dkv {
		if e.isUsed() || e.size() < size {
			continue
		}
		return allocPlan{kind: allocReuse, slot: uint32(i), offset: e.offset}, nil
	}
	return db.appendPlan(size)
}

// worstFit returns the largest sufficient FREE extent, first
// occurrence wins ties.
func (db *DB) worstFit(size uint32) (allocPlan, error) {
	var best *extent
	var bestIdx int
	for i := range db.dkv {
		e := &db.dkv[i]
		if e.isUsed() {
			continue
		}
		if best == nil || e.size() > best.size() {
			best, bestIdx = e, i
		}
	}
	if best != nil && best.size() >= size {
		return allocPlan{kind: allocReuse, slot: uint32(bestIdx), offset: best.offset}, nil
	}
	return db.appendPlan(size)
}

// bestFit returns the smallest sufficient FREE extent, first
// occurrence wins ties, and stops early on an exact match.
func (db *DB) bestFit(size uint32) (allocPlan, error) {
	var best *extent
	var bestIdx int
	for i := range db.dkv {
		e := &db.dkv[i]
		if e.isUsed() || e.size() < size {
			continue
		}
		if best == nil || e.size() < best.size() {
			best, bestIdx = e, i
			if e.size() == size {
				break
			}
		}
	}
	if best != nil {
		return allocPlan{kind: allocReuse, slot: uint32(bestIdx), offset: best.offset}, nil
	}
	return db.appendPlan(size)
}

// pushUsed records a new USED extent appended at end_kv.
func (db *DB) pushUsed(offset, size uint32) {
	db.growDkv(uint32(len(db.dkv)) + 1)
	db.dkv = append(db.dkv, usedExtent(offset, size))
	db.endKV += size
}

// useSlot reuses the FREE extent at db.dkv[slot] for a new USED extent
// of newSize bytes, splitting off any remainder as a new FREE extent
// immediately after it, keeping db.dkv sorted by offset throughout.
func (db *DB) useSlot(slot, offset, newSize uint32) error {
	old := db.dkv[slot]
	switch {
	case old.size() > newSize:
		remainder := old.size() - newSize
		if err := db.shiftDkv(slot, 1); err != nil {
			return err
		}
		db.dkv[slot] = usedExtent(offset, newSize)
		db.dkv[slot+1] = freeExtent(offset+newSize, remainder)
	case old.size() == newSize:
		db.dkv[slot] = usedExtent(offset, newSize)
	default:
		return wrapf(ErrInvalid, "reused extent at slot %d smaller than requested size", slot)
	}
	return nil
}

// shiftDkv grows (dir > 0) or shrinks (dir < 0) the cache by exactly
// one entry at pos, reallocating the backing array in cachePage
// increments rather than relying on append's amortized doubling --
// Go's growth strategy would not honor the page-granular capacity
// contract.
func (db *DB) shiftDkv(pos uint32, dir int) error {
	n := uint32(len(db.dkv))
	if dir > 0 {
		db.growDkv(n + 1)
		db.dkv = db.dkv[:n+1]
		copy(db.dkv[pos+1:], db.dkv[pos:n])
	} else {
		copy(db.dkv[pos:n-1], db.dkv[pos+1:n])
		db.dkv = db.dkv[:n-1]
		db.shrinkDkvIfPossible()
	}
	return nil
}

// growDkv ensures the cache's backing array has room for at least need
// entries, rounding the request up to a whole number of cachePage-sized
// pages and never dropping below one page -- mirroring the floor clamp
// loadCache applies when sizing a freshly loaded cache.
func (db *DB) growDkv(need uint32) {
	needBytes := need * entrySize
	pages := (needBytes + cachePage - 1) / cachePage
	wantCap := uint32(mathutil.Max(int(pages*cachePage), cachePage))
	if db.dkvCap >= wantCap {
		if uint32(cap(db.dkv)) < need {
			grown := make([]extent, len(db.dkv), db.dkvCap/entrySize)
			copy(grown, db.dkv)
			db.dkv = grown
		}
		return
	}
	db.dkvCap = wantCap
	grown := make([]extent, len(db.dkv), db.dkvCap/entrySize)
	copy(grown, db.dkv)
	db.dkv = grown
}

// shrinkDkvIfPossible drops one cache page of capacity if the current
// length leaves an entire trailing page unused, never shrinking below
// one page.
func (db *DB) shrinkDkvIfPossible() {
	n := uint32(len(db.dkv))
	if db.dkvCap > cachePage && n*entrySize <= db.dkvCap-cachePage {
		db.dkvCap -= cachePage
		shrunk := make([]extent, n, db.dkvCap/entrySize)
		copy(shrunk, db.dkv)
		db.dkv = shrunk
	}
}

// dkvFindContiguous locates the extent at offsetKV together with
// whether it has an immediate left/right neighbour in db.dkv. Since
// db.dkv is kept sorted by offset, "neighbour" reduces to "adjacent
// index" and a binary search suffices -- no linear adjacency scan is
// needed.
func (db *DB) dkvFindContiguous(offsetKV uint32) (idx int, hasPrev, hasNext bool, err error) {
	idx = sort.Search(len(db.dkv), func(i int) bool { return db.dkv[i].offset >= offsetKV })
	if idx >= len(db.dkv) || db.dkv[idx].offset != offsetKV {
		return 0, false, false, wrapf(ErrNotFound, "no extent at offset %d", offsetKV)
	}
	hasPrev = idx > 0
	hasNext = idx+1 < len(db.dkv)
	return idx, hasPrev, hasNext, nil
}

// remove marks the extent at offsetKV FREE, coalesces it with any
// adjacent FREE neighbours, and truncates the payload file if the
// coalesced extent now reaches end_kv.
func (db *DB) remove(offsetKV uint32) error {
	idx, hasPrev, hasNext, err := db.dkvFindContiguous(offsetKV)
	if err != nil {
		return err
	}

	merged := freeExtent(db.dkv[idx].offset, db.dkv[idx].size())
	db.dkv[idx] = merged

	if hasPrev && !db.dkv[idx-1].isUsed() {
		prev := db.dkv[idx-1]
		merged = freeExtent(prev.offset, prev.size()+merged.size())
		if err := db.shiftDkv(uint32(idx-1), -1); err != nil {
			return err
		}
		idx--
		db.dkv[idx] = merged
		hasNext = idx+1 < len(db.dkv)
	}

	if hasNext && !db.dkv[idx+1].isUsed() {
		next := db.dkv[idx+1]
		merged = freeExtent(merged.offset, merged.size()+next.size())
		db.dkv[idx] = merged
		if err := db.shiftDkv(uint32(idx+1), -1); err != nil {
			return err
		}
	}

	if merged.offset+merged.size() == db.endKV {
		if err := db.kvf.Truncate(merged.offset); err != nil {
			return wrapf(err, "truncate payload file to %d", merged.offset)
		}
		db.endKV = merged.offset
		if err := db.shiftDkv(uint32(idx), -1); err != nil {
			return err
		}
	}

	return nil
}

// Stats summarizes extent utilization for this engine's flat extent
// model.
type Stats struct {
	Extents   int
	UsedBytes uint32
	FreeBytes uint32
	EndOffset uint32
	NumBlocks uint32
}

// Stats reports the current extent-table utilization, useful for
// diagnostics and for tests asserting the no-adjacent-FREE invariant.
func (db *DB) Stats() Stats {
	s := Stats{Extents: len(db.dkv), EndOffset: db.endKV, NumBlocks: db.nbBlocks}
	for _, e := range db.dkv {
		if e.isUsed() {
			s.UsedBytes += e.size()
		} else {
			s.FreeBytes += e.size()
		}
	}
	return s
}
