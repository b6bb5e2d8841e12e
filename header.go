// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv

import (
	"encoding/binary"

	"github.com/cznic/mathutil"
)

const (
	// lenSize is the width, in bytes, of every fixed-size integer
	// field in the on-disk format.
	lenSize = 4

	magicH   uint32 = 0x68617368 // ".h"
	magicKV  uint32 = 0x6b766462 // ".kv"
	magicBlk uint32 = 0x626c6b76 // ".blk"
	magicDKV uint32 = 0x646b766b // ".dkv"

	hsizeH   = lenSize + lenSize     // magic, hidx
	hsizeKV  = lenSize               // magic
	hsizeBlk = lenSize + lenSize     // magic, nb_blocks
	hsizeDKV = lenSize + 2*lenSize   // magic, nb_dkv_entries, end_kv

	blockSize       = 4096
	blockHeadSize   = lenSize
	maxBlockEntries = (blockSize - blockHeadSize) / lenSize // N, 1023 slots per block

	// cachePage is the granularity at which the in-memory extent
	// directory's backing capacity grows and shrinks.
	cachePage = 4096

	// hashTableSize is P, the prime number of slots in the .h table.
	hashTableSize uint32 = 999983

	// usedFlag is the top bit of a block-header word (FULL marker) and
	// of an extent's mem_usage word (USED marker); both reuse the same
	// bit position by construction of the format.
	usedFlag uint32 = 1 << 31

	// maxBlocksCount bounds nb_blocks so that every block's absolute
	// offset (hsizeBlk + index*blockSize) still fits in 32 bits.
	maxBlocksCount uint32 = (1<<32 - 1 - hsizeBlk) / blockSize
)

func getUint32(b []byte) uint32      { return binary.LittleEndian.Uint32(b) }
func putUint32(b []byte, v uint32)   { binary.LittleEndian.PutUint32(b, v) }

// writeHeaders stamps all four files with their magic number and
// initial metadata for a freshly created database.
func (db *DB) writeHeaders(hidx uint32) error {
	var hHeader [hsizeH]byte
	putUint32(hHeader[0:lenSize], magicH)
	putUint32(hHeader[lenSize:2*lenSize], hidx)
	if err := safeWriteAt(db.h, 0, hHeader[:]); err != nil {
		return wrap(err, "write .h header")
	}

	var blkHeader [hsizeBlk]byte
	putUint32(blkHeader[0:lenSize], magicBlk)
	if err := safeWriteAt(db.blk, 0, blkHeader[:]); err != nil {
		return wrap(err, "write .blk header")
	}

	var kvHeader [hsizeKV]byte
	putUint32(kvHeader[0:lenSize], magicKV)
	if err := safeWriteAt(db.kvf, 0, kvHeader[:]); err != nil {
		return wrap(err, "write .kv header")
	}

	var dkvHeader [hsizeDKV]byte
	putUint32(dkvHeader[0:lenSize], magicDKV)
	putUint32(dkvHeader[lenSize:2*lenSize], 0)
	putUint32(dkvHeader[2*lenSize:3*lenSize], hsizeKV)
	if err := safeWriteAt(db.dkvf, 0, dkvHeader[:]); err != nil {
		return wrap(err, "write .dkv header")
	}

	return nil
}

// useHeaders validates the magic number of each of the four files and
// loads the persisted metadata (hidx, nb_blocks, nb_dkv_entries,
// end_kv). It returns the entry count so the caller can size the
// in-memory extent cache.
func (db *DB) useHeaders() (nbDkvEntries uint32, err error) {
	var buf [lenSize]byte

	if err := safeReadAt(db.h, 0, buf[:]); err != nil {
		return 0, wrap(err, "read .h magic")
	}
	if getUint32(buf[:]) != magicH {
		return 0, wrapf(ErrInvalid, "%s: bad magic", db.h.Name())
	}

	if err := safeReadAt(db.kvf, 0, buf[:]); err != nil {
		return 0, wrap(err, "read .kv magic")
	}
	if getUint32(buf[:]) != magicKV {
		return 0, wrapf(ErrInvalid, "%s: bad magic", db.kvf.Name())
	}

	if err := safeReadAt(db.blk, 0, buf[:]); err != nil {
		return 0, wrap(err, "read .blk magic")
	}
	if getUint32(buf[:]) != magicBlk {
		return 0, wrapf(ErrInvalid, "%s: bad magic", db.blk.Name())
	}

	if err := safeReadAt(db.dkvf, 0, buf[:]); err != nil {
		return 0, wrap(err, "read .dkv magic")
	}
	if getUint32(buf[:]) != magicDKV {
		return 0, wrapf(ErrInvalid, "%s: bad magic", db.dkvf.Name())
	}

	if err := safeReadAt(db.h, lenSize, buf[:]); err != nil {
		return 0, wrap(err, "read hidx")
	}
	hi, err := normalizeHashIndex(getUint32(buf[:]))
	if err != nil {
		return 0, err
	}
	db.hashIndex = hi

	if err := safeReadAt(db.blk, lenSize, buf[:]); err != nil {
		return 0, wrap(err, "read nb_blocks")
	}
	db.nbBlocks = getUint32(buf[:])

	if err := safeReadAt(db.dkvf, lenSize, buf[:]); err != nil {
		return 0, wrap(err, "read nb_dkv_entries")
	}
	nbDkvEntries = getUint32(buf[:])

	if err := safeReadAt(db.dkvf, 2*lenSize, buf[:]); err != nil {
		return 0, wrap(err, "read end_kv")
	}
	db.endKV = getUint32(buf[:])

	return nbDkvEntries, nil
}

// flushMeta writes back the metadata mutated over the handle's
// lifetime: nb_blocks, nb_dkv_entries, end_kv, and the full extent
// table. Called from Close for any handle not opened read-only.
func (db *DB) flushMeta() error {
	var buf [lenSize]byte

	putUint32(buf[:], db.nbBlocks)
	if err := safeWriteAt(db.blk, lenSize, buf[:]); err != nil {
		return wrap(err, "write nb_blocks")
	}

	nbEntries := uint32(len(db.dkv))
	putUint32(buf[:], nbEntries)
	if err := safeWriteAt(db.dkvf, lenSize, buf[:]); err != nil {
		return wrap(err, "write nb_dkv_entries")
	}

	putUint32(buf[:], db.endKV)
	if err := safeWriteAt(db.dkvf, 2*lenSize, buf[:]); err != nil {
		return wrap(err, "write end_kv")
	}

	out := make([]byte, nbEntries*entrySize)
	for i, e := range db.dkv {
		off := uint32(i) * entrySize
		putUint32(out[off:off+lenSize], e.memUsage)
		putUint32(out[off+lenSize:off+2*lenSize], e.offset)
	}
	if err := safeWriteAt(db.dkvf, hsizeDKV, out); err != nil {
		return wrap(err, "write dkv entries")
	}

	if err := db.dkvf.Truncate(hsizeDKV + nbEntries*entrySize); err != nil {
		return wrap(err, "truncate .dkv")
	}

	return nil
}

// loadCache reads the persisted extent table into memory, sizing the
// backing array to the next cache page.
func (db *DB) loadCache(nbEntries uint32) error {
	sizeEntries := nbEntries * entrySize
	pages := (sizeEntries + cachePage - 1) / cachePage
	capBytes := uint32(mathutil.Max(int(pages*cachePage), cachePage))

	buf := make([]byte, sizeEntries)
	if err := safeReadAt(db.dkvf, hsizeDKV, buf); err != nil {
		return wrap(err, "load dkv cache")
	}

	entries := make([]extent, nbEntries, capBytes/entrySize)
	for i := uint32(0); i < nbEntries; i++ {
		off := i * entrySize
		entries[i] = extent{
			memUsage: getUint32(buf[off : off+lenSize]),
			offset:   getUint32(buf[off+lenSize : off+2*lenSize]),
		}
	}

	db.dkv = entries
	db.dkvCap = capBytes
	return nil
}
