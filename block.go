// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv

import "bytes"

// blockView is the decoded form of one 4096-byte block:
// either an in-progress block holding `count` occupied slots, or a
// FULL block whose header instead encodes the index of the next block
// in the chain.
type blockView struct {
	raw   []byte
	full  bool
	count uint32
	next  uint32 // absolute offset of the next block; valid only if full
}

func blockOffset(index uint32) uint32 {
	return hsizeBlk + index*blockSize
}

// readBlock loads and decodes the block at off.
func readBlock(f filer, off uint32) (*blockView, error) {
	buf := make([]byte, blockSize)
	if err := safeReadAt(f, off, buf); err != nil {
		return nil, wrapf(err, "read block at %d", off)
	}

	head := getUint32(buf[:lenSize])
	bv := &blockView{raw: buf}
	if head&usedFlag == 0 {
		bv.count = head
	} else {
		bv.full = true
		bv.count = maxBlockEntries
		bv.next = blockOffset(head &^ usedFlag)
	}
	return bv, nil
}

// slot returns the payload offset stored in the i-th slot (1-based:
// slot 0 is the header word).
func (bv *blockView) slot(i uint32) uint32 {
	off := i * lenSize
	return getUint32(bv.raw[off : off+lenSize])
}

// readKeyAt reads the (key_len, key) prefix of a payload record.
func readKeyAt(f filer, off uint32) ([]byte, error) {
	var lenBuf [lenSize]byte
	if err := safeReadAt(f, off, lenBuf[:]); err != nil {
		return nil, wrapf(err, "read key length at %d", off)
	}
	n := getUint32(lenBuf[:])
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if err := safeReadAt(f, off+lenSize, buf); err != nil {
		return nil, wrapf(err, "read key at %d", off+lenSize)
	}
	return buf, nil
}

// scanResult collects what a walk of one hash bucket's block chain
// found: the matching entry (if any), and the first free slot and the
// tail block, both useful to insertToChain.
type scanResult struct {
	lastBlock   uint32
	nblkEntries uint32
	slotEntry   uint32 // offset of the slot referencing the match; 0 if not found
	offsetKV    uint32 // payload offset of the match; 0 if not found
	freeSlot    uint32 // offset of first zeroed slot seen; 0 if none
	freeBlock   uint32
}

// scanBlocks walks the chain starting at headOffset looking for key.
func scanBlocks(db *DB, headOffset uint32, key []byte) (*scanResult, error) {
	res := &scanResult{}
	offset := headOffset

	for offset != 0 {
		bv, err := readBlock(db.blk, offset)
		if err != nil {
			return nil, err
		}

		for i := uint32(1); i <= bv.count; i++ {
			payloadOff := bv.slot(i)
			if payloadOff == 0 {
				if res.freeSlot == 0 {
					res.freeSlot = offset + i*lenSize
					res.freeBlock = offset
				}
				continue
			}

			storedKey, err := readKeyAt(db.kvf, payloadOff)
			if err != nil {
				return nil, err
			}
			if bytes.Equal(storedKey, key) {
				res.slotEntry = offset + i*lenSize
				res.offsetKV = payloadOff
				res.lastBlock = offset
				res.nblkEntries = bv.count
				return res, nil
			}
		}

		res.lastBlock = offset
		res.nblkEntries = bv.count
		if bv.full {
			offset = bv.next
		} else {
			offset = 0
		}
	}

	return res, nil
}

// allocateBlock appends a new, empty block to .blk and returns its
// index and absolute offset.
func allocateBlock(db *DB) (index uint32, offset uint32, err error) {
	if db.nbBlocks >= maxBlocksCount {
		return 0, 0, wrapf(ErrNoSpace, "block table exhausted at %d blocks", db.nbBlocks)
	}

	index = db.nbBlocks
	offset = blockOffset(index)

	var zero [lenSize]byte
	if err := safeWriteAt(db.blk, offset, zero[:]); err != nil {
		return 0, 0, wrapf(err, "allocate block at %d", offset)
	}

	db.nbBlocks++
	return index, offset, nil
}

// extendChain allocates a new block and links lastBlockOffset's header
// to it, marking the old block FULL.
func extendChain(db *DB, lastBlockOffset uint32) (uint32, error) {
	index, offset, err := allocateBlock(db)
	if err != nil {
		return 0, err
	}

	var buf [lenSize]byte
	putUint32(buf[:], usedFlag|index)
	if err := safeWriteAt(db.blk, lastBlockOffset, buf[:]); err != nil {
		return 0, wrapf(err, "link block chain at %d", lastBlockOffset)
	}

	return offset, nil
}

// insertFirstEntry stores (key,val) and publishes a brand-new
// single-block chain at hashSlotOffset. Order matters: payload, then
// block slot and header, then the .h pointer. Publishing the head
// before the block is initialized would let a crash between the two
// writes leave a hash slot pointing at garbage; writing the block
// fully first means a crash here can only leak an
// allocated-but-unreferenced block, never corrupt a live chain.
func insertFirstEntry(db *DB, hashSlotOffset uint32, key, val []byte) error {
	payloadOffset, err := db.storeKV(key, val)
	if err != nil {
		return err
	}

	_, blockOff, err := allocateBlock(db)
	if err != nil {
		_ = db.remove(payloadOffset)
		return err
	}

	var slotBuf [lenSize]byte
	putUint32(slotBuf[:], payloadOffset)
	if err := safeWriteAt(db.blk, blockOff+blockHeadSize, slotBuf[:]); err != nil {
		_ = db.remove(payloadOffset)
		return wrapf(err, "write first slot at %d", blockOff)
	}

	var headBuf [lenSize]byte
	putUint32(headBuf[:], 1)
	if err := safeWriteAt(db.blk, blockOff, headBuf[:]); err != nil {
		_ = db.remove(payloadOffset)
		return wrapf(err, "write block header at %d", blockOff)
	}

	var hBuf [lenSize]byte
	putUint32(hBuf[:], blockOff)
	if err := safeWriteAt(db.h, hashSlotOffset, hBuf[:]); err != nil {
		return wrapf(err, "publish hash slot at %d", hashSlotOffset)
	}

	return nil
}

// insertToChain stores (key,val) into an existing bucket: if key is
// already present its slot is cleared and its old record freed, and the
// new record is stored through the allocator like any other; the entry
// then goes into the first free slot the scan saw (left by a prior
// delete, or the one just cleared), or else into a new slot appended to
// the tail block (extending the chain with a new block if the tail is
// full).
func insertToChain(db *DB, key, val []byte, headOffset uint32) error {
	res, err := scanBlocks(db, headOffset, key)
	if err != nil {
		return err
	}

	if res.slotEntry != 0 {
		var zero [lenSize]byte
		if err := safeWriteAt(db.blk, res.slotEntry, zero[:]); err != nil {
			return wrapf(err, "clear slot at %d", res.slotEntry)
		}
		if err := db.remove(res.offsetKV); err != nil {
			return err
		}
		if res.freeSlot == 0 {
			res.freeSlot = res.slotEntry
			res.freeBlock = res.lastBlock
		}
	}

	var insertionSlot, insertionBlock uint32
	growCount := false

	if res.freeSlot != 0 {
		insertionSlot = res.freeSlot
		insertionBlock = res.freeBlock
	} else {
		if res.nblkEntries >= maxBlockEntries {
			newBlock, err := extendChain(db, res.lastBlock)
			if err != nil {
				return err
			}
			res.lastBlock = newBlock
			res.nblkEntries = 0
		}
		insertionBlock = res.lastBlock
		insertionSlot = res.lastBlock + blockHeadSize + res.nblkEntries*lenSize
		growCount = true
	}

	payloadOffset, err := db.storeKV(key, val)
	if err != nil {
		return err
	}

	var slotBuf [lenSize]byte
	putUint32(slotBuf[:], payloadOffset)
	if err := safeWriteAt(db.blk, insertionSlot, slotBuf[:]); err != nil {
		_ = db.remove(payloadOffset)
		return wrapf(err, "write slot at %d", insertionSlot)
	}

	if growCount {
		res.nblkEntries++
		var headBuf [lenSize]byte
		putUint32(headBuf[:], res.nblkEntries)
		if err := safeWriteAt(db.blk, insertionBlock, headBuf[:]); err != nil {
			_ = db.remove(payloadOffset)
			return wrapf(err, "update block header at %d", insertionBlock)
		}
	}

	return nil
}
