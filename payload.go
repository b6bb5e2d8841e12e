// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv

// storeKV composes the (key_len, key, val_len, val) record and places
// it in the payload file using the handle's configured AllocPolicy.
func (db *DB) storeKV(key, val []byte) (uint32, error) {
	size := uint32(len(key)) + uint32(len(val)) + 2*lenSize

	plan, err := db.allocate(size)
	if err != nil {
		return 0, err
	}

	record := make([]byte, size)
	putUint32(record[0:lenSize], uint32(len(key)))
	copy(record[lenSize:], key)
	valAt := lenSize + len(key)
	putUint32(record[valAt:valAt+lenSize], uint32(len(val)))
	copy(record[valAt+lenSize:], val)

	if err := safeWriteAt(db.kvf, plan.offset, record); err != nil {
		return 0, wrapf(err, "write payload at %d", plan.offset)
	}

	switch plan.kind {
	case allocAppend:
		db.pushUsed(plan.offset, size)
	case allocReuse:
		if err := db.useSlot(plan.slot, plan.offset, size); err != nil {
			return 0, err
		}
	}

	return plan.offset, nil
}
