// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv

// Start resets the handle's cursor to the beginning of the extent
// table.
func (db *DB) Start() {
	db.nextEntry = 0
}

// Next advances the cursor to the next USED extent and fills key and
// val with its record, returning false once the extent table is
// exhausted. Next shares the handle's single cursor; a concurrent Put
// or Delete that shifts the extent table invalidates an in-progress
// scan.
func (db *DB) Next(key, val *Datum) (bool, error) {
	if db.writeOnly {
		return false, ErrPermission
	}

	for db.nextEntry < uint32(len(db.dkv)) && !db.dkv[db.nextEntry].isUsed() {
		db.nextEntry++
	}
	if db.nextEntry >= uint32(len(db.dkv)) {
		return false, nil
	}

	e := db.dkv[db.nextEntry]

	var keyLenBuf [lenSize]byte
	if err := safeReadAt(db.kvf, e.offset, keyLenBuf[:]); err != nil {
		return false, wrap(err, "read key size")
	}
	keyLen := getUint32(keyLenBuf[:])

	valOffset := e.offset + lenSize + keyLen
	var valLenBuf [lenSize]byte
	if err := safeReadAt(db.kvf, valOffset, valLenBuf[:]); err != nil {
		return false, wrap(err, "read value size")
	}
	valLen := getUint32(valLenBuf[:])

	if err := fillDatum(db.kvf, e.offset+lenSize, keyLen, key); err != nil {
		return false, wrap(err, "read key")
	}
	if err := fillDatum(db.kvf, valOffset+lenSize, valLen, val); err != nil {
		return false, wrap(err, "read value")
	}

	db.nextEntry++
	return true, nil
}
