// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv

import (
	"io"
	"log/slog"
	"os"
)

// AllocPolicy selects how a new payload record picks among FREE
// extents before falling back to appending past end_kv.
type AllocPolicy int

const (
	// FirstFit reuses the first sufficient FREE extent in offset
	// order. Cheapest to evaluate; tends to fragment the low end of
	// the file under mixed-size churn.
	FirstFit AllocPolicy = iota
	// WorstFit reuses the largest FREE extent, leaving the biggest
	// possible remainder behind. Tends to keep many mid-size holes
	// usable at the cost of rarely reusing small holes exactly.
	WorstFit
	// BestFit reuses the smallest sufficient FREE extent, preferring
	// an exact match. Minimizes wasted remainder per allocation at the
	// cost of scanning the whole table.
	BestFit
)

// The four accepted open modes, provided as named
// constants for convenience; Open also accepts these as plain strings.
const (
	ModeRead        = "r"  // existing database, read-only
	ModeWrite       = "w"  // create or truncate, write-only
	ModeReadWrite   = "r+" // create if absent, read-write
	ModeWriteCreate = "w+" // create or truncate, read-write
)

// DB is an open handle to a four-file database. A DB is not safe for
// concurrent use by multiple goroutines; callers needing concurrent access must serialize
// it themselves.
type DB struct {
	name string

	h    filer
	kvf  filer
	blk  filer
	dkvf filer

	readOnly  bool
	writeOnly bool

	hashIndex HashIndex
	policy    AllocPolicy

	nbBlocks uint32
	endKV    uint32
	dkv      []extent
	dkvCap   uint32

	nextEntry uint32

	log *slog.Logger
}

// options holds configuration layered on top of Open's fixed
// (name, mode, hidx, alloc) signature.
type options struct {
	logger *slog.Logger
}

// OpenOption customizes a DB beyond the parameters Open requires.
type OpenOption func(*options)

// WithLogger overrides the handle's lifecycle logger, which otherwise
// defaults to slog.Default().
func WithLogger(l *slog.Logger) OpenOption {
	return func(o *options) { o.logger = l }
}

// parseMode maps a mode string to os.OpenFile flags and whether the
// resulting handle is write-only.
func parseMode(mode string) (flags int, writeOnly bool, err error) {
	if len(mode) == 0 || len(mode) > 2 {
		return 0, false, wrapf(ErrInvalid, "invalid mode %q", mode)
	}
	plus := mode[1:]
	if plus != "" && plus != "+" {
		return 0, false, wrapf(ErrInvalid, "invalid mode %q", mode)
	}

	switch mode[0] {
	case 'r':
		if plus == "+" {
			return os.O_RDWR | os.O_CREATE, false, nil
		}
		return os.O_RDONLY, false, nil
	case 'w':
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, plus != "+", nil
	default:
		return 0, false, wrapf(ErrInvalid, "invalid mode %q", mode)
	}
}

type fileSet struct {
	h, kv, blk, dkv filer
}

// openFileSet opens all four sibling files, closing any already
// opened on failure and preserving the original error.
func openFileSet(name string, flags int) (fileSet, error) {
	var opened []*os.File
	open := func(suffix string) (*os.File, error) {
		f, err := os.OpenFile(name+suffix, flags, 0o666)
		if err != nil {
			return nil, err
		}
		opened = append(opened, f)
		return f, nil
	}

	var fs fileSet
	hf, err := open(".h")
	if err == nil {
		fs.h = newOSFiler(hf)
		var kvf *os.File
		if kvf, err = open(".kv"); err == nil {
			fs.kv = newOSFiler(kvf)
			var blkf *os.File
			if blkf, err = open(".blk"); err == nil {
				fs.blk = newOSFiler(blkf)
				var dkvf *os.File
				if dkvf, err = open(".dkv"); err == nil {
					fs.dkv = newOSFiler(dkvf)
				}
			}
		}
	}

	if err != nil {
		for _, f := range opened {
			_ = f.Close()
		}
		return fileSet{}, &os.PathError{Op: "kv.Open", Path: name, Err: err}
	}

	return fs, nil
}

// Open opens, or creates, the four files sharing the base name and
// returns a handle. mode is one of "r", "w", "r+", "w+". hidx selects the hash function (only meaningful on creation;
// an existing database's hidx is read from its .h header). policy
// selects the allocation strategy for new records.
func Open(name string, mode string, hidx uint32, policy AllocPolicy, opts ...OpenOption) (*DB, error) {
	cfg := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	flags, writeOnly, err := parseMode(mode)
	if err != nil {
		return nil, err
	}

	db := &DB{
		name:      name,
		readOnly:  mode == ModeRead,
		writeOnly: writeOnly,
		policy:    policy,
		log:       cfg.logger,
	}

	fs, err := openFileSet(name, flags)
	if err != nil {
		return nil, err
	}
	db.h, db.kvf, db.blk, db.dkvf = fs.h, fs.kv, fs.blk, fs.dkv

	if db.kvf.Size() == 0 {
		hi, err := normalizeHashIndex(hidx)
		if err != nil {
			db.closeFilesBestEffort()
			return nil, err
		}
		db.hashIndex = hi
		if err := db.writeHeaders(hidx); err != nil {
			db.closeFilesBestEffort()
			return nil, err
		}
		db.nbBlocks = 0
		db.endKV = hsizeKV
		db.dkv = make([]extent, 0, cachePage/entrySize)
		db.dkvCap = cachePage
		db.log.Debug("kv: created database", "name", name, "hidx", hidx, "policy", policy)
		return db, nil
	}

	nbEntries, err := db.useHeaders()
	if err != nil {
		db.closeFilesBestEffort()
		return nil, err
	}
	if err := db.loadCache(nbEntries); err != nil {
		db.closeFilesBestEffort()
		return nil, err
	}
	db.log.Debug("kv: opened database", "name", name, "entries", nbEntries)
	return db, nil
}

// Name returns the database's base name, as supplied to Open.
func (db *DB) Name() string { return db.name }

// Close flushes metadata (unless the handle was opened read-only) and
// closes all four underlying files.
func (db *DB) Close() error {
	if !db.readOnly {
		if err := db.flushMeta(); err != nil {
			db.closeFilesBestEffort()
			return err
		}
	}
	db.log.Debug("kv: closing database", "name", db.name)
	return db.closeFiles()
}

func (db *DB) closeFiles() error {
	var firstErr error
	for _, f := range []filer{db.h, db.kvf, db.blk, db.dkvf} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = wrapf(err, "close %s", f.Name())
		}
	}
	return firstErr
}

func (db *DB) closeFilesBestEffort() {
	for _, f := range []filer{db.h, db.kvf, db.blk, db.dkvf} {
		if f != nil {
			_ = f.Close()
		}
	}
}

// rawReadHashSlot reads the raw byte count and value of the .h slot at
// off. The .h table is never pre-zeroed past its header: a
// slot that was never written reads back as a short/empty read rather
// than an error, which callers interpret as "empty bucket".
func rawReadHashSlot(f filer, off uint32) (n int, value uint32, err error) {
	var buf [lenSize]byte
	n, err = f.ReadAt(buf[:], off)
	if err != nil && err != io.EOF {
		return n, 0, wrapf(err, "read hash slot at %d", off)
	}
	return n, getUint32(buf[:]), nil
}

// keyToKV resolves key to its payload offset and the block slot that
// references it, returning ErrNotFound if the key is absent.
func (db *DB) keyToKV(key []byte) (payloadOffset uint32, blockSlotOffset uint32, err error) {
	slotOffset := hsizeH + hashKey(db.hashIndex, key)*lenSize

	n, head, err := rawReadHashSlot(db.h, slotOffset)
	if err != nil {
		return 0, 0, err
	}
	if n != lenSize || head == 0 {
		return 0, 0, ErrNotFound
	}

	res, err := scanBlocks(db, head, key)
	if err != nil {
		return 0, 0, err
	}
	if res.offsetKV == 0 {
		return 0, 0, ErrNotFound
	}
	return res.offsetKV, res.slotEntry, nil
}

// Get looks up key and, if found, fills val per the Datum filling
// contract and returns true. It returns false, nil if the
// key is absent. Get fails with ErrPermission on a write-only handle.
func (db *DB) Get(key []byte, val *Datum) (bool, error) {
	if db.writeOnly {
		return false, ErrPermission
	}

	offset, _, err := db.keyToKV(key)
	if err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}

	valOffset := offset + lenSize + uint32(len(key))
	var sizeBuf [lenSize]byte
	if err := safeReadAt(db.kvf, valOffset, sizeBuf[:]); err != nil {
		return false, wrap(err, "read value size")
	}
	if err := fillDatum(db.kvf, valOffset+lenSize, getUint32(sizeBuf[:]), val); err != nil {
		return false, wrap(err, "read value")
	}
	return true, nil
}

// Put inserts or overwrites key with val.
func (db *DB) Put(key, val []byte) error {
	slotOffset := hsizeH + hashKey(db.hashIndex, key)*lenSize

	n, head, err := rawReadHashSlot(db.h, slotOffset)
	if err != nil {
		return err
	}

	switch {
	case n == lenSize && head != 0:
		return insertToChain(db, key, val, head)
	case n == lenSize, n == 0:
		return insertFirstEntry(db, slotOffset, key, val)
	default:
		return wrapf(ErrInvalid, "short read of hash slot at %d: got %d bytes", slotOffset, n)
	}
}

// Delete removes key, returning ErrNotFound if it is absent.
func (db *DB) Delete(key []byte) error {
	payloadOffset, blockSlot, err := db.keyToKV(key)
	if err != nil {
		return err
	}

	if err := db.remove(payloadOffset); err != nil {
		return err
	}

	var zero [lenSize]byte
	if err := safeWriteAt(db.blk, blockSlot, zero[:]); err != nil {
		return wrapf(err, "clear block slot at %d", blockSlot)
	}

	return nil
}
