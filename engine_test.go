// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempBase(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "db")
}

// basic put, get, delete, miss-after-delete.
func TestBasicRoundTrip(t *testing.T) {
	db, err := Open(tempBase(t), ModeWriteCreate, 1, FirstFit)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("My key1"), []byte("My val1")))

	var val Datum
	found, err := db.Get([]byte("My key1"), &val)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "My val1", string(val.B))

	require.NoError(t, db.Delete([]byte("My key1")))

	found, err = db.Get([]byte("My key1"), &val)
	require.NoError(t, err)
	require.False(t, found)
}

func TestDeleteMissingKeyFails(t *testing.T) {
	db, err := Open(tempBase(t), ModeWriteCreate, 1, FirstFit)
	require.NoError(t, err)
	defer db.Close()

	err = db.Delete([]byte("absent"))
	require.ErrorIs(t, err, ErrNotFound)
}

// a write-only handle accepts Put but rejects read operations.
func TestWriteOnlyPermissions(t *testing.T) {
	db, err := Open(tempBase(t), ModeWrite, 1, FirstFit)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("v")))

	var val Datum
	_, err = db.Get([]byte("k"), &val)
	require.ErrorIs(t, err, ErrPermission)

	db.Start()
	var key Datum
	_, err = db.Next(&key, &val)
	require.ErrorIs(t, err, ErrPermission)
}

// overwriting a key with a same-size value reuses the payload offset.
func TestExactSizeReuse(t *testing.T) {
	db, err := Open(tempBase(t), ModeReadWrite, 1, FirstFit)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("a"), []byte("AAAAAAA")))
	offsetBefore, _, err := db.keyToKV([]byte("a"))
	require.NoError(t, err)
	endBefore := db.endKV

	require.NoError(t, db.Put([]byte("a"), []byte("BBBBBBB")))
	offsetAfter, _, err := db.keyToKV([]byte("a"))
	require.NoError(t, err)

	require.Equal(t, offsetBefore, offsetAfter)
	require.Equal(t, endBefore, db.endKV)

	var val Datum
	found, err := db.Get([]byte("a"), &val)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "BBBBBBB", string(val.B))
}

func TestOverwriteWithDifferentSize(t *testing.T) {
	db, err := Open(tempBase(t), ModeReadWrite, 1, FirstFit)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("short")))
	require.NoError(t, db.Put([]byte("k"), []byte("a much longer value than before")))

	var val Datum
	found, err := db.Get([]byte("k"), &val)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "a much longer value than before", string(val.B))
}

func TestEmptyValue(t *testing.T) {
	db, err := Open(tempBase(t), ModeReadWrite, 1, FirstFit)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte{}))

	var val Datum
	found, err := db.Get([]byte("k"), &val)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 0, len(val.B))
}

func TestBinarySafety(t *testing.T) {
	db, err := Open(tempBase(t), ModeReadWrite, 1, FirstFit)
	require.NoError(t, err)
	defer db.Close()

	key := []byte{0x00, 0x01, 0xff, 0x00, 0x80}
	val := []byte{0xff, 0x00, 0x00, 0x7f, 0x00}

	require.NoError(t, db.Put(key, val))

	var got Datum
	found, err := db.Get(key, &got)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, val, got.B)
}

// Start/Next visits exactly the live key set.
func TestCursorCoverage(t *testing.T) {
	db, err := Open(tempBase(t), ModeReadWrite, 1, FirstFit)
	require.NoError(t, err)
	defer db.Close()

	want := map[string]string{
		"alpha": "1",
		"beta":  "2",
		"gamma": "3",
	}
	for k, v := range want {
		require.NoError(t, db.Put([]byte(k), []byte(v)))
	}

	got := map[string]string{}
	db.Start()
	for {
		var key, val Datum
		ok, err := db.Next(&key, &val)
		require.NoError(t, err)
		if !ok {
			break
		}
		got[string(key.B)] = string(val.B)
	}
	require.Equal(t, want, got)
}

// closing and reopening a database preserves its contents.
func TestPersistenceAcrossReopen(t *testing.T) {
	base := tempBase(t)

	db, err := Open(base, ModeWriteCreate, 2, BestFit)
	require.NoError(t, err)
	require.NoError(t, db.Put([]byte("k1"), []byte("v1")))
	require.NoError(t, db.Put([]byte("k2"), []byte("v2")))
	require.NoError(t, db.Delete([]byte("k1")))
	require.NoError(t, db.Close())

	reopened, err := Open(base, ModeReadWrite, 2, BestFit)
	require.NoError(t, err)
	defer reopened.Close()

	var val Datum
	found, err := reopened.Get([]byte("k1"), &val)
	require.NoError(t, err)
	require.False(t, found)

	found, err = reopened.Get([]byte("k2"), &val)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v2", string(val.B))
}

func TestHashCollisionChaining(t *testing.T) {
	db, err := Open(tempBase(t), ModeReadWrite, 1, FirstFit)
	require.NoError(t, err)
	defer db.Close()

	// Anagrams share a byte sum, so under hidx 1 they all land in the
	// same bucket and must be told apart by the chain scan.
	keys := []string{"one", "neo", "eon", "oen", "noe"}
	for i, k := range keys {
		require.NoError(t, db.Put([]byte(k), []byte{byte(i)}))
	}
	for i, k := range keys {
		var val Datum
		found, err := db.Get([]byte(k), &val)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, []byte{byte(i)}, val.B)
	}
}

func TestInvalidModeRejected(t *testing.T) {
	_, err := Open(tempBase(t), "bogus", 1, FirstFit)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestInvalidHidxRejectedOnCreate(t *testing.T) {
	_, err := Open(tempBase(t), ModeWriteCreate, 9, FirstFit)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestReadModeRequiresExistingFiles(t *testing.T) {
	_, err := Open(tempBase(t), ModeRead, 1, FirstFit)
	require.Error(t, err)
}
