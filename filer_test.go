// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemFilerReadWrite(t *testing.T) {
	f := newMemFiler("mem")

	n, err := f.WriteAt([]byte("hello"), 10)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.EqualValues(t, 15, f.Size())

	buf := make([]byte, 5)
	n, err = f.ReadAt(buf, 10)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))
}

func TestMemFilerShortReadPastEnd(t *testing.T) {
	f := newMemFiler("mem")
	_, err := f.WriteAt([]byte("ab"), 0)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := f.ReadAt(buf, 0)
	require.Error(t, err)
	require.Equal(t, 2, n)
}

func TestMemFilerTruncate(t *testing.T) {
	f := newMemFiler("mem")
	_, err := f.WriteAt([]byte("abcdef"), 0)
	require.NoError(t, err)

	require.NoError(t, f.Truncate(3))
	require.EqualValues(t, 3, f.Size())

	require.NoError(t, f.Truncate(6))
	require.EqualValues(t, 6, f.Size())
	buf := make([]byte, 6)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "abc\x00\x00\x00", string(buf))
}

func TestSafeReadAtShortRead(t *testing.T) {
	f := newMemFiler("mem")
	_, err := f.WriteAt([]byte("ab"), 0)
	require.NoError(t, err)

	buf := make([]byte, 4)
	err = safeReadAt(f, 0, buf)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestSafeWriteAtExact(t *testing.T) {
	f := newMemFiler("mem")
	require.NoError(t, safeWriteAt(f, 0, []byte("exact")))
	buf := make([]byte, 5)
	require.NoError(t, safeReadAt(f, 0, buf))
	require.Equal(t, "exact", string(buf))
}
