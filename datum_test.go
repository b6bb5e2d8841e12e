// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFillDatumAllocatesWhenNil(t *testing.T) {
	f := newMemFiler("mem")
	require.NoError(t, safeWriteAt(f, 0, []byte("payload")))

	var d Datum
	require.NoError(t, fillDatum(f, 0, 7, &d))
	require.Equal(t, "payload", string(d.B))
}

func TestFillDatumRespectsCallerCapacity(t *testing.T) {
	f := newMemFiler("mem")
	require.NoError(t, safeWriteAt(f, 0, []byte("payload")))

	d := Datum{B: make([]byte, 0, 4)}
	require.NoError(t, fillDatum(f, 0, 7, &d))
	require.Equal(t, "payl", string(d.B))
}

func TestFillDatumEmptyValue(t *testing.T) {
	f := newMemFiler("mem")

	var d Datum
	require.NoError(t, fillDatum(f, 0, 0, &d))
	require.Equal(t, 0, len(d.B))

	d2 := Datum{B: make([]byte, 0, 4)}
	require.NoError(t, fillDatum(f, 0, 0, &d2))
	require.Equal(t, 0, len(d2.B))
}
