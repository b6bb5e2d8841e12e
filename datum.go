// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv

// Datum is a length-prefixed byte sequence: the type used for both
// keys and values on the wire.
//
//   - a zero-value Datum (B == nil) passed to Get or Next tells the
//     engine to allocate a fresh slice of exactly the right size;
//   - a Datum whose B has pre-existing capacity bounds how much the
//     engine will read into it, and B is re-sliced to the number of
//     bytes actually copied.
type Datum struct {
	B []byte
}

// NewDatum wraps b as a Datum, for convenience at call sites that
// already have a []byte (e.g. literal keys).
func NewDatum(b []byte) Datum { return Datum{B: b} }

// fillDatum reads size bytes from f at off into dst, allocating a new
// slice if dst.B is nil and otherwise filling at most cap(dst.B)
// bytes.
func fillDatum(f filer, off uint32, size uint32, dst *Datum) error {
	if size == 0 {
		if dst.B == nil {
			dst.B = []byte{}
		} else {
			dst.B = dst.B[:0]
		}
		return nil
	}

	if dst.B == nil {
		dst.B = make([]byte, size)
	} else {
		if uint32(cap(dst.B)) < size {
			size = uint32(cap(dst.B))
		}
		dst.B = dst.B[:size]
	}

	return safeReadAt(f, off, dst.B)
}
