// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv

import (
	"io"
	"os"
)

// filer is a minimal view over a resizable region of storage,
// addressed by 32-bit offsets throughout this package. It has no
// BeginUpdate/EndUpdate/Rollback: transactions are out of scope here.
type filer interface {
	Name() string
	Size() uint32
	ReadAt(b []byte, off uint32) (int, error)
	WriteAt(b []byte, off uint32) (int, error)
	Truncate(size uint32) error
	Close() error
}

// osFiler adapts an *os.File to filer.
type osFiler struct {
	f    *os.File
	name string
}

func newOSFiler(f *os.File) *osFiler {
	return &osFiler{f: f, name: f.Name()}
}

func (o *osFiler) Name() string { return o.name }

func (o *osFiler) Size() uint32 {
	fi, err := o.f.Stat()
	if err != nil {
		return 0
	}
	return uint32(fi.Size())
}

func (o *osFiler) ReadAt(b []byte, off uint32) (int, error) {
	return o.f.ReadAt(b, int64(off))
}

func (o *osFiler) WriteAt(b []byte, off uint32) (int, error) {
	return o.f.WriteAt(b, int64(off))
}

func (o *osFiler) Truncate(size uint32) error {
	return o.f.Truncate(int64(size))
}

func (o *osFiler) Close() error {
	return o.f.Close()
}

// memFiler is a byte-slice backed filer used by tests that should not
// depend on the filesystem.
type memFiler struct {
	name string
	buf  []byte
}

func newMemFiler(name string) *memFiler {
	return &memFiler{name: name}
}

func (m *memFiler) Name() string { return m.name }
func (m *memFiler) Size() uint32 { return uint32(len(m.buf)) }

func (m *memFiler) ReadAt(b []byte, off uint32) (int, error) {
	if int(off) >= len(m.buf) {
		if len(b) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := copy(b, m.buf[off:])
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memFiler) WriteAt(b []byte, off uint32) (int, error) {
	end := int(off) + len(b)
	if end > len(m.buf) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[off:], b)
	return len(b), nil
}

func (m *memFiler) Truncate(size uint32) error {
	switch {
	case int(size) <= len(m.buf):
		m.buf = m.buf[:size]
	default:
		grown := make([]byte, size)
		copy(grown, m.buf)
		m.buf = grown
	}
	return nil
}

func (m *memFiler) Close() error { return nil }

// safeReadAt requires an exact-length read, turning a short read into
// ErrInvalid rather than silently returning partial data.
func safeReadAt(f filer, off uint32, buf []byte) error {
	n, err := f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return wrapf(err, "%s: read at %d", f.Name(), off)
	}
	if n != len(buf) {
		return wrapf(ErrInvalid, "%s: short read at %d: got %d want %d", f.Name(), off, n, len(buf))
	}
	return nil
}

// safeWriteAt requires an exact-length write, mirroring safe_write_at.
func safeWriteAt(f filer, off uint32, buf []byte) error {
	n, err := f.WriteAt(buf, off)
	if err != nil {
		return wrapf(err, "%s: write at %d", f.Name(), off)
	}
	if n != len(buf) {
		return wrapf(ErrInvalid, "%s: short write at %d: wrote %d want %d", f.Name(), off, n, len(buf))
	}
	return nil
}
