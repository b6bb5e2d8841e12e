// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kv

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Sentinel errors returned by this package, satisfying errors.Is:
// ErrInvalid for malformed arguments or a corrupt header, ErrPermission
// for a write-only handle used for a read operation, ErrNotFound for a
// missing key, and ErrNoSpace for allocation failure with no room left
// to append.
var (
	ErrInvalid    = errors.New("kv: invalid argument")
	ErrPermission = errors.New("kv: permission denied")
	ErrNotFound   = errors.New("kv: key not found")
	ErrNoSpace    = errors.New("kv: no space left")
)

// wrap and wrapf attach call-site context to err without discarding
// its identity for errors.Is, using github.com/pkg/errors the way
// zchee/go-qcow2 wraps positioned I/O failures.
func wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, msg)
}

func wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrapf(err, format, args...)
}
