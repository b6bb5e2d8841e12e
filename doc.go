// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*

Package kv implements a small persistent key/value storage engine
backed by four co-located files sharing a base name:

	<name>.h	hash table: maps a hashed key to the offset of the
			head block of its chain
	<name>.kv	payload file: a flat sequence of (key,value) records
	<name>.blk	block file: chains of fixed 4096-byte blocks, each
			holding payload offsets for one hash bucket
	<name>.dkv	extent directory: tracks free and used regions of
			.kv, mirrored in memory for the lifetime of a handle

Keys and values are arbitrary byte strings, including the empty string
and strings containing NUL. Insertion replaces any prior value stored
under the same key. A cursor (Start/Next) enumerates the live set in an
unspecified order that is stable as long as no Put or Delete intervenes
(see the Start/Next documentation for the exact invalidation rules).

Addressing is 32 bits wide throughout: the largest file this package
can address is 4 GiB. There is no support for concurrent or
multi-process access, transactions, or durability across a crash.
A handle is only safe
for use by one goroutine, or under external mutual exclusion.

Free space inside .kv left behind by Delete is reused by later Put
calls according to the handle's AllocPolicy (FirstFit, WorstFit, or
BestFit); see the AllocPolicy documentation for the trade-offs.

*/
package kv
