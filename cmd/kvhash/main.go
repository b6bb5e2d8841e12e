// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command kvhash prints the hash slot a key would map to under one of
// the three hash functions.
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/werew/kv"
)

func main() {
	hidx := flag.Uint32P("hidx", "i", 1, "hash function index (1-3)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: kvhash [-i hidx] <key>")
		os.Exit(1)
	}

	slot, err := kv.HashSlot(*hidx, []byte(flag.Arg(0)))
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fmt.Println(slot)
}
