// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command kvtool is a thin command-line front end over the kv engine:
// get, put, delete and scan a named database. It exists to exercise
// the library from a shell, not as a supported interface in its own
// right.
package main

import (
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/werew/kv"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	if len(args) < 1 {
		printUsage(errOut)
		return 1
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "put":
		return cmdPut(rest, out, errOut)
	case "get":
		return cmdGet(rest, out, errOut)
	case "del":
		return cmdDel(rest, out, errOut)
	case "scan":
		return cmdScan(rest, out, errOut)
	case "-h", "--help", "help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "kvtool: unknown command %q\n", cmd)
		printUsage(errOut)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: kvtool <put|get|del|scan> [options] <base> [args]")
	fmt.Fprintln(w, "  put  <base> <key> <value>   insert or overwrite")
	fmt.Fprintln(w, "  get  <base> <key>           print value, exit 1 if absent")
	fmt.Fprintln(w, "  del  <base> <key>           delete a key")
	fmt.Fprintln(w, "  scan <base>                 print every key/value pair")
	fmt.Fprintln(w, "common options: -i hidx (1-3, default 1), -a alloc (first|worst|best, default first)")
}

func commonFlags(name string) (*flag.FlagSet, *uint32, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	hidx := fs.Uint32P("hidx", "i", 1, "hash function index (1-3)")
	alloc := fs.StringP("alloc", "a", "first", "allocation policy: first|worst|best")
	return fs, hidx, alloc
}

func parsePolicy(s string) (kv.AllocPolicy, error) {
	switch s {
	case "first":
		return kv.FirstFit, nil
	case "worst":
		return kv.WorstFit, nil
	case "best":
		return kv.BestFit, nil
	default:
		return 0, fmt.Errorf("invalid alloc policy %q", s)
	}
}

func cmdPut(args []string, out, errOut io.Writer) int {
	fs, hidx, alloc := commonFlags("put")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if fs.NArg() != 3 {
		fmt.Fprintln(errOut, "usage: kvtool put [options] <base> <key> <value>")
		return 1
	}

	policy, err := parsePolicy(*alloc)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	db, err := kv.Open(fs.Arg(0), kv.ModeReadWrite, *hidx, policy)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	defer db.Close()

	if err := db.Put([]byte(fs.Arg(1)), []byte(fs.Arg(2))); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	return 0
}

func cmdGet(args []string, out, errOut io.Writer) int {
	fs, hidx, alloc := commonFlags("get")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(errOut, "usage: kvtool get [options] <base> <key>")
		return 1
	}

	policy, err := parsePolicy(*alloc)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	db, err := kv.Open(fs.Arg(0), kv.ModeRead, *hidx, policy)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	defer db.Close()

	var val kv.Datum
	found, err := db.Get([]byte(fs.Arg(1)), &val)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if !found {
		fmt.Fprintln(errOut, "not found")
		return 1
	}
	fmt.Fprintln(out, string(val.B))
	return 0
}

func cmdDel(args []string, out, errOut io.Writer) int {
	fs, hidx, alloc := commonFlags("del")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if fs.NArg() != 2 {
		fmt.Fprintln(errOut, "usage: kvtool del [options] <base> <key>")
		return 1
	}

	policy, err := parsePolicy(*alloc)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	db, err := kv.Open(fs.Arg(0), kv.ModeReadWrite, *hidx, policy)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	defer db.Close()

	if err := db.Delete([]byte(fs.Arg(1))); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	return 0
}

func cmdScan(args []string, out, errOut io.Writer) int {
	fs, hidx, alloc := commonFlags("scan")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: kvtool scan [options] <base>")
		return 1
	}

	policy, err := parsePolicy(*alloc)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	db, err := kv.Open(fs.Arg(0), kv.ModeRead, *hidx, policy)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	defer db.Close()

	db.Start()
	for {
		var key, val kv.Datum
		ok, err := db.Next(&key, &val)
		if err != nil {
			fmt.Fprintln(errOut, "error:", err)
			return 1
		}
		if !ok {
			break
		}
		fmt.Fprintf(out, "%s\t%s\n", key.B, val.B)
	}
	return 0
}
