// Command leafsync is the command-line front end for the LeafSync sync
// core: serve a directory, connect to a peer to pull it, or watch a
// directory for ongoing two-way convergence (spec §6 "CLI surface").
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "serve":
		os.Exit(runServe(ctx, os.Args[2:]))
	case "connect":
		os.Exit(runConnect(ctx, os.Args[2:]))
	case "watch":
		os.Exit(runWatch(ctx, os.Args[2:]))
	case "-h", "--help", "help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  leafsync serve <dir> [--port P] [--file REL] [--observ-addr ADDR]
  leafsync connect <addr:port> <dir> [--accept-first] [--fingerprint HEX] [--file REL] [--mirror]
  leafsync watch <dir> <addr:port> [--accept-first] [--fingerprint HEX] [--file REL] [--mirror] [--interval SECONDS] [--observ-addr ADDR]`)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs
}
