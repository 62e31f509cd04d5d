package main

import (
	"flag"
	"fmt"
	"os"
)

// newFlagSet builds a flag.FlagSet that prints to stderr and exits
// non-zero on a parse error, matching the teacher's per-verb flag setup.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return fs
}

// parse reorders args so flags are recognized regardless of position,
// then parses them into fs.
func parse(fs *flag.FlagSet, args []string) {
	boolFlags := map[string]bool{}
	fs.VisitAll(func(f *flag.Flag) {
		if _, ok := f.Value.(interface{ IsBoolFlag() bool }); ok {
			boolFlags[f.Name] = true
		}
	})
	if err := fs.Parse(reorderArgs(args, boolFlags)); err != nil {
		os.Exit(2)
	}
}

func fatalIf(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
