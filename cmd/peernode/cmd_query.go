package main

import (
	"fmt"
	"os"
	"time"
)

// cmdObserve implements "observe <target> -q <expr> [-o <sink>] [-d]"
// (spec.md §6, §4.I): establishes a standing subscription, or with -d
// drops the one already registered for (target, expr).
func (s *session) cmdObserve(args []string) {
	fs := newFlagSet("observe")
	expr := fs.String("q", "", "expression to observe")
	sink := fs.String("o", "", "sink to deliver updates to")
	drop := fs.Bool("d", false, "forget the observation instead of starting it")
	parse(fs, args)
	positional := fs.Args()

	if len(positional) < 1 {
		fmt.Fprintln(os.Stderr, "usage: observe <target> -q <expr> [-o <sink>] [-d]")
		return
	}
	target := positional[0]
	if *expr == "" {
		fmt.Fprintln(os.Stderr, "usage: observe <target> -q <expr> [-o <sink>] [-d]")
		return
	}

	if *drop {
		s.node.Forget(target, *expr)
		fmt.Printf("forgot %s?%s\n", target, *expr)
		return
	}

	if err := s.node.Observe(target, *expr, *sink); err != nil {
		fmt.Fprintln(os.Stderr, "observe failed:", err)
		return
	}
	fmt.Printf("observing %s?%s -> %s\n", target, *expr, *sink)
}

// cmdQuery implements "query <target> -q <expr> [-o <sink>] [-t <dur>]"
// (spec.md §6, §4.G): issues a one-shot request and waits up to the
// given timeout (or the node's configured QueryTimeout) for the reply.
func (s *session) cmdQuery(args []string) {
	fs := newFlagSet("query")
	expr := fs.String("q", "", "expression to query")
	sink := fs.String("o", "", "sink to record the reply under")
	timeout := fs.String("t", "", "override the wait timeout (e.g. 2s)")
	parse(fs, args)
	positional := fs.Args()

	if len(positional) < 1 || *expr == "" {
		fmt.Fprintln(os.Stderr, "usage: query <target> -q <expr> [-o <sink>] [-t <dur>]")
		return
	}
	target := positional[0]

	if err := s.node.Query(target, *expr, *sink); err != nil {
		fmt.Fprintln(os.Stderr, "query failed:", err)
		return
	}

	if *timeout != "" {
		d, err := time.ParseDuration(*timeout)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid duration:", err)
			return
		}
		obs, err := s.node.WaitQueryTimeout(target, *expr, d)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query timed out:", err)
			return
		}
		fmt.Println(obs.Value)
		return
	}

	obs, err := s.node.WaitQuery(target, *expr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "query timed out:", err)
		return
	}
	fmt.Println(obs.Value)
}
