package main

import (
	"fmt"
	"os"
)

// cmdJoin implements "join <group> [all|save]" (spec.md §6): join takes
// effect immediately, and the optional scope persists it into the INI
// state so it is rejoined on the next "serve" (see serve.go's
// AllSavedGroups replay).
func (s *session) cmdJoin(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: join <group> [all|save]")
		return
	}
	group, scope := args[0], ""
	if len(args) > 1 {
		scope = args[1]
	}
	if err := s.node.Join(group); err != nil {
		fmt.Fprintln(os.Stderr, "join failed:", err)
		return
	}
	if scope != "" {
		s.state.SaveJoin(scope, s.peerName, group, s.cfg.Tuning.FrontDelimiter)
		fatalIf(s.state.Save())
	}
	fmt.Printf("joined %s\n", group)
}

// cmdLeave implements "leave <group> [all|save]".
func (s *session) cmdLeave(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: leave <group> [all|save]")
		return
	}
	group, scope := args[0], ""
	if len(args) > 1 {
		scope = args[1]
	}
	if err := s.node.Leave(group); err != nil {
		fmt.Fprintln(os.Stderr, "leave failed:", err)
		return
	}
	if scope != "" {
		s.state.SaveLeave(scope, s.peerName, group, s.cfg.Tuning.FrontDelimiter)
		fatalIf(s.state.Save())
	}
	fmt.Printf("left %s\n", group)
}

// cmdGroupConvenience implements the gg/gr/gz (and *a* local-also)
// convenience verbs (spec.md §6): execute cmd against
// "<prefix><current leader/zone>" as reported by the node's own group
// roster, since the leader/zone name itself comes from the host's
// GroupContext via housekeeping's auto-join, not from this CLI directly.
// The convention is to target whichever housekeeping-managed channel
// with this prefix the local peer currently belongs to.
func (s *session) cmdGroupConvenience(prefix, rest string, alsoLocal bool) {
	fields := splitN(rest, 1)
	if len(fields) < 1 || fields[0] == "" {
		fmt.Fprintf(os.Stderr, "usage: %scmd> <command>\n", prefix)
		return
	}
	group := s.currentPrefixedGroup(prefix)
	if group == "" {
		fmt.Fprintf(os.Stderr, "not currently joined to any %s* channel\n", prefix)
		return
	}
	cmd := rest
	var err error
	if alsoLocal {
		err = s.node.GroupExecuteAlso(group, cmd)
	} else {
		err = s.node.GExecute(group, cmd)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "execute failed:", err)
	}
}

func (s *session) currentPrefixedGroup(prefix string) string {
	for _, g := range s.node.OwnGroups() {
		if len(g) > len(prefix) && g[:len(prefix)] == prefix {
			return g
		}
	}
	return ""
}
