package main

import (
	"fmt"
	"os"
	"strings"
)

// cmdTell implements "tell <target> <message>" (spec.md §6, §8 scenario 1).
func (s *session) cmdTell(fields []string) {
	if len(fields) < 2 {
		fmt.Fprintln(os.Stderr, "usage: tell <target> <message>")
		return
	}
	if err := s.node.Tell(fields[0], fields[1]); err != nil {
		fmt.Fprintln(os.Stderr, "tell failed:", err)
	}
}

// cmdGTell implements "gtell <group> <message>" (spec.md §8 scenario 2).
func (s *session) cmdGTell(fields []string) {
	if len(fields) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gtell <group> <message>")
		return
	}
	if err := s.node.GTell(fields[0], fields[1]); err != nil {
		fmt.Fprintln(os.Stderr, "gtell failed:", err)
	}
}

// cmdExecute implements "execute [-a] <target> <cmd>"; the "-a" local-also
// form is recognized as a leading token since flags interleave with a
// free-text command string here rather than going through flag.FlagSet.
func (s *session) cmdExecute(line string) {
	alsoLocal, line := stripLocalFlag(line)
	fields := splitN(line, 2)
	if len(fields) < 2 {
		fmt.Fprintln(os.Stderr, "usage: execute [-a] <target> <command>")
		return
	}
	var err error
	if alsoLocal {
		err = s.node.ExecuteAlso(fields[0], fields[1])
	} else {
		err = s.node.Execute(fields[0], fields[1])
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "execute failed:", err)
	}
}

// cmdGExecute implements "gexecute [-a] <group> <cmd>".
func (s *session) cmdGExecute(line string) {
	alsoLocal, line := stripLocalFlag(line)
	fields := splitN(line, 2)
	if len(fields) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gexecute [-a] <group> <command>")
		return
	}
	var err error
	if alsoLocal {
		err = s.node.GroupExecuteAlso(fields[0], fields[1])
	} else {
		err = s.node.GExecute(fields[0], fields[1])
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "gexecute failed:", err)
	}
}

// stripLocalFlag recognizes a leading "-a" token (the command table's
// "*a*" local-also execute variants) and returns the remaining line.
func stripLocalFlag(line string) (bool, string) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "-a ") {
		return true, strings.TrimSpace(strings.TrimPrefix(line, "-a "))
	}
	return false, line
}
