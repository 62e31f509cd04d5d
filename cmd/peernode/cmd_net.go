package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/danpeer/peernode/peernode"
)

// cmdNet implements spec.md §6's "net" operator command: inspecting and
// mutating the live tunables via Node.SetFlags, persisting the same
// value into the INI's General section when the flag has a durable
// home there.
func (s *session) cmdNet(args []string) {
	if len(args) == 0 {
		fmt.Println(s.node.NetInfo())
		return
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "interface":
		if len(rest) == 0 {
			fmt.Println(s.cfg.Network.Interface)
			return
		}
		val := rest[0]
		if val == "clear" {
			val = ""
		}
		s.cfg.Network.Interface = val
		s.state.SetGeneralFlag("interface", val)
		fmt.Printf("interface = %q (takes effect on next serve)\n", val)
	case "debug":
		s.toggleFlag(rest, "debug", func(c *peernode.Config, v bool) { c.Debugging = v })
	case "localecho":
		s.toggleFlag(rest, "localecho", func(c *peernode.Config, v bool) { c.LocalEcho = v })
	case "commandecho":
		s.toggleFlag(rest, "commandecho", func(c *peernode.Config, v bool) { c.CommandEcho = v })
	case "fullnames":
		s.toggleFlag(rest, "fullnames", func(c *peernode.Config, v bool) { c.FullNames = v })
	case "frontdelim":
		s.toggleFlag(rest, "frontdelim", func(c *peernode.Config, v bool) { c.FrontDelimiter = v })
		if len(rest) == 1 {
			s.cfg.Tuning.FrontDelimiter = rest[0] == "on"
		}
	case "showgroups":
		s.toggleFlag(rest, "showgroups", func(c *peernode.Config, v bool) { c.ShowGroups = v })
	case "evasiverefresh":
		s.toggleFlag(rest, "evasiverefresh", func(c *peernode.Config, v bool) { c.EvasiveRefresh = v })
	case "timeout":
		if len(rest) != 1 {
			fmt.Fprintln(os.Stderr, "usage: net timeout <duration>")
			return
		}
		d, err := time.ParseDuration(rest[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid duration:", err)
			return
		}
		s.node.SetFlags(func(c *peernode.Config) { c.QueryTimeout = d })
		s.state.SetGeneralFlag("timeout", rest[0])
	case "observedelay":
		s.setUintFlag(rest, "observedelay", func(c *peernode.Config, v uint64) { c.ObserveDelayMS = v })
	case "evasive":
		s.setUint32Flag(rest, "evasive", func(c *peernode.Config, v uint32) { c.EvasiveMS = v })
	case "expired":
		s.setUint32Flag(rest, "expired", func(c *peernode.Config, v uint32) { c.ExpiredMS = v })
	case "keepalive":
		s.setUint32Flag(rest, "keepalive", func(c *peernode.Config, v uint32) { c.KeepaliveMS = v })
	case "info":
		fmt.Println(s.node.NetInfo())
	case "version":
		fmt.Println(peernode.NetVersion())
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown net flag: %s\n", sub)
	}
	fatalIf(s.state.Save())
}

func (s *session) toggleFlag(args []string, iniKey string, apply func(*peernode.Config, bool)) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintf(os.Stderr, "usage: net %s on|off\n", iniKey)
		return
	}
	v := args[0] == "on"
	s.node.SetFlags(func(c *peernode.Config) { apply(c, v) })
	s.state.SetGeneralFlag(iniKey, args[0])
}

func (s *session) setUintFlag(args []string, iniKey string, apply func(*peernode.Config, uint64)) {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: net %s <ms>\n", iniKey)
		return
	}
	v, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid value:", err)
		return
	}
	s.node.SetFlags(func(c *peernode.Config) { apply(c, v) })
	s.state.SetGeneralFlag(iniKey, args[0])
}

func (s *session) setUint32Flag(args []string, iniKey string, apply func(*peernode.Config, uint32)) {
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "usage: net %s <ms>\n", iniKey)
		return
	}
	v, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid value:", err)
		return
	}
	s.node.SetFlags(func(c *peernode.Config) { apply(c, uint32(v)) })
	s.state.SetGeneralFlag(iniKey, args[0])
}
