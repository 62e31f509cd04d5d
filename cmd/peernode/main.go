// Command peernode is the operator-facing host process for the
// peer-to-peer auto-discovery messaging fabric: it owns the long-running
// peernode.Node and exposes spec.md §6's operator command table as an
// interactive line interface over that single process, since spec.md §1
// places "the operator CLI that toggles flags" and "the host's command
// parser" outside the core as thin wrappers — here, the wrapper a
// standalone binary can offer without a control-plane daemon (spec.md §9
// explicitly drops that shape) is a REPL, not a fleet of one-shot
// subprocess invocations racing mDNS discovery on every call.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Set via -ldflags at build time:
//
//	go build -ldflags "-X main.version=0.1.0 -X main.commit=$(git rev-parse --short HEAD) -X main.buildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)" -o peernode ./cmd/peernode
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	case "version", "--version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("peernode %s (%s) built %s\n", version, commit, buildDate)
	fmt.Printf("Go %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func printUsage() {
	fmt.Println("Usage: peernode <command> [options]")
	fmt.Println()
	fmt.Println("  init   [--config path]   Write a starter config file")
	fmt.Println("  serve  [--config path] [--peer name]   Enter the fabric and open the operator REPL")
	fmt.Println("  version                  Show version information")
	fmt.Println()
	fmt.Println("Once serving, operator commands are typed at the REPL prompt:")
	fmt.Println("  net [<flag> [<value>]]                    Show net info, or set a spec.md §6 net flag")
	fmt.Println("  join/leave <group> [all|save]              Join or leave, optionally persisted")
	fmt.Println("  tell/gtell <target|group> <message>        Whisper or shout a chat line")
	fmt.Println("  execute/gexecute <target|group> <cmd>      Whisper or shout a remote command")
	fmt.Println("  gg/gr/gz <cmd>  (gga/gra/gza also run locally)  group_/raid_/zone_<leader> execute")
	fmt.Println("  observe <target> -q <expr> [-o <sink>] [-d]     Start or drop an observation")
	fmt.Println("  query <target> -q <expr> [-o <sink>] [-t <dur>] One-shot value request")
	fmt.Println("  set <name> <value>                         Seed a demo host variable")
	fmt.Println("  quit                                       Leave the fabric and exit")
	fmt.Println()
	fmt.Println("Without --config, peernode searches:")
	fmt.Println("  ./peernode.yaml, ~/.config/peernode/config.yaml, /etc/peernode/config.yaml")
}
