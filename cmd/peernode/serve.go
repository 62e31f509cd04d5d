package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/danpeer/peernode/internal/config"
	"github.com/danpeer/peernode/internal/identity"
	"github.com/danpeer/peernode/peernode"
	"github.com/danpeer/peernode/transport/libp2pgossip"
)

// session bundles everything the REPL's cmd_*.go handlers touch: the
// running Node, its persisted INI state, the live config, and the host
// glue (variable store doubling as the Evaluator).
type session struct {
	node      *peernode.Node
	state     *config.State
	cfg       *config.NodeConfig
	vars      *varStore
	statePath string
	peerName  string
}

func runServe(args []string) {
	fs := newFlagSet("serve")
	configPath := fs.String("config", "", "path to config file")
	localPeer := fs.String("peer", "", "override the local peer name (server_character)")
	parse(fs, args)

	path, err := config.FindConfigFile(*configPath)
	fatalIf(err)
	cfg, err := config.LoadNodeConfig(path)
	fatalIf(err)
	config.ResolveConfigPaths(cfg, filepath.Dir(path))
	fatalIf(config.ValidateNodeConfig(cfg))

	statePath := filepath.Join(filepath.Dir(path), "state.ini")
	state, err := config.LoadState(statePath)
	fatalIf(err)

	peerName := *localPeer
	if peerName == "" {
		id, err := identity.PeerIDFromKeyFile(cfg.Identity.KeyFile)
		fatalIf(err)
		// Fall back to a readable default; operators normally pass
		// --peer explicitly since a raw peer ID makes an awkward
		// server_character name.
		peerName = "local_" + id.String()
	}

	vars := newVarStore()
	transport := libp2pgossip.New(libp2pgossip.Options{
		KeyFile:     cfg.Identity.KeyFile,
		ListenAddrs: cfg.Network.ListenAddresses,
		Namespace:   cfg.Discovery.Namespace,
	})

	node := peernode.New(peernode.Config{
		LocalPeer:      peerName,
		Interface:      cfg.Network.Interface,
		Transport:      transport,
		Evaluator:      vars,
		ChatSink:       stdoutChatSink{},
		Groups:         envGroupContext{},
		Logger:         slog.Default(),
		Debugging:      cfg.Tuning.Debugging,
		LocalEcho:      cfg.Tuning.LocalEcho,
		CommandEcho:    cfg.Tuning.CommandEcho,
		FullNames:      cfg.Tuning.FullNames,
		FrontDelimiter: cfg.Tuning.FrontDelimiter,
		ShowGroups:     cfg.Tuning.ShowGroups,
		EvasiveRefresh: cfg.Tuning.EvasiveRefresh,
		QueryTimeout:   cfg.Tuning.QueryTimeout,
		ObserveDelayMS: cfg.Tuning.ObserveDelayMS,
		EvasiveMS:      cfg.Tuning.EvasiveMS,
		ExpiredMS:      cfg.Tuning.ExpiredMS,
		KeepaliveMS:    cfg.Tuning.KeepaliveMS,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fatalIf(node.Enter(ctx))
	defer node.Exit()

	sess := &session{node: node, state: state, cfg: cfg, vars: vars, statePath: statePath, peerName: peerName}
	for _, g := range state.AllSavedGroups(peerName) {
		_ = node.Join(g)
	}

	go sess.pulse(ctx)
	sess.repl(ctx)
}

// pulse drives the host-owned tick loop spec.md §5 describes: DoNext,
// Publish, and Housekeep each run on their own cadence off the node's
// own goroutine, never the Actor's.
func (s *session) pulse(ctx context.Context) {
	doNext := time.NewTicker(20 * time.Millisecond)
	publish := time.NewTicker(250 * time.Millisecond)
	housekeep := time.NewTicker(1 * time.Second)
	defer doNext.Stop()
	defer publish.Stop()
	defer housekeep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-doNext.C:
			for s.node.DoNext() {
			}
		case <-publish.C:
			s.node.Publish()
		case <-housekeep.C:
			s.node.Housekeep()
		}
	}
}

// repl reads operator command lines from stdin until EOF or ctx is
// canceled, dispatching each to its cmd_*.go verb handler.
func (s *session) repl(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("peernode ready; type a command (net/join/leave/tell/gtell/execute/gexecute/gg/gr/gz/observe/query), or 'quit'")
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}
		s.dispatchLine(line)
	}
}

func (s *session) dispatchLine(line string) {
	fields := strings.Fields(line)
	verb, rest := fields[0], strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	switch verb {
	case "net":
		s.cmdNet(tokenizeLine(rest))
	case "join":
		s.cmdJoin(tokenizeLine(rest))
	case "leave":
		s.cmdLeave(tokenizeLine(rest))
	case "tell":
		s.cmdTell(splitN(rest, 2))
	case "gtell":
		s.cmdGTell(splitN(rest, 2))
	case "execute":
		s.cmdExecute(rest)
	case "gexecute":
		s.cmdGExecute(rest)
	case "gg":
		s.cmdGroupConvenience("group_", rest, false)
	case "gr":
		s.cmdGroupConvenience("raid_", rest, false)
	case "gz":
		s.cmdGroupConvenience("zone_", rest, false)
	case "gga":
		s.cmdGroupConvenience("group_", rest, true)
	case "gra":
		s.cmdGroupConvenience("raid_", rest, true)
	case "gza":
		s.cmdGroupConvenience("zone_", rest, true)
	case "observe":
		s.cmdObserve(tokenizeLine(rest))
	case "query":
		s.cmdQuery(tokenizeLine(rest))
	case "set":
		s.cmdSet(splitN(rest, 2))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", verb)
	}
}

// cmdSet is the minimal variable-store command the standalone demo host
// exposes so operators can seed sinks for "query ... -o <sink>" and
// "observe ... -o <sink>" without a real host language.
func (s *session) cmdSet(fields []string) {
	if len(fields) < 2 {
		fmt.Fprintln(os.Stderr, "usage: set <name> <value>")
		return
	}
	s.vars.Set(fields[0], fields[1])
	fmt.Printf("%s = %s\n", fields[0], fields[1])
}
