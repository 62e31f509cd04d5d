package peernode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/danpeer/peernode/peernode/wire"
)

// Config carries the tunables a host can adjust before or after Enter
// (spec.md §6 "net" command table). All fields have workable zero values
// except Transport/Evaluator/ChatSink, which are required, and LocalPeer,
// which falls back to LocalServer when empty.
type Config struct {
	LocalServer string // spec.md §3 PeerName's server component
	LocalPeer   string // full "<server>_<character>" name; if empty, LocalServer is used
	Interface   string

	Transport GossipTransport
	Evaluator Evaluator
	ChatSink  ChatSink
	Groups    GroupContext // optional; nil disables contextual auto-join

	Logger *slog.Logger

	Debugging      bool
	LocalEcho      bool
	CommandEcho    bool
	FullNames      bool
	FrontDelimiter bool
	ShowGroups     bool
	EvasiveRefresh bool

	QueryTimeout   time.Duration
	ObserveDelayMS uint64
	EvasiveMS      uint32
	ExpiredMS      uint32
	KeepaliveMS    uint32
}

func (c Config) withDefaults() Config {
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 5 * time.Second
	}
	if c.ObserveDelayMS == 0 {
		c.ObserveDelayMS = 2000
	}
	if c.EvasiveMS == 0 {
		c.EvasiveMS = 5000
	}
	if c.ExpiredMS == 0 {
		c.ExpiredMS = 30000
	}
	if c.KeepaliveMS == 0 {
		c.KeepaliveMS = 1000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Node is the public facade wiring every core component into one running
// peer: identity, membership, the actor, command dispatch, response
// correlation, queries, and the observer engine (spec.md §2). Host
// integrations construct one Node per local peer and drive it through
// Enter/Exit and the operations below.
//
// Grounded on original_source/MQ2DanNet/Node.h's Node class, which plays
// the same role, and on pkg/p2pnet/peermanager.go's lifecycle-owning
// wrapper around a single long-lived component.
type Node struct {
	cfg Config

	mu      sync.RWMutex
	flags   Config // live, mutable copy of the tunables above
	entered bool

	registry   *Registry
	dispatch   *Dispatcher
	correlator *Correlator
	actor      *Actor

	queryEngine *QueryEngine
	source      *ObserverSource
	consumer    *ObserverConsumer
	housekeep   *Housekeeping

	ctx       context.Context
	cancel    context.CancelFunc
	actorDone chan error
}

// New constructs a Node. Enter must be called before any other operation.
func New(cfg Config) *Node {
	cfg = cfg.withDefaults()
	if cfg.LocalPeer == "" {
		cfg.LocalPeer = cfg.LocalServer
	}
	return &Node{cfg: cfg, flags: cfg}
}

// Enter joins the fabric: starts the Actor's transport loop and registers
// the standard command suite (spec.md §4.D "Lifecycle", §4.E). It returns
// once the actor goroutine has been launched; transport readiness is
// asynchronous, matching spec.md §5's host/actor split.
func (n *Node) Enter(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.entered {
		return nil
	}

	n.registry = NewRegistry(n.cfg.LocalPeer)
	n.dispatch = NewDispatcher()
	n.correlator = NewCorrelator()
	n.actor = NewActor(n.cfg.Transport, n.registry, n.dispatch, n.cfg.LocalPeer, n.cfg.Logger)
	n.correlator.Bind(n.dispatch)
	n.actor.SetKeepalive(time.Duration(n.cfg.KeepaliveMS) * time.Millisecond)
	n.cfg.Transport.SetEvasiveTimeoutMS(n.cfg.EvasiveMS)
	n.cfg.Transport.SetExpiredTimeoutMS(n.cfg.ExpiredMS)

	results := NewQueryResult()
	n.queryEngine = NewQueryEngine(n.cfg.LocalPeer, n.cfg.Evaluator, n.correlator, results, n.sendWhisper)
	n.source = NewObserverSource(n.cfg.LocalPeer, n.cfg.Evaluator, n.sendShout)
	n.source.SetObserveDelayMS(n.cfg.ObserveDelayMS)
	n.consumer = NewObserverConsumer(n.cfg.LocalPeer, n.cfg.Evaluator, n.correlator, n.source, n.sendWhisper, n.sendJoin, n.sendLeave)
	n.housekeep = NewHousekeeping(n.cfg.Groups, n.cfg.Evaluator, n.cfg.LocalServer, n.registry, n.consumer, n.sendJoin, n.sendLeave)

	n.actor.SetOnEvasive(n.onEvasive)

	registerStandardCommands(n)

	n.ctx, n.cancel = context.WithCancel(ctx)
	n.actorDone = make(chan error, 1)
	go func() { n.actorDone <- n.actor.Run(n.ctx, n.cfg.LocalPeer, n.cfg.Interface) }()
	n.entered = true
	return nil
}

// Exit leaves the fabric: cancels the actor's context (which departs
// every own group and stops the transport) and waits for it to finish,
// then resets membership state (spec.md §3 "Lifecycle").
func (n *Node) Exit() error {
	n.mu.Lock()
	if !n.entered {
		n.mu.Unlock()
		return nil
	}
	cancel := n.cancel
	done := n.actorDone
	n.mu.Unlock()

	cancel()
	err := <-done

	n.mu.Lock()
	n.registry.Reset()
	n.entered = false
	n.mu.Unlock()
	return err
}

func (n *Node) flagCommandEcho() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.flags.CommandEcho
}

func (n *Node) flagShowGroups() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.flags.ShowGroups
}

func (n *Node) onEvasive(peer string) {
	n.mu.RLock()
	refresh := n.flags.EvasiveRefresh
	n.mu.RUnlock()
	if !refresh {
		return
	}
	for _, group := range n.consumer.GroupsFrom(peer) {
		_ = n.sendWhisper(peer, [][]byte{[]byte("Reupdate"), []byte(group)})
	}
}

// --- send helpers shared by the query/observer engines and commands.go ---

func (n *Node) sendWhisper(target string, frames [][]byte) error {
	if target == n.cfg.LocalPeer {
		return nil
	}
	uuid, ok := n.registry.UUID(target)
	if !ok {
		return ErrUnknownPeer
	}
	return n.actor.Send(n.ctx, ActorCommand{Op: OpWhisper, UUID: uuid, Frames: frames})
}

func (n *Node) sendShout(group string, frames [][]byte) error {
	return n.actor.Send(n.ctx, ActorCommand{Op: OpShout, Group: group, Frames: frames})
}

func (n *Node) sendJoin(group string) error {
	reply := make(chan ActorReply, 1)
	if err := n.actor.Send(n.ctx, ActorCommand{Op: OpJoin, Group: group, Reply: reply}); err != nil {
		return err
	}
	return (<-reply).Err
}

func (n *Node) sendLeave(group string) error {
	reply := make(chan ActorReply, 1)
	if err := n.actor.Send(n.ctx, ActorCommand{Op: OpLeave, Group: group, Reply: reply}); err != nil {
		return err
	}
	return (<-reply).Err
}

// --- public operations (spec.md §6 operator command table) ---

// Tell whispers a chat line to a single peer.
func (n *Node) Tell(target, text string) error {
	return n.sendWhisper(target, [][]byte{[]byte("Echo"), []byte(text)})
}

// GTell shouts a chat line to a group.
func (n *Node) GTell(group, text string) error {
	err := n.sendShout(group, [][]byte{[]byte("Echo"), []byte(text)})
	n.localEcho(n.cfg.LocalPeer, group, text)
	return err
}

// localEcho mirrors an outbound chat line back into the local ChatSink
// when local_echo is on (spec.md §8 scenario 2: "A's own ChatSink also
// receives the line").
func (n *Node) localEcho(from, group, text string) {
	n.mu.RLock()
	on := n.flags.LocalEcho
	n.mu.RUnlock()
	if on {
		n.cfg.ChatSink.Echo(formatEcho(from, group, text, n.flagShowGroups()))
	}
}

// Execute whispers a command string to a single peer for remote
// execution via the host's Evaluator/command surface.
func (n *Node) Execute(target, cmd string) error {
	return n.sendWhisper(target, [][]byte{[]byte("Execute"), []byte(cmd)})
}

// GExecute shouts a command string to a group for remote execution.
func (n *Node) GExecute(group, cmd string) error {
	return n.sendShout(group, [][]byte{[]byte("Execute"), []byte(cmd)})
}

// GroupExecuteAlso shouts cmd to group and additionally runs it locally
// via Evaluator, mirroring the "*a*" local-execute variants (e.g.
// /dgaexecute) that the command tables' `execute`/`gexecute` row notes
// as having local-also forms.
func (n *Node) GroupExecuteAlso(group, cmd string) error {
	err := n.sendShout(group, [][]byte{[]byte("Execute"), []byte(cmd)})
	if _, evalErr := n.cfg.Evaluator.Evaluate(cmd); evalErr != nil {
		n.cfg.Logger.Debug("local execute failed", "cmd", cmd, "err", evalErr)
	}
	return err
}

// ExecuteAlso whispers cmd to target and additionally runs it locally.
func (n *Node) ExecuteAlso(target, cmd string) error {
	err := n.sendWhisper(target, [][]byte{[]byte("Execute"), []byte(cmd)})
	if _, evalErr := n.cfg.Evaluator.Evaluate(cmd); evalErr != nil {
		n.cfg.Logger.Debug("local execute failed", "cmd", cmd, "err", evalErr)
	}
	return err
}

// Join makes the local peer a member of group.
func (n *Node) Join(group string) error { return n.sendJoin(group) }

// Leave removes the local peer from group.
func (n *Node) Leave(group string) error { return n.sendLeave(group) }

// Query asks target to evaluate expr and, once the reply arrives (or
// immediately, for a self-target), records the Observation (spec.md
// §4.G). Use ReadQuery or WaitQuery to retrieve the result.
func (n *Node) Query(target, expr, sink string) error {
	return n.queryEngine.Query(target, expr, sink)
}

// ReadQuery returns the last recorded Query Observation for (target, expr).
func (n *Node) ReadQuery(target, expr string) (Observation, bool) {
	return n.queryEngine.Results().Read(target, expr)
}

// WaitQuery blocks for a Query reply up to the configured QueryTimeout.
func (n *Node) WaitQuery(target, expr string) (Observation, error) {
	n.mu.RLock()
	timeout := n.flags.QueryTimeout
	n.mu.RUnlock()
	return n.queryEngine.Wait(target, expr, timeout)
}

// WaitQueryTimeout is WaitQuery with an explicit timeout override, for
// callers (e.g. the operator CLI's "-t" flag) that want a one-off wait
// different from the configured QueryTimeout.
func (n *Node) WaitQueryTimeout(target, expr string, timeout time.Duration) (Observation, error) {
	return n.queryEngine.Wait(target, expr, timeout)
}

// Observe establishes or reuses a standing subscription on target's expr
// (spec.md §4.I).
func (n *Node) Observe(target, expr, sink string) error {
	return n.consumer.Observe(target, expr, sink)
}

// ReadObserve returns the last cached Observation for (target, expr).
func (n *Node) ReadObserve(target, expr string) (Observation, bool) {
	return n.consumer.Read(target, expr)
}

// Forget drops a single observation.
func (n *Node) Forget(target, expr string) { n.consumer.Forget(target, expr) }

// Read is the legacy single-value accessor over the most recent Query
// result, mirroring the original "most recent wins" convenience (spec.md
// §3 "QueryResult").
func (n *Node) Read() Observation { return n.queryEngine.Results().MostRecent() }

// Peers returns every connected peer, including the local one.
func (n *Node) Peers() []string {
	reply := make(chan ActorReply, 1)
	if err := n.actor.Send(n.ctx, ActorCommand{Op: OpPeers, Reply: reply}); err != nil {
		return nil
	}
	return (<-reply).Strings
}

// PeerGroups returns every known group name.
func (n *Node) PeerGroups() []string {
	reply := make(chan ActorReply, 1)
	if err := n.actor.Send(n.ctx, ActorCommand{Op: OpPeerGroups, Reply: reply}); err != nil {
		return nil
	}
	return (<-reply).Strings
}

// PeersByGroup returns the members of a single group.
func (n *Node) PeersByGroup(group string) []string {
	reply := make(chan ActorReply, 1)
	if err := n.actor.Send(n.ctx, ActorCommand{Op: OpPeersByGroup, Group: group, Reply: reply}); err != nil {
		return nil
	}
	return (<-reply).Strings
}

// OwnGroups returns the groups the local peer has joined.
func (n *Node) OwnGroups() []string {
	reply := make(chan ActorReply, 1)
	if err := n.actor.Send(n.ctx, ActorCommand{Op: OpOwnGroups, Reply: reply}); err != nil {
		return nil
	}
	return (<-reply).Strings
}

// PeerAddress returns the transport-level identifier (e.g. libp2p peer
// ID) for a connected peer, or "" if the peer is not connected.
func (n *Node) PeerAddress(peer string) string {
	reply := make(chan ActorReply, 1)
	if err := n.actor.Send(n.ctx, ActorCommand{Op: OpPeerAddress, Group: peer, Reply: reply}); err != nil {
		return ""
	}
	return (<-reply).String
}

// Publish drives one tick of the observer source's publish loop (spec.md
// §4.H); hosts call this on their own timer.
func (n *Node) Publish() { n.source.Publish(nowMillis()) }

// DoNext drains at most one inbound command from the dispatcher queue
// (spec.md §4.E); hosts call this on their own timer. Each call also
// answers the Actor's keepalive check (Actor.Ping).
func (n *Node) DoNext() bool {
	n.actor.Ping()
	return n.dispatch.DoNext()
}

// Housekeep runs one pass of contextual group maintenance and stale
// observation cleanup (spec.md §4.J); hosts call this on their own timer,
// no more than once per second.
func (n *Node) Housekeep() {
	n.mu.RLock()
	fullNames := n.flags.FullNames
	n.mu.RUnlock()
	n.housekeep.Tick(fullNames)
}

// SetFlags mutates one or more of the live tunables (spec.md §6's "net" verb).
func (n *Node) SetFlags(mutate func(*Config)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	mutate(&n.flags)
}

// NetInfo reports the local identity and live flag values, for the "net
// info" operator command (spec.md §6).
func (n *Node) NetInfo() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return fmt.Sprintf(
		"peer=%s debugging=%t local_echo=%t command_echo=%t full_names=%t front_delimiter=%t show_groups=%t evasive_refresh=%t query_timeout=%s observe_delay_ms=%d evasive_ms=%d expired_ms=%d",
		n.cfg.LocalPeer, n.flags.Debugging, n.flags.LocalEcho, n.flags.CommandEcho, n.flags.FullNames,
		n.flags.FrontDelimiter, n.flags.ShowGroups, n.flags.EvasiveRefresh, n.flags.QueryTimeout,
		n.flags.ObserveDelayMS, n.flags.EvasiveMS, n.flags.ExpiredMS,
	)
}

// NetVersion reports the module's wire-compatible version string, for
// the "net version" operator command (spec.md §6).
func NetVersion() string { return "peernode/1" }

// frontDelimiter renders a pipe-delimited array per the live flag.
func (n *Node) frontDelimiter() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.flags.FrontDelimiter
}

// PeersArray renders the connected-peer list as a pipe-delimited string
// per the live front_delimiter flag, mirroring original_source/
// MQ2DanNet.cpp's peers_arr() accumulate-join helper.
func (n *Node) PeersArray() string {
	return wire.CreateArray(n.Peers(), n.frontDelimiter())
}

// ShowGroups reports the live show_groups flag (spec.md:101): when
// false, Echo/Execute chat decoration omits the "--> (group)" suffix
// even for a shout.
func (n *Node) ShowGroups() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.flags.ShowGroups
}

// Debugging reports the live debugging flag.
func (n *Node) Debugging() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.flags.Debugging
}
