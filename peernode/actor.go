package peernode

import (
	"context"
	"log/slog"
	"time"
)

// ActorOp enumerates the framed command ops the host may send to the
// Actor (spec.md §4.D).
type ActorOp int

const (
	OpJoin ActorOp = iota
	OpLeave
	OpShout
	OpWhisper
	OpPeers
	OpPeerGroups
	OpOwnGroups
	OpPeersByGroup
	OpPeerAddress
	OpTerminate
)

// ActorCommand is one framed command on the host-pipe (spec.md §4.D).
// Reply, if non-nil, receives exactly one ActorReply and is then closed
// by the Actor.
type ActorCommand struct {
	Op     ActorOp
	Group  string
	UUID   string
	Frames [][]byte
	Reply  chan ActorReply
}

// ActorReply carries the result of a command that needs one
// (PEERS/PEER_GROUPS/OWN_GROUPS/PEERS_BY_GROUP/PEER_ADDRESS).
type ActorReply struct {
	Strings []string
	String  string
	Err     error
}

// Actor is the single goroutine that exclusively owns the transport
// handle (spec.md §4.D). It is the only component that mutates transport
// state or the membership registry. Grounded on
// _examples/zeromq-gyre/node.go's handler() select loop and
// pkg/p2pnet/peermanager.go's context-cancellation shutdown idiom.
type Actor struct {
	transport GossipTransport
	registry  *Registry
	dispatch  *Dispatcher
	localPeer string
	log       *slog.Logger

	inbox chan ActorCommand

	// onEvasive is invoked (from the Actor goroutine) whenever an Evasive
	// event arrives. Node wires this to the evasive_refresh policy
	// (spec.md §4.D, §4.J): if the flag is on, it whispers Reupdate for
	// every group this peer observes from the evading source.
	onEvasive func(peer string)

	keepalive time.Duration

	// pingback is signaled by the host side to prove the host-pipe is
	// still alive; see spec.md §4.D "Liveness".
	pingback chan struct{}

	done chan struct{}
}

// NewActor constructs an actor. Run must be called to start it.
func NewActor(transport GossipTransport, registry *Registry, dispatch *Dispatcher, localPeer string, log *slog.Logger) *Actor {
	if log == nil {
		log = slog.Default()
	}
	return &Actor{
		transport: transport,
		registry:  registry,
		dispatch:  dispatch,
		localPeer: localPeer,
		log:       log,
		inbox:     make(chan ActorCommand, 64),
		onEvasive: func(string) {},
		keepalive: 5 * time.Second,
		pingback:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// SetOnEvasive installs the evasive-refresh hook; see the onEvasive field.
func (a *Actor) SetOnEvasive(f func(peer string)) { a.onEvasive = f }

// SetKeepalive sets the poller's wake interval (spec.md §4.D "Liveness").
func (a *Actor) SetKeepalive(d time.Duration) { a.keepalive = d }

// Send delivers cmd to the actor's inbox. It blocks until accepted or ctx
// is done. Callers that are not the Actor goroutine itself (i.e. every
// public Node operation) use this instead of touching the transport
// directly, per spec.md §5's "post-to-main facility".
func (a *Actor) Send(ctx context.Context, cmd ActorCommand) error {
	select {
	case a.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrTransportClosed
	}
}

// Ping is called by the host side on each tick to prove the host-pipe is
// alive; see the keepalive check in Run.
func (a *Actor) Ping() {
	select {
	case a.pingback <- struct{}{}:
	default:
	}
}

// Run is the actor's lifecycle: subscribe, loop on host-pipe and
// transport events interleaved fairly, and on exit depart every own
// group, stop the transport, and return (spec.md §4.D). Run blocks until
// ctx is canceled, a terminate command arrives, or the transport's event
// stream ends.
func (a *Actor) Run(ctx context.Context, localPeer, iface string) error {
	if err := a.transport.Start(ctx, localPeer, iface); err != nil {
		return err
	}
	defer close(a.done)

	events := make(chan Event, 64)
	evCtx, evCancel := context.WithCancel(ctx)
	defer evCancel()
	go func() {
		for {
			ev, err := a.transport.NextEvent(evCtx)
			if err != nil {
				close(events)
				return
			}
			select {
			case events <- ev:
			case <-evCtx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(a.keepalive)
	defer ticker.Stop()
	trafficSinceTick := false

	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			return nil

		case cmd, ok := <-a.inbox:
			if !ok {
				a.shutdown()
				return nil
			}
			trafficSinceTick = true
			if cmd.Op == OpTerminate {
				if cmd.Reply != nil {
					cmd.Reply <- ActorReply{}
					close(cmd.Reply)
				}
				a.shutdown()
				return nil
			}
			a.handleCommand(cmd)

		case ev, ok := <-events:
			if !ok {
				a.shutdown()
				return nil
			}
			trafficSinceTick = true
			a.handleEvent(ev)

		case <-ticker.C:
			if trafficSinceTick {
				trafficSinceTick = false
				continue
			}
			// No traffic since the last tick: round-trip a PING to the
			// host pipe to detect socket death (spec.md §4.D).
			select {
			case <-a.pingback:
			case <-time.After(a.keepalive):
				a.log.Warn("actor: host pipe unresponsive, terminating", "peer", localPeer)
				a.shutdown()
				return ErrTransportClosed
			}
		}
	}
}

func (a *Actor) shutdown() {
	for _, g := range a.registry.OwnGroups() {
		if err := a.transport.Leave(g); err != nil {
			a.log.Debug("actor: leave on shutdown failed", "group", g, "err", err)
		}
		a.registry.LeaveOwn(g)
	}
	if err := a.transport.Stop(); err != nil {
		a.log.Debug("actor: transport stop failed", "err", err)
	}
}

func (a *Actor) handleCommand(cmd ActorCommand) {
	switch cmd.Op {
	case OpJoin:
		err := a.transport.Join(cmd.Group)
		if err == nil {
			a.registry.JoinOwn(cmd.Group)
		}
		a.reply(cmd, ActorReply{Err: err})
	case OpLeave:
		err := a.transport.Leave(cmd.Group)
		if err == nil {
			a.registry.LeaveOwn(cmd.Group)
		}
		a.reply(cmd, ActorReply{Err: err})
	case OpShout:
		err := a.transport.Shout(cmd.Group, cmd.Frames)
		a.reply(cmd, ActorReply{Err: err})
	case OpWhisper:
		err := a.transport.Whisper(cmd.UUID, cmd.Frames)
		a.reply(cmd, ActorReply{Err: err})
	case OpPeers:
		a.reply(cmd, ActorReply{Strings: a.registry.GetPeers()})
	case OpPeerGroups:
		a.reply(cmd, ActorReply{Strings: a.registry.GetAllGroups()})
	case OpOwnGroups:
		a.reply(cmd, ActorReply{Strings: a.registry.OwnGroups()})
	case OpPeersByGroup:
		a.reply(cmd, ActorReply{Strings: a.registry.GetGroupPeers(cmd.Group)})
	case OpPeerAddress:
		uuid, _ := a.registry.UUID(cmd.Group)
		a.reply(cmd, ActorReply{String: uuid})
	}
}

func (a *Actor) reply(cmd ActorCommand, r ActorReply) {
	if cmd.Reply == nil {
		return
	}
	cmd.Reply <- r
	close(cmd.Reply)
}

// handleEvent applies a transport event to the registry and, for
// WHISPER/SHOUT, rewrites and enqueues the payload for dispatch (spec.md
// §4.D).
func (a *Actor) handleEvent(ev Event) {
	switch ev.Kind {
	case EventEnter:
		a.registry.OnEnter(ev.Peer, ev.UUID)
	case EventExit:
		a.registry.OnExit(ev.Peer)
	case EventJoin:
		a.registry.OnJoin(ev.Peer, ev.Group)
	case EventLeave:
		a.registry.OnLeave(ev.Peer, ev.Group)
	case EventWhisper:
		a.enqueuePayload(ev.Peer, "", ev.Payload)
	case EventShout:
		a.enqueuePayload(ev.Peer, ev.Group, ev.Payload)
	case EventEvasive:
		a.onEvasive(ev.Peer)
	case EventSilent:
		a.log.Debug("actor: peer silent", "peer", ev.Peer)
	}
}

func (a *Actor) enqueuePayload(from, group string, payload [][]byte) {
	if len(payload) == 0 {
		return
	}
	tag := string(payload[0])
	rest := make([]string, 0, len(payload)-1)
	for _, f := range payload[1:] {
		rest = append(rest, string(f))
	}
	args := make([]string, 0, len(rest)+2)
	args = append(args, from)
	if group != "" {
		args = append(args, group)
	}
	args = append(args, rest...)
	coalesceKey := ""
	if tag == "Update" && group != "" {
		coalesceKey = from + "\x00" + group
	}
	a.dispatch.Enqueue(tag, args, coalesceKey)
}
