// Package transporttest provides an in-memory GossipTransport fake for
// exercising the core (peernode.Actor, Dispatcher, Query, Observer
// engines) without a real libp2p host. Grounded on
// _examples/zeromq-gyre/gyre_test.go's multi-node in-process harness
// shape, collapsed to a single shared in-memory bus instead of real ZMTP
// sockets.
package transporttest

import (
	"context"
	"sync"

	"github.com/danpeer/peernode/peernode"
)

// Bus is the shared in-memory network joining every Fake transport
// constructed against it, standing in for the gossip fabric.
type Bus struct {
	mu      sync.Mutex
	members map[string]*Fake          // peerName -> transport
	topics  map[string]map[string]bool // group -> set of peerName
}

// NewBus constructs an empty shared bus.
func NewBus() *Bus {
	return &Bus{
		members: make(map[string]*Fake),
		topics:  make(map[string]map[string]bool),
	}
}

// Fake is an in-memory peernode.GossipTransport backed by a shared Bus.
type Fake struct {
	bus       *Bus
	localPeer string

	mu        sync.Mutex
	ownGroups map[string]bool
	events    chan peernode.Event
	stopped   bool

	evasiveMS uint32
	expiredMS uint32
}

// New constructs a Fake transport for localPeer on bus. Multiple Fakes
// sharing a Bus form one gossip network.
func New(bus *Bus, localPeer string) *Fake {
	return &Fake{
		bus:       bus,
		localPeer: localPeer,
		ownGroups: make(map[string]bool),
		events:    make(chan peernode.Event, 256),
	}
}

var _ peernode.GossipTransport = (*Fake)(nil)

// Start registers the transport on the bus and synthesizes Enter events
// for the new peer's arrival with respect to every existing member, and
// vice versa (a miniature beacon convergence).
func (f *Fake) Start(ctx context.Context, localPeer string, iface string) error {
	f.bus.mu.Lock()
	defer f.bus.mu.Unlock()
	f.localPeer = localPeer
	f.bus.members[localPeer] = f

	for peer, other := range f.bus.members {
		if peer == localPeer {
			continue
		}
		other.deliver(peernode.Event{Kind: peernode.EventEnter, Peer: localPeer, UUID: localPeer})
		f.deliver(peernode.Event{Kind: peernode.EventEnter, Peer: peer, UUID: peer})
	}
	return nil
}

func (f *Fake) deliver(ev peernode.Event) {
	f.mu.Lock()
	stopped := f.stopped
	f.mu.Unlock()
	if stopped {
		return
	}
	select {
	case f.events <- ev:
	default:
	}
}

// Join subscribes to group and announces the join to every other member.
func (f *Fake) Join(group string) error {
	f.mu.Lock()
	f.ownGroups[group] = true
	f.mu.Unlock()

	f.bus.mu.Lock()
	if f.bus.topics[group] == nil {
		f.bus.topics[group] = make(map[string]bool)
	}
	f.bus.topics[group][f.localPeer] = true
	members := f.bus.members
	f.bus.mu.Unlock()

	for peer, other := range members {
		if peer == f.localPeer {
			continue
		}
		other.deliver(peernode.Event{Kind: peernode.EventJoin, Peer: f.localPeer, Group: group})
	}
	return nil
}

// Leave unsubscribes from group and announces the departure.
func (f *Fake) Leave(group string) error {
	f.mu.Lock()
	delete(f.ownGroups, group)
	f.mu.Unlock()

	f.bus.mu.Lock()
	if members, ok := f.bus.topics[group]; ok {
		delete(members, f.localPeer)
		if len(members) == 0 {
			delete(f.bus.topics, group)
		}
	}
	all := f.bus.members
	f.bus.mu.Unlock()

	for peer, other := range all {
		if peer == f.localPeer {
			continue
		}
		other.deliver(peernode.Event{Kind: peernode.EventLeave, Peer: f.localPeer, Group: group})
	}
	return nil
}

// Shout delivers frames to every current member of group, except the
// sender (at-most-once per member per message, spec.md §4.C).
func (f *Fake) Shout(group string, frames [][]byte) error {
	f.bus.mu.Lock()
	members := f.bus.topics[group]
	recipients := make([]*Fake, 0, len(members))
	for peer := range members {
		if peer == f.localPeer {
			continue
		}
		recipients = append(recipients, f.bus.members[peer])
	}
	f.bus.mu.Unlock()

	for _, r := range recipients {
		r.deliver(peernode.Event{Kind: peernode.EventShout, Peer: f.localPeer, Group: group, Payload: cloneFrames(frames)})
	}
	return nil
}

// Whisper delivers frames directly to the peer identified by uuid (this
// fake uses peer names as their own uuid).
func (f *Fake) Whisper(uuid string, frames [][]byte) error {
	f.bus.mu.Lock()
	target := f.bus.members[uuid]
	f.bus.mu.Unlock()
	if target == nil {
		return peernode.ErrUnknownPeer
	}
	target.deliver(peernode.Event{Kind: peernode.EventWhisper, Peer: f.localPeer, Payload: cloneFrames(frames)})
	return nil
}

// NextEvent blocks until an event is queued or ctx is canceled.
func (f *Fake) NextEvent(ctx context.Context) (peernode.Event, error) {
	select {
	case ev, ok := <-f.events:
		if !ok {
			return peernode.Event{}, context.Canceled
		}
		return ev, nil
	case <-ctx.Done():
		return peernode.Event{}, ctx.Err()
	}
}

func (f *Fake) SetEvasiveTimeoutMS(ms uint32) { f.evasiveMS = ms }
func (f *Fake) SetExpiredTimeoutMS(ms uint32) { f.expiredMS = ms }

// PeersByGroup returns the bus's current member list for group.
func (f *Fake) PeersByGroup(group string) []string {
	f.bus.mu.Lock()
	defer f.bus.mu.Unlock()
	members := f.bus.topics[group]
	out := make([]string, 0, len(members))
	for p := range members {
		out = append(out, p)
	}
	return out
}

// OwnGroups returns the groups this transport has joined.
func (f *Fake) OwnGroups() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.ownGroups))
	for g := range f.ownGroups {
		out = append(out, g)
	}
	return out
}

// PeerHeader supports the "name" header, returning uuid itself since this
// fake's uuid space is the peer name space.
func (f *Fake) PeerHeader(uuid, header string) (string, bool) {
	if header == "name" {
		return uuid, true
	}
	return "", false
}

// Stop marks the transport stopped and announces an Exit to the bus.
func (f *Fake) Stop() error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil
	}
	f.stopped = true
	f.mu.Unlock()

	f.bus.mu.Lock()
	delete(f.bus.members, f.localPeer)
	for group, members := range f.bus.topics {
		delete(members, f.localPeer)
		if len(members) == 0 {
			delete(f.bus.topics, group)
		}
	}
	rest := f.bus.members
	f.bus.mu.Unlock()

	for _, other := range rest {
		other.deliver(peernode.Event{Kind: peernode.EventExit, Peer: f.localPeer})
	}
	close(f.events)
	return nil
}

// InjectEvasive lets a test synthesize an Evasive event for peer, e.g. to
// exercise the evasive-refresh path without a real liveness timer.
func (f *Fake) InjectEvasive(peer string) {
	f.deliver(peernode.Event{Kind: peernode.EventEvasive, Peer: peer})
}

func cloneFrames(frames [][]byte) [][]byte {
	out := make([][]byte, len(frames))
	for i, fr := range frames {
		cp := make([]byte, len(fr))
		copy(cp, fr)
		out[i] = cp
	}
	return out
}
