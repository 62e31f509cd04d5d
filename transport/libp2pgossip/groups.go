package libp2pgossip

import (
	"context"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"

	"github.com/danpeer/peernode/peernode"
	"github.com/danpeer/peernode/peernode/wire"
)

// Join implements peernode.GossipTransport: subscribe to group's
// gossipsub topic and start a read pump translating inbound messages
// into Event.Shout (spec.md §4.C). A second Join on an already-joined
// group is a no-op, matching the idempotent "own_groups" set semantics
// of spec.md §4.B.
func (t *Transport) Join(group string) error {
	t.mu.Lock()
	if _, ok := t.topics[group]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	topic, err := t.pubsub.Join(groupTopicPrefix + group)
	if err != nil {
		return err
	}
	sub, err := topic.Subscribe()
	if err != nil {
		_ = topic.Close()
		return err
	}
	evts, err := topic.EventHandler()
	if err != nil {
		sub.Cancel()
		_ = topic.Close()
		return err
	}

	ctx, cancel := context.WithCancel(t.ctx)
	th := &topicHandle{topic: topic, sub: sub, evts: evts, cancel: cancel}

	t.mu.Lock()
	if _, ok := t.topics[group]; ok {
		// Lost a race with a concurrent Join; keep the existing handle.
		t.mu.Unlock()
		cancel()
		sub.Cancel()
		evts.Cancel()
		_ = topic.Close()
		return nil
	}
	t.topics[group] = th
	t.mu.Unlock()

	go t.readGroup(ctx, group, sub)
	go t.readGroupMembership(ctx, group, evts)
	return nil
}

// Leave implements peernode.GossipTransport.
func (t *Transport) Leave(group string) error {
	t.mu.Lock()
	th, ok := t.topics[group]
	if ok {
		delete(t.topics, group)
	}
	t.mu.Unlock()
	if !ok {
		return nil
	}

	th.cancel()
	th.sub.Cancel()
	th.evts.Cancel()
	return th.topic.Close()
}

// Shout implements peernode.GossipTransport.
func (t *Transport) Shout(group string, frames [][]byte) error {
	start := time.Now()
	t.mu.Lock()
	th, ok := t.topics[group]
	t.mu.Unlock()
	if !ok {
		return ErrGroupNotJoined
	}
	err := th.topic.Publish(t.ctx, wire.Marshal(wire.Frames(frames)))
	if t.metrics != nil {
		t.metrics.ShoutLatency.Observe(time.Since(start).Seconds())
	}
	return err
}

// PeersByGroup implements peernode.GossipTransport.
func (t *Transport) PeersByGroup(group string) []string {
	t.mu.Lock()
	th, ok := t.topics[group]
	t.mu.Unlock()
	if !ok {
		return nil
	}
	var names []string
	for _, id := range th.topic.ListPeers() {
		if name := t.peerName(id); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// OwnGroups implements peernode.GossipTransport.
func (t *Transport) OwnGroups() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	groups := make([]string, 0, len(t.topics))
	for g := range t.topics {
		groups = append(groups, g)
	}
	return groups
}

// PeerHeader implements peernode.GossipTransport. The only header this
// transport tracks is "name", the PeerName learned via the hello
// handshake (spec.md §4.A).
func (t *Transport) PeerHeader(uuid, header string) (string, bool) {
	if header != "name" {
		return "", false
	}
	id, err := decodePeerID(uuid)
	if err != nil {
		return "", false
	}
	name := t.peerName(id)
	return name, name != ""
}

// readGroupMembership translates gossipsub's mesh membership notifications
// into spec.md §4.B JOIN/LEAVE events, so Registry.OnJoin/OnLeave (and
// therefore Node.PeersByGroup/PeerGroups) stay populated for remote peers
// against the real transport, the same way the in-memory fake already
// does for tests.
func (t *Transport) readGroupMembership(ctx context.Context, group string, evts *pubsub.TopicEventHandler) {
	for {
		evt, err := evts.NextPeerEvent(ctx)
		if err != nil {
			return
		}
		name := t.peerName(evt.Peer)
		if name == "" {
			// Mesh membership can change before the hello handshake
			// completes on a freshly discovered link; drop until
			// identified, matching readGroup's shout-side handling.
			continue
		}
		kind := peernode.EventJoin
		if evt.Type == pubsub.PeerLeave {
			kind = peernode.EventLeave
		}
		t.emit(peernode.Event{
			Kind:  kind,
			Peer:  name,
			UUID:  evt.Peer.String(),
			Group: group,
		})
	}
}

func (t *Transport) readGroup(ctx context.Context, group string, sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == t.host.ID() {
			continue
		}
		frames, err := wire.Unmarshal(msg.Data)
		if err != nil {
			continue
		}
		name := t.peerName(msg.ReceivedFrom)
		if name == "" {
			// Gossip can arrive before the hello handshake completes on a
			// freshly discovered mesh link; drop until identified.
			continue
		}
		t.liveness.touch(msg.ReceivedFrom)
		t.emit(peernode.Event{
			Kind:    peernode.EventShout,
			Peer:    name,
			UUID:    msg.ReceivedFrom.String(),
			Group:   group,
			Payload: frames,
		})
	}
}
