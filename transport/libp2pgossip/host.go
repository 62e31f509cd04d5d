// Package libp2pgossip implements peernode.GossipTransport (spec.md
// §4.C) on top of the libp2p stack: gossipsub for group shout, directed
// streams for whisper, mDNS for LAN beaconing, and the kad-dht for
// address resolution when a peer's stream dial needs an address the
// peerstore doesn't already have.
//
// Grounded on pkg/p2pnet/network.go's host-construction shape, stripped
// of the relay/NAT-punching/connection-gater options that serve
// shurli's authenticated-relay Non-goal, and pkg/p2pnet/mdns.go's
// zeroconf-based discovery loop, simplified to the documented zeroconf
// Resolver API rather than the teacher's platform-native CGo browse.
package libp2pgossip

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"

	"github.com/danpeer/peernode/internal/identity"
	"github.com/danpeer/peernode/peernode"
	"github.com/danpeer/peernode/peernode/wire"
)

const (
	helloProtocol    protocol.ID = "/peernode/hello/1.0.0"
	whisperProtocol  protocol.ID = "/peernode/whisper/1.0.0"
	groupTopicPrefix             = "/peernode/group/"
	helloTimeout                 = 5 * time.Second
)

// Options configure a Transport before Start.
type Options struct {
	// KeyFile, if set, persists the Ed25519 identity across restarts
	// (spec.md §4.A "TransportUuid is stable across restarts when the
	// host persists it"). Empty generates a fresh ephemeral identity.
	KeyFile string

	ListenAddrs []string

	// Namespace scopes mDNS beaconing to "_<namespace>._udp" instead of
	// the bare "_peernode._udp" service (spec.md's Discovery.Namespace),
	// so distinct fabrics on the same LAN don't see each other's peers.
	Namespace string

	// Metrics is optional; a nil Metrics disables all instrumentation.
	Metrics *Metrics
}

type topicHandle struct {
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	evts   *pubsub.TopicEventHandler
	cancel context.CancelFunc
}

// Transport implements peernode.GossipTransport.
type Transport struct {
	opts    Options
	metrics *Metrics

	host   host.Host
	dht    *dht.IpfsDHT
	pubsub *pubsub.PubSub

	localPeer string

	mu        sync.Mutex
	topics    map[string]*topicHandle
	names     map[peer.ID]string // transport uuid -> canonical PeerName

	discovery *discoveryService
	liveness  *livenessTracker

	evasiveMS uint32
	expiredMS uint32

	events chan peernode.Event
	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Transport. Start must be called before use.
func New(opts Options) *Transport {
	return &Transport{
		opts:      opts,
		metrics:   opts.Metrics,
		topics:    make(map[string]*topicHandle),
		names:     make(map[peer.ID]string),
		events:    make(chan peernode.Event, 256),
		evasiveMS: 5000,
		expiredMS: 30000,
	}
}

// SetEvasiveTimeoutMS implements peernode.GossipTransport.
func (t *Transport) SetEvasiveTimeoutMS(ms uint32) { t.evasiveMS = ms }

// SetExpiredTimeoutMS implements peernode.GossipTransport.
func (t *Transport) SetExpiredTimeoutMS(ms uint32) { t.expiredMS = ms }

// Start builds the libp2p host, joins the kad-dht, starts mDNS
// beaconing, and registers the hello/whisper stream handlers (spec.md
// §4.C "start"). iface is currently advisory only; the libp2p host
// listens on all interfaces and mDNS filtering is left to the OS
// resolver.
func (t *Transport) Start(ctx context.Context, localPeer, iface string) error {
	t.localPeer = localPeer
	t.ctx, t.cancel = context.WithCancel(ctx)

	priv, err := t.loadIdentity()
	if err != nil {
		return fmt.Errorf("libp2pgossip: identity: %w", err)
	}

	hostOpts := []libp2p.Option{
		libp2p.Identity(priv),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Transport(libp2pquic.NewTransport),
	}
	if len(t.opts.ListenAddrs) > 0 {
		hostOpts = append(hostOpts, libp2p.ListenAddrStrings(t.opts.ListenAddrs...))
	} else {
		hostOpts = append(hostOpts, libp2p.ListenAddrStrings(
			"/ip4/0.0.0.0/tcp/0",
			"/ip4/0.0.0.0/udp/0/quic-v1",
		))
	}

	h, err := libp2p.New(hostOpts...)
	if err != nil {
		return fmt.Errorf("libp2pgossip: host: %w", err)
	}
	t.host = h

	kad, err := dht.New(t.ctx, h, dht.Mode(dht.ModeAutoServer))
	if err != nil {
		return fmt.Errorf("libp2pgossip: dht: %w", err)
	}
	t.dht = kad
	if err := kad.Bootstrap(t.ctx); err != nil {
		return fmt.Errorf("libp2pgossip: dht bootstrap: %w", err)
	}

	ps, err := pubsub.NewGossipSub(t.ctx, h)
	if err != nil {
		return fmt.Errorf("libp2pgossip: pubsub: %w", err)
	}
	t.pubsub = ps

	h.SetStreamHandler(helloProtocol, t.handleHelloStream)
	h.SetStreamHandler(whisperProtocol, t.handleWhisperStream)
	h.Network().Notify(&network.NotifyBundle{DisconnectedF: t.onDisconnected})

	t.liveness = newLivenessTracker(t)
	t.liveness.Start()

	t.discovery, err = newDiscoveryService(h, t.metrics, t.opts.Namespace, t.onPeerFound)
	if err != nil {
		return fmt.Errorf("libp2pgossip: mdns namespace: %w", err)
	}
	if err := t.discovery.Start(t.ctx); err != nil {
		return fmt.Errorf("libp2pgossip: mdns: %w", err)
	}

	return nil
}

func (t *Transport) loadIdentity() (crypto.PrivKey, error) {
	if t.opts.KeyFile != "" {
		return identity.LoadOrCreateIdentity(t.opts.KeyFile)
	}
	priv, _, err := crypto.GenerateKeyPair(crypto.Ed25519, -1)
	return priv, err
}

// Stop implements peernode.GossipTransport. It is the Actor's own
// shutdown path (spec.md §4.D) and must not block on anything the Actor
// itself depends on.
func (t *Transport) Stop() error {
	t.cancel()
	if t.discovery != nil {
		_ = t.discovery.Close()
	}
	if t.liveness != nil {
		t.liveness.Stop()
	}

	t.mu.Lock()
	topics := t.topics
	t.topics = make(map[string]*topicHandle)
	t.mu.Unlock()
	for _, th := range topics {
		th.cancel()
		th.sub.Cancel()
		th.evts.Cancel()
		_ = th.topic.Close()
	}

	if t.dht != nil {
		_ = t.dht.Close()
	}
	if t.host != nil {
		return t.host.Close()
	}
	return nil
}

// NextEvent implements peernode.GossipTransport.
func (t *Transport) NextEvent(ctx context.Context) (peernode.Event, error) {
	select {
	case ev, ok := <-t.events:
		if !ok {
			return peernode.Event{}, context.Canceled
		}
		return ev, nil
	case <-ctx.Done():
		return peernode.Event{}, ctx.Err()
	}
}

func (t *Transport) emit(ev peernode.Event) {
	t.metrics.incEvent(ev.Kind.String())
	select {
	case t.events <- ev:
	case <-t.ctx.Done():
	}
}

// onPeerFound is mDNS's callback once a LAN peer's address is resolved
// (spec.md §4.C "beaconing"): dial, then exchange PeerName via the
// hello protocol, since a bare libp2p peer.ID carries no application
// identity of its own.
func (t *Transport) onPeerFound(info peer.AddrInfo) {
	go func() {
		ctx, cancel := context.WithTimeout(t.ctx, helloTimeout)
		defer cancel()
		if err := t.host.Connect(ctx, info); err != nil {
			return
		}
		t.sayHello(info.ID)
	}()
}

func (t *Transport) sayHello(id peer.ID) {
	ctx, cancel := context.WithTimeout(t.ctx, helloTimeout)
	defer cancel()
	s, err := t.host.NewStream(ctx, id, helloProtocol)
	if err != nil {
		return
	}
	remoteName, err := exchangeHello(s, t.localPeer)
	if err != nil {
		return
	}
	t.registerPeer(id, remoteName)
}

func (t *Transport) handleHelloStream(s network.Stream) {
	remoteName, err := exchangeHello(s, t.localPeer)
	if err != nil {
		return
	}
	t.registerPeer(s.Conn().RemotePeer(), remoteName)
}

// exchangeHello writes localName then reads the peer's name back.
// Both sides issue the write before blocking on the read, so there is
// no head-of-line deadlock for name-sized payloads.
func exchangeHello(s network.Stream, localName string) (string, error) {
	defer s.Close()
	if err := wire.WriteTo(s, wire.NewFrames(localName)); err != nil {
		return "", err
	}
	data, err := io.ReadAll(io.LimitReader(s, 4096))
	if err != nil {
		return "", err
	}
	frames, err := wire.Unmarshal(data)
	if err != nil {
		return "", err
	}
	return frames.Tag(), nil
}

func (t *Transport) peerName(id peer.ID) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.names[id]
}

func (t *Transport) peerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.names)
}

// registerPeer records the (uuid, name) mapping and emits ENTER the
// first time a peer is identified (spec.md §4.C).
func (t *Transport) registerPeer(id peer.ID, name string) {
	if name == "" {
		return
	}
	t.mu.Lock()
	_, known := t.names[id]
	t.names[id] = name
	t.mu.Unlock()

	t.liveness.touch(id)
	if !known {
		t.emit(peernode.Event{Kind: peernode.EventEnter, Peer: name, UUID: id.String()})
		t.metrics.setConnectedPeers(t.peerCount())
	}
}

func (t *Transport) onDisconnected(n network.Network, c network.Conn) {
	id := c.RemotePeer()
	if len(n.ConnsToPeer(id)) > 0 {
		return // another connection to the same peer remains
	}
	t.mu.Lock()
	name, ok := t.names[id]
	delete(t.names, id)
	t.mu.Unlock()
	if !ok {
		return
	}
	t.liveness.forget(id)
	t.emit(peernode.Event{Kind: peernode.EventExit, Peer: name, UUID: id.String()})
	t.metrics.setConnectedPeers(t.peerCount())
}
