package libp2pgossip

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/zeroconf/v2"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/danpeer/peernode/internal/validate"
)

const (
	defaultMDNSServiceName = "peernode"
	mdnsDomain             = "local."
	mdnsPort               = 4001
	mdnsBrowseInterval     = 30 * time.Second
	mdnsBrowseTimeout      = 10 * time.Second
	mdnsDedupeInterval     = 30 * time.Second
	dnsaddrPrefix          = "dnsaddr="
)

// discoveryService beacons this host's listen addresses over mDNS and
// periodically browses for other peernode instances on the LAN,
// reporting each newly seen peer to onFound (spec.md §4.C "beaconing").
//
// Grounded on pkg/p2pnet/mdns.go's MDNSDiscovery: the same
// register-then-browse-loop shape and per-peer dedupe-by-last-attempt
// map, trimmed of the teacher's platform-native CGo browse path and
// relay-upgrade sweep (both serve concerns — cross-platform DNS-SD
// parity and relay fallback — this transport doesn't carry; see
// DESIGN.md).
type discoveryService struct {
	host    host.Host
	metrics *Metrics
	onFound func(peer.AddrInfo)

	serviceName string
	server      *zeroconf.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	lastTry map[peer.ID]time.Time
}

// newDiscoveryService builds a beacon scoped to the service name
// "_<namespace>._udp" so operators running several independent fabrics
// on the same LAN (spec.md's Discovery.Namespace, "lab-fabric" vs.
// "prod-fabric") don't see each other's peers over mDNS. namespace is
// validated through validate.ServiceName, the same DNS-label check the
// config loader already runs on Discovery.Namespace, since it ends up
// embedded directly in a zeroconf service type string here. An empty
// namespace falls back to the bare "peernode" service.
func newDiscoveryService(h host.Host, m *Metrics, namespace string, onFound func(peer.AddrInfo)) (*discoveryService, error) {
	name := defaultMDNSServiceName
	if namespace != "" {
		if err := validate.ServiceName(namespace); err != nil {
			return nil, err
		}
		name = namespace
	}
	return &discoveryService{
		host:        h,
		metrics:     m,
		onFound:     onFound,
		serviceName: "_" + name + "._udp",
		lastTry:     make(map[peer.ID]time.Time),
	}, nil
}

func (d *discoveryService) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.startServer(); err != nil {
		return err
	}
	d.wg.Add(1)
	go d.browseLoop()
	return nil
}

func (d *discoveryService) Close() error {
	d.cancel()
	if d.server != nil {
		d.server.Shutdown()
	}
	d.wg.Wait()
	return nil
}

// startServer advertises this host's p2p multiaddrs as dnsaddr= TXT
// records, the same convention libp2p's own mDNS module uses, so any
// libp2p-aware resolver (not just this package) could parse them.
func (d *discoveryService) startServer() error {
	addrs, err := d.host.Network().InterfaceListenAddresses()
	if err != nil {
		return err
	}
	p2pAddrs, err := peer.AddrInfoToP2pAddrs(&peer.AddrInfo{ID: d.host.ID(), Addrs: addrs})
	if err != nil {
		return err
	}

	txts := make([]string, 0, len(p2pAddrs))
	for _, a := range p2pAddrs {
		txts = append(txts, dnsaddrPrefix+a.String())
	}

	server, err := zeroconf.Register(d.host.ID().String(), d.serviceName, mdnsDomain, mdnsPort, txts, nil)
	if err != nil {
		return err
	}
	d.server = server
	return nil
}

func (d *discoveryService) browseLoop() {
	defer d.wg.Done()
	d.runBrowse()

	ticker := time.NewTicker(mdnsBrowseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.runBrowse()
		}
	}
}

func (d *discoveryService) runBrowse() {
	browseCtx, cancel := context.WithTimeout(d.ctx, mdnsBrowseTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return
	}

	go func() {
		for entry := range entries {
			d.handleEntry(entry)
		}
	}()

	_ = resolver.Browse(browseCtx, d.serviceName, mdnsDomain, entries)
	<-browseCtx.Done()
}

func (d *discoveryService) handleEntry(entry *zeroconf.ServiceEntry) {
	addrs := make([]ma.Multiaddr, 0, len(entry.Text))
	for _, txt := range entry.Text {
		if !strings.HasPrefix(txt, dnsaddrPrefix) {
			continue
		}
		addr, err := ma.NewMultiaddr(txt[len(dnsaddrPrefix):])
		if err != nil {
			continue
		}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return
	}

	infos, err := peer.AddrInfosFromP2pAddrs(addrs...)
	if err != nil {
		return
	}
	for _, info := range infos {
		if info.ID == d.host.ID() {
			continue
		}
		if d.shouldSkip(info.ID) {
			continue
		}
		if d.metrics != nil {
			d.metrics.MDNSDiscoveredTotal.WithLabelValues("discovered").Inc()
		}
		d.onFound(info)
	}
}

func (d *discoveryService) shouldSkip(id peer.ID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lastTry[id]; ok && time.Since(last) < mdnsDedupeInterval {
		return true
	}
	d.lastTry[id] = time.Now()
	return false
}
