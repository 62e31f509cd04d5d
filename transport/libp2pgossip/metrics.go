package libp2pgossip

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gossip transport's Prometheus collectors on an
// isolated registry, so a process embedding multiple peers (or running
// tests) never collides with the global default registry.
//
// Grounded on pkg/p2pnet/metrics.go's NewMetrics(version, goVersion)
// shape and nil-safe incMetric convention, narrowed to the counters a
// GossipTransport actually needs.
type Metrics struct {
	Registry *prometheus.Registry

	EventsTotal        *prometheus.CounterVec
	ConnectedPeers      prometheus.Gauge
	WhisperLatency      prometheus.Histogram
	ShoutLatency        prometheus.Histogram
	MDNSDiscoveredTotal *prometheus.CounterVec
	BuildInfo           *prometheus.GaugeVec
}

// NewMetrics constructs a Metrics instance with every collector
// registered on a fresh, isolated registry.
func NewMetrics(version, goVersion string) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "peernode_events_total",
				Help: "Total transport events emitted, by kind.",
			},
			[]string{"kind"},
		),
		ConnectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peernode_connected_peers",
			Help: "Number of currently connected peers.",
		}),
		WhisperLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "peernode_whisper_duration_seconds",
			Help:    "Duration of directed whisper sends.",
			Buckets: prometheus.DefBuckets,
		}),
		ShoutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "peernode_shout_duration_seconds",
			Help:    "Duration of group shout publishes.",
			Buckets: prometheus.DefBuckets,
		}),
		MDNSDiscoveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "peernode_mdns_discovered_total",
				Help: "Total mDNS discovery events, by result.",
			},
			[]string{"result"},
		),
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "peernode_info",
				Help: "Build information for the running peernode instance.",
			},
			[]string{"version", "go_version"},
		),
	}

	reg.MustRegister(
		m.EventsTotal,
		m.ConnectedPeers,
		m.WhisperLatency,
		m.ShoutLatency,
		m.MDNSDiscoveredTotal,
		m.BuildInfo,
	)
	m.BuildInfo.WithLabelValues(version, goVersion).Set(1)
	return m
}

// incEvent is nil-safe so the transport works with no metrics wired in
// tests (spec.md §9's "optional observability" note).
func (m *Metrics) incEvent(kind string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) setConnectedPeers(n int) {
	if m == nil {
		return
	}
	m.ConnectedPeers.Set(float64(n))
}
