//go:build integration

// These tests spin up real libp2p hosts over loopback and rely on mDNS
// multicast actually working in the test environment; they are NOT run
// by regular "go test ./..." - use "go test -tags integration ./transport/libp2pgossip/".
package libp2pgossip

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danpeer/peernode/peernode"
)

// launchTransports starts n real libp2p hosts on loopback and gives them
// time to find each other over mDNS, the libp2p-backed equivalent of
// _examples/zeromq-gyre/gyre_test.go's launchNodes/stopNodes harness:
// real transports, real discovery, a fixed settle sleep rather than a
// synchronization primitive.
func launchTransports(t *testing.T, ctx context.Context, n int, namePrefix string) []*Transport {
	t.Helper()
	transports := make([]*Transport, n)
	for i := 0; i < n; i++ {
		tr := New(Options{
			ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"},
			Namespace:   "peernode-integration-test",
		})
		require.NoError(t, tr.Start(ctx, localPeerName(namePrefix, i), ""))
		transports[i] = tr
	}
	time.Sleep(3 * time.Second)
	return transports
}

func stopTransports(transports []*Transport) {
	for _, tr := range transports {
		_ = tr.Stop()
	}
}

func localPeerName(prefix string, i int) string {
	return prefix + "_" + string(rune('a'+i))
}

// drainEvents collects events until want fires a matching one or the
// deadline passes, mirroring the fake transport's synchronous delivery
// that peernode/actor_test.go relies on for the in-memory equivalent of
// this scenario.
func drainEvents(t *testing.T, tr *Transport, deadline time.Duration, want func(peernode.Event) bool) peernode.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()
	for {
		ev, err := tr.NextEvent(ctx)
		require.NoError(t, err, "deadline exceeded waiting for event")
		if want(ev) {
			return ev
		}
	}
}

// TestTwoHostsJoinGroupEmitsMembershipEvents is the real-transport
// equivalent of transporttest's fake-backed group join tests: two
// in-process libp2p hosts discover each other over mDNS, one joins a
// group first, and the other's subsequent Join must surface as an
// EventJoin on the first host's event stream (spec.md §4.B/§4.C), the
// gap a fake-only test suite cannot catch.
func TestTwoHostsJoinGroupEmitsMembershipEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transports := launchTransports(t, ctx, 2, "integtest")
	defer stopTransports(transports)
	a, b := transports[0], transports[1]

	require.NoError(t, a.Join("integration_group"))

	joined := make(chan struct{})
	go func() {
		drainEvents(t, a, 20*time.Second, func(ev peernode.Event) bool {
			return ev.Kind == peernode.EventJoin && ev.Group == "integration_group"
		})
		close(joined)
	}()

	require.NoError(t, b.Join("integration_group"))

	select {
	case <-joined:
	case <-time.After(25 * time.Second):
		t.Fatal("timed out waiting for EventJoin after the second host joined the group")
	}
}

// TestTwoHostsLeaveGroupEmitsMembershipEvent extends the join scenario:
// once both hosts share a group, the second host leaving must surface as
// an EventLeave on the first host's event stream.
func TestTwoHostsLeaveGroupEmitsMembershipEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transports := launchTransports(t, ctx, 2, "integtest2")
	defer stopTransports(transports)
	a, b := transports[0], transports[1]

	require.NoError(t, a.Join("integration_group_leave"))
	require.NoError(t, b.Join("integration_group_leave"))

	drainEvents(t, a, 20*time.Second, func(ev peernode.Event) bool {
		return ev.Kind == peernode.EventJoin && ev.Group == "integration_group_leave"
	})

	require.NoError(t, b.Leave("integration_group_leave"))

	drainEvents(t, a, 20*time.Second, func(ev peernode.Event) bool {
		return ev.Kind == peernode.EventLeave && ev.Group == "integration_group_leave"
	})
}
