package libp2pgossip

import (
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/danpeer/peernode/peernode"
)

// livenessTracker implements spec.md §4.C's evasive/expired heuristic: a
// peer heard from recently is presumed alive; once evasiveMS of silence
// elapses it is reported Evasive exactly once, and once expiredMS
// elapses it is reported Exit and dropped.
//
// Grounded on pkg/p2pnet/peermanager.go's ticker-driven sweep idiom
// (probeLoop/reconnectLoop), repurposed here from "reconnect a
// disconnected peer with backoff" to "declare a silent peer evasive,
// then gone" — there is no reconnect attempt, because silence on a
// gossipsub mesh doesn't imply the underlying libp2p connection dropped.
type livenessTracker struct {
	t *Transport

	mu       sync.Mutex
	lastSeen map[peer.ID]time.Time
	evasive  map[peer.ID]bool

	stop chan struct{}
	done chan struct{}
}

func newLivenessTracker(t *Transport) *livenessTracker {
	return &livenessTracker{
		t:        t,
		lastSeen: make(map[peer.ID]time.Time),
		evasive:  make(map[peer.ID]bool),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (l *livenessTracker) Start() { go l.loop() }

func (l *livenessTracker) Stop() {
	close(l.stop)
	<-l.done
}

// touch records activity from id, clearing any evasive flag. spec.md
// §4.C has no explicit "recovered" event: the peer simply resumes
// appearing in normal traffic.
func (l *livenessTracker) touch(id peer.ID) {
	l.mu.Lock()
	l.lastSeen[id] = time.Now()
	l.evasive[id] = false
	l.mu.Unlock()
}

func (l *livenessTracker) forget(id peer.ID) {
	l.mu.Lock()
	delete(l.lastSeen, id)
	delete(l.evasive, id)
	l.mu.Unlock()
}

func (l *livenessTracker) loop() {
	defer close(l.done)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *livenessTracker) sweep() {
	now := time.Now()
	evasiveAfter := time.Duration(l.t.evasiveMS) * time.Millisecond
	expiredAfter := time.Duration(l.t.expiredMS) * time.Millisecond

	var toEvasive, toExpire []peer.ID
	l.mu.Lock()
	for id, seen := range l.lastSeen {
		switch silence := now.Sub(seen); {
		case silence >= expiredAfter:
			toExpire = append(toExpire, id)
		case silence >= evasiveAfter && !l.evasive[id]:
			l.evasive[id] = true
			toEvasive = append(toEvasive, id)
		}
	}
	l.mu.Unlock()

	for _, id := range toEvasive {
		if name := l.t.peerName(id); name != "" {
			l.t.emit(peernode.Event{Kind: peernode.EventEvasive, Peer: name, UUID: id.String()})
		}
	}
	for _, id := range toExpire {
		l.forget(id)
		l.t.mu.Lock()
		name, ok := l.t.names[id]
		delete(l.t.names, id)
		l.t.mu.Unlock()
		if ok {
			l.t.emit(peernode.Event{Kind: peernode.EventExit, Peer: name, UUID: id.String()})
			l.t.metrics.setConnectedPeers(l.t.peerCount())
		}
	}
}
