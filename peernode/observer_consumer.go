package peernode

import "sync"

// observedKey is the consumer-side index key (expression, peer).
func observedKey(expr, peer string) string { return expr + "\x00" + peer }

// ObserverConsumer implements spec.md §4.I: requests observation of a
// peer's expression, joins the returned group, caches the latest value
// per (peer, expression), and forgets observers when their sink variable
// disappears. Grounded on original_source/MQ2DanNet/Node.cpp's
// observe/forget/forget_if and Commands.cpp's Observe::pack/
// Update::callback.
type ObserverConsumer struct {
	localPeer  string
	evaluator  Evaluator
	correlator *Correlator
	source     *ObserverSource // for self-target observation (spec.md §4.I)

	whisper func(target string, frames [][]byte) error
	join    func(group string) error
	leave   func(group string) error

	mu           sync.Mutex
	observedMap  map[string]string      // (expr, peer) -> group
	observedData map[string]Observation // group -> Observation
	groupOrigin  map[string]struct{ expr, peer string }
}

// NewObserverConsumer constructs a consumer-side observer engine.
func NewObserverConsumer(localPeer string, evaluator Evaluator, correlator *Correlator, source *ObserverSource,
	whisper func(string, [][]byte) error, join, leave func(string) error) *ObserverConsumer {
	return &ObserverConsumer{
		localPeer:    localPeer,
		evaluator:    evaluator,
		correlator:   correlator,
		source:       source,
		whisper:      whisper,
		join:         join,
		leave:        leave,
		observedMap:  make(map[string]string),
		observedData: make(map[string]Observation),
		groupOrigin:  make(map[string]struct{ expr, peer string }),
	}
}

// Observe implements spec.md §4.I's observe(target, expr, sink?).
func (c *ObserverConsumer) Observe(target, expr, sink string) error {
	if target == c.localPeer {
		group, value := c.source.HandleObserve(expr)
		c.seed(expr, target, group, sink)
		return c.HandleUpdate(target, group, value)
	}

	tag := c.correlator.Register(func(args []string) bool {
		// The Actor prepends `from` ahead of the response frames
		// (spec.md §6): args is [from, observer_group, initial_value].
		if len(args) < 3 {
			return true
		}
		group, initial := args[1], args[2]
		c.seed(expr, target, group, sink)
		if err := c.join(group); err != nil {
			return true
		}
		_ = c.HandleUpdate(target, group, initial)
		return true
	})

	return c.whisper(target, [][]byte{[]byte("Observe"), []byte(tag), []byte(expr)})
}

func (c *ObserverConsumer) seed(expr, peer, group, sink string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observedMap[observedKey(expr, peer)] = group
	c.observedData[group] = Observation{Sink: sink, Value: "NULL", ReceivedAt: 0}
	c.groupOrigin[group] = struct{ expr, peer string }{expr, peer}
}

// HandleUpdate implements the inbound Update command (spec.md §4.E):
// locate the cached Observation at group, write value into its sink (if
// any), and update value/received_at. A vanished sink triggers a silent
// forget (spec.md §7 "MissingSink").
func (c *ObserverConsumer) HandleUpdate(from, group, value string) error {
	c.mu.Lock()
	obs, ok := c.observedData[group]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	if obs.Sink != "" && !c.evaluator.SinkExists(obs.Sink) {
		c.forgetByGroup(group)
		return ErrMissingSink
	}
	if obs.Sink != "" {
		_ = c.evaluator.Assign(obs.Sink, value)
	}

	obs.Value = value
	obs.ReceivedAt = nowMillis()
	c.mu.Lock()
	c.observedData[group] = obs
	c.mu.Unlock()
	return nil
}

// Read returns the cached Observation for (target, expr).
func (c *ObserverConsumer) Read(target, expr string) (Observation, bool) {
	c.mu.Lock()
	group, ok := c.observedMap[observedKey(expr, target)]
	if !ok {
		c.mu.Unlock()
		return Observation{}, false
	}
	obs := c.observedData[group]
	c.mu.Unlock()
	return obs, true
}

// Forget implements spec.md §4.I's forget(target, expr): erase the
// observed_map entry, drop the cached Observation, and leave(group) if no
// other (expr', target') still maps to it.
func (c *ObserverConsumer) Forget(target, expr string) {
	c.mu.Lock()
	key := observedKey(expr, target)
	group, ok := c.observedMap[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.observedMap, key)
	delete(c.groupOrigin, group)
	stillUsed := false
	for _, g := range c.observedMap {
		if g == group {
			stillUsed = true
			break
		}
	}
	if !stillUsed {
		delete(c.observedData, group)
	}
	c.mu.Unlock()

	if !stillUsed {
		_ = c.leave(group)
	}
}

func (c *ObserverConsumer) forgetByGroup(group string) {
	c.mu.Lock()
	origin, ok := c.groupOrigin[group]
	c.mu.Unlock()
	if !ok {
		return
	}
	c.Forget(origin.peer, origin.expr)
}

// ForgetAll drops every observation originated from target (spec.md
// §4.I).
func (c *ObserverConsumer) ForgetAll(target string) {
	c.mu.Lock()
	var toForget []struct{ expr, peer string }
	for _, o := range c.groupOrigin {
		if o.peer == target {
			toForget = append(toForget, o)
		}
	}
	c.mu.Unlock()
	for _, o := range toForget {
		c.Forget(o.peer, o.expr)
	}
}

// GroupsFrom returns every observed-group name currently sourced from
// peer, for the evasive-refresh policy (spec.md §4.D, §4.J): when peer
// is reported Evasive and evasive_refresh is on, Node.onEvasive whispers
// a Reupdate to peer for each of these groups.
func (c *ObserverConsumer) GroupsFrom(peer string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var groups []string
	for group, origin := range c.groupOrigin {
		if origin.peer == peer {
			groups = append(groups, group)
		}
	}
	return groups
}

// ForgetIf drops every observation whose sink no longer exists (spec.md
// §4.I forget_if), intended to be invoked on each host tick.
func (c *ObserverConsumer) ForgetIf(sinkGone func(sink string) bool) {
	c.mu.Lock()
	var toForget []struct{ expr, peer string }
	for group, origin := range c.groupOrigin {
		obs := c.observedData[group]
		if obs.Sink != "" && sinkGone(obs.Sink) {
			toForget = append(toForget, origin)
		}
	}
	c.mu.Unlock()
	for _, o := range toForget {
		c.Forget(o.peer, o.expr)
	}
}
