package peernode

import (
	"strconv"
	"strings"
	"sync"
)

// sourceEntry is an ObserverSource record (spec.md §3): the expression
// this peer has agreed to publish, an EWMA of its evaluation cost, and
// the last tick it was evaluated.
type sourceEntry struct {
	Expression string
	Benchmark  uint64
	LastTick   uint64
}

// ObserverSource implements spec.md §4.H: tracks expressions this peer
// has agreed to publish, periodically re-evaluates them, and shouts
// updates to per-observation groups. Grounded on
// original_source/MQ2DanNet/Node.cpp's register_observer/publish EWMA
// loop and Commands.cpp's Observe::callback.
type ObserverSource struct {
	localPeer string
	evaluator Evaluator
	shout     func(group string, frames [][]byte) error

	observeDelayMS uint64

	mu         sync.Mutex
	entries    map[uint32]*sourceEntry
	nextKey    uint32
	queryCache map[string]string // expression -> last emitted value
}

// NewObserverSource constructs a source-side observer engine.
func NewObserverSource(localPeer string, evaluator Evaluator, shout func(string, [][]byte) error) *ObserverSource {
	return &ObserverSource{
		localPeer:      localPeer,
		evaluator:      evaluator,
		shout:          shout,
		observeDelayMS: 1000,
		entries:        make(map[uint32]*sourceEntry),
		queryCache:     make(map[string]string),
	}
}

// SetObserveDelayMS sets the minimum interval floor used alongside
// 10*benchmark in the publish skip check (spec.md §4.H).
func (o *ObserverSource) SetObserveDelayMS(ms uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observeDelayMS = ms
}

// HandleObserve implements the inbound Observe command's source-side
// logic: reuse or allocate an entry for expr, and return the observer
// group name plus the current evaluation (spec.md §4.H steps 1-3).
func (o *ObserverSource) HandleObserve(expr string) (group string, currentValue string) {
	o.mu.Lock()
	var key uint32
	found := false
	for k, e := range o.entries {
		if e.Expression == expr {
			key, found = k, true
			break
		}
	}
	if !found {
		key = o.nextKey
		o.nextKey++
		o.entries[key] = &sourceEntry{Expression: expr}
	}
	o.mu.Unlock()

	value, err := o.evaluator.Evaluate(expr)
	if err != nil {
		value = "NULL"
	}
	return ObserverGroup(o.localPeer, key), value
}

// Reupdate clears the query_cache entry backing group so the next
// publish pass re-emits even if the value is unchanged (spec.md §4.E
// "Reupdate", §4.H "Back-pressure").
func (o *ObserverSource) Reupdate(group string) {
	key, ok := keyFromGroup(o.localPeer, group)
	if !ok {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.entries[key]
	if !ok {
		return
	}
	delete(o.queryCache, entry.Expression)
}

func keyFromGroup(localPeer, group string) (uint32, bool) {
	prefix := localPeer + "_"
	if !strings.HasPrefix(group, prefix) {
		return 0, false
	}
	n, err := strconv.ParseUint(group[len(prefix):], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// Publish re-evaluates every tracked expression whose minimum interval
// has elapsed and shouts an Update when the value changed since the last
// emitted value (spec.md §4.H "Periodic publish()"). now and the elapsed
// evaluation cost drive the EWMA benchmark update (α=0.5).
func (o *ObserverSource) Publish(now uint64) {
	o.mu.Lock()
	type job struct {
		key   uint32
		entry *sourceEntry
	}
	jobs := make([]job, 0, len(o.entries))
	for k, e := range o.entries {
		threshold := 10 * e.Benchmark
		if o.observeDelayMS > threshold {
			threshold = o.observeDelayMS
		}
		if e.LastTick != 0 && now-e.LastTick < threshold {
			continue
		}
		jobs = append(jobs, job{k, e})
	}
	o.mu.Unlock()

	for _, j := range jobs {
		before := nowMillis()
		value, err := o.evaluator.Evaluate(j.entry.Expression)
		if err != nil {
			value = "NULL"
		}
		elapsed := nowMillis() - before

		o.mu.Lock()
		if j.entry.Benchmark == 0 {
			j.entry.Benchmark = elapsed
		} else {
			j.entry.Benchmark = uint64(0.5*float64(j.entry.Benchmark) + 0.5*float64(elapsed))
		}
		j.entry.LastTick = now
		cached, hasCache := o.queryCache[j.entry.Expression]
		changed := !hasCache || cached != value
		if changed {
			o.queryCache[j.entry.Expression] = value
		}
		o.mu.Unlock()

		if changed {
			group := ObserverGroup(o.localPeer, j.key)
			_ = o.shout(group, [][]byte{[]byte("Update"), []byte(value)})
		}
	}
}

// EntryCount reports the number of tracked source entries, for tests.
func (o *ObserverSource) EntryCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}
