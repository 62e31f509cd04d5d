package peernode

import (
	"strconv"
	"sync"
	"time"
)

// Observation is the consumer-side cached value for a query or observer
// (spec.md §3). Value is "NULL" and ReceivedAt is 0 until the first
// update arrives.
type Observation struct {
	Sink       string
	Value      string
	ReceivedAt uint64
}

// nowMillis is the core's only clock read; kept as a var so tests can
// override it deterministically.
var nowMillis = func() uint64 { return uint64(time.Now().UnixMilli()) }

func queryKey(peer, expr string) string { return peer + "\x00" + expr }

// QueryResult stores the outcome of every Query the node has issued,
// keyed by (peer, expression), plus a "most recent" slot for legacy
// single-value consumers (spec.md §3, §4.G).
type QueryResult struct {
	mu         sync.RWMutex
	results    map[string]Observation
	mostRecent Observation
}

// NewQueryResult constructs an empty result table.
func NewQueryResult() *QueryResult {
	return &QueryResult{results: make(map[string]Observation)}
}

func (q *QueryResult) set(peer, expr string, obs Observation) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.results[queryKey(peer, expr)] = obs
	q.mostRecent = obs
}

// Read returns the cached Observation for (peer, expr).
func (q *QueryResult) Read(peer, expr string) (Observation, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	obs, ok := q.results[queryKey(peer, expr)]
	return obs, ok
}

// MostRecent returns the last Observation recorded by any query, for
// legacy single-value consumers.
func (q *QueryResult) MostRecent() Observation {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.mostRecent
}

// QueryEngine implements spec.md §4.G: send an expression, wait for the
// peer's evaluation, store the typed result keyed by (peer, expression).
// Grounded on original_source/MQ2DanNet/Node.cpp's query/query_result and
// Commands.cpp's Query::pack response-handler-registers-another-handler
// pattern.
type QueryEngine struct {
	localPeer  string
	evaluator  Evaluator
	correlator *Correlator
	results    *QueryResult

	// whisper sends a Query request to target; supplied by Node so the
	// engine never touches the transport/actor directly.
	whisper func(target string, frames [][]byte) error
}

// NewQueryEngine constructs a query engine.
func NewQueryEngine(localPeer string, evaluator Evaluator, correlator *Correlator, results *QueryResult, whisper func(string, [][]byte) error) *QueryEngine {
	return &QueryEngine{
		localPeer:  localPeer,
		evaluator:  evaluator,
		correlator: correlator,
		results:    results,
		whisper:    whisper,
	}
}

// Query implements spec.md §4.G's four steps. For a remote target it
// returns immediately after sending the request; the caller polls
// Results().Read(target, expr) (or the blocking Wait helper below) for
// ReceivedAt > 0.
func (q *QueryEngine) Query(target, expr, sink string) error {
	if target == q.localPeer {
		value, err := q.evaluator.Evaluate(expr)
		if err != nil {
			value = "NULL"
		}
		if sink != "" {
			_ = q.evaluator.Assign(sink, value)
		}
		q.results.set(target, expr, Observation{Sink: sink, Value: value, ReceivedAt: nowMillis()})
		return nil
	}

	q.results.set(target, expr, Observation{Sink: sink, Value: "NULL", ReceivedAt: 0})

	tag := q.correlator.Register(func(args []string) bool {
		// The Actor prepends `from` ahead of the response frames
		// (spec.md §6): args is [from, value].
		if len(args) < 2 {
			return true
		}
		value := args[1]
		if sink != "" {
			_ = q.evaluator.Assign(sink, value)
		}
		q.results.set(target, expr, Observation{Sink: sink, Value: value, ReceivedAt: nowMillis()})
		return true
	})

	return q.whisper(target, [][]byte{[]byte("Query"), []byte(tag), []byte(expr)})
}

// Results exposes the query result table for read access.
func (q *QueryEngine) Results() *QueryResult { return q.results }

// Wait blocks until ReceivedAt > 0 for (target, expr) or timeout elapses,
// implementing spec.md §4.G step 4's predicate. The core itself never
// sleeps inside Query; this helper is the host-level delay facility
// spec.md describes, offered as a convenience for hosts that want it.
func (q *QueryEngine) Wait(target, expr string, timeout time.Duration) (Observation, error) {
	deadline := time.Now().Add(timeout)
	for {
		obs, _ := q.results.Read(target, expr)
		if obs.ReceivedAt > 0 {
			return obs, nil
		}
		if time.Now().After(deadline) {
			return obs, ErrQueryTimeout
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// respondToQuery implements the Query command's reply path (spec.md §4.E
// "Query (request)"): evaluate expr via Evaluator, whisper the
// stringified result back under responseTag.
func respondToQuery(evaluator Evaluator, whisper func(string, [][]byte) error, from, responseTag, expr string) error {
	value, err := evaluator.Evaluate(expr)
	if err != nil {
		value = "NULL"
	}
	return whisper(from, [][]byte{[]byte(responseTag), []byte(value)})
}

// parseUint64 is a tiny helper shared by command handlers that need to
// parse numeric fields out of wire arguments without importing strconv
// everywhere.
func parseUint64(s string) uint64 {
	n, _ := strconv.ParseUint(s, 10, 64)
	return n
}
