package peernode

import (
	"strconv"
	"sync"
)

// ResponseHandler processes a correlated reply. It returns done=true when
// the correlator should remove its tag (spec.md §4.F "one-shot").
type ResponseHandler func(args []string) (done bool)

// Correlator allocates short-lived response tags for request/reply
// correlation (spec.md §4.F). The Open Question on tag width (spec.md
// §9) is resolved here: the counter is a wrapping uint32 rather than the
// original 8-bit counter, per the spec's SHOULD.
//
// Grounded on original_source/MQ2DanNet/Node.cpp's register_response,
// which reuses a wrapping integer key and reclaims the slot once the
// handler signals completion.
type Correlator struct {
	mu       sync.Mutex
	next     uint32
	handled  map[string]ResponseHandler
	dispatch *Dispatcher // optional; see Bind
}

// NewCorrelator constructs an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{handled: make(map[string]ResponseHandler)}
}

// Bind wires the correlator to a Dispatcher. Once bound, Register also
// installs the handler into the Dispatcher under the same tag, so an
// inbound response is delivered through the ordinary command queue and
// drained by DoNext on the host's own goroutine — never invoked directly
// from the Actor goroutine, which must stay free to service the
// host-pipe round-trips (e.g. join/leave) such handlers often make.
func (c *Correlator) Bind(d *Dispatcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatch = d
}

// responseTag formats the wire tag for counter n (spec.md §6: "response_<n>").
func responseTag(n uint32) string {
	return "response_" + strconv.FormatUint(uint64(n), 10)
}

// Register records handler under a freshly allocated tag and returns it.
// Wrap-around is permitted: if the allocated counter value is already in
// use (a best-effort limitation acknowledged by spec.md §4.F), the new
// registration simply overwrites the old one.
func (c *Correlator) Register(handler ResponseHandler) string {
	c.mu.Lock()
	tag := responseTag(c.next)
	c.next++
	c.handled[tag] = handler
	d := c.dispatch
	c.mu.Unlock()

	if d != nil {
		d.Register(tag, func(args []string) bool {
			done := handler(args)
			if done {
				c.mu.Lock()
				delete(c.handled, tag)
				c.mu.Unlock()
			}
			return done
		})
	}
	return tag
}

// Dispatch looks up tag and invokes its handler with args, removing the
// tag's registration if the handler reports done. Unknown tags are
// silently ignored (spec.md §4.E "unknown tags are silently dropped").
func (c *Correlator) Dispatch(tag string, args []string) {
	c.mu.Lock()
	handler, ok := c.handled[tag]
	c.mu.Unlock()
	if !ok {
		return
	}
	if handler(args) {
		c.mu.Lock()
		delete(c.handled, tag)
		c.mu.Unlock()
	}
}

// Unregister removes tag's handler without invoking it, e.g. when a
// query times out and the caller no longer wants a late reply to fire.
func (c *Correlator) Unregister(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handled, tag)
}

// Len reports the number of live handlers, for tests asserting the
// "response tags are unique while live" invariant (spec.md §8).
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handled)
}
