package peernode

import "sync"

// CommandHandler processes a dispatched message's arguments (the wire
// frames after the tag) and returns done=true to self-remove (spec.md
// §4.E).
type CommandHandler func(args []string) (done bool)

// inboundMessage is one queued, already-tagged message awaiting dispatch.
type inboundMessage struct {
	tag         string
	args        []string
	coalesceKey string
}

// Dispatcher is the Command Registry & Dispatcher (spec.md §4.E): named
// handlers keyed by a short command tag, fed by an inbound queue drained
// one message at a time on the host tick via DoNext.
//
// Grounded on original_source/MQ2DanNet/Node.h's _command_map/
// _command_queue pair.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[string]CommandHandler
	queue    []inboundMessage
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]CommandHandler)}
}

// Register installs handler under tag, replacing any existing handler.
func (d *Dispatcher) Register(tag string, handler CommandHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[tag] = handler
}

// Unregister removes tag's handler, if any.
func (d *Dispatcher) Unregister(tag string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, tag)
}

// Enqueue appends a message to the inbound queue. If coalesce is
// non-empty, any existing queued message with the same coalesce key is
// first removed, implementing spec.md §5's "for a single (from, group)
// pair, Update messages are coalesced" rule — the newest value supersedes
// the older.
func (d *Dispatcher) Enqueue(tag string, args []string, coalesceKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if coalesceKey != "" {
		for i, m := range d.queue {
			if m.tag == tag && m.coalesceKey == coalesceKey {
				d.queue = append(d.queue[:i], d.queue[i+1:]...)
				break
			}
		}
	}
	d.queue = append(d.queue, inboundMessage{tag: tag, args: args, coalesceKey: coalesceKey})
}

// QueueLen reports the number of messages currently queued, for tests.
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// DoNext pops at most one message, looks up its tag, and invokes the
// handler (spec.md §4.E). If the handler reports done, its registration
// is removed. Unknown tags are dropped silently after the one attempt.
// Returns false if the queue was empty.
func (d *Dispatcher) DoNext() bool {
	d.mu.Lock()
	if len(d.queue) == 0 {
		d.mu.Unlock()
		return false
	}
	msg := d.queue[0]
	d.queue = d.queue[1:]
	handler, ok := d.handlers[msg.tag]
	d.mu.Unlock()

	if !ok {
		return true
	}
	if handler(msg.args) {
		d.mu.Lock()
		delete(d.handlers, msg.tag)
		d.mu.Unlock()
	}
	return true
}
