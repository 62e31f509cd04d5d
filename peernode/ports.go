// Package peernode implements the peer-to-peer auto-discovery messaging
// fabric's core: identity, membership, the actor that owns the transport
// handle, command dispatch, response correlation, queries, and observers.
//
// The host integration — command parsing, the variable store, and the
// expression evaluator — lives outside this package. The core talks to
// it only through the Evaluator and ChatSink ports below.
package peernode

// Evaluator turns a textual expression into a stringified value on behalf
// of the host, and writes values back into the host's variable store.
// Implementations are supplied by the embedding application; peernode
// never constructs one itself.
type Evaluator interface {
	// Evaluate runs expr and returns its stringified result. An error
	// here is an EvaluatorFailure (see SPEC_FULL.md "Error handling"); the
	// caller substitutes "NULL" and continues.
	Evaluate(expr string) (string, error)

	// Assign writes value into the named sink variable. Returns
	// ErrMissingSink-compatible behavior is the caller's responsibility:
	// Assign itself just reports whether the sink still exists.
	Assign(sink, value string) error

	// SinkExists reports whether a previously named sink variable is
	// still present in the host's variable store. Used by
	// ObserverConsumer.HandleUpdate and, through Housekeeping, by
	// ObserverConsumer.ForgetIf to auto-clean observations whose sink has
	// disappeared (spec.md §4.I forget_if).
	SinkExists(sink string) bool
}

// ChatSink is the host's console/chat output. The core never formats
// directly to stdout; every user-visible line goes through here.
type ChatSink interface {
	Echo(line string)
}

// GroupContext supplies the host-side signals Housekeeping needs to decide
// which contextual groups (class/role/zone/group/raid/"all") this peer
// should be joined to. It stands in for the MQ2 character-state accessors
// that spec.md §1 places out of core scope.
type GroupContext interface {
	// ClassCode returns the local peer's three-letter class code, or ""
	// if unknown (no role groups are auto-joined in that case).
	ClassCode() string
	// GroupLeader, RaidLeader return the canonical peer name of the
	// current group/raid leader, or "" if the peer isn't in one.
	GroupLeader() string
	RaidLeader() string
	// ZoneShortName returns the current zone's short identifier, or "".
	ZoneShortName() string
}
