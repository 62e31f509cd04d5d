package peernode

import "errors"

// Sentinel errors for the host-integration boundary (spec.md §7). The
// steady-state Actor/Dispatcher loop never returns these past that
// boundary; it logs and self-heals per spec.md §7's error kinds.
// Grounded on pkg/p2pnet/errors.go's sentinel pattern.
var (
	// ErrNotEntered names the "not entered" state of a node. No Node
	// operation returns it: operations other than Enter are not guarded
	// against being called before Enter.
	ErrNotEntered = errors.New("peernode: node has not entered the fabric")

	// ErrUnknownPeer is returned when an operation targets a name not in
	// connected_peers (spec.md §7 "UnknownPeer").
	ErrUnknownPeer = errors.New("peernode: unknown peer")

	// ErrTransportClosed is returned when the actor's host-pipe or
	// transport has already shut down.
	ErrTransportClosed = errors.New("peernode: transport closed")

	// ErrQueryTimeout is returned by the blocking convenience wrapper
	// around Query when query_timeout elapses without a reply.
	ErrQueryTimeout = errors.New("peernode: query timed out")

	// ErrMissingSink marks an Update whose sink variable has disappeared
	// (spec.md §7 "MissingSink"); callers observe it only via logs, it
	// never escapes to a command handler's caller.
	ErrMissingSink = errors.New("peernode: sink variable no longer exists")
)
