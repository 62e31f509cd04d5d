package peernode

import "context"

// EventKind enumerates the transport event variants of spec.md §4.C.
type EventKind int

const (
	EventEnter EventKind = iota
	EventExit
	EventJoin
	EventLeave
	EventWhisper
	EventShout
	EventEvasive
	EventSilent
)

func (k EventKind) String() string {
	switch k {
	case EventEnter:
		return "ENTER"
	case EventExit:
		return "EXIT"
	case EventJoin:
		return "JOIN"
	case EventLeave:
		return "LEAVE"
	case EventWhisper:
		return "WHISPER"
	case EventShout:
		return "SHOUT"
	case EventEvasive:
		return "EVASIVE"
	case EventSilent:
		return "SILENT"
	default:
		return "UNKNOWN"
	}
}

// Event is the transport's report of a membership change or an inbound
// message (spec.md §4.C). Only the fields relevant to Kind are populated.
type Event struct {
	Kind    EventKind
	Peer    string // canonical PeerName
	UUID    string // TransportUuid, set on Enter
	Group   string // set on Join/Leave/Shout
	Payload [][]byte
}

// GossipTransport is the abstract transport port the core depends on
// (spec.md §4.C). The reference implementation is
// transport/libp2pgossip; tests use transport/transporttest's in-memory
// fake. Every method except Start/NextEvent is called only from the
// Actor goroutine (spec.md §5).
type GossipTransport interface {
	// Start begins membership beaconing under localPeer's identity.
	// iface, if non-empty, restricts advertisement to that network
	// interface.
	Start(ctx context.Context, localPeer string, iface string) error

	Join(group string) error
	Leave(group string) error

	// Shout broadcasts frames to every current member of group.
	Shout(group string, frames [][]byte) error
	// Whisper sends frames directly to the peer identified by uuid.
	Whisper(uuid string, frames [][]byte) error

	// NextEvent blocks until an event is available or ctx is canceled.
	// Returns a zero Event and a non-nil error (typically
	// context.Canceled) when the transport is stopping.
	NextEvent(ctx context.Context) (Event, error)

	SetEvasiveTimeoutMS(ms uint32)
	SetExpiredTimeoutMS(ms uint32)

	PeersByGroup(group string) []string
	OwnGroups() []string
	// PeerHeader returns a named header value for uuid, e.g. "name".
	PeerHeader(uuid, header string) (string, bool)

	// Stop departs every own group and releases transport resources.
	// Stop must be safe to call from the Actor goroutine during its own
	// shutdown sequence (spec.md §4.D).
	Stop() error
}
