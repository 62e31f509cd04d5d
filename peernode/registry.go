package peernode

import "sync"

// Registry is the membership table (spec.md §4.B). It is pure data: the
// only writer is the Actor, in response to transport events; every other
// caller reads through the snapshot accessors below, which return copies
// so callers never observe a mid-update state. Grounded on
// pkg/p2pnet/peermanager.go's GetManagedPeers snapshot-under-lock
// discipline — no nested lock acquisition, value types are copied out
// before the lock is released.
type Registry struct {
	localPeer string

	mu             sync.RWMutex
	connectedPeers map[string]string   // PeerName -> TransportUuid
	peerGroups     map[string]map[string]struct{} // GroupName -> {PeerName}
	ownGroups      map[string]struct{}
}

// NewRegistry constructs an empty registry for localPeer. localPeer is
// never present in connectedPeers; it is implicitly a member of every
// group in ownGroups.
func NewRegistry(localPeer string) *Registry {
	return &Registry{
		localPeer:      localPeer,
		connectedPeers: make(map[string]string),
		peerGroups:     make(map[string]map[string]struct{}),
		ownGroups:      make(map[string]struct{}),
	}
}

// Reset clears all tables, as happens on exit/re-entry (spec.md §3
// "Lifecycle").
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectedPeers = make(map[string]string)
	r.peerGroups = make(map[string]map[string]struct{})
	r.ownGroups = make(map[string]struct{})
}

// OnEnter records a newly connected peer. Actor-only.
func (r *Registry) OnEnter(peerName, uuid string) {
	if peerName == r.localPeer {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectedPeers[peerName] = uuid
}

// OnExit removes a peer from connectedPeers and from every group roster.
// Actor-only.
func (r *Registry) OnExit(peerName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connectedPeers, peerName)
	for g, members := range r.peerGroups {
		if _, ok := members[peerName]; ok {
			delete(members, peerName)
			if len(members) == 0 {
				delete(r.peerGroups, g)
			}
		}
	}
}

// OnJoin records that peerName joined group. Actor-only.
func (r *Registry) OnJoin(peerName, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.peerGroups[group]
	if !ok {
		members = make(map[string]struct{})
		r.peerGroups[group] = members
	}
	members[peerName] = struct{}{}
}

// OnLeave records that peerName left group; an emptied group is removed
// entirely (spec.md §3 invariant). Actor-only.
func (r *Registry) OnLeave(peerName, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.peerGroups[group]
	if !ok {
		return
	}
	delete(members, peerName)
	if len(members) == 0 {
		delete(r.peerGroups, group)
	}
}

// JoinOwn records that the local peer joined group.
func (r *Registry) JoinOwn(group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ownGroups[group] = struct{}{}
}

// LeaveOwn records that the local peer left group.
func (r *Registry) LeaveOwn(group string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ownGroups, group)
}

// IsConnected reports whether peerName is currently a connected peer.
func (r *Registry) IsConnected(peerName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connectedPeers[peerName]
	return ok
}

// UUID returns the TransportUuid for a connected peer.
func (r *Registry) UUID(peerName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	uuid, ok := r.connectedPeers[peerName]
	return uuid, ok
}

// GetPeers returns connected_peers ∪ {local_peer} (spec.md §4.B).
func (r *Registry) GetPeers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.connectedPeers)+1)
	out = append(out, r.localPeer)
	for p := range r.connectedPeers {
		out = append(out, p)
	}
	return out
}

// GetAllGroups returns own_groups ∪ keys(peer_groups) (spec.md §4.B).
func (r *Registry) GetAllGroups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.ownGroups)+len(r.peerGroups))
	for g := range r.ownGroups {
		seen[g] = struct{}{}
	}
	for g := range r.peerGroups {
		seen[g] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for g := range seen {
		out = append(out, g)
	}
	return out
}

// GetGroupPeers returns peer_groups[g] augmented with local_peer iff g is
// in own_groups (spec.md §4.B).
func (r *Registry) GetGroupPeers(g string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.peerGroups[g]
	out := make([]string, 0, len(members)+1)
	for p := range members {
		out = append(out, p)
	}
	if _, ok := r.ownGroups[g]; ok {
		out = append(out, r.localPeer)
	}
	return out
}

// OwnGroups returns a copy of the set of groups this peer has joined.
func (r *Registry) OwnGroups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ownGroups))
	for g := range r.ownGroups {
		out = append(out, g)
	}
	return out
}

// IsOwnGroup reports whether the local peer has joined g.
func (r *Registry) IsOwnGroup(g string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ownGroups[g]
	return ok
}
