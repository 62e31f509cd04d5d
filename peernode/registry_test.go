package peernode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryEnterExit(t *testing.T) {
	r := NewRegistry("tunare_me")
	r.OnEnter("tunare_other", "uuid-1")
	assert.True(t, r.IsConnected("tunare_other"))
	assert.ElementsMatch(t, []string{"tunare_me", "tunare_other"}, r.GetPeers())

	r.OnExit("tunare_other")
	assert.False(t, r.IsConnected("tunare_other"))
	assert.ElementsMatch(t, []string{"tunare_me"}, r.GetPeers())
}

func TestRegistryLocalPeerNeverConnected(t *testing.T) {
	r := NewRegistry("tunare_me")
	r.OnEnter("tunare_me", "should-be-ignored")
	assert.False(t, r.IsConnected("tunare_me"))
}

func TestRegistryGroupsEmptySetRemoved(t *testing.T) {
	r := NewRegistry("tunare_me")
	r.OnJoin("tunare_other", "all")
	assert.ElementsMatch(t, []string{"tunare_other"}, r.GetGroupPeers("all"))

	r.OnLeave("tunare_other", "all")
	assert.Empty(t, r.GetGroupPeers("all"))
	assert.NotContains(t, r.GetAllGroups(), "all")
}

func TestRegistryExitRemovesFromAllGroups(t *testing.T) {
	r := NewRegistry("tunare_me")
	r.OnEnter("tunare_other", "uuid-1")
	r.OnJoin("tunare_other", "all")
	r.OnJoin("tunare_other", "raid_leader")

	r.OnExit("tunare_other")
	assert.Empty(t, r.GetGroupPeers("all"))
	assert.Empty(t, r.GetGroupPeers("raid_leader"))
}

func TestRegistryOwnGroupsAugmentGroupPeers(t *testing.T) {
	r := NewRegistry("tunare_me")
	r.JoinOwn("all")
	assert.ElementsMatch(t, []string{"tunare_me"}, r.GetGroupPeers("all"))
	assert.Contains(t, r.GetAllGroups(), "all")

	r.LeaveOwn("all")
	assert.Empty(t, r.GetGroupPeers("all"))
}

func TestRegistryReset(t *testing.T) {
	r := NewRegistry("tunare_me")
	r.OnEnter("tunare_other", "uuid-1")
	r.JoinOwn("all")
	r.Reset()
	assert.Empty(t, r.GetAllGroups())
	assert.ElementsMatch(t, []string{"tunare_me"}, r.GetPeers())
}
