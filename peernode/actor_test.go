package peernode_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpeer/peernode/peernode"
	"github.com/danpeer/peernode/transport/transporttest"
)

func TestActorJoinUpdatesRegistryAndOwnGroups(t *testing.T) {
	bus := transporttest.NewBus()
	tr := transporttest.New(bus, "tunare_a")
	reg := peernode.NewRegistry("tunare_a")
	disp := peernode.NewDispatcher()
	actor := peernode.NewActor(tr, reg, disp, "tunare_a", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- actor.Run(ctx, "tunare_a", "") }()

	reply := make(chan peernode.ActorReply, 1)
	require.NoError(t, actor.Send(ctx, peernode.ActorCommand{Op: peernode.OpJoin, Group: "all", Reply: reply}))
	r := <-reply
	require.NoError(t, r.Err)

	assert.Eventually(t, func() bool { return reg.IsOwnGroup("all") }, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestActorEnqueuesWhisperPayload(t *testing.T) {
	bus := transporttest.NewBus()
	trA := transporttest.New(bus, "tunare_a")
	trB := transporttest.New(bus, "tunare_b")
	regA := peernode.NewRegistry("tunare_a")
	regB := peernode.NewRegistry("tunare_b")
	dispA := peernode.NewDispatcher()
	dispB := peernode.NewDispatcher()
	actorA := peernode.NewActor(trA, regA, dispA, "tunare_a", nil)
	actorB := peernode.NewActor(trB, regB, dispB, "tunare_b", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go actorA.Run(ctx, "tunare_a", "")
	go actorB.Run(ctx, "tunare_b", "")
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, actorA.Send(ctx, peernode.ActorCommand{
		Op:     peernode.OpWhisper,
		UUID:   "tunare_b",
		Frames: [][]byte{[]byte("Echo"), []byte(""), []byte("hi")},
	}))

	assert.Eventually(t, func() bool { return dispB.QueueLen() == 1 }, time.Second, time.Millisecond)
}

func TestActorCoalescesShoutedUpdates(t *testing.T) {
	bus := transporttest.NewBus()
	trA := transporttest.New(bus, "tunare_a")
	trB := transporttest.New(bus, "tunare_b")
	dispA := peernode.NewDispatcher()
	actorA := peernode.NewActor(trA, peernode.NewRegistry("tunare_a"), dispA, "tunare_a", nil)
	actorB := peernode.NewActor(trB, peernode.NewRegistry("tunare_b"), peernode.NewDispatcher(), "tunare_b", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go actorA.Run(ctx, "tunare_a", "")
	go actorB.Run(ctx, "tunare_b", "")
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, actorA.Send(ctx, peernode.ActorCommand{Op: peernode.OpJoin, Group: "tunare_b_1"}))
	require.NoError(t, trB.Join("tunare_b_1"))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, trB.Shout("tunare_b_1", [][]byte{[]byte("Update"), []byte("100")}))
	require.NoError(t, trB.Shout("tunare_b_1", [][]byte{[]byte("Update"), []byte("200")}))

	assert.Eventually(t, func() bool { return dispA.QueueLen() == 1 }, time.Second, time.Millisecond)

	var got string
	dispA.Register("Update", func(args []string) bool {
		got = args[len(args)-1]
		return false
	})
	dispA.DoNext()
	assert.Equal(t, "200", got)
}
