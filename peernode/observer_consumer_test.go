package peernode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsumer(t *testing.T, localPeer string, ev *fakeEvaluator) (*ObserverConsumer, *Correlator, *ObserverSource) {
	t.Helper()
	correlator := NewCorrelator()
	source := NewObserverSource(localPeer, ev, func(string, [][]byte) error { return nil })
	var joined, left []string
	consumer := NewObserverConsumer(localPeer, ev, correlator, source,
		func(string, [][]byte) error { return nil },
		func(g string) error { joined = append(joined, g); return nil },
		func(g string) error { left = append(left, g); return nil },
	)
	return consumer, correlator, source
}

func TestObserverConsumerSelfTargetSeedsImmediately(t *testing.T) {
	ev := newFakeEvaluator()
	ev.setValue("Me.HP", "100")
	ev.declareSink("hp_sink")
	consumer, _, _ := newTestConsumer(t, "tunare_a", ev)

	require.NoError(t, consumer.Observe("tunare_a", "Me.HP", "hp_sink"))
	obs, ok := consumer.Read("tunare_a", "Me.HP")
	require.True(t, ok)
	assert.Equal(t, "100", obs.Value)
	assert.Equal(t, "100", ev.sinkValue("hp_sink"))
}

func TestObserverConsumerRemoteTargetJoinsOnReply(t *testing.T) {
	ev := newFakeEvaluator()
	ev.declareSink("hp_sink")
	correlator := NewCorrelator()
	source := NewObserverSource("tunare_b", ev, func(string, [][]byte) error { return nil })
	var joinedGroups []string
	var sentTag string
	consumer := NewObserverConsumer("tunare_a", ev, correlator, source,
		func(target string, frames [][]byte) error { sentTag = string(frames[1]); return nil },
		func(g string) error { joinedGroups = append(joinedGroups, g); return nil },
		func(g string) error { return nil },
	)

	require.NoError(t, consumer.Observe("tunare_b", "Me.HP", "hp_sink"))
	obs, ok := consumer.Read("tunare_b", "Me.HP")
	require.False(t, ok, "no observation recorded until the reply arrives")
	_ = obs

	correlator.Dispatch(sentTag, []string{"tunare_b", "tunare_b_3", "120"})
	assert.Equal(t, []string{"tunare_b_3"}, joinedGroups)
	obs, ok = consumer.Read("tunare_b", "Me.HP")
	require.True(t, ok)
	assert.Equal(t, "120", obs.Value)
	assert.Equal(t, "120", ev.sinkValue("hp_sink"))
}

func TestObserverConsumerHandleUpdateForgetsOnMissingSink(t *testing.T) {
	ev := newFakeEvaluator()
	ev.declareSink("hp_sink")
	correlator := NewCorrelator()
	source := NewObserverSource("tunare_a", ev, func(string, [][]byte) error { return nil })
	var left []string
	consumer := NewObserverConsumer("tunare_a", ev, correlator, source,
		func(string, [][]byte) error { return nil },
		func(string) error { return nil },
		func(g string) error { left = append(left, g); return nil },
	)

	require.NoError(t, consumer.Observe("tunare_a", "Me.HP", "hp_sink")) // self-target to seed directly
	ev.removeSink("hp_sink")

	err := consumer.HandleUpdate("tunare_a", "tunare_a_0", "200")
	assert.ErrorIs(t, err, ErrMissingSink)
	_, ok := consumer.Read("tunare_a", "Me.HP")
	assert.False(t, ok, "observation must be forgotten once its sink vanishes")
}

func TestObserverConsumerForgetLeavesGroupWhenLastReference(t *testing.T) {
	ev := newFakeEvaluator()
	source := NewObserverSource("tunare_a", ev, func(string, [][]byte) error { return nil })
	var left []string
	consumer := NewObserverConsumer("tunare_a", ev, NewCorrelator(), source,
		func(string, [][]byte) error { return nil },
		func(string) error { return nil },
		func(g string) error { left = append(left, g); return nil },
	)
	require.NoError(t, consumer.Observe("tunare_a", "Me.HP", ""))

	consumer.Forget("tunare_a", "Me.HP")
	_, ok := consumer.Read("tunare_a", "Me.HP")
	assert.False(t, ok)
	assert.Equal(t, []string{"tunare_a_0"}, left)
}

func TestObserverConsumerForgetAll(t *testing.T) {
	ev := newFakeEvaluator()
	consumer, _, _ := newTestConsumer(t, "tunare_a", ev)
	require.NoError(t, consumer.Observe("tunare_a", "Me.HP", ""))
	require.NoError(t, consumer.Observe("tunare_a", "Me.Mana", ""))

	consumer.ForgetAll("tunare_a")
	_, ok1 := consumer.Read("tunare_a", "Me.HP")
	_, ok2 := consumer.Read("tunare_a", "Me.Mana")
	assert.False(t, ok1)
	assert.False(t, ok2)
}

func TestObserverConsumerForgetIfSinkGone(t *testing.T) {
	ev := newFakeEvaluator()
	ev.declareSink("hp_sink")
	consumer, _, _ := newTestConsumer(t, "tunare_a", ev)
	require.NoError(t, consumer.Observe("tunare_a", "Me.HP", "hp_sink"))

	consumer.ForgetIf(func(sink string) bool { return !ev.SinkExists(sink) })
	_, ok := consumer.Read("tunare_a", "Me.HP")
	require.True(t, ok, "sink still exists, nothing to forget")

	ev.removeSink("hp_sink")
	consumer.ForgetIf(func(sink string) bool { return !ev.SinkExists(sink) })
	_, ok = consumer.Read("tunare_a", "Me.HP")
	assert.False(t, ok)
}
