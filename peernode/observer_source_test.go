package peernode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverSourceHandleObserveReusesEntry(t *testing.T) {
	ev := newFakeEvaluator()
	ev.setValue("Me.HP", "100")
	src := NewObserverSource("tunare_b", ev, func(string, [][]byte) error { return nil })

	group1, value1 := src.HandleObserve("Me.HP")
	group2, value2 := src.HandleObserve("Me.HP")
	assert.Equal(t, group1, group2)
	assert.Equal(t, "100", value1)
	assert.Equal(t, "100", value2)
	assert.Equal(t, 1, src.EntryCount())
	assert.Equal(t, "tunare_b_0", group1)
}

func TestObserverSourcePublishSuppressesUnchangedValue(t *testing.T) {
	ev := newFakeEvaluator()
	ev.setValue("Me.HP", "100")
	var shouts int
	var lastValue string
	src := NewObserverSource("tunare_b", ev, func(group string, frames [][]byte) error {
		shouts++
		lastValue = string(frames[1])
		return nil
	})
	src.SetObserveDelayMS(0)
	src.HandleObserve("Me.HP")

	src.Publish(1000)
	assert.Equal(t, 1, shouts)
	assert.Equal(t, "100", lastValue)

	src.Publish(2000)
	assert.Equal(t, 1, shouts, "unchanged value must not re-shout")
}

func TestObserverSourcePublishEmitsOnChange(t *testing.T) {
	ev := newFakeEvaluator()
	ev.setValue("Me.HP", "100")
	shouts := 0
	src := NewObserverSource("tunare_b", ev, func(string, [][]byte) error { shouts++; return nil })
	src.SetObserveDelayMS(0)
	src.HandleObserve("Me.HP")
	src.Publish(1000)
	require.Equal(t, 1, shouts)

	ev.setValue("Me.HP", "90")
	src.Publish(2000)
	assert.Equal(t, 2, shouts)
}

func TestObserverSourceReupdateForcesReemit(t *testing.T) {
	ev := newFakeEvaluator()
	ev.setValue("Me.HP", "100")
	shouts := 0
	src := NewObserverSource("tunare_b", ev, func(string, [][]byte) error { shouts++; return nil })
	src.SetObserveDelayMS(0)
	group, _ := src.HandleObserve("Me.HP")
	src.Publish(1000)
	require.Equal(t, 1, shouts)

	src.Publish(2000) // unchanged, suppressed
	require.Equal(t, 1, shouts)

	src.Reupdate(group)
	src.Publish(3000)
	assert.Equal(t, 2, shouts, "Reupdate must force a re-emit even though the value is unchanged")
}

func TestObserverSourcePublishSkipsBeforeMinimumInterval(t *testing.T) {
	ev := newFakeEvaluator()
	ev.setValue("Me.HP", "100")
	shouts := 0
	src := NewObserverSource("tunare_b", ev, func(string, [][]byte) error { shouts++; return nil })
	src.SetObserveDelayMS(5000)
	src.HandleObserve("Me.HP")

	src.Publish(1000)
	require.Equal(t, 1, shouts)

	ev.setValue("Me.HP", "90")
	src.Publish(2000) // only 1000ms elapsed, below the 5000ms floor
	assert.Equal(t, 1, shouts)
}
