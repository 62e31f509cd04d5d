package peernode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelatorRegisterAndDispatch(t *testing.T) {
	c := NewCorrelator()
	var got []string
	tag := c.Register(func(args []string) bool {
		got = args
		return true
	})
	assert.Equal(t, "response_0", tag)

	c.Dispatch(tag, []string{"3"})
	assert.Equal(t, []string{"3"}, got)
	assert.Equal(t, 0, c.Len())
}

func TestCorrelatorNotDoneKeepsRegistration(t *testing.T) {
	c := NewCorrelator()
	calls := 0
	tag := c.Register(func(args []string) bool {
		calls++
		return calls >= 2
	})
	c.Dispatch(tag, nil)
	assert.Equal(t, 1, c.Len())
	c.Dispatch(tag, nil)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 2, calls)
}

func TestCorrelatorUnknownTagIgnored(t *testing.T) {
	c := NewCorrelator()
	assert.NotPanics(t, func() {
		c.Dispatch("response_999", nil)
	})
}

func TestCorrelatorTagsUniqueWhileLive(t *testing.T) {
	c := NewCorrelator()
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		tag := c.Register(func(args []string) bool { return false })
		assert.False(t, seen[tag])
		seen[tag] = true
	}
	assert.Equal(t, 5, c.Len())
}

func TestCorrelatorUnregister(t *testing.T) {
	c := NewCorrelator()
	tag := c.Register(func(args []string) bool { return false })
	c.Unregister(tag)
	assert.Equal(t, 0, c.Len())
}
