package peernode_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpeer/peernode/peernode"
	"github.com/danpeer/peernode/transport/transporttest"
)

type recordingSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSink) Echo(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
}

func (s *recordingSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

type scriptedEvaluator struct {
	mu     sync.Mutex
	values map[string]string
	sinks  map[string]string
}

func newScriptedEvaluator() *scriptedEvaluator {
	return &scriptedEvaluator{values: make(map[string]string), sinks: make(map[string]string)}
}

func (e *scriptedEvaluator) Evaluate(expr string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.values[expr]; ok {
		return v, nil
	}
	return "NULL", nil
}

func (e *scriptedEvaluator) Assign(sink, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sinks[sink]; !ok {
		return peernode.ErrMissingSink
	}
	e.sinks[sink] = value
	return nil
}

func (e *scriptedEvaluator) SinkExists(sink string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sinks[sink]
	return ok
}

func (e *scriptedEvaluator) declareSink(sink string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks[sink] = ""
}

func (e *scriptedEvaluator) sinkValue(sink string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sinks[sink]
}

func (e *scriptedEvaluator) setValue(expr, value string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.values[expr] = value
}

func newTestNode(t *testing.T, bus *transporttest.Bus, localPeer string, ev peernode.Evaluator, sink peernode.ChatSink) *peernode.Node {
	t.Helper()
	tr := transporttest.New(bus, localPeer)
	n := peernode.New(peernode.Config{
		LocalServer: "tunare",
		LocalPeer:   localPeer,
		Transport:   tr,
		Evaluator:   ev,
		ChatSink:    sink,
	})
	require.NoError(t, n.Enter(context.Background()))
	t.Cleanup(func() { _ = n.Exit() })
	return n
}

// TestNodeGroupJoinAndShoutWithLocalEcho exercises spec.md §8 scenario 2:
// both peers join "all", A shouts a chat line, B receives it, and A's
// own ChatSink sees the local echo.
func TestNodeGroupJoinAndShoutWithLocalEcho(t *testing.T) {
	bus := transporttest.NewBus()
	sinkA, sinkB := &recordingSink{}, &recordingSink{}
	a := newTestNode(t, bus, "tunare_a", newScriptedEvaluator(), sinkA)
	b := newTestNode(t, bus, "tunare_b", newScriptedEvaluator(), sinkB)
	a.SetFlags(func(c *peernode.Config) { c.LocalEcho = true })

	require.NoError(t, a.Join("all"))
	require.NoError(t, b.Join("all"))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, a.GTell("all", "hello"))

	assert.Eventually(t, func() bool { return b.DoNext() }, time.Second, time.Millisecond)
	assert.Contains(t, sinkB.snapshot(), "[tunare_a --> (all)] hello")
	assert.Contains(t, sinkA.snapshot(), "[tunare_a --> (all)] hello")
}

// TestNodeObserveLifecycle exercises spec.md §8 scenario 4: A observes
// B's Me.HP, receives the initial publish, sees subsequent changes, and
// stops receiving updates after Forget.
func TestNodeObserveLifecycle(t *testing.T) {
	bus := transporttest.NewBus()
	evA, evB := newScriptedEvaluator(), newScriptedEvaluator()
	evB.setValue("Me.HP", "100")
	evA.declareSink("hp_b")
	a := newTestNode(t, bus, "tunare_a", evA, &recordingSink{})
	b := newTestNode(t, bus, "tunare_b", evB, &recordingSink{})
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, a.Observe("tunare_b", "Me.HP", "hp_b"))
	assert.Eventually(t, func() bool {
		b.DoNext()
		a.DoNext()
		obs, ok := a.ReadObserve("tunare_b", "Me.HP")
		return ok && obs.ReceivedAt > 0
	}, time.Second, 2*time.Millisecond)

	obs, ok := a.ReadObserve("tunare_b", "Me.HP")
	require.True(t, ok)
	assert.Equal(t, "100", obs.Value)
	assert.Equal(t, "100", evA.sinkValue("hp_b"))

	evB.setValue("Me.HP", "80")
	b.Publish()
	assert.Eventually(t, func() bool { return a.DoNext() }, time.Second, time.Millisecond)
	obs, _ = a.ReadObserve("tunare_b", "Me.HP")
	assert.Equal(t, "80", obs.Value)

	a.Forget("tunare_b", "Me.HP")
	_, ok = a.ReadObserve("tunare_b", "Me.HP")
	assert.False(t, ok)
}

// TestNodeQueryRemote exercises spec.md §8 scenario 3's request/reply
// shape through the full Node stack.
func TestNodeQueryRemote(t *testing.T) {
	bus := transporttest.NewBus()
	evA, evB := newScriptedEvaluator(), newScriptedEvaluator()
	evB.setValue("1+2", "3")
	a := newTestNode(t, bus, "tunare_a", evA, &recordingSink{})
	b := newTestNode(t, bus, "tunare_b", evB, &recordingSink{})
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, a.Query("tunare_b", "1+2", ""))
	assert.Eventually(t, func() bool {
		b.DoNext()
		a.DoNext()
		obs, ok := a.ReadQuery("tunare_b", "1+2")
		return ok && obs.ReceivedAt > 0
	}, time.Second, 2*time.Millisecond)

	obs, _ := a.ReadQuery("tunare_b", "1+2")
	assert.Equal(t, "3", obs.Value)
}
