package peernode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuerySelfTargetEvaluatesInline(t *testing.T) {
	ev := newFakeEvaluator()
	ev.setValue("1+2", "3")
	results := NewQueryResult()
	qe := NewQueryEngine("tunare_a", ev, NewCorrelator(), results, func(string, [][]byte) error {
		t.Fatal("self-query must not send transport traffic")
		return nil
	})

	require.NoError(t, qe.Query("tunare_a", "1+2", ""))
	obs, ok := results.Read("tunare_a", "1+2")
	require.True(t, ok)
	assert.Equal(t, "3", obs.Value)
	assert.Greater(t, obs.ReceivedAt, uint64(0))
}

func TestQueryRemoteTargetSendsAndCorrelates(t *testing.T) {
	ev := newFakeEvaluator()
	results := NewQueryResult()
	correlator := NewCorrelator()
	var sentTag, sentExpr string
	qe := NewQueryEngine("tunare_a", ev, correlator, results, func(target string, frames [][]byte) error {
		sentTag = string(frames[1])
		sentExpr = string(frames[2])
		return nil
	})

	require.NoError(t, qe.Query("tunare_b", "Me.HP", "hp_sink"))
	obs, ok := results.Read("tunare_b", "Me.HP")
	require.True(t, ok)
	assert.Equal(t, "NULL", obs.Value)
	assert.Equal(t, uint64(0), obs.ReceivedAt)
	assert.Equal(t, "Me.HP", sentExpr)

	correlator.Dispatch(sentTag, []string{"tunare_b", "100"})
	obs, ok = results.Read("tunare_b", "Me.HP")
	require.True(t, ok)
	assert.Equal(t, "100", obs.Value)
	assert.Greater(t, obs.ReceivedAt, uint64(0))
}

func TestQueryWaitTimesOut(t *testing.T) {
	ev := newFakeEvaluator()
	results := NewQueryResult()
	qe := NewQueryEngine("tunare_a", ev, NewCorrelator(), results, func(string, [][]byte) error { return nil })
	require.NoError(t, qe.Query("tunare_b", "Me.HP", ""))

	_, err := qe.Wait("tunare_b", "Me.HP", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrQueryTimeout)
}

func TestQueryEvaluatorFailureSubstitutesNull(t *testing.T) {
	ev := newFakeEvaluator()
	ev.failOn["1/0"] = true
	results := NewQueryResult()
	qe := NewQueryEngine("tunare_a", ev, NewCorrelator(), results, func(string, [][]byte) error { return nil })

	require.NoError(t, qe.Query("tunare_a", "1/0", ""))
	obs, _ := results.Read("tunare_a", "1/0")
	assert.Equal(t, "NULL", obs.Value)
	assert.Greater(t, obs.ReceivedAt, uint64(0))
}

func TestRespondToQuery(t *testing.T) {
	ev := newFakeEvaluator()
	ev.setValue("1+2", "3")
	var gotTag, gotValue string
	whisper := func(to string, frames [][]byte) error {
		gotTag = string(frames[0])
		gotValue = string(frames[1])
		return nil
	}
	require.NoError(t, respondToQuery(ev, whisper, "tunare_b", "response_4", "1+2"))
	assert.Equal(t, "response_4", gotTag)
	assert.Equal(t, "3", gotValue)
}
