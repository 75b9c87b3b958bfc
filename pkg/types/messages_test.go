package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(t *testing.T, v any) map[string]json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestWireFieldNames(t *testing.T) {
	state := keys(t, MatchStateChanged{Transition: "startRound", From: "ROUND_IDLE", To: "ROUND_STARTED"})
	assert.Contains(t, state, "matchSnapshot")
	assert.NotContains(t, state, "match")

	slots := keys(t, SlotsUpdated{SlotCount: 2, CJStates: []CornerJudgeState{{ID: "cj"}}})
	assert.Contains(t, slots, "cjStates")
	assert.NotContains(t, slots, "cornerJudges")

	authorised := true
	restore := keys(t, RestoreSession{
		RingIndex:     1,
		Authorised:    &authorised,
		CJStates:      []CornerJudgeState{{ID: "cj"}},
		MatchSnapshot: &MatchSnapshot{ID: "m1"},
	})
	for _, k := range []string{"ringStates", "ringIndex", "authorised", "cjStates", "matchSnapshot"} {
		assert.Contains(t, restore, k)
	}
	assert.NotContains(t, restore, "match")
}

func TestRestoreSessionOmitsAbsentMatch(t *testing.T) {
	restore := keys(t, RestoreSession{RingIndex: -1})
	assert.NotContains(t, restore, "matchSnapshot")
	assert.NotContains(t, restore, "authorised")
}
