package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTubeStateJSONRoundTrip(t *testing.T) {
	tube := TubeState{
		ThreadID:        "thread-A",
		CurrentStitchID: "st-1",
		Positions: map[int]PositionEntry{
			0: {StitchID: "st-1", SkipNumber: 1, DistractorLevel: DistractorL1, Order: 0},
			3: {StitchID: "st-2", SkipNumber: 3, DistractorLevel: DistractorL2, Order: 1},
		},
	}

	data, err := json.Marshal(tube)
	require.NoError(t, err)

	// Positions serialize as a string-keyed object.
	var raw struct {
		Positions map[string]PositionEntry `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw.Positions, "0")
	assert.Contains(t, raw.Positions, "3")

	var decoded TubeState
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tube, decoded)
}

func TestTubeStateUnmarshalRejectsBadPositionKey(t *testing.T) {
	var tube TubeState
	err := json.Unmarshal([]byte(`{"thread_id":"t","positions":{"abc":{}}}`), &tube)
	assert.Error(t, err)
}

func TestTubeStateFromList(t *testing.T) {
	tube, err := TubeStateFromList("thread-A", []FlatPositionEntry{
		{Position: 3, StitchID: "st-2", SkipNumber: 3, DistractorLevel: DistractorL2, Order: 1},
		{Position: 0, StitchID: "st-1", SkipNumber: 1, DistractorLevel: DistractorL1, Order: 0},
	})
	require.NoError(t, err)

	assert.Equal(t, "st-1", tube.CurrentStitchID)
	assert.Len(t, tube.Positions, 2)
	assert.Equal(t, "st-2", tube.Positions[3].StitchID)
}

func TestTubeStateFromListRejectsDuplicatePositions(t *testing.T) {
	_, err := TubeStateFromList("thread-A", []FlatPositionEntry{
		{Position: 2, StitchID: "st-1"},
		{Position: 2, StitchID: "st-2"},
	})
	assert.Error(t, err)
}

func TestTubeStateFromListRejectsNegativePositions(t *testing.T) {
	_, err := TubeStateFromList("thread-A", []FlatPositionEntry{
		{Position: -1, StitchID: "st-1"},
	})
	assert.Error(t, err)
}

func TestPointsFor(t *testing.T) {
	assert.Equal(t, 6, PointsFor(Outcome{CorrectCount: 2, TotalCount: 3}))
	assert.Equal(t, 12, PointsFor(Outcome{CorrectCount: 2, TotalCount: 2}), "doubled on perfect")
	assert.Equal(t, 0, PointsFor(Outcome{CorrectCount: 0, TotalCount: 0}), "empty outcome is not perfect")
}

func TestOutcomePerfect(t *testing.T) {
	assert.True(t, Outcome{CorrectCount: 3, TotalCount: 3}.Perfect())
	assert.False(t, Outcome{CorrectCount: 2, TotalCount: 3}.Perfect())
	assert.False(t, Outcome{}.Perfect())
}
