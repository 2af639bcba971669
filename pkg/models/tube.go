package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// TubeState is one tube's ordered queue of stitches. The positions map
// is the canonical representation: position 0 is the stitch due now,
// lower positions are due sooner. Exactly one entry sits at position 0.
type TubeState struct {
	ThreadID        string                `json:"thread_id"`
	CurrentStitchID string                `json:"current_stitch_id"`
	Positions       map[int]PositionEntry `json:"positions"`
}

// tubeStateJSON is the wire shape: JSON object keys are strings, so the
// position map round-trips through a string-keyed map.
type tubeStateJSON struct {
	ThreadID        string                   `json:"thread_id"`
	CurrentStitchID string                   `json:"current_stitch_id"`
	Positions       map[string]PositionEntry `json:"positions"`
}

func (t TubeState) MarshalJSON() ([]byte, error) {
	out := tubeStateJSON{
		ThreadID:        t.ThreadID,
		CurrentStitchID: t.CurrentStitchID,
		Positions:       make(map[string]PositionEntry, len(t.Positions)),
	}
	for pos, entry := range t.Positions {
		out.Positions[strconv.Itoa(pos)] = entry
	}
	return json.Marshal(out)
}

func (t *TubeState) UnmarshalJSON(data []byte) error {
	var in tubeStateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t.ThreadID = in.ThreadID
	t.CurrentStitchID = in.CurrentStitchID
	t.Positions = make(map[int]PositionEntry, len(in.Positions))
	for key, entry := range in.Positions {
		pos, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("invalid position key %q: %v", key, err)
		}
		t.Positions[pos] = entry
	}
	return nil
}

// FlatPositionEntry is the legacy flat-list shape some collaborators
// still emit: a slice of entries with explicit position fields instead
// of a position-indexed map.
type FlatPositionEntry struct {
	Position        int             `json:"position"`
	StitchID        string          `json:"stitch_id"`
	SkipNumber      int             `json:"skip_number"`
	DistractorLevel DistractorLevel `json:"distractor_level"`
	Order           int             `json:"order"`
}

// TubeStateFromList converts the legacy flat-list shape into the
// canonical position-indexed map. Duplicate positions are rejected
// rather than silently last-write-wins.
func TubeStateFromList(threadID string, entries []FlatPositionEntry) (TubeState, error) {
	tube := TubeState{
		ThreadID:  threadID,
		Positions: make(map[int]PositionEntry, len(entries)),
	}
	for _, e := range entries {
		if e.Position < 0 {
			return TubeState{}, fmt.Errorf("negative position %d for stitch %s", e.Position, e.StitchID)
		}
		if _, ok := tube.Positions[e.Position]; ok {
			return TubeState{}, fmt.Errorf("duplicate position %d in thread %s", e.Position, threadID)
		}
		tube.Positions[e.Position] = PositionEntry{
			StitchID:        e.StitchID,
			SkipNumber:      e.SkipNumber,
			DistractorLevel: e.DistractorLevel,
			Order:           e.Order,
		}
		if e.Position == 0 {
			tube.CurrentStitchID = e.StitchID
		}
	}
	return tube, nil
}
