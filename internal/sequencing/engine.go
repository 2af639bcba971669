package sequencing

import (
	"errors"
	"fmt"

	"github.com/example/triplehelix/pkg/models"
)

// ErrNoCurrentStitch indicates a tube with no entry at position 0.
// This is a contract violation in the caller-supplied state, not a
// transient condition; callers must not retry it.
var ErrNoCurrentStitch = errors.New("tube has no stitch at position 0")

// Engine computes tube transitions for completed stitches. Pure: the
// same (tube, outcome) pair always produces the same result, and the
// input tube is never mutated.
type Engine struct{}

// New creates a new sequencing engine
func New() *Engine {
	return &Engine{}
}

// Advance applies a completion outcome to a tube and returns the next
// tube state.
//
// Perfect mastery (all questions correct): the entry at the lowest
// positive position becomes the new current stitch, then the mastered
// stitch is reinserted at position = its pre-advance skip number, its
// skip number climbing one rung on the ladder and its distractor level
// one tier. No other entries move, except the single bump a landing
// collision forces.
//
// Anything less than perfect leaves the tube exactly as it was: the
// same stitch stays current and is repeated until mastered. A zero
// TotalCount means there were no questions to answer, which also
// leaves the tube unchanged.
func (e *Engine) Advance(tube models.TubeState, outcome models.Outcome) (models.TubeState, error) {
	current, ok := tube.Positions[0]
	if !ok {
		return models.TubeState{}, fmt.Errorf("thread %s: %w", tube.ThreadID, ErrNoCurrentStitch)
	}

	if outcome.TotalCount == 0 || !outcome.Perfect() {
		return cloneTube(tube), nil
	}

	next := cloneTube(tube)
	delete(next.Positions, 0)

	mastered := models.PositionEntry{
		StitchID:        current.StitchID,
		SkipNumber:      models.NextSkip(current.SkipNumber),
		DistractorLevel: current.DistractorLevel.Next(),
		Order:           current.Order,
	}

	if len(next.Positions) == 0 {
		// Single-stitch tube: the mastered entry cycles straight back
		// to the front.
		next.Positions[0] = mastered
		next.CurrentStitchID = mastered.StitchID
		return next, nil
	}

	// Promotion happens before reinsertion: if the mastered stitch
	// landed first it could shadow the entry that is actually due next
	// and end up promoted right back to the front.
	promoteLowest(&next)

	// The mastered stitch lands at the position named by its skip
	// number before the advance. If another entry already sits there,
	// the lower authoring order keeps the slot and the other entry is
	// bumped to the next free position. Position 0 is never contested,
	// even by an off-ladder skip of 0.
	landing := current.SkipNumber
	if landing < 1 {
		landing = 1
	}
	place(next.Positions, landing, mastered)

	return next, nil
}

// place inserts entry at pos, resolving collisions by authoring order:
// the lower Order stays at pos, the higher one moves up until a free
// slot is found.
func place(positions map[int]models.PositionEntry, pos int, entry models.PositionEntry) {
	for {
		occupant, occupied := positions[pos]
		if !occupied {
			positions[pos] = entry
			return
		}
		if entry.Order < occupant.Order {
			positions[pos] = entry
			entry = occupant
		}
		pos++
	}
}

// promoteLowest moves the entry at the lowest position down to
// position 0 and updates the tube's current stitch pointer. The caller
// guarantees a non-empty map with only positive positions.
func promoteLowest(tube *models.TubeState) {
	lowest := 0
	for pos := range tube.Positions {
		if lowest == 0 || pos < lowest {
			lowest = pos
		}
	}
	entry := tube.Positions[lowest]
	delete(tube.Positions, lowest)
	tube.Positions[0] = entry
	tube.CurrentStitchID = entry.StitchID
}

func cloneTube(tube models.TubeState) models.TubeState {
	out := models.TubeState{
		ThreadID:        tube.ThreadID,
		CurrentStitchID: tube.CurrentStitchID,
		Positions:       make(map[int]models.PositionEntry, len(tube.Positions)),
	}
	for pos, entry := range tube.Positions {
		out.Positions[pos] = entry
	}
	return out
}
