package tubes

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/example/triplehelix/internal/sequencing"
	"github.com/example/triplehelix/pkg/models"
)

// ErrNoTubeState indicates the active tube number points at a tube the
// state does not contain. Like a missing position-0 entry this is
// corrupted state, not a transient condition.
var ErrNoTubeState = errors.New("active tube has no state")

// Persister receives position-map mutations for asynchronous durable
// write. Implementations must return quickly; the remote write itself
// happens off the completion path.
type Persister interface {
	Schedule(update models.ProgressUpdate)
	ScheduleUrgent(update models.ProgressUpdate)
	ScheduleSnapshot(state models.UserProgressState)
}

// Cycler owns one user's three tubes and the active-tube pointer. All
// completions are serialized: a completion fully updates in-memory
// state before the next one is accepted.
type Cycler struct {
	mu        sync.Mutex
	state     models.UserProgressState
	engine    *sequencing.Engine
	persister Persister
	now       func() time.Time
}

// New creates a cycler over an existing progress state. The persister
// may be nil, in which case completions update in-memory state only.
func New(state models.UserProgressState, persister Persister) *Cycler {
	if state.ActiveTubeNumber < 1 || state.ActiveTubeNumber > 3 {
		state.ActiveTubeNumber = 1
	}
	return &Cycler{
		state:     state,
		engine:    sequencing.New(),
		persister: persister,
		now:       time.Now,
	}
}

// State returns a deep copy of the current progress state.
func (c *Cycler) State() models.UserProgressState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.state)
}

// CurrentStitch returns the stitch due now: the position-0 entry of the
// active tube.
func (c *Cycler) CurrentStitch() (models.PositionEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tube, ok := c.state.Tubes[c.state.ActiveTubeNumber]
	if !ok {
		return models.PositionEntry{}, fmt.Errorf("tube %d: %w", c.state.ActiveTubeNumber, ErrNoTubeState)
	}
	entry, ok := tube.Positions[0]
	if !ok {
		return models.PositionEntry{}, fmt.Errorf("tube %d thread %s: %w",
			c.state.ActiveTubeNumber, tube.ThreadID, sequencing.ErrNoCurrentStitch)
	}
	return entry, nil
}

// ActiveTube returns the active tube number.
func (c *Cycler) ActiveTube() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ActiveTubeNumber
}

// CompleteStitch applies the outcome to the active tube, rotates the
// active pointer to the next tube, and returns the new state snapshot.
// Rotation is unconditional: a non-perfect score still moves the user
// to the next tube, and the unmastered stitch waits at position 0 for
// the tube's next turn.
//
// The returned snapshot reflects in-memory state only; the durable
// write is handed to the persister and never blocks this call.
func (c *Cycler) CompleteStitch(outcome models.Outcome) (models.UserProgressState, error) {
	return c.complete(outcome, false)
}

// CompleteStitchUrgent is the fire-and-forget variant for completions
// racing a session teardown: the durable write goes through the
// persister's urgent path, which mirrors locally before this returns.
func (c *Cycler) CompleteStitchUrgent(outcome models.Outcome) (models.UserProgressState, error) {
	return c.complete(outcome, true)
}

func (c *Cycler) complete(outcome models.Outcome, urgent bool) (models.UserProgressState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tubeNumber := c.state.ActiveTubeNumber
	tube, ok := c.state.Tubes[tubeNumber]
	if !ok {
		return models.UserProgressState{}, fmt.Errorf("tube %d: %w", tubeNumber, ErrNoTubeState)
	}

	mastered, hadCurrent := tube.Positions[0]
	next, err := c.engine.Advance(tube, outcome)
	if err != nil {
		return models.UserProgressState{}, err
	}

	c.state.Tubes[tubeNumber] = next
	c.state.ActiveTubeNumber = tubeNumber%3 + 1
	c.state.LastUpdated = c.now()

	result := snapshot(c.state)

	if c.persister != nil && hadCurrent {
		update := models.ProgressUpdate{
			UserID:      c.state.UserID,
			ThreadID:    next.ThreadID,
			StitchID:    mastered.StitchID,
			OrderNumber: mastered.Order,
			UpdatedAt:   c.state.LastUpdated,
		}
		// The write carries the entry's post-advance values so a
		// last-write-wins upsert always lands the freshest row.
		if current, ok := findStitch(next, mastered.StitchID); ok {
			update.SkipNumber = current.SkipNumber
			update.DistractorLevel = current.DistractorLevel
		} else {
			update.SkipNumber = mastered.SkipNumber
			update.DistractorLevel = mastered.DistractorLevel
		}
		if urgent {
			c.persister.ScheduleUrgent(update)
		} else {
			c.persister.Schedule(update)
		}
		c.persister.ScheduleSnapshot(result)
	}

	return result, nil
}

func findStitch(tube models.TubeState, stitchID string) (models.PositionEntry, bool) {
	for _, entry := range tube.Positions {
		if entry.StitchID == stitchID {
			return entry, true
		}
	}
	return models.PositionEntry{}, false
}

func snapshot(state models.UserProgressState) models.UserProgressState {
	return deepcopy.Copy(state).(models.UserProgressState)
}
