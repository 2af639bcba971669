package persistence

import (
	"context"
	"log"

	"github.com/example/triplehelix/pkg/models"
)

// SnapshotReader loads the durably stored progress snapshot.
// Satisfied by *database.StateSnapshotRepository.
type SnapshotReader interface {
	Get(ctx context.Context, userID string) (models.UserProgressState, bool, error)
}

// SnapshotMirror is the local side of snapshot recovery. Satisfied by
// *localstore.Store.
type SnapshotMirror interface {
	GetSnapshot(userID string) (models.UserProgressState, bool, error)
}

// LoadState recovers a user's progress state, trying the local mirror
// first for instant reload and the database snapshot after. The third
// fallback, seeding from a manifest, belongs to the caller: a missing
// state here is first use, not an error, so found=false with a nil
// error means "synthesize a fresh one".
func LoadState(ctx context.Context, local SnapshotMirror, remote SnapshotReader, userID string) (models.UserProgressState, bool) {
	if local != nil {
		state, found, err := local.GetSnapshot(userID)
		if err != nil {
			log.Printf("Failed to read local snapshot for %s: %v", userID, err)
		} else if found && valid(state) {
			return state, true
		}
	}

	if remote != nil {
		state, found, err := remote.Get(ctx, userID)
		if err != nil {
			log.Printf("Failed to read stored snapshot for %s: %v", userID, err)
		} else if found && valid(state) {
			return state, true
		}
	}

	return models.UserProgressState{}, false
}

// valid rejects snapshots that would put the cycler into a corrupt
// state: every tube present and each with a position-0 entry.
func valid(state models.UserProgressState) bool {
	if state.ActiveTubeNumber < 1 || state.ActiveTubeNumber > 3 {
		return false
	}
	if len(state.Tubes) != 3 {
		return false
	}
	for _, tube := range state.Tubes {
		if _, ok := tube.Positions[0]; !ok {
			return false
		}
	}
	return true
}
