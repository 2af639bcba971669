package tubes

import (
	"fmt"
	"time"

	"github.com/example/triplehelix/pkg/models"
)

// SeedState builds a first-use progress state from a content manifest:
// each tube's stitches occupy positions 0..n in authoring order with
// the starting skip number and distractor level. Used whenever no
// stored state exists for a user; missing data means first use.
func SeedState(userID string, manifest models.Manifest) (models.UserProgressState, error) {
	state := models.UserProgressState{
		UserID:           userID,
		Tubes:            make(map[int]models.TubeState, 3),
		ActiveTubeNumber: 1,
		LastUpdated:      time.Now(),
	}

	for tubeNumber := 1; tubeNumber <= 3; tubeNumber++ {
		mt, ok := manifest.Tubes[tubeNumber]
		if !ok || len(mt.Stitches) == 0 {
			return models.UserProgressState{}, fmt.Errorf("manifest has no stitches for tube %d", tubeNumber)
		}
		tube := models.TubeState{
			ThreadID:  mt.ThreadID,
			Positions: make(map[int]models.PositionEntry, len(mt.Stitches)),
		}
		for i, ref := range mt.Stitches {
			tube.Positions[i] = models.PositionEntry{
				StitchID:        ref.ID,
				SkipNumber:      models.SkipLadder[0],
				DistractorLevel: models.DistractorL1,
				Order:           ref.Order,
			}
		}
		tube.CurrentStitchID = tube.Positions[0].StitchID
		state.Tubes[tubeNumber] = tube
	}

	return state, nil
}
