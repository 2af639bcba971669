package content

import (
	"fmt"

	"github.com/example/triplehelix/pkg/models"
)

// Bundled first-stitch content: enough for a brand-new or anonymous
// user to start playing with zero network round trips. Only the first
// few stitches of each tube ship here; everything past them comes from
// the content API.

const bundledPerTube = 3

func bundledThread(tube int) string {
	return fmt.Sprintf("thread-T%03d", tube)
}

func bundledStitchID(tube, order int) string {
	return fmt.Sprintf("stitch-T%03d-%03d", tube, order+1)
}

// bundledManifest is the fallback manifest used when the content API is
// unreachable on first load.
func bundledManifest() models.Manifest {
	manifest := models.Manifest{Tubes: make(map[int]models.ManifestTube, 3)}
	for tube := 1; tube <= 3; tube++ {
		mt := models.ManifestTube{ThreadID: bundledThread(tube)}
		for order := 0; order < bundledPerTube; order++ {
			mt.Stitches = append(mt.Stitches, models.StitchRef{
				ID:       bundledStitchID(tube, order),
				ThreadID: mt.ThreadID,
				Order:    order,
				Title:    fmt.Sprintf("Getting started %d", order+1),
			})
		}
		manifest.Tubes[tube] = mt
	}
	return manifest
}

// bundledStitches returns the default content set keyed by stitch id.
func bundledStitches() map[string]models.StitchContent {
	out := make(map[string]models.StitchContent)
	for tube := 1; tube <= 3; tube++ {
		for order := 0; order < bundledPerTube; order++ {
			id := bundledStitchID(tube, order)
			stitch := models.StitchContent{
				ID:       id,
				ThreadID: bundledThread(tube),
				Title:    fmt.Sprintf("Getting started %d", order+1),
				Content:  "First steps.",
				Order:    order,
			}
			base := tube*10 + order
			for q := 1; q <= 3; q++ {
				answer := base + q
				stitch.Questions = append(stitch.Questions, models.Question{
					ID:            fmt.Sprintf("%s-q%d", id, q),
					Text:          fmt.Sprintf("%d + %d = ?", base, q),
					CorrectAnswer: fmt.Sprintf("%d", answer),
					Distractors: models.DistractorSet{
						L1: fmt.Sprintf("%d", answer+10),
						L2: fmt.Sprintf("%d", answer+2),
						L3: fmt.Sprintf("%d", answer-1),
					},
				})
			}
			out[id] = stitch
		}
	}
	return out
}
