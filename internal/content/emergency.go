package content

import (
	"fmt"

	"github.com/example/triplehelix/pkg/models"
)

// emergencyStitch builds placeholder content for a stitch id when every
// other resolution path has failed: fixed simple arithmetic questions
// so the player always has something to answer. Deterministic, no
// network, no clock.
func emergencyStitch(id string) models.StitchContent {
	content := models.StitchContent{
		ID:       id,
		ThreadID: "emergency",
		Title:    "Quick practice",
		Content:  "A few warm-up sums while we fetch your next lesson.",
	}

	sums := []struct {
		a, b int
	}{
		{2, 3}, {4, 5}, {6, 7}, {8, 9}, {12, 13},
	}
	for i, s := range sums {
		answer := s.a + s.b
		content.Questions = append(content.Questions, models.Question{
			ID:            fmt.Sprintf("%s-eq%d", id, i+1),
			Text:          fmt.Sprintf("%d + %d = ?", s.a, s.b),
			CorrectAnswer: fmt.Sprintf("%d", answer),
			Distractors: models.DistractorSet{
				L1: fmt.Sprintf("%d", answer+10),
				L2: fmt.Sprintf("%d", answer+2),
				L3: fmt.Sprintf("%d", answer+1),
			},
		})
	}
	return content
}
