package models

// StitchRef identifies an authored stitch within a thread. Immutable
// once authored; Order is the authoring sequence number and never
// changes after import.
type StitchRef struct {
	ID       string `json:"id" db:"id"`
	ThreadID string `json:"thread_id" db:"thread_id"`
	Order    int    `json:"order" db:"order_number"`
	Title    string `json:"title" db:"title"`
}

// DistractorSet holds the wrong-answer options for each difficulty tier
type DistractorSet struct {
	L1 string `json:"L1"`
	L2 string `json:"L2"`
	L3 string `json:"L3"`
}

// Question is a single question inside a stitch
type Question struct {
	ID            string        `json:"id" db:"id"`
	Text          string        `json:"text" db:"text"`
	CorrectAnswer string        `json:"correct_answer" db:"correct_answer"`
	Distractors   DistractorSet `json:"distractors"`
}

// Distractor returns the wrong-answer option for the given level.
func (q Question) Distractor(level DistractorLevel) string {
	switch level {
	case DistractorL2:
		return q.Distractors.L2
	case DistractorL3:
		return q.Distractors.L3
	default:
		return q.Distractors.L1
	}
}

// StitchContent is the resolved presentation payload for a stitch.
// Read-only and globally cacheable; not part of progress state.
type StitchContent struct {
	ID        string     `json:"id" db:"id"`
	ThreadID  string     `json:"thread_id" db:"thread_id"`
	Title     string     `json:"title" db:"title"`
	Content   string     `json:"content" db:"content"`
	Order     int        `json:"order" db:"order_number"`
	Questions []Question `json:"questions"`
}

// Manifest lists the authored stitch order per tube. Tube numbers are
// always 1..3.
type Manifest struct {
	Tubes map[int]ManifestTube `json:"tubes"`
}

// ManifestTube is one tube's entry in the manifest.
type ManifestTube struct {
	ThreadID string      `json:"thread_id"`
	Stitches []StitchRef `json:"stitches"`
}
