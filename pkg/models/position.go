package models

// SkipLadder is the fixed skip-number progression. A mastered stitch is
// pushed back by its current skip number and then climbs one rung,
// saturating at the top.
var SkipLadder = []int{1, 3, 5, 10, 25, 100}

// NextSkip returns the rung above skip on the ladder, saturating at the
// top. Values off the ladder snap to the first rung at or above them.
func NextSkip(skip int) int {
	for _, rung := range SkipLadder {
		if rung > skip {
			return rung
		}
	}
	return SkipLadder[len(SkipLadder)-1]
}

// DistractorLevel is the difficulty tier selecting which wrong-answer
// set is shown. Monotonic: it only ever moves up.
type DistractorLevel string

const (
	DistractorL1 DistractorLevel = "L1"
	DistractorL2 DistractorLevel = "L2"
	DistractorL3 DistractorLevel = "L3"
)

// Next returns the level one tier up, saturating at L3.
func (l DistractorLevel) Next() DistractorLevel {
	switch l {
	case DistractorL1:
		return DistractorL2
	case DistractorL2:
		return DistractorL3
	default:
		return DistractorL3
	}
}

// PositionEntry is a stitch's scheduling state within its tube: which
// stitch, how far back it goes on mastery, and which distractor tier
// it currently shows.
type PositionEntry struct {
	StitchID        string          `json:"stitch_id" db:"stitch_id"`
	SkipNumber      int             `json:"skip_number" db:"skip_number"`
	DistractorLevel DistractorLevel `json:"distractor_level" db:"distractor_level"`
	// Order is carried from the StitchRef so position ties can be
	// broken by authoring sequence without a content lookup.
	Order int `json:"order" db:"order_number"`
}
