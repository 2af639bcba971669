package models

import "time"

// UserProgressState is the full per-user sequencing state: the three
// tubes plus the active-tube pointer. Owned by a single session at a
// time; there is no concurrent-writer protocol.
type UserProgressState struct {
	UserID           string            `json:"user_id"`
	Tubes            map[int]TubeState `json:"tubes"`
	ActiveTubeNumber int               `json:"active_tube_number"`
	LastUpdated      time.Time         `json:"last_updated"`
}

// Outcome is the result of answering one stitch's questions.
type Outcome struct {
	CorrectCount int `json:"correct_count"`
	TotalCount   int `json:"total_count"`
}

// Perfect reports whether every question was answered correctly.
func (o Outcome) Perfect() bool {
	return o.TotalCount > 0 && o.CorrectCount == o.TotalCount
}

// ProgressUpdate is the unit of durable persistence: one stitch's
// scheduling row, keyed (UserID, ThreadID, StitchID). Each update
// carries the full row so out-of-order retries converge under
// last-write-wins upserts.
type ProgressUpdate struct {
	UserID          string          `json:"user_id" db:"user_id"`
	ThreadID        string          `json:"thread_id" db:"thread_id"`
	StitchID        string          `json:"stitch_id" db:"stitch_id"`
	OrderNumber     int             `json:"order_number" db:"order_number"`
	SkipNumber      int             `json:"skip_number" db:"skip_number"`
	DistractorLevel DistractorLevel `json:"distractor_level" db:"distractor_level"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// Key returns the composite persistence key for the update.
func (u ProgressUpdate) Key() string {
	return u.UserID + "/" + u.ThreadID + "/" + u.StitchID
}

// SessionResult is one append-only row per completed stitch session.
type SessionResult struct {
	ID           int64     `json:"id" db:"id"`
	UserID       string    `json:"user_id" db:"user_id"`
	ThreadID     string    `json:"thread_id" db:"thread_id"`
	StitchID     string    `json:"stitch_id" db:"stitch_id"`
	CorrectCount int       `json:"correct_count" db:"correct_count"`
	TotalCount   int       `json:"total_count" db:"total_count"`
	Points       int       `json:"points" db:"points"`
	CompletedAt  time.Time `json:"completed_at" db:"completed_at"`
}

// PointsFor computes the points awarded for an outcome: 3 per correct
// answer, doubled on perfect mastery.
func PointsFor(outcome Outcome) int {
	points := outcome.CorrectCount * 3
	if outcome.Perfect() {
		points *= 2
	}
	return points
}

// Profile holds a user's running aggregate totals.
type Profile struct {
	UserID       string    `json:"user_id" db:"user_id"`
	TotalPoints  int       `json:"total_points" db:"total_points"`
	SessionCount int       `json:"session_count" db:"session_count"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
