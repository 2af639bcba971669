package database

import (
	"context"
	"fmt"

	"github.com/example/triplehelix/pkg/models"
)

// StitchProgressRepository handles database operations for stitch
// scheduling rows, keyed (user_id, thread_id, stitch_id).
type StitchProgressRepository struct{}

// NewStitchProgressRepository creates a new repository instance
func NewStitchProgressRepository() *StitchProgressRepository {
	return &StitchProgressRepository{}
}

// GetByKey returns the scheduling row for one stitch.
func (r *StitchProgressRepository) GetByKey(ctx context.Context, userID, threadID, stitchID string) (*models.ProgressUpdate, error) {
	var row models.ProgressUpdate
	err := DB.GetContext(ctx, &row, `
		SELECT user_id, thread_id, stitch_id, order_number, skip_number, distractor_level, updated_at
		FROM stitch_progress
		WHERE user_id = $1 AND thread_id = $2 AND stitch_id = $3
	`, userID, threadID, stitchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get stitch progress: %v", err)
	}
	return &row, nil
}

// GetByUser returns all scheduling rows owned by a user.
func (r *StitchProgressRepository) GetByUser(ctx context.Context, userID string) ([]models.ProgressUpdate, error) {
	var rows []models.ProgressUpdate
	err := DB.SelectContext(ctx, &rows, `
		SELECT user_id, thread_id, stitch_id, order_number, skip_number, distractor_level, updated_at
		FROM stitch_progress
		WHERE user_id = $1
		ORDER BY thread_id, order_number
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stitch progress: %v", err)
	}
	return rows, nil
}

// Upsert writes the full row, inserting or replacing on the composite
// key. Last write wins; applying the same update twice leaves the row
// identical to applying it once.
func (r *StitchProgressRepository) Upsert(ctx context.Context, update models.ProgressUpdate) error {
	_, err := DB.ExecContext(ctx, `
		INSERT INTO stitch_progress (user_id, thread_id, stitch_id, order_number, skip_number, distractor_level, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, thread_id, stitch_id) DO UPDATE SET
			order_number = EXCLUDED.order_number,
			skip_number = EXCLUDED.skip_number,
			distractor_level = EXCLUDED.distractor_level,
			updated_at = EXCLUDED.updated_at
	`, update.UserID, update.ThreadID, update.StitchID, update.OrderNumber, update.SkipNumber, update.DistractorLevel, update.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert stitch progress: %v", err)
	}
	return nil
}

// UpdateThenInsert is the fallback write path for stores where the
// upsert is unavailable: try an update of the minimal field subset,
// insert a fresh row if nothing matched.
func (r *StitchProgressRepository) UpdateThenInsert(ctx context.Context, update models.ProgressUpdate) error {
	result, err := DB.ExecContext(ctx, `
		UPDATE stitch_progress SET
			skip_number = $1,
			distractor_level = $2,
			updated_at = $3
		WHERE user_id = $4 AND thread_id = $5 AND stitch_id = $6
	`, update.SkipNumber, update.DistractorLevel, update.UpdatedAt, update.UserID, update.ThreadID, update.StitchID)
	if err != nil {
		return fmt.Errorf("failed to update stitch progress: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %v", err)
	}
	if rows > 0 {
		return nil
	}

	_, err = DB.ExecContext(ctx, `
		INSERT INTO stitch_progress (user_id, thread_id, stitch_id, order_number, skip_number, distractor_level, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, update.UserID, update.ThreadID, update.StitchID, update.OrderNumber, update.SkipNumber, update.DistractorLevel, update.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert stitch progress: %v", err)
	}
	return nil
}

// UpsertViaRoutine is the last-resort write path: a server-side routine
// on postgres, INSERT OR REPLACE on sqlite.
func (r *StitchProgressRepository) UpsertViaRoutine(ctx context.Context, update models.ProgressUpdate) error {
	var err error
	if IsPostgres() {
		_, err = DB.ExecContext(ctx, `SELECT upsert_stitch_progress($1, $2, $3, $4, $5, $6)`,
			update.UserID, update.ThreadID, update.StitchID, update.OrderNumber, update.SkipNumber, update.DistractorLevel)
	} else {
		_, err = DB.ExecContext(ctx, `
			INSERT OR REPLACE INTO stitch_progress (user_id, thread_id, stitch_id, order_number, skip_number, distractor_level, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, update.UserID, update.ThreadID, update.StitchID, update.OrderNumber, update.SkipNumber, update.DistractorLevel, update.UpdatedAt)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert stitch progress via routine: %v", err)
	}
	return nil
}

// DeleteForUser removes all scheduling rows owned by a user. Used only
// by explicit progress reset.
func (r *StitchProgressRepository) DeleteForUser(ctx context.Context, userID string) error {
	_, err := DB.ExecContext(ctx, "DELETE FROM stitch_progress WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete stitch progress: %v", err)
	}
	return nil
}
