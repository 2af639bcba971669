package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/triplehelix/pkg/models"
)

// SessionResultRepository handles the append-only session results table
type SessionResultRepository struct{}

// NewSessionResultRepository creates a new repository instance
func NewSessionResultRepository() *SessionResultRepository {
	return &SessionResultRepository{}
}

// Create appends a session result row
func (r *SessionResultRepository) Create(ctx context.Context, result *models.SessionResult) error {
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now()
	}

	if IsPostgres() {
		err := DB.QueryRowContext(ctx, `
			INSERT INTO session_results (user_id, thread_id, stitch_id, correct_count, total_count, points, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, result.UserID, result.ThreadID, result.StitchID, result.CorrectCount, result.TotalCount, result.Points, result.CompletedAt).Scan(&result.ID)
		if err != nil {
			return fmt.Errorf("failed to create session result: %v", err)
		}
		return nil
	}

	res, err := DB.ExecContext(ctx, `
		INSERT INTO session_results (user_id, thread_id, stitch_id, correct_count, total_count, points, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, result.UserID, result.ThreadID, result.StitchID, result.CorrectCount, result.TotalCount, result.Points, result.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create session result: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %v", err)
	}
	result.ID = id
	return nil
}

// GetByUser returns a user's session results, most recent first
func (r *SessionResultRepository) GetByUser(ctx context.Context, userID string) ([]models.SessionResult, error) {
	var results []models.SessionResult
	err := DB.SelectContext(ctx, &results, `
		SELECT id, user_id, thread_id, stitch_id, correct_count, total_count, points, completed_at
		FROM session_results
		WHERE user_id = $1
		ORDER BY completed_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session results: %v", err)
	}
	return results, nil
}

// Totals sums points and counts sessions for a user.
func (r *SessionResultRepository) Totals(ctx context.Context, userID string) (points int, sessions int, err error) {
	row := DB.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(points), 0), COUNT(*)
		FROM session_results
		WHERE user_id = $1
	`, userID)
	if err := row.Scan(&points, &sessions); err != nil {
		return 0, 0, fmt.Errorf("failed to sum session results: %v", err)
	}
	return points, sessions, nil
}
