package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/triplehelix/pkg/models"
)

// ProfileRepository handles the per-user aggregate totals table
type ProfileRepository struct{}

// NewProfileRepository creates a new repository instance
func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{}
}

// GetOrCreate returns a user's profile, creating an empty one on first
// use. A missing profile is not an error.
func (r *ProfileRepository) GetOrCreate(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := DB.GetContext(ctx, &profile, `
		SELECT user_id, total_points, session_count, created_at, updated_at
		FROM profiles WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = DB.ExecContext(ctx, `
			INSERT INTO profiles (user_id, total_points, session_count) VALUES ($1, 0, 0)
		`, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to create profile: %v", err)
		}
		err = DB.GetContext(ctx, &profile, `
			SELECT user_id, total_points, session_count, created_at, updated_at
			FROM profiles WHERE user_id = $1
		`, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %v", err)
	}
	return &profile, nil
}

// AddSession folds one completed session into the running totals.
func (r *ProfileRepository) AddSession(ctx context.Context, userID string, points int) error {
	if _, err := r.GetOrCreate(ctx, userID); err != nil {
		return err
	}
	_, err := DB.ExecContext(ctx, `
		UPDATE profiles SET
			total_points = total_points + $1,
			session_count = session_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = $2
	`, points, userID)
	if err != nil {
		return fmt.Errorf("failed to update profile totals: %v", err)
	}
	return nil
}

// Delete removes a user's profile row
func (r *ProfileRepository) Delete(ctx context.Context, userID string) error {
	_, err := DB.ExecContext(ctx, "DELETE FROM profiles WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %v", err)
	}
	return nil
}
