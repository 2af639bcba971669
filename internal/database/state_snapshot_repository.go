package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/triplehelix/pkg/models"
)

// StateSnapshotRepository stores the latest full UserProgressState per
// user as a JSON document.
type StateSnapshotRepository struct{}

// NewStateSnapshotRepository creates a new repository instance
func NewStateSnapshotRepository() *StateSnapshotRepository {
	return &StateSnapshotRepository{}
}

// Upsert stores the latest snapshot for the state's user.
func (r *StateSnapshotRepository) Upsert(ctx context.Context, state models.UserProgressState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal progress state: %v", err)
	}
	_, err = DB.ExecContext(ctx, `
		INSERT INTO state_snapshots (user_id, state, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = CURRENT_TIMESTAMP
	`, state.UserID, string(data))
	if err != nil {
		return fmt.Errorf("failed to store state snapshot: %v", err)
	}
	return nil
}

// Get loads a user's latest snapshot. The second return value is false
// when none exists (first use).
func (r *StateSnapshotRepository) Get(ctx context.Context, userID string) (models.UserProgressState, bool, error) {
	var raw string
	err := DB.GetContext(ctx, &raw, "SELECT state FROM state_snapshots WHERE user_id = $1", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserProgressState{}, false, nil
	}
	if err != nil {
		return models.UserProgressState{}, false, fmt.Errorf("failed to get state snapshot: %v", err)
	}

	var state models.UserProgressState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return models.UserProgressState{}, false, fmt.Errorf("failed to unmarshal state snapshot: %v", err)
	}
	return state, true, nil
}

// Delete removes a user's snapshot
func (r *StateSnapshotRepository) Delete(ctx context.Context, userID string) error {
	_, err := DB.ExecContext(ctx, "DELETE FROM state_snapshots WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete state snapshot: %v", err)
	}
	return nil
}
