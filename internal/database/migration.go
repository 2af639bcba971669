package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
)

// MigrateOwner re-keys everything an anonymous session accumulated onto
// an authenticated account: stitch scheduling rows, session results,
// the latest state snapshot, and the profile aggregates (recomputed
// from the re-keyed session rows, not added blindly).
//
// The whole operation runs in one transaction and is idempotent: a
// second run finds nothing left under the old key and changes nothing.
func MigrateOwner(ctx context.Context, fromUserID, toUserID string) error {
	if fromUserID == toUserID {
		return nil
	}

	tx, err := DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %v", err)
	}
	defer tx.Rollback()

	// Scheduling rows: move everything that doesn't collide with a row
	// the target already owns; colliding leftovers are dropped, the
	// target's own row is assumed fresher.
	moved, err := tx.ExecContext(ctx, `
		UPDATE stitch_progress SET user_id = $1
		WHERE user_id = $2
		  AND NOT EXISTS (
			SELECT 1 FROM stitch_progress p
			WHERE p.user_id = $1
			  AND p.thread_id = stitch_progress.thread_id
			  AND p.stitch_id = stitch_progress.stitch_id
		  )
	`, toUserID, fromUserID)
	if err != nil {
		return fmt.Errorf("failed to migrate stitch progress: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM stitch_progress WHERE user_id = $1", fromUserID); err != nil {
		return fmt.Errorf("failed to clear anonymous stitch progress: %v", err)
	}

	// Session results have no uniqueness constraint, a plain re-key is
	// enough.
	if _, err := tx.ExecContext(ctx, "UPDATE session_results SET user_id = $1 WHERE user_id = $2", toUserID, fromUserID); err != nil {
		return fmt.Errorf("failed to migrate session results: %v", err)
	}

	// The snapshot moves only when the target has none of its own; an
	// established account's state beats an anonymous one.
	var targetCount int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM state_snapshots WHERE user_id = $1", toUserID).Scan(&targetCount); err != nil {
		return fmt.Errorf("failed to check target snapshot: %v", err)
	}
	if targetCount == 0 {
		var raw string
		err := tx.QueryRowContext(ctx, "SELECT state FROM state_snapshots WHERE user_id = $1", fromUserID).Scan(&raw)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to load anonymous snapshot: %v", err)
		}
		if err == nil {
			rekeyed, rerr := rekeySnapshotJSON(raw, toUserID)
			if rerr != nil {
				return rerr
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO state_snapshots (user_id, state, updated_at)
				VALUES ($1, $2, CURRENT_TIMESTAMP)
			`, toUserID, rekeyed)
			if err != nil {
				return fmt.Errorf("failed to move snapshot: %v", err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM state_snapshots WHERE user_id = $1", fromUserID); err != nil {
		return fmt.Errorf("failed to clear anonymous snapshot: %v", err)
	}

	// Aggregates are recomputed from the rows the target now owns, so
	// running the migration twice cannot double-count.
	var points, sessions int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(points), 0), COUNT(*)
		FROM session_results WHERE user_id = $1
	`, toUserID).Scan(&points, &sessions)
	if err != nil {
		return fmt.Errorf("failed to recompute totals: %v", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, total_points, session_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			total_points = EXCLUDED.total_points,
			session_count = EXCLUDED.session_count,
			updated_at = CURRENT_TIMESTAMP
	`, toUserID, points, sessions)
	if err != nil {
		return fmt.Errorf("failed to update profile totals: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM profiles WHERE user_id = $1", fromUserID); err != nil {
		return fmt.Errorf("failed to clear anonymous profile: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %v", err)
	}

	if n, err := moved.RowsAffected(); err == nil {
		log.Printf("Migrated %s -> %s: %d progress rows, totals %d points / %d sessions", fromUserID, toUserID, n, points, sessions)
	}
	return nil
}
