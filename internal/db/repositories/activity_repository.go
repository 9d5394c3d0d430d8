// activity_repository.go implements ActivityRepository, covering the
// folder-visit ledger and favorite folders that feed the insights ranking and
// favorites-mode filtering.
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ActivityRepository handles database operations for per-user folder activity
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// RecordFolderCheck appends one visit event to the ledger. Events are never
// updated; ranking queries count rows within a window.
func (r *ActivityRepository) RecordFolderCheck(ctx context.Context, userID, fullPath string) error {
	query := `INSERT INTO last_checked_folders (user_id, full_path) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, userID, fullPath); err != nil {
		return fmt.Errorf("failed to record folder check: %w", err)
	}
	return nil
}

// TopCheckedPathsSince returns a user's most-visited folder paths since the
// floor date, ordered by visit count descending, capped at limit.
func (r *ActivityRepository) TopCheckedPathsSince(ctx context.Context, userID string, since time.Time, limit int) ([]string, error) {
	query := `
		SELECT full_path
		FROM last_checked_folders
		WHERE user_id = $1 AND created_at >= $2
		GROUP BY full_path
		ORDER BY COUNT(*) DESC
		LIMIT $3
	`

	paths := make([]string, 0, limit)
	if err := r.db.SelectContext(ctx, &paths, query, userID, since, limit); err != nil {
		return nil, fmt.Errorf("failed to rank checked folders: %w", err)
	}
	return paths, nil
}

// AddFavorite pins a folder path for a user. A duplicate favorite surfaces as
// a unique violation; callers classify it with IsUniqueViolation.
func (r *ActivityRepository) AddFavorite(ctx context.Context, userID, fullPath string) error {
	query := `INSERT INTO favorite_folders (user_id, full_path) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, userID, fullPath); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite unpins a folder path and reports whether a row was removed.
func (r *ActivityRepository) RemoveFavorite(ctx context.Context, userID, fullPath string) (bool, error) {
	query := `DELETE FROM favorite_folders WHERE user_id = $1 AND full_path = $2`
	result, err := r.db.ExecContext(ctx, query, userID, fullPath)
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return affected > 0, nil
}

// ListFavoritePaths returns the folder paths a user has pinned, oldest first.
func (r *ActivityRepository) ListFavoritePaths(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT full_path
		FROM favorite_folders
		WHERE user_id = $1
		ORDER BY created_at
	`

	paths := make([]string, 0)
	if err := r.db.SelectContext(ctx, &paths, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return paths, nil
}
