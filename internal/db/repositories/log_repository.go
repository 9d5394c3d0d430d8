// log_repository.go implements LogRepository, providing append, search,
// window-count, and retention-delete queries over the logs table.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/logfold/logfold/internal/db/models"
)

// LogRepository handles database operations for logs
type LogRepository struct {
	db *sql.DB
}

// NewLogRepository creates a new log repository
func NewLogRepository(db *sql.DB) *LogRepository {
	return &LogRepository{db: db}
}

const logColumns = `id, organization_id, folder_id, content, reference_id, external_link, additional_context, created_at`

func scanLog(row interface{ Scan(...any) error }) (*models.Log, error) {
	log := &models.Log{}
	var contextJSON []byte
	err := row.Scan(
		&log.ID,
		&log.OrganizationID,
		&log.FolderID,
		&log.Content,
		&log.ReferenceID,
		&log.ExternalLink,
		&contextJSON,
		&log.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &log.AdditionalContext); err != nil {
			return nil, fmt.Errorf("failed to parse additional context: %w", err)
		}
	}
	return log, nil
}

func (r *LogRepository) queryLogs(ctx context.Context, query string, args ...any) ([]*models.Log, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.Log, 0)
	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log: %w", err)
		}
		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// Create inserts a new log record. AdditionalContext is serialized to JSONB;
// a nil map is stored as SQL NULL.
func (r *LogRepository) Create(ctx context.Context, log *models.Log) error {
	var contextJSON any
	if log.AdditionalContext != nil {
		data, err := json.Marshal(log.AdditionalContext)
		if err != nil {
			return fmt.Errorf("failed to serialize additional context: %w", err)
		}
		contextJSON = data
	}

	query := `
		INSERT INTO logs (organization_id, folder_id, content, reference_id, external_link, additional_context)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		log.OrganizationID,
		log.FolderID,
		log.Content,
		log.ReferenceID,
		log.ExternalLink,
		contextJSON,
	).Scan(&log.ID, &log.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create log: %w", err)
	}

	return nil
}

// GetByID retrieves a single log by id
func (r *LogRepository) GetByID(ctx context.Context, id string) (*models.Log, error) {
	query := `
		SELECT ` + logColumns + `
		FROM logs
		WHERE id = $1
	`

	log, err := scanLog(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get log: %w", err)
	}

	return log, nil
}

// Delete removes a single log by id
func (r *LogRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM logs WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete log: %w", err)
	}
	return nil
}

// HasLogs reports whether a folder directly owns at least one log record.
// The path store consults this before growing a branch under a folder.
func (r *LogRepository) HasLogs(ctx context.Context, folderID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM logs WHERE folder_id = $1)`
	if err := r.db.QueryRowContext(ctx, query, folderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check folder logs: %w", err)
	}
	return exists, nil
}

// CountInWindow returns the exact number of logs in a folder created within
// [floor, ceiling). Used by both rule evaluation and stats aggregation.
func (r *LogRepository) CountInWindow(ctx context.Context, folderID string, floor, ceiling time.Time) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM logs
		WHERE folder_id = $1 AND created_at >= $2 AND created_at < $3
	`
	if err := r.db.QueryRowContext(ctx, query, folderID, floor, ceiling).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count logs in window: %w", err)
	}
	return count, nil
}

// ListInWindow retrieves all logs in a folder created within [floor, ceiling),
// newest first. Feeds the histogram and window-cache paths.
func (r *LogRepository) ListInWindow(ctx context.Context, folderID string, floor, ceiling time.Time) ([]*models.Log, error) {
	query := `
		SELECT ` + logColumns + `
		FROM logs
		WHERE folder_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
	`
	return r.queryLogs(ctx, query, folderID, floor, ceiling)
}

// OldestCreatedAt returns the creation time of a folder's oldest log, or nil
// when the folder has none. MIN over zero rows yields NULL, so the scan goes
// through sql.NullTime.
func (r *LogRepository) OldestCreatedAt(ctx context.Context, folderID string) (*time.Time, error) {
	var oldest sql.NullTime
	query := `SELECT MIN(created_at) FROM logs WHERE folder_id = $1`
	err := r.db.QueryRowContext(ctx, query, folderID).Scan(&oldest)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get oldest log time: %w", err)
	}
	if !oldest.Valid {
		return nil, nil
	}
	return &oldest.Time, nil
}

// ListPaginated retrieves logs newest-first for the given folder set, with an
// offset/limit window and optional date bounds. An empty folderIDs slice
// matches nothing.
func (r *LogRepository) ListPaginated(ctx context.Context, folderIDs []string, start, limit int, newerBound, olderBound *time.Time) ([]*models.Log, error) {
	query := `
		SELECT ` + logColumns + `
		FROM logs
		WHERE folder_id = ANY($1)
		  AND ($2::timestamptz IS NULL OR created_at > $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
		OFFSET $4 LIMIT $5
	`
	return r.queryLogs(ctx, query, pq.Array(folderIDs), newerBound, olderBound, start, limit)
}

// SearchByReferenceID retrieves logs with an exact reference id, newest first,
// optionally scoped to a folder set (nil scope means the whole organization).
func (r *LogRepository) SearchByReferenceID(ctx context.Context, orgID, referenceID string, folderIDs []string, limit int) ([]*models.Log, error) {
	query := `
		SELECT ` + logColumns + `
		FROM logs
		WHERE organization_id = $1
		  AND reference_id = $2
		  AND ($3::uuid[] IS NULL OR folder_id = ANY($3))
		ORDER BY created_at DESC
		LIMIT $4
	`
	return r.queryLogs(ctx, query, orgID, referenceID, folderScope(folderIDs), limit)
}

// SearchByContent retrieves logs whose content contains the query string
// case-insensitively, newest first.
func (r *LogRepository) SearchByContent(ctx context.Context, orgID, substring string, folderIDs []string, limit int) ([]*models.Log, error) {
	query := `
		SELECT ` + logColumns + `
		FROM logs
		WHERE organization_id = $1
		  AND content ILIKE $2
		  AND ($3::uuid[] IS NULL OR folder_id = ANY($3))
		ORDER BY created_at DESC
		LIMIT $4
	`
	pattern := "%" + escapeLike(substring) + "%"
	return r.queryLogs(ctx, query, orgID, pattern, folderScope(folderIDs), limit)
}

// SearchByContextValue retrieves logs whose additional context contains the
// exact key/value pair, using JSONB containment so the GIN index applies.
func (r *LogRepository) SearchByContextValue(ctx context.Context, orgID, key string, value any, folderIDs []string, limit int) ([]*models.Log, error) {
	probe, err := json.Marshal(map[string]any{key: value})
	if err != nil {
		return nil, fmt.Errorf("failed to serialize context probe: %w", err)
	}

	query := `
		SELECT ` + logColumns + `
		FROM logs
		WHERE organization_id = $1
		  AND additional_context @> $2::jsonb
		  AND ($3::uuid[] IS NULL OR folder_id = ANY($3))
		ORDER BY created_at DESC
		LIMIT $4
	`
	return r.queryLogs(ctx, query, orgID, probe, folderScope(folderIDs), limit)
}

// DeleteOlderThan hard-deletes every log in an organization created before the
// cutoff and returns the number of rows removed. Irreversible; the retention
// job is the only caller.
func (r *LogRepository) DeleteOlderThan(ctx context.Context, orgID string, cutoff time.Time) (int64, error) {
	query := `DELETE FROM logs WHERE organization_id = $1 AND created_at < $2`
	result, err := r.db.ExecContext(ctx, query, orgID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge logs: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge result: %w", err)
	}
	return affected, nil
}

// folderScope converts an optional folder id filter into a nullable array
// parameter: nil disables the filter at the SQL level.
func folderScope(folderIDs []string) any {
	if folderIDs == nil {
		return nil
	}
	return pq.Array(folderIDs)
}

// escapeLike escapes LIKE metacharacters so user queries match literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
