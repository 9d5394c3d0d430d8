// route_monitor_repository.go implements RouteMonitorRepository, providing the
// atomic upsert-with-increment counters behind API-traffic trend display and
// the snapshot copy the scheduled job performs.
package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/logfold/logfold/internal/db/models"
)

// RouteMonitorRepository handles database operations for route monitors
type RouteMonitorRepository struct {
	db *sqlx.DB
}

// NewRouteMonitorRepository creates a new route monitor repository
func NewRouteMonitorRepository(db *sqlx.DB) *RouteMonitorRepository {
	return &RouteMonitorRepository{db: db}
}

// RecordCall bumps the call counter for one (organization, path) pair, and the
// per-status error counter when errorCode is non-empty. The whole operation is
// a single upsert so concurrent requests never lose counts.
func (r *RouteMonitorRepository) RecordCall(ctx context.Context, orgID, path, errorCode string) error {
	if errorCode == "" {
		query := `
			INSERT INTO route_monitors (organization_id, path, num_calls)
			VALUES ($1, $2, 1)
			ON CONFLICT (organization_id, path)
			DO UPDATE SET num_calls = route_monitors.num_calls + 1, updated_at = NOW()
		`
		if _, err := r.db.ExecContext(ctx, query, orgID, path); err != nil {
			return fmt.Errorf("failed to record route call: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO route_monitors (organization_id, path, num_calls, error_codes)
		VALUES ($1, $2, 1, jsonb_build_object($3::text, 1))
		ON CONFLICT (organization_id, path)
		DO UPDATE SET
			num_calls = route_monitors.num_calls + 1,
			error_codes = route_monitors.error_codes ||
				jsonb_build_object($3::text, COALESCE((route_monitors.error_codes->>$3)::bigint, 0) + 1),
			updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, orgID, path, errorCode); err != nil {
		return fmt.Errorf("failed to record route error: %w", err)
	}
	return nil
}

// ListByOrganization retrieves the live counters for an organization ordered
// by traffic volume.
func (r *RouteMonitorRepository) ListByOrganization(ctx context.Context, orgID string) ([]*models.RouteMonitor, error) {
	query := `
		SELECT id, organization_id, path, num_calls, error_codes
		FROM route_monitors
		WHERE organization_id = $1
		ORDER BY num_calls DESC
	`

	var rows []struct {
		ID             string `db:"id"`
		OrganizationID string `db:"organization_id"`
		Path           string `db:"path"`
		NumCalls       int64  `db:"num_calls"`
		ErrorCodes     []byte `db:"error_codes"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list route monitors: %w", err)
	}

	monitors := make([]*models.RouteMonitor, 0, len(rows))
	for _, row := range rows {
		monitor := &models.RouteMonitor{
			ID:             row.ID,
			OrganizationID: row.OrganizationID,
			Path:           row.Path,
			NumCalls:       row.NumCalls,
		}
		if len(row.ErrorCodes) > 0 {
			if err := json.Unmarshal(row.ErrorCodes, &monitor.ErrorCodes); err != nil {
				return nil, fmt.Errorf("failed to parse error codes: %w", err)
			}
		}
		monitors = append(monitors, monitor)
	}

	return monitors, nil
}

// SnapshotAll copies every live counter into an immutable snapshot row and
// returns the number of snapshots written. Running it twice produces two
// snapshot generations, never corrupted counters, so the job is safe to
// re-run.
func (r *RouteMonitorRepository) SnapshotAll(ctx context.Context) (int64, error) {
	query := `
		INSERT INTO route_monitor_snapshots (organization_id, path, num_calls, error_codes)
		SELECT organization_id, path, num_calls, error_codes
		FROM route_monitors
	`
	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot route monitors: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read snapshot result: %w", err)
	}
	return affected, nil
}

// ListSnapshots retrieves the most recent snapshots for one path, newest
// first, for trend rendering.
func (r *RouteMonitorRepository) ListSnapshots(ctx context.Context, orgID, path string, limit int) ([]*models.RouteMonitorSnapshot, error) {
	query := `
		SELECT id, organization_id, path, num_calls, error_codes
		FROM route_monitor_snapshots
		WHERE organization_id = $1 AND path = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	var rows []struct {
		ID             string `db:"id"`
		OrganizationID string `db:"organization_id"`
		Path           string `db:"path"`
		NumCalls       int64  `db:"num_calls"`
		ErrorCodes     []byte `db:"error_codes"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, orgID, path, limit); err != nil {
		return nil, fmt.Errorf("failed to list route snapshots: %w", err)
	}

	snapshots := make([]*models.RouteMonitorSnapshot, 0, len(rows))
	for _, row := range rows {
		snapshot := &models.RouteMonitorSnapshot{
			ID:             row.ID,
			OrganizationID: row.OrganizationID,
			Path:           row.Path,
			NumCalls:       row.NumCalls,
		}
		if len(row.ErrorCodes) > 0 {
			if err := json.Unmarshal(row.ErrorCodes, &snapshot.ErrorCodes); err != nil {
				return nil, fmt.Errorf("failed to parse error codes: %w", err)
			}
		}
		snapshots = append(snapshots, snapshot)
	}

	return snapshots, nil
}
