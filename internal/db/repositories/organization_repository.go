// organization_repository.go implements OrganizationRepository, providing
// queries for tenant lookup and the billing-cycle counters the usage service
// maintains.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/logfold/logfold/internal/db/models"
)

// OrganizationRepository handles database operations for organizations
type OrganizationRepository struct {
	db *sql.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

const orgColumns = `id, name, api_key_hash, num_logs_sent_in_period, log_limit_for_period,
		cycle_starts, cycle_ends, log_retention_in_days, sent_last_usage_email_at,
		created_at, updated_at`

func scanOrganization(row interface{ Scan(...any) error }) (*models.Organization, error) {
	org := &models.Organization{}
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.APIKeyHash,
		&org.NumLogsSentInPeriod,
		&org.LogLimitForPeriod,
		&org.CycleStarts,
		&org.CycleEnds,
		&org.LogRetentionInDays,
		&org.SentLastUsageEmailAt,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return org, nil
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	query := `
		SELECT ` + orgColumns + `
		FROM organizations
		WHERE id = $1
	`

	org, err := scanOrganization(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// GetByName retrieves an organization by its name
func (r *OrganizationRepository) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	query := `
		SELECT ` + orgColumns + `
		FROM organizations
		WHERE name = $1
	`

	org, err := scanOrganization(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// Create inserts a new organization
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (name, api_key_hash, log_limit_for_period, log_retention_in_days)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		org.Name,
		org.APIKeyHash,
		org.LogLimitForPeriod,
		org.LogRetentionInDays,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	return nil
}

// SetAPIKeyHash replaces the stored ingest-key hash, invalidating any key
// minted before.
func (r *OrganizationRepository) SetAPIKeyHash(ctx context.Context, orgID, hash string) error {
	query := `
		UPDATE organizations
		SET api_key_hash = $2, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, orgID, hash); err != nil {
		return fmt.Errorf("failed to set api key hash: %w", err)
	}
	return nil
}

// List retrieves every organization. The scheduled jobs iterate the full set,
// so no pagination is offered here.
func (r *OrganizationRepository) List(ctx context.Context) ([]*models.Organization, error) {
	query := `
		SELECT ` + orgColumns + `
		FROM organizations
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	orgs := make([]*models.Organization, 0)
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	return orgs, rows.Err()
}

// IncrementLogsSent atomically bumps the in-cycle log counter by one. The
// increment happens in SQL so concurrent ingest requests never lose updates.
func (r *OrganizationRepository) IncrementLogsSent(ctx context.Context, orgID string) error {
	query := `
		UPDATE organizations
		SET num_logs_sent_in_period = num_logs_sent_in_period + 1, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, orgID); err != nil {
		return fmt.Errorf("failed to increment log counter: %w", err)
	}
	return nil
}

// ResetCycle installs a new billing cycle and zeroes the in-cycle counter in a
// single statement so a crash between the two cannot leave a half-reset row.
func (r *OrganizationRepository) ResetCycle(ctx context.Context, orgID string, cycleStarts, cycleEnds time.Time) error {
	query := `
		UPDATE organizations
		SET cycle_starts = $2, cycle_ends = $3, num_logs_sent_in_period = 0, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, orgID, cycleStarts, cycleEnds); err != nil {
		return fmt.Errorf("failed to reset billing cycle: %w", err)
	}
	return nil
}

// StampUsageEmailSent records when the last usage-warning email went out.
func (r *OrganizationRepository) StampUsageEmailSent(ctx context.Context, orgID string, at time.Time) error {
	query := `
		UPDATE organizations
		SET sent_last_usage_email_at = $2, updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, orgID, at); err != nil {
		return fmt.Errorf("failed to stamp usage email: %w", err)
	}
	return nil
}
