// rule_repository.go implements RuleRepository, providing CRUD for alert rules
// and the trigger-bookkeeping update the rule runner performs.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/logfold/logfold/internal/db/models"
)

// RuleRepository handles database operations for alert rules
type RuleRepository struct {
	db *sql.DB
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

const ruleColumns = `id, user_id, folder_id, organization_id, comparison_type, comparison_value,
		lookback_time_in_mins, notification_type, last_triggered_at, number_of_times_triggered,
		created_at, updated_at`

func scanRule(row interface{ Scan(...any) error }) (*models.Rule, error) {
	rule := &models.Rule{}
	err := row.Scan(
		&rule.ID,
		&rule.UserID,
		&rule.FolderID,
		&rule.OrganizationID,
		&rule.ComparisonType,
		&rule.ComparisonValue,
		&rule.LookbackTimeInMins,
		&rule.NotificationType,
		&rule.LastTriggeredAt,
		&rule.NumberOfTimesTriggered,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// Create inserts a new rule
func (r *RuleRepository) Create(ctx context.Context, rule *models.Rule) error {
	query := `
		INSERT INTO rules (user_id, folder_id, organization_id, comparison_type,
			comparison_value, lookback_time_in_mins, notification_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		rule.UserID,
		rule.FolderID,
		rule.OrganizationID,
		rule.ComparisonType,
		rule.ComparisonValue,
		rule.LookbackTimeInMins,
		rule.NotificationType,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return nil
}

// GetByID retrieves a rule by ID
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*models.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM rules
		WHERE id = $1
	`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}

	return rule, nil
}

// ListByOrganization retrieves every rule in an organization.
func (r *RuleRepository) ListByOrganization(ctx context.Context, orgID string) ([]*models.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM rules
		WHERE organization_id = $1
		ORDER BY created_at
	`
	return r.listRules(ctx, query, orgID)
}

// ListByUser retrieves every rule owned by a user.
func (r *RuleRepository) ListByUser(ctx context.Context, userID string) ([]*models.Rule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM rules
		WHERE user_id = $1
		ORDER BY created_at
	`
	return r.listRules(ctx, query, userID)
}

func (r *RuleRepository) listRules(ctx context.Context, query string, arg any) ([]*models.Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*models.Rule, 0)
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// MarkTriggered stamps the trigger time and bumps the trigger counter in one
// statement. The counter increment happens in SQL so overlapping evaluation
// runs cannot lose a count.
func (r *RuleRepository) MarkTriggered(ctx context.Context, ruleID string, at time.Time) error {
	query := `
		UPDATE rules
		SET last_triggered_at = $2,
		    number_of_times_triggered = number_of_times_triggered + 1,
		    updated_at = NOW()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, ruleID, at); err != nil {
		return fmt.Errorf("failed to mark rule triggered: %w", err)
	}
	return nil
}

// Delete removes a rule owned by the given user and reports whether a row was
// actually removed.
func (r *RuleRepository) Delete(ctx context.Context, ruleID, userID string) (bool, error) {
	query := `DELETE FROM rules WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, ruleID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return affected > 0, nil
}
