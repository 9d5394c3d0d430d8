// Package rules evaluates user-defined alert rules against recent log volume
// and dispatches notifications for the ones that fire.
package rules

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/logfold/logfold/internal/apperrors"
	"github.com/logfold/logfold/internal/db/models"
	"github.com/logfold/logfold/internal/notify"
	"github.com/logfold/logfold/internal/telemetry"
)

// LogCounter counts logs in a folder over a time window.
type LogCounter interface {
	CountInWindow(ctx context.Context, folderID string, floor, ceiling time.Time) (int, error)
}

// RuleStore is the slice of the rule repository the engine needs.
type RuleStore interface {
	Create(ctx context.Context, rule *models.Rule) error
	GetByID(ctx context.Context, id string) (*models.Rule, error)
	ListByOrganization(ctx context.Context, orgID string) ([]*models.Rule, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Rule, error)
	MarkTriggered(ctx context.Context, ruleID string, at time.Time) error
	Delete(ctx context.Context, ruleID, userID string) (bool, error)
}

// UserGetter resolves the user a rule notifies.
type UserGetter interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Engine evaluates rules and sends notifications.
type Engine struct {
	rules    RuleStore
	logs     LogCounter
	users    UserGetter
	notifier notify.Dispatcher
	now      func() time.Time
}

// New creates a rule engine. notifier may be nil; triggered rules are then
// recorded but nothing is sent.
func New(rules RuleStore, logs LogCounter, users UserGetter, notifier notify.Dispatcher) *Engine {
	return &Engine{rules: rules, logs: logs, users: users, notifier: notifier, now: time.Now}
}

// WithNow substitutes the clock; tests use this to pin "now".
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// CreateRule validates and persists a new rule.
func (e *Engine) CreateRule(ctx context.Context, rule *models.Rule) error {
	switch rule.ComparisonType {
	case models.ComparisonCrossesAbove, models.ComparisonCrossesBelow:
	default:
		return fmt.Errorf("unknown comparison type %q: %w", rule.ComparisonType, apperrors.ErrValidation)
	}
	switch rule.NotificationType {
	case models.NotificationEmail, models.NotificationSMS:
	default:
		return fmt.Errorf("unknown notification type %q: %w", rule.NotificationType, apperrors.ErrValidation)
	}
	if rule.LookbackTimeInMins <= 0 {
		return fmt.Errorf("lookback must be positive: %w", apperrors.ErrValidation)
	}
	return e.rules.Create(ctx, rule)
}

// ListRulesForUser returns every rule the user owns.
func (e *Engine) ListRulesForUser(ctx context.Context, userID string) ([]*models.Rule, error) {
	return e.rules.ListByUser(ctx, userID)
}

// DeleteRule removes a rule the user owns. Deleting someone else's rule, or a
// rule that does not exist, reports not-found.
func (e *Engine) DeleteRule(ctx context.Context, ruleID, userID string) error {
	deleted, err := e.rules.Delete(ctx, ruleID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("rule %s: %w", ruleID, apperrors.ErrNotFound)
	}
	return nil
}

// IsTriggered evaluates one rule right now. The count covers the trailing
// lookback window ending at the current instant; the comparisons are strict
// level tests against the bound, recomputed fresh each call.
func (e *Engine) IsTriggered(ctx context.Context, rule *models.Rule) (bool, error) {
	ceiling := e.now()
	floor := ceiling.Add(-time.Duration(rule.LookbackTimeInMins) * time.Minute)

	count, err := e.logs.CountInWindow(ctx, rule.FolderID, floor, ceiling)
	if err != nil {
		return false, fmt.Errorf("failed to count logs for rule %s: %w", rule.ID, err)
	}

	switch rule.ComparisonType {
	case models.ComparisonCrossesAbove:
		return float64(count) > rule.ComparisonValue, nil
	case models.ComparisonCrossesBelow:
		return float64(count) < rule.ComparisonValue, nil
	default:
		return false, fmt.Errorf("unknown comparison type %q: %w", rule.ComparisonType, apperrors.ErrValidation)
	}
}

// RunAllRulesForOrganization evaluates every rule in the organization once.
// A triggered rule is stamped first, then its owner is notified on the
// channel the rule names. Failures on one rule (evaluation, lookup, or
// delivery) are logged and counted but never stop the sweep.
func (e *Engine) RunAllRulesForOrganization(ctx context.Context, orgID string) error {
	rules, err := e.rules.ListByOrganization(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list rules for organization %s: %w", orgID, err)
	}

	for _, rule := range rules {
		triggered, err := e.IsTriggered(ctx, rule)
		telemetry.RulesEvaluatedTotal.Inc()
		if err != nil {
			log.Printf("Rule runner: evaluation failed for rule %s: %v", rule.ID, err)
			continue
		}
		if !triggered {
			continue
		}

		telemetry.RulesTriggeredTotal.Inc()
		if err := e.rules.MarkTriggered(ctx, rule.ID, e.now()); err != nil {
			log.Printf("Rule runner: failed to mark rule %s triggered: %v", rule.ID, err)
		}

		if err := e.notifyOwner(ctx, rule); err != nil {
			telemetry.RuleNotificationFailuresTotal.Inc()
			log.Printf("Rule runner: notification failed for rule %s: %v", rule.ID, err)
		}
	}

	return nil
}

func (e *Engine) notifyOwner(ctx context.Context, rule *models.Rule) error {
	if e.notifier == nil {
		return nil
	}

	user, err := e.users.GetByID(ctx, rule.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user %s: %w", rule.UserID, err)
	}
	if user == nil {
		return fmt.Errorf("user %s: %w", rule.UserID, apperrors.ErrNotFound)
	}

	direction := "risen above"
	if rule.ComparisonType == models.ComparisonCrossesBelow {
		direction = "fallen below"
	}
	body := fmt.Sprintf(
		"Alert: log volume in the watched folder has %s %g over the last %d minute(s).",
		direction, rule.ComparisonValue, rule.LookbackTimeInMins,
	)

	switch rule.NotificationType {
	case models.NotificationSMS:
		if user.PhoneNumber == nil || *user.PhoneNumber == "" {
			return fmt.Errorf("user %s has no phone number for sms rule %s", user.ID, rule.ID)
		}
		return e.notifier.SendSMS(*user.PhoneNumber, body)
	default:
		return e.notifier.SendEmail(user.Email, "Logfold alert triggered", body)
	}
}
