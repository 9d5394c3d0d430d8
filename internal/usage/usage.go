// Package usage owns billing-cycle accounting: the per-log quota gate, the
// atomic in-cycle counter, cycle rollover, and the retention purge that is the
// system's sole long-term storage reclamation.
package usage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/logfold/logfold/internal/db/models"
	"github.com/logfold/logfold/internal/notify"
	"github.com/logfold/logfold/internal/telemetry"
)

// OrgStore is the slice of the organization repository the service needs.
type OrgStore interface {
	GetByID(ctx context.Context, id string) (*models.Organization, error)
	List(ctx context.Context) ([]*models.Organization, error)
	IncrementLogsSent(ctx context.Context, orgID string) error
	ResetCycle(ctx context.Context, orgID string, cycleStarts, cycleEnds time.Time) error
	StampUsageEmailSent(ctx context.Context, orgID string, at time.Time) error
}

// LogPurger hard-deletes logs older than a cutoff.
type LogPurger interface {
	DeleteOlderThan(ctx context.Context, orgID string, cutoff time.Time) (int64, error)
}

// OwnerFinder resolves the user who receives organization-level email.
type OwnerFinder interface {
	GetOwnerByOrganization(ctx context.Context, orgID string) (*models.User, error)
}

// Policy holds the quota and cycle knobs.
type Policy struct {
	// DefaultCycleDays is the cycle length when an organization has no
	// retention setting of its own, and the length of every cycle after the
	// first.
	DefaultCycleDays int
	// SoftLimitThreshold is the log limit above which the quota becomes
	// advisory: large accounts are never hard-blocked mid-cycle.
	SoftLimitThreshold int64
	// WarningRatio is the usage fraction at which a warning email goes out.
	WarningRatio float64
	// WarningResendAfter suppresses repeat warning emails within the window.
	WarningResendAfter time.Duration
}

// Cycle is one billing window.
type Cycle struct {
	Starts time.Time
	Ends   time.Time
}

// Service implements usage accounting.
type Service struct {
	orgs   OrgStore
	logs   LogPurger
	users  OwnerFinder
	mailer notify.EmailSender
	policy Policy
	now    func() time.Time
}

// New creates a usage service. mailer may be nil when notifications are
// disabled; warning emails are then skipped.
func New(orgs OrgStore, logs LogPurger, users OwnerFinder, mailer notify.EmailSender, policy Policy) *Service {
	if policy.DefaultCycleDays <= 0 {
		policy.DefaultCycleDays = 30
	}
	if policy.WarningRatio <= 0 {
		policy.WarningRatio = 0.9
	}
	if policy.WarningResendAfter <= 0 {
		policy.WarningResendAfter = 7 * 24 * time.Hour
	}
	return &Service{orgs: orgs, logs: logs, users: users, mailer: mailer, policy: policy, now: time.Now}
}

// WithNow substitutes the clock; tests use this to pin "now".
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// ShouldAllowAnotherLog decides whether one more log may be charged to the
// organization this cycle.
//
// A zero limit means "no limit". Accounts whose limit exceeds the
// soft-limit threshold are never blocked: overage is billed, not refused.
// Once the cycle end has passed the gate also opens, a grace period until
// the reset job rolls the cycle over. Everything else is a strict
// count-below-limit test.
func (s *Service) ShouldAllowAnotherLog(org *models.Organization) bool {
	if org.LogLimitForPeriod <= 0 {
		return true
	}
	if org.LogLimitForPeriod > s.policy.SoftLimitThreshold {
		return true
	}
	if org.CycleEnds != nil && !s.now().Before(*org.CycleEnds) {
		return true
	}
	return org.NumLogsSentInPeriod < org.LogLimitForPeriod
}

// RecordNewLog charges one log to the organization's cycle counter. The
// increment is atomic at the database so concurrent ingest never undercounts.
func (s *Service) RecordNewLog(ctx context.Context, orgID string) error {
	return s.orgs.IncrementLogsSent(ctx, orgID)
}

// ResetCycle installs the organization's next billing cycle and zeroes its
// counter, returning the new window.
//
// The first cycle starts now and runs for the organization's retention length
// (default when unset). Every later cycle starts exactly at the previous
// cycle's end, back-to-back rather than now-anchored, so repeated resets
// never drift.
func (s *Service) ResetCycle(ctx context.Context, org *models.Organization) (Cycle, error) {
	var cycle Cycle
	if org.CycleEnds == nil {
		days := org.LogRetentionInDays
		if days <= 0 {
			days = s.policy.DefaultCycleDays
		}
		cycle.Starts = s.now()
		cycle.Ends = cycle.Starts.AddDate(0, 0, days)
	} else {
		cycle.Starts = *org.CycleEnds
		cycle.Ends = cycle.Starts.AddDate(0, 0, s.policy.DefaultCycleDays)
	}

	if err := s.orgs.ResetCycle(ctx, org.ID, cycle.Starts, cycle.Ends); err != nil {
		return Cycle{}, err
	}
	return cycle, nil
}

// RunPeriodicReset walks every organization once: due organizations (cycle
// end reached, or no cycle yet) get a fresh cycle and a zeroed counter;
// organizations still mid-cycle get a usage-warning email when they have
// burned through the warning ratio and none was sent in the resend window.
//
// One organization's failure never stops the walk; failures are logged and
// counted.
func (s *Service) RunPeriodicReset(ctx context.Context) error {
	orgs, err := s.orgs.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list organizations for reset: %w", err)
	}

	now := s.now()
	failures := 0
	for _, org := range orgs {
		if org.CycleEnds == nil || !org.CycleEnds.After(now) {
			if _, err := s.ResetCycle(ctx, org); err != nil {
				log.Printf("Usage reset: failed to reset cycle for organization %s: %v", org.ID, err)
				failures++
				continue
			}
			telemetry.UsageCyclesResetTotal.Inc()
			continue
		}

		if err := s.maybeSendUsageWarning(ctx, org, now); err != nil {
			log.Printf("Usage reset: failed to warn organization %s: %v", org.ID, err)
			failures++
		}
	}

	if failures > 0 {
		log.Printf("Usage reset: completed with %d failure(s) across %d organization(s)", failures, len(orgs))
	}
	return nil
}

// maybeSendUsageWarning emails the organization's owner when usage has
// crossed the warning ratio. A zero limit never warns: division by zero is
// sidestepped by treating it as "no limit".
func (s *Service) maybeSendUsageWarning(ctx context.Context, org *models.Organization, now time.Time) error {
	if org.LogLimitForPeriod <= 0 {
		return nil
	}
	ratio := float64(org.NumLogsSentInPeriod) / float64(org.LogLimitForPeriod)
	if ratio < s.policy.WarningRatio {
		return nil
	}
	if org.SentLastUsageEmailAt != nil && now.Sub(*org.SentLastUsageEmailAt) < s.policy.WarningResendAfter {
		return nil
	}
	if s.mailer == nil || s.users == nil {
		return nil
	}

	owner, err := s.users.GetOwnerByOrganization(ctx, org.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve owner for organization %s: %w", org.ID, err)
	}
	if owner == nil {
		log.Printf("Usage reset: organization %s has no users, skipping usage warning", org.ID)
		return nil
	}

	subject := fmt.Sprintf("Heads up: %s has used %d%% of its log quota", org.Name, int(ratio*100))
	body := fmt.Sprintf(
		"Your organization %s has sent %d of %d logs in the current billing cycle.\n\n"+
			"Once the limit is reached, additional logs may be rejected until the cycle resets.\n"+
			"Consider raising the plan limit if this volume is expected.",
		org.Name, org.NumLogsSentInPeriod, org.LogLimitForPeriod,
	)
	if err := s.mailer.SendEmail(owner.Email, subject, body); err != nil {
		return err
	}
	telemetry.UsageWarningEmailsSentTotal.Inc()

	return s.orgs.StampUsageEmailSent(ctx, org.ID, now)
}

// PurgeExpiredLogs hard-deletes, for every organization, all logs older than
// its retention horizon. This is irreversible; the cutoff is derived from the
// organization's own retention setting so in-cycle data is never touched.
func (s *Service) PurgeExpiredLogs(ctx context.Context) error {
	orgs, err := s.orgs.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list organizations for purge: %w", err)
	}

	now := s.now()
	failures := 0
	var total int64
	for _, org := range orgs {
		days := org.LogRetentionInDays
		if days <= 0 {
			days = s.policy.DefaultCycleDays
		}
		cutoff := now.AddDate(0, 0, -days)

		deleted, err := s.logs.DeleteOlderThan(ctx, org.ID, cutoff)
		if err != nil {
			log.Printf("Retention purge: failed for organization %s: %v", org.ID, err)
			failures++
			continue
		}
		if deleted > 0 {
			telemetry.LogsPurgedTotal.Add(float64(deleted))
			total += deleted
		}
	}

	log.Printf("Retention purge: removed %d log(s) across %d organization(s), %d failure(s)", total, len(orgs), failures)
	return nil
}
