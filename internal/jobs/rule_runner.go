// Package jobs holds the scheduled background loops: rule evaluation, usage
// cycle reset, retention purge, and route-monitor snapshotting. Each job is a
// ticker loop started on its own goroutine; all are idempotent and safe to
// re-run after an interrupted pass.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/logfold/logfold/internal/db/models"
	"github.com/logfold/logfold/internal/rules"
)

// OrgLister enumerates the organizations a sweep walks.
type OrgLister interface {
	List(ctx context.Context) ([]*models.Organization, error)
}

// RuleRunner periodically evaluates every organization's alert rules.
type RuleRunner struct {
	engine   *rules.Engine
	orgs     OrgLister
	interval time.Duration
	stopChan chan struct{}
}

// NewRuleRunner creates a rule runner ticking at the given interval.
func NewRuleRunner(engine *rules.Engine, orgs OrgLister, interval time.Duration) *RuleRunner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RuleRunner{
		engine:   engine,
		orgs:     orgs,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the evaluation loop. It runs one sweep immediately, then
// repeats on the configured interval until ctx is cancelled or Stop is called.
func (r *RuleRunner) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Printf("Rule runner started (interval: %v)", r.interval)

	r.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			r.runSweep(ctx)
		case <-r.stopChan:
			log.Println("Rule runner stopped")
			return
		case <-ctx.Done():
			log.Println("Rule runner context cancelled")
			return
		}
	}
}

// Stop signals the loop to exit.
func (r *RuleRunner) Stop() {
	close(r.stopChan)
}

// runSweep evaluates every organization's rules. One organization's failure
// never blocks the rest.
func (r *RuleRunner) runSweep(ctx context.Context) {
	orgs, err := r.orgs.List(ctx)
	if err != nil {
		log.Printf("Rule runner: failed to list organizations: %v", err)
		return
	}

	for _, org := range orgs {
		if err := r.engine.RunAllRulesForOrganization(ctx, org.ID); err != nil {
			log.Printf("Rule runner: sweep failed for organization %s: %v", org.ID, err)
		}
	}
}
