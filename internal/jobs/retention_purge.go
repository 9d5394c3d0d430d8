// retention_purge.go implements the daily hard-delete of logs past each
// organization's retention horizon.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/logfold/logfold/internal/usage"
)

// RetentionPurger periodically deletes logs older than the retention horizon.
// The delete is irreversible; the cutoff math lives in the usage service so
// purge and cycle policy stay in one place.
type RetentionPurger struct {
	svc      *usage.Service
	interval time.Duration
	stopChan chan struct{}
}

// NewRetentionPurger creates a purger ticking at the given interval.
func NewRetentionPurger(svc *usage.Service, interval time.Duration) *RetentionPurger {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &RetentionPurger{
		svc:      svc,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the purge loop. One pass runs immediately, then the loop
// repeats until ctx is cancelled or Stop is called.
func (p *RetentionPurger) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	log.Printf("Retention purger started (interval: %v)", p.interval)

	p.runPass(ctx)

	for {
		select {
		case <-ticker.C:
			p.runPass(ctx)
		case <-p.stopChan:
			log.Println("Retention purger stopped")
			return
		case <-ctx.Done():
			log.Println("Retention purger context cancelled")
			return
		}
	}
}

// Stop signals the loop to exit.
func (p *RetentionPurger) Stop() {
	close(p.stopChan)
}

func (p *RetentionPurger) runPass(ctx context.Context) {
	if err := p.svc.PurgeExpiredLogs(ctx); err != nil {
		log.Printf("Retention purger: pass failed: %v", err)
	}
}
