// usage_reset.go implements the billing-cycle maintenance loop: due
// organizations get a fresh cycle and mid-cycle organizations near their quota
// get a warning email.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/logfold/logfold/internal/usage"
)

// UsageCycleResetter periodically rolls over expired billing cycles.
type UsageCycleResetter struct {
	svc      *usage.Service
	interval time.Duration
	stopChan chan struct{}
}

// NewUsageCycleResetter creates a resetter ticking at the given interval.
func NewUsageCycleResetter(svc *usage.Service, interval time.Duration) *UsageCycleResetter {
	if interval <= 0 {
		interval = time.Hour
	}
	return &UsageCycleResetter{
		svc:      svc,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the reset loop. One pass runs immediately, then the loop
// repeats until ctx is cancelled or Stop is called.
func (u *UsageCycleResetter) Start(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	log.Printf("Usage cycle resetter started (interval: %v)", u.interval)

	u.runPass(ctx)

	for {
		select {
		case <-ticker.C:
			u.runPass(ctx)
		case <-u.stopChan:
			log.Println("Usage cycle resetter stopped")
			return
		case <-ctx.Done():
			log.Println("Usage cycle resetter context cancelled")
			return
		}
	}
}

// Stop signals the loop to exit.
func (u *UsageCycleResetter) Stop() {
	close(u.stopChan)
}

func (u *UsageCycleResetter) runPass(ctx context.Context) {
	if err := u.svc.RunPeriodicReset(ctx); err != nil {
		log.Printf("Usage cycle resetter: pass failed: %v", err)
	}
}
