package tasks

import (
	"context"
	"time"

	"github.com/beaconhq/beacond/internal/logger"
	"github.com/beaconhq/beacond/internal/scheduler"
)

const ratelimitGCComponent = "tasks.ratelimit-gc"

// rateLimitIdleTTL is how long a sender/recipient can be inactive before
// its rate-limit bookkeeping is dropped.
const rateLimitIdleTTL = 2 * time.Hour

// NewRateLimitGCTask prunes idle rate-limit counters so the in-memory maps
// in internal/access don't grow unbounded across the life of the daemon
// (spec.md §3 rate-limit state is explicitly in-memory only).
func NewRateLimitGCTask(d Deps) scheduler.Task {
	return scheduler.Task{
		Name:            "rate-limit-counters-gc",
		RequiresSession: false,
		Run: func(ctx context.Context) error {
			removed := d.Limiter.GC(rateLimitIdleTTL)
			if removed > 0 {
				logger.InfoCF(ratelimitGCComponent, "idle rate-limit counters collected", map[string]interface{}{"count": removed})
			}
			return nil
		},
	}
}
