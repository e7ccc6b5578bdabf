package tasks

import (
	"context"
	"time"

	"github.com/beaconhq/beacond/internal/logger"
	"github.com/beaconhq/beacond/internal/scheduler"
)

const reaperComponent = "tasks.session-reaper"

// staleVoiceMargin is the age a pending voice callback must reach before
// this task force-clears it: 15s past the default 30s voice poll timeout,
// so an ordinary in-flight request is never touched.
const staleVoiceMargin = 45 * time.Second

// NewStaleSessionReaperTask clears a pending voice callback that somehow
// survived its own timeout (e.g. the timer goroutine was starved under
// heavy GC pause across the deadline), so a stuck mailbox never blocks a
// later voice request forever.
func NewStaleSessionReaperTask(d Deps) scheduler.Task {
	return scheduler.Task{
		Name:            "stale-session-reaper",
		RequiresSession: false,
		Run: func(ctx context.Context) error {
			age, pending := d.Router.VoicePendingAge()
			if !pending || age < staleVoiceMargin {
				return nil
			}
			logger.WarnCF(reaperComponent, "clearing voice mailbox that outlived its deadline", map[string]interface{}{
				"age_seconds": age.Seconds(),
			})
			d.Router.ClearVoicePending()
			return nil
		},
	}
}
