package tasks

import (
	"context"
	"fmt"

	"github.com/beaconhq/beacond/internal/logger"
	"github.com/beaconhq/beacond/internal/scheduler"
)

const healthComponent = "tasks.health"

// NewHealthCheckTask verifies the multiplexer session is alive, attempting
// to start it if missing, and records the result through the metrics
// tracker so /status/extended can report the last check (spec.md C10).
func NewHealthCheckTask(d Deps) scheduler.Task {
	return scheduler.Task{
		Name:            "health-check",
		RequiresSession: false,
		Run: func(ctx context.Context) error {
			stop := d.Metrics.Timer("task_run", "health-check")
			exists := d.Bridge.SessionExists(ctx)
			if !exists {
				logger.WarnCF(healthComponent, "session missing, attempting restart", nil)
				if !d.Bridge.StartSession(ctx) {
					stop(false, map[string]interface{}{"session_exists": false, "restart_ok": false})
					return fmt.Errorf("tasks: session missing and restart failed")
				}
			}
			stop(true, map[string]interface{}{"session_exists": true})
			return nil
		},
	}
}
