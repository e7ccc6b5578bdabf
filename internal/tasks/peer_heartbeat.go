package tasks

import (
	"context"
	"fmt"

	"github.com/beaconhq/beacond/internal/scheduler"
)

// NewPeerHeartbeatTask exposes the peer agent's heartbeat pass as a
// scheduler task so an admin can trigger it manually via POST
// /tasks/peer-heartbeat/run in addition to its own background interval
// loop (spec.md §4.5.4).
func NewPeerHeartbeatTask(d Deps) scheduler.Task {
	return scheduler.Task{
		Name:            "peer-heartbeat",
		RequiresSession: false,
		Run: func(ctx context.Context) error {
			if d.Peers == nil {
				return nil
			}
			if err := d.Peers.HeartbeatAll(ctx); err != nil {
				return fmt.Errorf("tasks: peer heartbeat: %w", err)
			}
			return nil
		},
	}
}
