package tasks

import (
	"context"
	"time"

	"github.com/beaconhq/beacond/internal/logger"
	"github.com/beaconhq/beacond/internal/scheduler"
)

const accessAuditComponent = "tasks.access-audit"

// NewExpiredApprovalSweepTask removes approved-sender entries whose
// expiresAt has passed, so they correctly fall back to "unknown" and
// re-trigger approval on next contact rather than silently staying
// approved forever (spec.md §4.6 Expiry).
func NewExpiredApprovalSweepTask(d Deps) scheduler.Task {
	return scheduler.Task{
		Name:            "expired-approval-sweep",
		RequiresSession: false,
		Run: func(ctx context.Context) error {
			removed := d.AccessStore.SweepExpiredApprovals()
			if removed > 0 {
				logger.InfoCF(accessAuditComponent, "expired approvals removed", map[string]interface{}{"count": removed})
			}
			return nil
		},
	}
}

// pendingApprovalTimeout is how long an unanswered approval prompt sits
// before the sender is auto-denied.
const pendingApprovalTimeout = 24 * time.Hour

// NewPendingApprovalExpirySweepTask auto-denies unknown-sender approval
// requests the primary never answered, so a forgotten prompt doesn't hold
// a sender in limbo indefinitely (spec.md §4.6 "unknown" tier).
func NewPendingApprovalExpirySweepTask(d Deps) scheduler.Task {
	return scheduler.Task{
		Name:            "pending-approval-expiry-sweep",
		RequiresSession: false,
		Run: func(ctx context.Context) error {
			expired := d.AccessStore.ExpirePendingOlderThan(pendingApprovalTimeout)
			if len(expired) > 0 {
				logger.InfoCF(accessAuditComponent, "stale pending approvals auto-denied", map[string]interface{}{"count": len(expired)})
			}
			return nil
		},
	}
}
