package tasks

import (
	"github.com/beaconhq/beacond/internal/memory"
)

// Paths bundles the filesystem locations a handful of tasks need beyond
// what's already in Deps (state dir, backup dir, log path, vault path).
type Paths struct {
	StateDir  string
	BackupDir string
	LogPath   string
	VaultPath string
}

// RegisterAll registers every first-party task (spec.md C10, ~15 tasks)
// with d.Registry. cmd/beacond calls this once at startup, then binds a
// subset of names to schedules from config via scheduler.Dispatcher.Bind.
func RegisterAll(d Deps, paths Paths, memStore *memory.Store) {
	d.Registry.Register(NewContextWatchdogTask(d))
	d.Registry.Register(NewMorningBriefingTask(d))
	d.Registry.Register(NewEmailDigestFlushTask(d))
	d.Registry.Register(NewCalendarReminderSweepTask(d))
	d.Registry.Register(NewHealthCheckTask(d))
	d.Registry.Register(NewExpiredApprovalSweepTask(d))
	d.Registry.Register(NewPendingApprovalExpirySweepTask(d))
	d.Registry.Register(NewPeerHeartbeatTask(d))
	d.Registry.Register(NewStaleSessionReaperTask(d))
	d.Registry.Register(NewLogRotationCheckTask(paths.LogPath))
	d.Registry.Register(NewMemoryConsolidationTask(d, memStore))
	d.Registry.Register(NewBackupSnapshotTask(paths.StateDir, paths.BackupDir))
	d.Registry.Register(NewRateLimitGCTask(d))
	d.Registry.Register(NewTranscriptStatsReportTask(d))
	d.Registry.Register(NewCredentialExpiryWarningTask(paths.VaultPath))
}
