package tasks

import (
	"context"
	"os"
	"path/filepath"

	"github.com/beaconhq/beacond/internal/logger"
	"github.com/beaconhq/beacond/internal/scheduler"
)

const logRotationComponent = "tasks.log-rotation"

// NewLogRotationCheckTask reports the on-disk size of the daemon log and
// its rotated siblings, catching a rotation policy that silently stopped
// firing (disk full, permission change) before it fills the volume.
func NewLogRotationCheckTask(logPath string) scheduler.Task {
	return scheduler.Task{
		Name:            "log-rotation-check",
		RequiresSession: false,
		Run: func(ctx context.Context) error {
			if logPath == "" {
				return nil
			}
			dir := filepath.Dir(logPath)
			base := filepath.Base(logPath)

			entries, err := os.ReadDir(dir)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}

			var total int64
			var files int
			for _, e := range entries {
				if e.IsDir() || !matchesLogFamily(e.Name(), base) {
					continue
				}
				info, err := e.Info()
				if err != nil {
					continue
				}
				total += info.Size()
				files++
			}
			logger.InfoCF(logRotationComponent, "log rotation check", map[string]interface{}{
				"files": files, "total_bytes": total,
			})
			return nil
		},
	}
}

func matchesLogFamily(name, base string) bool {
	if name == base {
		return true
	}
	return len(name) > len(base) && name[:len(base)] == base
}
