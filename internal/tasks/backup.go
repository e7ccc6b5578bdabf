package tasks

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/beaconhq/beacond/internal/logger"
	"github.com/beaconhq/beacond/internal/scheduler"
)

const backupComponent = "tasks.backup"

// maxBackupSnapshots is how many snapshots NewBackupSnapshotTask keeps
// before pruning the oldest.
const maxBackupSnapshots = 14

// NewBackupSnapshotTask tars+gzips the state directory (scheduler state,
// access-control state, vault, peer registry and audit log) into a dated
// snapshot file under backups/, pruning old snapshots beyond
// maxBackupSnapshots. No third-party archive library appears anywhere in
// the example pack, so this uses the standard library's archive/tar and
// compress/gzip rather than inventing a dependency (documented in
// DESIGN.md).
func NewBackupSnapshotTask(stateDir, backupDir string) scheduler.Task {
	return scheduler.Task{
		Name:            "backup-snapshot",
		RequiresSession: false,
		Run: func(ctx context.Context) error {
			if err := os.MkdirAll(backupDir, 0755); err != nil {
				return fmt.Errorf("tasks: create backup dir: %w", err)
			}
			name := fmt.Sprintf("state-%s.tar.gz", time.Now().UTC().Format("20060102-150405"))
			dest := filepath.Join(backupDir, name)

			if err := snapshotDir(stateDir, dest); err != nil {
				return fmt.Errorf("tasks: snapshot state dir: %w", err)
			}
			pruned, err := pruneBackups(backupDir, maxBackupSnapshots)
			if err != nil {
				logger.WarnCF(backupComponent, "failed to prune old backups", map[string]interface{}{"error": err.Error()})
			}
			logger.InfoCF(backupComponent, "backup snapshot written", map[string]interface{}{
				"path": dest, "pruned": pruned,
			})
			return nil
		},
	}
}

func snapshotDir(srcDir, destFile string) error {
	out, err := os.Create(destFile)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}

func pruneBackups(backupDir string, keep int) (int, error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return 0, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // timestamped names sort chronologically
	if len(names) <= keep {
		return 0, nil
	}
	toRemove := names[:len(names)-keep]
	for _, n := range toRemove {
		os.Remove(filepath.Join(backupDir, n))
	}
	return len(toRemove), nil
}
