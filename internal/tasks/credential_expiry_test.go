package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCredentialExpiryWarningSkipsWhenVaultMissing(t *testing.T) {
	task := NewCredentialExpiryWarningTask(filepath.Join(t.TempDir(), "vault.json"))
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestCredentialExpiryWarningSkipsWhenRecentlyWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	task := NewCredentialExpiryWarningTask(path)
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestCredentialExpiryWarningFiresWhenStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	stale := time.Now().Add(-120 * 24 * time.Hour)
	if err := os.Chtimes(path, stale, stale); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	task := NewCredentialExpiryWarningTask(path)
	if err := task.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
