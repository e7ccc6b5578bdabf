package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFreshBridgeStartsIdle(t *testing.T) {
	b := New("default", "beacon-test", t.TempDir(), ".jsonl")
	if !b.IsAgentIdle() {
		t.Error("expected a fresh bridge to report idle")
	}
}

func TestUpdateAgentStateStopIsIdle(t *testing.T) {
	b := New("default", "beacon-test", t.TempDir(), ".jsonl")
	b.UpdateAgentState("PreToolUse")
	if b.IsAgentIdle() {
		t.Error("expected non-Stop hook event to mark the agent busy")
	}
	b.UpdateAgentState("Stop")
	if !b.IsAgentIdle() {
		t.Error("expected Stop hook event to mark the agent idle")
	}
}

func TestSnapshotReflectsState(t *testing.T) {
	b := New("default", "beacon-test", t.TempDir(), ".jsonl")
	b.UpdateAgentState("Stop")
	snap := b.Snapshot()
	if !snap.Idle {
		t.Error("expected snapshot to reflect idle state")
	}
}

func TestNewestTranscriptPathReturnsEmptyWhenDirMissing(t *testing.T) {
	b := New("default", "beacon-test", filepath.Join(t.TempDir(), "missing"), ".jsonl")
	path, err := b.NewestTranscriptPath()
	if err != nil {
		t.Fatalf("NewestTranscriptPath: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestNewestTranscriptPathPicksMostRecentMatchingExt(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "2026-07-30.jsonl")
	newer := filepath.Join(dir, "2026-08-01.jsonl")
	ignored := filepath.Join(dir, "notes.txt")

	for _, p := range []string{older, ignored} {
		if err := os.WriteFile(p, []byte("{}"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	time.Sleep(10 * time.Millisecond)
	if err := os.WriteFile(newer, []byte("{}"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	b := New("default", "beacon-test", dir, ".jsonl")
	path, err := b.NewestTranscriptPath()
	if err != nil {
		t.Fatalf("NewestTranscriptPath: %v", err)
	}
	if path != newer {
		t.Errorf("expected %q, got %q", newer, path)
	}
}
