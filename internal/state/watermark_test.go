package state

import "testing"

func TestGetMissingWatermark(t *testing.T) {
	s := NewWatermarkStore(t.TempDir())
	if _, ok := s.Get("memory-consolidation"); ok {
		t.Error("expected no watermark before any Set")
	}
}

func TestSetGetWatermark(t *testing.T) {
	s := NewWatermarkStore(t.TempDir())
	if err := s.Set("memory-consolidation", "2026-08-01T00:00:00Z"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := s.Get("memory-consolidation")
	if !ok {
		t.Fatal("expected watermark to exist after Set")
	}
	if got != "2026-08-01T00:00:00Z" {
		t.Errorf("unexpected value: %q", got)
	}
}

func TestWatermarkPersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	s := NewWatermarkStore(dir)
	if err := s.Set("backup-snapshot", "offset-42"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	reloaded := NewWatermarkStore(dir)
	got, ok := reloaded.Get("backup-snapshot")
	if !ok || got != "offset-42" {
		t.Fatalf("expected persisted watermark offset-42, got %q (ok=%v)", got, ok)
	}
}
