package scheduler

import (
	"context"
	"path/filepath"
	"testing"
)

type fakeIdle struct {
	idle           bool
	sessionExists bool
}

func (f fakeIdle) IsAgentIdle() bool                          { return f.idle }
func (f fakeIdle) SessionExists(ctx context.Context) bool { return f.sessionExists }

func TestTriggerNowBypassesIdleGate(t *testing.T) {
	registry := NewRegistry()
	ran := false
	registry.Register(Task{Name: "chore", RequiresSession: true, Run: func(ctx context.Context) error {
		ran = true
		return nil
	}})

	d, err := New(registry, fakeIdle{idle: false, sessionExists: false}, filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := d.TriggerNow(context.Background(), "chore"); err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if !ran {
		t.Error("expected manual trigger to run the task despite the agent being busy")
	}
}

func TestTriggerNowUnknownTask(t *testing.T) {
	d, err := New(NewRegistry(), fakeIdle{}, filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.TriggerNow(context.Background(), "missing"); err == nil {
		t.Error("expected an error for an unregistered task name")
	}
}

func TestStatusReflectsRuns(t *testing.T) {
	registry := NewRegistry()
	registry.Register(Task{Name: "chore", Run: func(ctx context.Context) error { return nil }})
	d, err := New(registry, fakeIdle{}, filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.TriggerNow(context.Background(), "chore"); err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	records := d.Status()
	if len(records) != 1 || records[0].Name != "chore" || records[0].SuccessCount != 1 {
		t.Fatalf("unexpected status records: %+v", records)
	}
}
