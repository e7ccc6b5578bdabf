package access

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "safe.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestClassifyUnknownByDefault(t *testing.T) {
	s := newTestStore(t)
	if tier := s.Classify("telegram", "123"); tier != TierUnknown {
		t.Errorf("expected TierUnknown, got %s", tier)
	}
}

func TestApproveMakesSenderApproved(t *testing.T) {
	s := newTestStore(t)
	if err := s.Approve("telegram", "123", "Alice", "approved", 0); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if tier := s.Classify("telegram", "123"); tier != TierApproved {
		t.Errorf("expected TierApproved, got %s", tier)
	}
}

func TestApproveExpires(t *testing.T) {
	s := newTestStore(t)
	if err := s.Approve("telegram", "123", "Alice", "approved", -time.Minute); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if tier := s.Classify("telegram", "123"); tier != TierUnknown {
		t.Errorf("expected expired approval to read as TierUnknown, got %s", tier)
	}
}

func TestDenyAutoBlocksAfterThreshold(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < autoBlockThreshold; i++ {
		if err := s.Deny("telegram", "123", "Eve", "spam"); err != nil {
			t.Fatalf("Deny: %v", err)
		}
	}
	if tier := s.Classify("telegram", "123"); tier != TierBlocked {
		t.Errorf("expected auto-block after %d denials, got %s", autoBlockThreshold, tier)
	}
}

func TestExpirePendingOlderThan(t *testing.T) {
	s := newTestStore(t)
	if err := s.RecordPending("telegram", "999", "Mallory", "hi"); err != nil {
		t.Fatalf("RecordPending: %v", err)
	}
	expired := s.ExpirePendingOlderThan(-time.Second) // everything is "older" than a negative age
	if len(expired) != 1 {
		t.Fatalf("expected 1 expired pending entry, got %d", len(expired))
	}
	if _, ok := s.PendingFor("telegram", "999"); ok {
		t.Error("expected pending entry to be cleared after expiry")
	}
	if tier := s.Classify("telegram", "999"); tier != TierDenied {
		t.Errorf("expected expired pending to auto-deny, got %s", tier)
	}
}

func TestSweepExpiredApprovals(t *testing.T) {
	s := newTestStore(t)
	if err := s.Approve("slack", "u1", "Bob", "approved", -time.Minute); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if err := s.Approve("slack", "u2", "Carol", "approved", time.Hour); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	removed := s.SweepExpiredApprovals()
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
}

func TestGateway_ProcessInbound_Unknown_NotifiesPrimary(t *testing.T) {
	s := newTestStore(t)
	limiter := NewRateLimiter(20, 20)
	var notified string
	gw := NewGateway(s, limiter, func(prompt string) { notified = prompt })

	dec := gw.ProcessInbound("telegram", "42", "Stranger", "hello there")
	if dec.Action != ActionHoldPending {
		t.Fatalf("expected ActionHoldPending, got %s", dec.Action)
	}
	if notified == "" {
		t.Error("expected primaryNotify to be called for an unknown sender")
	}
}

func TestGateway_ResolvePendingApproval(t *testing.T) {
	s := newTestStore(t)
	limiter := NewRateLimiter(20, 20)
	gw := NewGateway(s, limiter, nil)

	gw.ProcessInbound("telegram", "42", "Stranger", "hello")
	if err := gw.ResolvePendingApproval("telegram", "42", true, time.Hour, ""); err != nil {
		t.Fatalf("ResolvePendingApproval: %v", err)
	}
	if tier := s.Classify("telegram", "42"); tier != TierApproved {
		t.Errorf("expected approved after resolving, got %s", tier)
	}
}

func TestRateLimiter_AllowIncoming(t *testing.T) {
	r := NewRateLimiter(2, 20)
	for i := 0; i < 2; i++ {
		if allowed, _ := r.AllowIncoming("telegram", "1"); !allowed {
			t.Fatalf("expected message %d to be allowed", i)
		}
	}
	allowed, warn := r.AllowIncoming("telegram", "1")
	if allowed {
		t.Error("expected third message within the window to be rate-limited")
	}
	if !warn {
		t.Error("expected the first rate-limited message to warn")
	}
	_, warnAgain := r.AllowIncoming("telegram", "1")
	if warnAgain {
		t.Error("expected only one warning per rate-limited episode")
	}
}

func TestRateLimiter_AllowOutgoingBucketDepletes(t *testing.T) {
	r := NewRateLimiter(20, 1)
	if !r.AllowOutgoing("telegram", "1") {
		t.Fatal("expected first send to succeed")
	}
	if r.AllowOutgoing("telegram", "1") {
		t.Error("expected bucket to be depleted after using its single token")
	}
}
