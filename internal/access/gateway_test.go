package access

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGateway_ProcessInbound_SafeSenderInjectsDirectly(t *testing.T) {
	dir := t.TempDir()
	safePath := filepath.Join(dir, "safe.json")
	if err := os.WriteFile(safePath, []byte(`{"safe":["telegram:1"]}`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s, err := NewStore(filepath.Join(dir, "state.json"), safePath)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	gw := NewGateway(s, NewRateLimiter(20, 20), nil)

	dec := gw.ProcessInbound("telegram", "1", "Primary", "hi")
	if dec.Action != ActionInject {
		t.Fatalf("expected ActionInject for a safe sender, got %s", dec.Action)
	}
}

func TestGateway_ProcessInbound_ApprovedSenderGetsTagged(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "safe.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Approve("slack", "u1", "Bob", "approved", 0); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	gw := NewGateway(s, NewRateLimiter(20, 20), nil)

	dec := gw.ProcessInbound("slack", "u1", "Bob", "what's up")
	if dec.Action != ActionInjectTagged {
		t.Fatalf("expected ActionInjectTagged for an approved sender, got %s", dec.Action)
	}
}

func TestGateway_ProcessInbound_BlockedSenderDropsSilently(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "safe.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Block("discord", "troll", "Troll", "admin", "spam"); err != nil {
		t.Fatalf("Block: %v", err)
	}
	gw := NewGateway(s, NewRateLimiter(20, 20), nil)

	dec := gw.ProcessInbound("discord", "troll", "Troll", "hey")
	if dec.Action != ActionDropSilent {
		t.Fatalf("expected ActionDropSilent for a blocked sender, got %s", dec.Action)
	}
}

func TestGateway_ProcessInbound_DeniedRepeatContactStaysDenied(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "safe.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.Deny("telegram", "2", "Eve", "first denial"); err != nil {
		t.Fatalf("Deny: %v", err)
	}
	gw := NewGateway(s, NewRateLimiter(20, 20), nil)

	dec := gw.ProcessInbound("telegram", "2", "Eve", "please respond")
	if dec.Action != ActionReplyDenied {
		t.Fatalf("expected ActionReplyDenied, got %s", dec.Action)
	}
}

func TestGateway_ProcessInbound_RateLimited(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "safe.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	gw := NewGateway(s, NewRateLimiter(1, 20), nil)

	gw.ProcessInbound("telegram", "3", "Mallory", "one")
	dec := gw.ProcessInbound("telegram", "3", "Mallory", "two")
	if dec.Action != ActionRateLimited {
		t.Fatalf("expected ActionRateLimited, got %s", dec.Action)
	}
}

func TestGateway_CheckOutgoing(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "safe.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	gw := NewGateway(s, NewRateLimiter(20, 1), nil)

	if !gw.CheckOutgoing("telegram", "1") {
		t.Fatal("expected first outgoing send to be allowed")
	}
	if gw.CheckOutgoing("telegram", "1") {
		t.Error("expected second outgoing send to be blocked by the token bucket")
	}
}

func TestGateway_ResolvePendingApproval_Deny(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "safe.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	gw := NewGateway(s, NewRateLimiter(20, 20), nil)

	gw.ProcessInbound("telegram", "4", "Stranger", "hello")
	if err := gw.ResolvePendingApproval("telegram", "4", false, 0, "not recognized"); err != nil {
		t.Fatalf("ResolvePendingApproval: %v", err)
	}
	if tier := s.Classify("telegram", "4"); tier != TierDenied {
		t.Errorf("expected denied after rejecting the pending request, got %s", tier)
	}
}

func TestGateway_ResolvePendingApproval_NoPendingRequest(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "safe.json"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	gw := NewGateway(s, NewRateLimiter(20, 20), nil)

	if err := gw.ResolvePendingApproval("telegram", "never-asked", true, 0, ""); err == nil {
		t.Error("expected an error when resolving a non-existent pending request")
	}
}
