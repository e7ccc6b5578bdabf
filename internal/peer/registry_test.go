package peer

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAddAndGetPeer(t *testing.T) {
	r, err := NewRegistry(filepath.Join(t.TempDir(), "peers.json"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := r.Add(Info{Name: "sentry", PublicKey: "abcd", LANAddr: "10.0.0.5:9000"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	info, ok := r.Get("sentry")
	if !ok {
		t.Fatal("expected sentry to be registered")
	}
	if info.LANAddr != "10.0.0.5:9000" {
		t.Errorf("unexpected LAN addr: %q", info.LANAddr)
	}
}

func TestRegistryPersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.json")
	r, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := r.Add(Info{Name: "watchtower", PublicKey: "xyz"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	reloaded, err := NewRegistry(path)
	if err != nil {
		t.Fatalf("reload NewRegistry: %v", err)
	}
	if _, ok := reloaded.Get("watchtower"); !ok {
		t.Fatal("expected watchtower to survive reload")
	}
}

func TestMarkSeenAndMarkOffline(t *testing.T) {
	r, err := NewRegistry(filepath.Join(t.TempDir(), "peers.json"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if err := r.Add(Info{Name: "sentry"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	now := time.Now()
	r.MarkSeen("sentry", now)
	info, _ := r.Get("sentry")
	if !info.Online {
		t.Error("expected sentry to be online after MarkSeen")
	}
	if info.LastSeenMillis != now.UnixMilli() {
		t.Errorf("unexpected LastSeenMillis: %d", info.LastSeenMillis)
	}

	r.MarkOffline("sentry")
	info, _ = r.Get("sentry")
	if info.Online {
		t.Error("expected sentry to be offline after MarkOffline")
	}
}

func TestAllReturnsEverySnapshottedPeer(t *testing.T) {
	r, err := NewRegistry(filepath.Join(t.TempDir(), "peers.json"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	r.Add(Info{Name: "sentry"})
	r.Add(Info{Name: "watchtower"})
	if got := len(r.All()); got != 2 {
		t.Errorf("expected 2 peers, got %d", got)
	}
}

func TestLoadOrCreateIdentityPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.json")
	id1, err := LoadOrCreateIdentity(path, "beacon")
	if err != nil {
		t.Fatalf("LoadOrCreateIdentity: %v", err)
	}
	if id1.Name != "beacon" {
		t.Errorf("unexpected name: %q", id1.Name)
	}

	id2, err := LoadOrCreateIdentity(path, "ignored-on-reload")
	if err != nil {
		t.Fatalf("reload LoadOrCreateIdentity: %v", err)
	}
	if !id1.Pub.Equal(id2.Pub) {
		t.Error("expected the same keypair to be loaded on the second call")
	}
	if id2.Name != "beacon" {
		t.Errorf("expected the persisted name to win over the reload argument, got %q", id2.Name)
	}
}
