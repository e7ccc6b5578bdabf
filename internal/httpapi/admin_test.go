package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/beaconhq/beacond/internal/access"
	"github.com/beaconhq/beacond/internal/bus"
	"github.com/beaconhq/beacond/internal/router"
	"github.com/beaconhq/beacond/internal/scheduler"
	"github.com/beaconhq/beacond/internal/session"
)

func newAdminTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	br := session.New("default", "beacon-test", filepath.Join(dir, "transcripts"), ".jsonl")
	rt := router.New(filepath.Join(dir, "channel.txt"), bus.New())

	registry := scheduler.NewRegistry()
	registry.Register(scheduler.Task{Name: "chore", Run: func(ctx context.Context) error {
		return nil
	}})
	dispatcher, err := scheduler.New(registry, br, filepath.Join(dir, "scheduler.json"))
	if err != nil {
		t.Fatalf("scheduler.New: %v", err)
	}

	store, err := access.NewStore(filepath.Join(dir, "access.json"), filepath.Join(dir, "safe.json"))
	if err != nil {
		t.Fatalf("access.NewStore: %v", err)
	}
	limiter := access.NewRateLimiter(20, 20)
	gw := access.NewGateway(store, limiter, nil)

	return New(Deps{
		Bridge:       br,
		Router:       rt,
		Gateway:      gw,
		AccessStore:  store,
		Dispatcher:   dispatcher,
		TaskRegistry: registry,
		AgentName:    "beacon",
	})
}

func TestHandleListTasks(t *testing.T) {
	s := newAdminTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var entries []taskListEntry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "chore" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestHandleRunTaskTriggersRegisteredTask(t *testing.T) {
	s := newAdminTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/tasks/chore/run", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
}

func TestHandleRunTaskUnknownTaskReportsError(t *testing.T) {
	s := newAdminTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/tasks/missing/run", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with an error body, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "error" {
		t.Errorf("expected status error, got %+v", resp)
	}
}

func TestHandleAccessApproveResolvesPending(t *testing.T) {
	s := newAdminTestServer(t)
	s.deps.Gateway.ProcessInbound("telegram", "42", "Stranger", "hi there")

	body, _ := json.Marshal(accessApproveRequest{Channel: "telegram", SenderID: "42", Approve: true, Duration: "1h"})
	req := httptest.NewRequest(http.MethodPost, "/access/approve", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if tier := s.deps.AccessStore.Classify("telegram", "42"); tier != access.TierApproved {
		t.Errorf("expected sender to be approved, got %s", tier)
	}
}

func TestHandleAccessApproveBadRequestMissingFields(t *testing.T) {
	s := newAdminTestServer(t)
	body, _ := json.Marshal(accessApproveRequest{})
	req := httptest.NewRequest(http.MethodPost, "/access/approve", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
