package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/beaconhq/beacond/internal/bus"
	"github.com/beaconhq/beacond/internal/router"
	"github.com/beaconhq/beacond/internal/session"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	br := session.New("default", "beacon-test", filepath.Join(dir, "transcripts"), ".jsonl")
	rt := router.New(filepath.Join(dir, "channel.txt"), bus.New())
	return New(Deps{
		Bridge:               br,
		Router:               rt,
		AgentName:            "beacon",
		ExternalTunnelHeader: "X-Forwarded-Tunnel",
	})
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("expected status ok, got %q", resp.Status)
	}
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ActiveChannel != "telegram" {
		t.Errorf("expected default active channel telegram, got %q", resp.ActiveChannel)
	}
}

func TestLocalOnlyRejectsTunneledAdminRequest(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("X-Forwarded-Tunnel", "1")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected tunneled admin request to 404, got %d", rec.Code)
	}
}

func TestLocalOnlyAllowsDirectAdminRequest(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected direct admin request to succeed, got %d", rec.Code)
	}
}

func TestVoiceStatusEndpointReportsNoPending(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/voice/status", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp voiceStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Pending {
		t.Error("expected no pending voice request on a fresh router")
	}
}
