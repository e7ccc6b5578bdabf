package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/beaconhq/beacond/internal/access"
	"github.com/beaconhq/beacond/internal/bus"
	"github.com/beaconhq/beacond/internal/router"
	"github.com/beaconhq/beacond/internal/session"
)

func newWebhookTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	br := session.New("default", "beacon-test", filepath.Join(dir, "transcripts"), ".jsonl")
	rt := router.New(filepath.Join(dir, "channel.txt"), bus.New())
	store, err := access.NewStore(filepath.Join(dir, "access.json"), filepath.Join(dir, "safe.json"))
	if err != nil {
		t.Fatalf("access.NewStore: %v", err)
	}
	if err := store.Approve("webchat", "u1", "Friend", "approved", 0); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	gw := access.NewGateway(store, access.NewRateLimiter(20, 20), nil)

	return New(Deps{
		Bridge:          br,
		Router:          rt,
		Gateway:         gw,
		AccessStore:     store,
		AgentName:       "beacon",
		ChatbotWebhooks: map[string]string{"/hooks/webchat": "webchat"},
	})
}

func TestChatbotWebhookRecordsLastChatID(t *testing.T) {
	s := newWebhookTestServer(t)
	body, _ := json.Marshal(chatbotWebhookPayload{SenderID: "u1", Name: "Friend", ChatID: "conv-42", Text: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/hooks/webchat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := s.deps.Router.LastChatID("webchat"); got != "conv-42" {
		t.Errorf("expected last chat id conv-42, got %q", got)
	}
}

func TestChatbotWebhookUnknownPathIs404(t *testing.T) {
	s := newWebhookTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/hooks/unregistered", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestChatbotWebhookMissingFieldsIsBadRequest(t *testing.T) {
	s := newWebhookTestServer(t)
	body, _ := json.Marshal(chatbotWebhookPayload{Text: "no sender"})
	req := httptest.NewRequest(http.MethodPost, "/hooks/webchat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
