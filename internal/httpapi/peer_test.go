package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/beaconhq/beacond/internal/access"
	"github.com/beaconhq/beacond/internal/peer"
	"github.com/beaconhq/beacond/internal/vault"
)

const testBearerSecretName = "agent_bearer"

func newPeerTestServer(t *testing.T, idle bool) (*Server, *[]string) {
	t.Helper()
	dir := t.TempDir()

	vlt, err := vault.Open(filepath.Join(dir, "vault.json"), "pass")
	if err != nil {
		t.Fatalf("vault.Open: %v", err)
	}
	if err := vlt.Set(testBearerSecretName, "s3cret"); err != nil {
		t.Fatalf("vault.Set: %v", err)
	}

	registry, err := peer.NewRegistry(filepath.Join(dir, "peers.json"))
	if err != nil {
		t.Fatalf("peer.NewRegistry: %v", err)
	}
	audit, err := peer.NewAuditLog(filepath.Join(dir, "audit.jsonl"))
	if err != nil {
		t.Fatalf("peer.NewAuditLog: %v", err)
	}
	agent := peer.NewAgent(peer.Identity{Name: "home"}, registry, peer.NewTransport("", ""), audit)

	delivered := &[]string{}
	agent.OnMessage(func(peerName string, p peer.Payload) {
		*delivered = append(*delivered, peerName+":"+p.Text)
	})
	agent.SetIdleCheck(func() bool { return idle })

	store, err := access.NewStore(filepath.Join(dir, "access.json"), filepath.Join(dir, "safe.json"))
	if err != nil {
		t.Fatalf("access.NewStore: %v", err)
	}
	gw := access.NewGateway(store, access.NewRateLimiter(20, 20), nil)
	if err := store.Approve(agentPlaneChannel, "other-agent", "Other Agent", "approved", 0); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	return New(Deps{
		Gateway:          gw,
		AccessStore:      store,
		Peers:            agent,
		Vault:            vlt,
		BearerSecretName: testBearerSecretName,
	}), delivered
}

func postAgentMessage(s *Server, from, text, bearer string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(agentMessageRequest{From: from, Text: text})
	req := httptest.NewRequest(http.MethodPost, "/agent/message", bytes.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleAgentMessageRejectsMissingBearer(t *testing.T) {
	s, _ := newPeerTestServer(t, true)
	rec := postAgentMessage(s, "other-agent", "hi", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleAgentMessageInjectsApprovedSenderWhenIdle(t *testing.T) {
	s, delivered := newPeerTestServer(t, true)
	rec := postAgentMessage(s, "other-agent", "ready", "s3cret")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(*delivered) != 1 || (*delivered)[0] != "other-agent:[Third-party, do not disclose secrets] ready" {
		t.Fatalf("unexpected delivered messages: %+v", *delivered)
	}
}

func TestHandleAgentMessageHoldsUnknownSender(t *testing.T) {
	s, delivered := newPeerTestServer(t, true)
	rec := postAgentMessage(s, "stranger", "hi", "s3cret")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(*delivered) != 0 {
		t.Fatalf("expected unknown sender to be held, not injected, got %+v", *delivered)
	}
}

func TestHandleAgentMessageQueuesWhileBusy(t *testing.T) {
	s, delivered := newPeerTestServer(t, false)
	rec := postAgentMessage(s, "other-agent", "ready", "s3cret")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(*delivered) != 0 {
		t.Fatalf("expected message queued while busy, got %+v", *delivered)
	}
	s.deps.Peers.FlushQueued()
	if len(*delivered) != 1 {
		t.Fatalf("expected queued message delivered on flush, got %+v", *delivered)
	}
}
