package httpapi

import (
	"context"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/beaconhq/beacond/internal/access"
	"github.com/beaconhq/beacond/internal/logger"
	"github.com/beaconhq/beacond/internal/peer"
	"github.com/beaconhq/beacond/internal/vault"
)

const peerTextType = peer.TypeText

func peerTextPayload(text string) peer.Payload { return peer.Payload{Text: text} }

// indexedFactID derives a stable dedup key for a synced fact from its
// source and content, mirroring internal/tasks' own digest-fact hashing.
func indexedFactID(source string, index int, content string) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%s:%d:%s", source, index, content)))
	return hex.EncodeToString(h[:])
}

const peerComponent = "httpapi.peer"

// authenticateBearer checks the Authorization: Bearer <token> header against
// the shared secret in the vault. This is the lightweight authentication
// plane for the /agent/* routes, distinct from the Ed25519-signed envelope
// plane at /peer/envelope (spec.md §4.5 offers both: a simple bearer-token
// mode for a minimal peer, and full signed envelopes for a first-class one).
func (s *Server) authenticateBearer(r *http.Request) bool {
	if s.deps.Vault == nil || s.deps.BearerSecretName == "" {
		return false
	}
	secret, err := s.deps.Vault.Get(s.deps.BearerSecretName)
	if err != nil {
		if err != vault.ErrKeyNotFound {
			logger.ErrorCF(peerComponent, "failed to read bearer secret", map[string]interface{}{"error": err.Error()})
		}
		return false
	}
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return false
	}
	given := auth[len(prefix):]
	return subtle.ConstantTimeCompare([]byte(given), []byte(secret)) == 1
}

type agentMessageRequest struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// agentPlaneChannel is the access-control channel name used to classify
// senders on the bearer-token agent plane, distinct from chat-platform
// channel names (telegram, slack, ...).
const agentPlaneChannel = "agent"

// handleAgentMessage accepts a bearer-authenticated message from a peer that
// doesn't speak the signed-envelope protocol. It is classified through the
// same access gateway as every other inbound source (spec.md §4.6) and,
// once accepted, injected immediately if the session is idle or queued in
// the peer agent's FIFO inbox until the next Stop hook (spec.md §4.5.2) —
// the same idle-gated path the signed-envelope plane uses.
func (s *Server) handleAgentMessage(w http.ResponseWriter, r *http.Request) {
	if !s.authenticateBearer(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req agentMessageRequest
	if err := decodeJSON(r, &req); err != nil || req.From == "" || req.Text == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if s.deps.Peers == nil {
		http.Error(w, "peer messaging not configured", http.StatusServiceUnavailable)
		return
	}

	decision := s.deps.Gateway.ProcessInbound(agentPlaneChannel, req.From, req.From, req.Text)
	switch decision.Action {
	case access.ActionDropSilent, access.ActionReplyDenied, access.ActionHoldPending, access.ActionRateLimited:
		logger.InfoCF(peerComponent, "agent-plane message not injected", map[string]interface{}{
			"from": req.From, "action": string(decision.Action),
		})
		writeJSON(w, http.StatusAccepted, healthResponse{Status: "held"})
		return
	}

	text := req.Text
	if decision.Action == access.ActionInjectTagged {
		text = access.ThirdPartyTagPrefix + text
	}
	s.deps.Peers.InjectOrQueue(req.From, peer.Payload{Text: text})
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// handleAgentStatus reports (GET) or refreshes (POST) this agent's peer
// connectivity, reusing the Ed25519 peer registry/heartbeat machinery.
func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	if !s.authenticateBearer(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.deps.Peers == nil {
		http.Error(w, "peer messaging not configured", http.StatusServiceUnavailable)
		return
	}

	if r.Method == http.MethodPost {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if err := s.deps.Peers.HeartbeatAll(ctx); err != nil {
			logger.WarnCF(peerComponent, "heartbeat sweep had failures", map[string]interface{}{"error": err.Error()})
		}
	}

	var out []peerStatus
	for _, p := range s.deps.Peers.Registry().All() {
		out = append(out, peerStatus{Name: p.Name, Online: p.Online})
	}
	writeJSON(w, http.StatusOK, out)
}

type agentMemorySyncRequest struct {
	Facts []string `json:"facts"`
}

// handleAgentMemorySync lets a peer agent push facts into this agent's
// local vector memory store (spec.md §4.5 memory-sync payload type).
func (s *Server) handleAgentMemorySync(w http.ResponseWriter, r *http.Request) {
	if !s.authenticateBearer(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.deps.MemoryStore == nil {
		http.Error(w, "memory not configured", http.StatusServiceUnavailable)
		return
	}
	var req agentMemorySyncRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	indexed := 0
	for i, fact := range req.Facts {
		id := indexedFactID(r.RemoteAddr, i, fact)
		if err := s.deps.MemoryStore.IndexFact(r.Context(), id, fact); err != nil {
			logger.WarnCF(peerComponent, "failed to index synced fact", map[string]interface{}{"error": err.Error()})
			continue
		}
		indexed++
	}
	writeJSON(w, http.StatusOK, map[string]int{"indexed": indexed})
}

// handleAgentP2P is an alternate mount point for the signed-envelope plane,
// for peers that discover this agent via the /agent/* namespace rather than
// /peer/envelope directly.
func (s *Server) handleAgentP2P(w http.ResponseWriter, r *http.Request) {
	if s.deps.Peers == nil {
		http.Error(w, "peer messaging not configured", http.StatusServiceUnavailable)
		return
	}
	s.deps.Peers.ServeHTTP(w, r)
}

// handleAgentSend is a local-only admin action that sends a signed message
// to a named peer.
func (s *Server) handleAgentSend(w http.ResponseWriter, r *http.Request) {
	if s.deps.Peers == nil {
		http.Error(w, "peer messaging not configured", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Peer string `json:"peer"`
		Text string `json:"text"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Peer == "" || req.Text == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := s.deps.Peers.Send(r.Context(), req.Peer, peerTextType, peerTextPayload(req.Text)); err != nil {
		logger.ErrorCF(peerComponent, "failed to send to peer", map[string]interface{}{"peer": req.Peer, "error": err.Error()})
		http.Error(w, "send failed", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
