package httpapi

import (
	"net/http"

	"github.com/beaconhq/beacond/internal/logger"
)

const hookComponent = "httpapi.hook"

type hookResponseRequest struct {
	Event  string `json:"event"`   // e.g. "Stop", "PreToolUse", "PostToolUse"
	ChatID string `json:"chat_id"` // optional: which conversation this pane activity belongs to
}

// handleHookResponse is called by the session's own hook script after every
// turn, the sole writer of agent idle/busy state (spec.md §4.1 Agent-state
// contract: only "Stop" transitions to idle).
func (s *Server) handleHookResponse(w http.ResponseWriter, r *http.Request) {
	var req hookResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Event == "" {
		http.Error(w, "missing event", http.StatusBadRequest)
		return
	}

	s.deps.Bridge.UpdateAgentState(req.Event)
	logger.DebugCF(hookComponent, "agent state updated from hook", map[string]interface{}{"event": req.Event})

	if req.Event == "Stop" && s.deps.Peers != nil {
		s.deps.Peers.FlushQueued()
	}

	if s.deps.Stream != nil {
		s.deps.Stream.Kick()
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type typingDoneRequest struct {
	ChatID string `json:"chat_id"`
}

// handleTypingDone lets an adapter (or the session hook) tell the router the
// typing indicator can be cleared before its ceiling expires.
func (s *Server) handleTypingDone(w http.ResponseWriter, r *http.Request) {
	var req typingDoneRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.deps.Router.StopTyping(req.ChatID)
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
