package httpapi

import (
	"net/http"

	"github.com/beaconhq/beacond/internal/access"
	"github.com/beaconhq/beacond/internal/logger"
)

const webhookComponent = "httpapi.webhook"

type chatbotWebhookPayload struct {
	SenderID string `json:"sender_id"`
	Name     string `json:"name"`
	ChatID   string `json:"chat_id"`
	Text     string `json:"text"`
}

// handleChatbotWebhook is the generic ingress for webhook-style chatbot
// platforms configured under channels.chatbots (spec.md §3 ChatbotConfig),
// as opposed to the polling/socket-mode adapters in internal/channels which
// run their own long-lived ingress loop. Every webhook channel shares this
// one handler, keyed by the registered path.
func (s *Server) handleChatbotWebhook(w http.ResponseWriter, r *http.Request) {
	channel, ok := s.deps.ChatbotWebhooks[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}

	var payload chatbotWebhookPayload
	if err := decodeJSON(r, &payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if payload.SenderID == "" || payload.Text == "" {
		http.Error(w, "missing sender_id or text", http.StatusBadRequest)
		return
	}

	if s.deps.Router != nil {
		s.deps.Router.RecordLastChatID(channel, payload.ChatID)
	}

	decision := s.deps.Gateway.ProcessInbound(channel, payload.SenderID, payload.Name, payload.Text)
	switch decision.Action {
	case access.ActionDropSilent, access.ActionReplyDenied, access.ActionHoldPending, access.ActionRateLimited:
		logger.InfoCF(webhookComponent, "webhook message not injected", map[string]interface{}{
			"channel": channel, "action": string(decision.Action),
		})
		writeJSON(w, http.StatusAccepted, healthResponse{Status: "held"})
		return
	}

	text := payload.Text
	if decision.Action == access.ActionInjectTagged {
		text = access.ThirdPartyTagPrefix + text
	}
	s.deps.Bridge.InjectText(r.Context(), text, true)
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
