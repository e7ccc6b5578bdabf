package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/beaconhq/beacond/internal/logger"
)

const component = "peer"

// Transport delivers a signed envelope to its destination, trying the
// peer's advertised LAN address first and falling back to a relay server
// when the LAN address is unset or unreachable (spec.md §4.5).
type Transport struct {
	client    *http.Client
	relayURL  string // base URL of the relay server, empty disables relay
	relayAuth string // bearer token for the relay, from vault
}

// NewTransport creates a Transport. relayURL/"" disables the relay fallback.
func NewTransport(relayURL, relayAuth string) *Transport {
	return &Transport{
		client:    &http.Client{Timeout: 10 * time.Second},
		relayURL:  relayURL,
		relayAuth: relayAuth,
	}
}

// relayInboxResponse is the relay's response to GET /relay/inbox/:agent —
// every envelope currently held for that agent (spec.md §4.5.3/§6.3).
type relayInboxResponse struct {
	Envelopes []Envelope `json:"envelopes"`
}

// relayAckRequest acknowledges a relayed envelope so the relay can drop it
// from the polling agent's held queue.
type relayAckRequest struct {
	MessageID string `json:"messageId"`
}

// Deliver sends env to the given peer, LAN-direct first then relay. The
// relay fallback posts to the single /relay/send endpoint; the envelope's
// own "to" field carries the destination (spec.md §4.5.3/§6.3).
func (t *Transport) Deliver(ctx context.Context, peerInfo Info, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("peer: marshal envelope: %w", err)
	}

	if peerInfo.LANAddr != "" {
		if err := t.postTo(ctx, peerInfo.LANAddr+"/peer/envelope", body, ""); err == nil {
			return nil
		} else {
			logger.InfoCF(component, "LAN delivery failed, falling back to relay", map[string]interface{}{
				"peer": peerInfo.Name, "error": err.Error(),
			})
		}
	}

	if t.relayURL == "" {
		return fmt.Errorf("peer: no LAN route to %s and relay disabled", peerInfo.Name)
	}
	return t.postTo(ctx, t.relayURL+"/relay/send", body, t.relayAuth)
}

// PollRelayInbox fetches any envelopes the relay is holding for agentName —
// the receive side of the relay path, needed whenever a peer couldn't reach
// agentName directly and fell back to POST /relay/send itself. Returns nil,
// nil when no relay is configured.
func (t *Transport) PollRelayInbox(ctx context.Context, agentName string) ([]Envelope, error) {
	if t.relayURL == "" {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.relayURL+"/relay/inbox/"+agentName, nil)
	if err != nil {
		return nil, err
	}
	if t.relayAuth != "" {
		req.Header.Set("Authorization", "Bearer "+t.relayAuth)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("peer: relay inbox poll rejected with status %d", resp.StatusCode)
	}
	var out relayInboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("peer: decode relay inbox: %w", err)
	}
	return out.Envelopes, nil
}

// AckRelayInbox tells the relay agentName has processed messageID so it can
// be dropped from the held queue.
func (t *Transport) AckRelayInbox(ctx context.Context, agentName, messageID string) error {
	if t.relayURL == "" {
		return nil
	}
	body, err := json.Marshal(relayAckRequest{MessageID: messageID})
	if err != nil {
		return err
	}
	return t.postTo(ctx, t.relayURL+"/relay/inbox/"+agentName+"/ack", body, t.relayAuth)
}

func (t *Transport) postTo(ctx context.Context, url string, body []byte, bearer string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("peer: delivery rejected with status %d", resp.StatusCode)
	}
	return nil
}
