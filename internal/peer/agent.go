package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beaconhq/beacond/internal/logger"
)

const maxClockSkew = 5 * time.Minute

var (
	errUnknownSender    = errors.New("peer: unknown sender")
	errInvalidSignature = errors.New("peer: invalid signature")
	errStaleEnvelope    = errors.New("peer: stale envelope")
)

// Agent is the top-level peer-messaging component wiring identity, the
// peer registry, the transport, the inbox, and the audit log together
// (spec.md C11). cmd/beacond constructs one Agent and mounts its HTTP
// handler under the unified front end's /peer/ prefix.
type Agent struct {
	self      Identity
	registry  *Registry
	inbox     *Inbox
	transport *Transport
	audit     *AuditLog

	mu        sync.Mutex
	onMessage func(peerName string, p Payload)
	isIdle    func() bool

	heartbeatStop chan struct{}
	heartbeatWG   sync.WaitGroup

	relayPollStop chan struct{}
	relayPollWG   sync.WaitGroup
}

// NewAgent assembles an Agent from its constituent parts.
func NewAgent(self Identity, registry *Registry, transport *Transport, audit *AuditLog) *Agent {
	return &Agent{
		self:      self,
		registry:  registry,
		inbox:     NewInbox(),
		transport: transport,
		audit:     audit,
	}
}

// OnMessage registers the callback invoked for every accepted inbound
// message (wired by cmd/beacond into the session bridge or router).
func (a *Agent) OnMessage(fn func(peerName string, p Payload)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onMessage = fn
}

// SetIdleCheck registers the predicate deciding whether an accepted message
// is injected immediately or left queued until the next Stop hook (wired by
// cmd/beacond to session.Bridge.IsAgentIdle — spec.md §4.5.2).
func (a *Agent) SetIdleCheck(fn func() bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.isIdle = fn
}

// Send builds, signs, and delivers an envelope to a known peer.
func (a *Agent) Send(ctx context.Context, peerName string, typ MessageType, payload Payload) error {
	info, ok := a.registry.Get(peerName)
	if !ok {
		return fmt.Errorf("peer: unknown peer %q", peerName)
	}

	env := Envelope{
		From:      a.self.Name,
		To:        peerName,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		MessageID: uuid.NewString(),
		Nonce:     uuid.NewString(),
		Payload:   payload,
	}
	signed, err := Sign(env, a.self.Priv)
	if err != nil {
		return err
	}
	if err := a.transport.Deliver(ctx, info, signed); err != nil {
		return fmt.Errorf("peer: deliver to %s: %w", peerName, err)
	}
	a.audit.RecordSent(peerName, signed)
	return nil
}

// Heartbeat is a convenience wrapper sending a TypeStatus "online" ping.
func (a *Agent) Heartbeat(ctx context.Context, peerName string) error {
	return a.Send(ctx, peerName, TypeStatus, Payload{Status: "online"})
}

// HeartbeatAll pings every known peer once, marking unreachable peers
// offline. Shared by the background loop and the scheduler's
// peer-heartbeat task so a manual trigger exercises the same code path.
func (a *Agent) HeartbeatAll(ctx context.Context) error {
	var lastErr error
	for _, p := range a.registry.All() {
		if err := a.Heartbeat(ctx, p.Name); err != nil {
			a.registry.MarkOffline(p.Name)
			logger.InfoCF(component, "peer heartbeat failed", map[string]interface{}{"peer": p.Name, "error": err.Error()})
			lastErr = err
		}
	}
	return lastErr
}

// StartHeartbeatLoop pings every known peer on interval until Stop is called.
func (a *Agent) StartHeartbeatLoop(ctx context.Context, interval time.Duration) {
	a.heartbeatStop = make(chan struct{})
	a.heartbeatWG.Add(1)
	go func() {
		defer a.heartbeatWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-a.heartbeatStop:
				return
			case <-ticker.C:
				a.HeartbeatAll(ctx)
			}
		}
	}()
}

// StopHeartbeatLoop stops the background heartbeat goroutine, if running.
func (a *Agent) StopHeartbeatLoop() {
	if a.heartbeatStop != nil {
		close(a.heartbeatStop)
		a.heartbeatWG.Wait()
	}
}

// StartRelayPollLoop polls the relay on interval for envelopes peers queued
// for this agent because they couldn't reach it directly, processing each
// one through the same pipeline as the direct HTTP endpoint before acking it
// off the relay's queue (spec.md §4.5.3/§6.3 receive-via-relay path).
func (a *Agent) StartRelayPollLoop(ctx context.Context, interval time.Duration) {
	a.relayPollStop = make(chan struct{})
	a.relayPollWG.Add(1)
	go func() {
		defer a.relayPollWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-a.relayPollStop:
				return
			case <-ticker.C:
				a.pollRelayOnce(ctx)
			}
		}
	}()
}

// StopRelayPollLoop stops the background relay-poll goroutine, if running.
func (a *Agent) StopRelayPollLoop() {
	if a.relayPollStop != nil {
		close(a.relayPollStop)
		a.relayPollWG.Wait()
	}
}

func (a *Agent) pollRelayOnce(ctx context.Context) {
	envs, err := a.transport.PollRelayInbox(ctx, a.self.Name)
	if err != nil {
		logger.WarnCF(component, "relay inbox poll failed", map[string]interface{}{"error": err.Error()})
		return
	}
	for _, env := range envs {
		if err := a.acceptEnvelope(env); err != nil {
			logger.WarnCF(component, "relayed envelope rejected", map[string]interface{}{"from": env.From, "error": err.Error()})
			continue
		}
		if err := a.transport.AckRelayInbox(ctx, a.self.Name, env.MessageID); err != nil {
			logger.WarnCF(component, "failed to ack relayed envelope", map[string]interface{}{"from": env.From, "error": err.Error()})
		}
	}
}

// acceptEnvelope runs the verify/replay/audit/flush pipeline shared by the
// direct HTTP endpoint (ServeHTTP) and the relay poll loop.
func (a *Agent) acceptEnvelope(env Envelope) error {
	info, ok := a.registry.Get(env.From)
	if !ok {
		logger.WarnCF(component, "envelope from unregistered peer rejected", map[string]interface{}{"from": env.From})
		return errUnknownSender
	}
	pub, err := info.pubKey()
	if err != nil || !Verify(env, pub) {
		logger.WarnCF(component, "envelope failed signature verification", map[string]interface{}{"from": env.From})
		a.audit.RecordReceived(env.From, env, false)
		return errInvalidSignature
	}
	now := time.Now().UTC()
	if !WithinClockSkew(env, now, maxClockSkew) {
		logger.WarnCF(component, "envelope outside clock skew window rejected", map[string]interface{}{"from": env.From})
		return errStaleEnvelope
	}

	a.audit.RecordReceived(env.From, env, true)
	if err := a.inbox.Accept(env, now); err != nil {
		if _, replay := err.(ErrReplay); replay {
			// Idempotent: the peer likely retried after a slow response.
			return nil
		}
		return err
	}
	a.registry.MarkSeen(env.From, now)

	if env.Type != TypeStatus {
		a.flushIfIdle(env.From)
	}
	return nil
}

// ServeHTTP implements the inbound envelope endpoint mounted by the unified
// HTTP front end at /peer/envelope (spec.md C12).
func (a *Agent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		http.Error(w, "malformed envelope", http.StatusBadRequest)
		return
	}

	switch err := a.acceptEnvelope(env); {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, errUnknownSender):
		http.Error(w, "unknown sender", http.StatusForbidden)
	case errors.Is(err, errInvalidSignature):
		http.Error(w, "signature invalid", http.StatusForbidden)
	case errors.Is(err, errStaleEnvelope):
		http.Error(w, "stale envelope", http.StatusForbidden)
	default:
		http.Error(w, "rejected", http.StatusInternalServerError)
	}
}

// Drain removes and returns all queued messages from a given peer, for
// callers that poll instead of using the OnMessage callback.
func (a *Agent) Drain(peerName string) []Envelope {
	return a.inbox.Drain(peerName)
}

// flushIfIdle delivers peerName's queued envelopes to the OnMessage callback
// right away if the session is currently idle, otherwise leaves them queued
// for the next FlushQueued call (spec.md §4.5.2: "either injects the
// formatted message into the session or queues it in FIFO per-peer inbox
// until idle").
func (a *Agent) flushIfIdle(peerName string) {
	a.mu.Lock()
	cb := a.onMessage
	idle := a.isIdle
	a.mu.Unlock()
	if cb == nil || idle == nil || !idle() {
		return
	}
	for _, env := range a.inbox.Drain(peerName) {
		if env.Type == TypeStatus {
			continue
		}
		cb(env.From, env.Payload)
	}
}

// FlushQueued delivers every peer's queued envelopes to the OnMessage
// callback, FIFO per peer. Wired to the session's Stop hook so messages
// queued while the agent was busy get injected as soon as it goes idle.
func (a *Agent) FlushQueued() {
	a.mu.Lock()
	cb := a.onMessage
	a.mu.Unlock()
	if cb == nil {
		return
	}
	for _, env := range a.inbox.DrainAll() {
		if env.Type == TypeStatus {
			continue
		}
		cb(env.From, env.Payload)
	}
}

// InjectOrQueue is the shared idle-gated delivery path for the bearer-token
// agent plane (internal/httpapi's /agent/message), reusing the same FIFO
// inbox and OnMessage callback the signed-envelope plane uses so both
// planes format and flush queued messages identically.
func (a *Agent) InjectOrQueue(peerName string, p Payload) {
	env := Envelope{
		From:      peerName,
		Type:      TypeText,
		Timestamp: time.Now().UTC(),
		Nonce:     uuid.NewString(),
		Payload:   p,
	}
	if err := a.inbox.Accept(env, env.Timestamp); err != nil {
		return
	}
	a.flushIfIdle(peerName)
}

// Registry exposes the underlying peer registry for admin/status endpoints.
func (a *Agent) Registry() *Registry { return a.registry }
