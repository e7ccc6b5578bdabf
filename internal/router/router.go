// Package router implements the channel router (spec.md C6): it holds the
// single "current channel" selection, routes outbound assistant messages to
// the right adapter, and brokers the one-shot pending-voice mailbox.
package router

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/beaconhq/beacond/internal/bus"
	"github.com/beaconhq/beacond/internal/logger"
)

const component = "router"

// ErrVoiceBusy is returned by RegisterVoicePending when a callback is
// already pending (spec.md §4.3: at most one pending voice request at a time).
var ErrVoiceBusy = errors.New("router: a voice request is already pending")

// ErrVoiceTimeout is the error a pending voice callback resolves with if no
// assistant message arrives within the deadline.
var ErrVoiceTimeout = errors.New("router: timed out waiting for assistant response")

// TypingIndicator lets the chat-bot adapter be told to start/stop its
// "typing…" signal.
type TypingIndicator interface {
	StartTyping(chatID string)
	StopTyping(chatID string)
}

// Router owns channel selection and outbound delivery.
type Router struct {
	mu          sync.Mutex
	channelFile string
	channel     string

	msgBus *bus.MessageBus

	pendingMu sync.Mutex
	pending   *pendingVoice

	typingIndicators map[string]TypingIndicator // channel -> indicator
	typingCeiling    time.Duration

	lastChatID map[string]string // channel -> most recent inbound chat id
}

type pendingVoice struct {
	resultCh  chan voiceResult
	timer     *time.Timer
	createdAt time.Time
}

type voiceResult struct {
	text string
	err  error
}

// New creates a Router persisting channel selection to channelFile.
func New(channelFile string, msgBus *bus.MessageBus) *Router {
	r := &Router{
		channelFile:      channelFile,
		msgBus:           msgBus,
		typingIndicators: make(map[string]TypingIndicator),
		typingCeiling:    20 * time.Second,
		lastChatID:       make(map[string]string),
	}
	r.channel = r.load()
	return r
}

func (r *Router) load() string {
	data, err := os.ReadFile(r.channelFile)
	if err != nil {
		return "telegram"
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return "telegram"
	}
	return s
}

// SetChannel updates and persists the active outbound channel.
func (r *Router) SetChannel(c string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channel = c
	if err := os.MkdirAll(filepath.Dir(r.channelFile), 0755); err != nil {
		return fmt.Errorf("router: set channel: %w", err)
	}
	return os.WriteFile(r.channelFile, []byte(c), 0644)
}

// GetChannel returns the currently active channel.
func (r *Router) GetChannel() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel
}

// RegisterTypingIndicator associates a channel name with its adapter's
// typing-indicator implementation.
func (r *Router) RegisterTypingIndicator(channel string, ind TypingIndicator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typingIndicators[channel] = ind
}

// StartTyping notifies the active channel's adapter to show "typing…" and
// schedules a StopTyping call after the typing ceiling; that call is made
// even if StopTyping already arrived.
func (r *Router) StartTyping(chatID string) {
	r.mu.Lock()
	ind, ok := r.typingIndicators[r.channel]
	ceiling := r.typingCeiling
	r.mu.Unlock()
	if !ok {
		return
	}
	ind.StartTyping(chatID)
	time.AfterFunc(ceiling, func() { ind.StopTyping(chatID) })
}

// StopTyping notifies the active channel's adapter that typing is done, in
// response to an explicit /typing-done notification.
func (r *Router) StopTyping(chatID string) {
	r.mu.Lock()
	ind, ok := r.typingIndicators[r.channel]
	r.mu.Unlock()
	if !ok {
		return
	}
	ind.StopTyping(chatID)
}

// RegisterVoicePending installs the one-shot voice mailbox and returns a
// function that blocks (up to timeout) for the next assistant message or a
// timeout error. A second concurrent registration fails with ErrVoiceBusy.
func (r *Router) RegisterVoicePending(timeout time.Duration) (wait func() (string, error), err error) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()

	if r.pending != nil {
		return nil, ErrVoiceBusy
	}

	p := &pendingVoice{resultCh: make(chan voiceResult, 1), createdAt: time.Now()}
	p.timer = time.AfterFunc(timeout, func() {
		r.resolveVoice(voiceResult{err: ErrVoiceTimeout})
	})
	r.pending = p

	return func() (string, error) {
		res := <-p.resultCh
		return res.text, res.err
	}, nil
}

// IsVoicePending reports whether a voice callback is currently outstanding.
func (r *Router) IsVoicePending() bool {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	return r.pending != nil
}

// VoicePendingAge returns how long the current voice callback has been
// outstanding, and whether one is outstanding at all.
func (r *Router) VoicePendingAge() (time.Duration, bool) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	if r.pending == nil {
		return 0, false
	}
	return time.Since(r.pending.createdAt), true
}

// ClearVoicePending cancels any pending voice callback without resolving it
// (used on shutdown).
func (r *Router) ClearVoicePending() {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()
	if r.pending != nil {
		r.pending.timer.Stop()
		r.pending = nil
	}
}

func (r *Router) resolveVoice(res voiceResult) {
	r.pendingMu.Lock()
	p := r.pending
	r.pending = nil
	r.pendingMu.Unlock()
	if p == nil {
		return
	}
	p.timer.Stop()
	p.resultCh <- res
}

// RecordLastChatID remembers the most recent inbound chat id seen on a
// channel, so a later assistant message with no chat id of its own (the
// transcript stream has no notion of "conversation") can still be routed to
// the right destination (adapted from the teacher's per-workspace
// RecordLastChatID on the agent loop).
func (r *Router) RecordLastChatID(channel, chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastChatID[channel] = chatID
}

// LastChatID returns the most recently recorded chat id for a channel.
func (r *Router) LastChatID(channel string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastChatID[channel]
}

// RouteAssistantMessage is called by the transcript stream for every new
// assistant message. If the active channel is "voice" and a callback is
// pending, it resolves that callback; otherwise it delivers the text via
// the active adapter's sendMessage.
func (r *Router) RouteAssistantMessage(text, chatID string) {
	channel := r.GetChannel()

	if channel == "voice" && r.IsVoicePending() {
		r.resolveVoice(voiceResult{text: text})
		return
	}

	if r.msgBus == nil {
		return
	}
	if err := r.msgBus.PublishOutbound(bus.OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: text,
	}); err != nil {
		logger.ErrorCF(component, "failed to route assistant message", map[string]interface{}{
			"channel": channel, "error": err.Error(),
		})
	}
}
