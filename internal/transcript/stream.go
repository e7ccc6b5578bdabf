// Package transcript tails the LLM session's append-only JSONL transcript
// and fans out assistant text messages to the channel router (spec.md C5).
package transcript

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/beaconhq/beacond/internal/logger"
)

const component = "transcript"

// messageIDKeys lists the synonymous keys different transcript recordings
// have been observed to use for the message identifier (spec.md §9 open
// question). The first present key wins.
var messageIDKeys = []string{"id", "message_id", "uuid", "messageId"}

// rawLine is a loosely-typed parse of one JSONL transcript entry. Only the
// fields needed to detect "assistant text message" are named explicitly;
// everything else is ignored.
type rawLine struct {
	Type           string          `json:"type"`
	Role           string          `json:"role"`
	Content        json.RawMessage `json:"content"`
	Text           string          `json:"text"`
	ID             string          `json:"id"`
	MessageID      string          `json:"message_id"`
	UUID           string          `json:"uuid"`
	MessageIDCamel string          `json:"messageId"`
}

// AssistantMessage is the event emitted for each new assistant text message.
type AssistantMessage struct {
	Text      string
	MessageID string
}

// NewestPathFn returns the newest transcript file path, or "" if none exists.
type NewestPathFn func() (string, error)

// position tracks per-file read state (spec.md §3 Transcript position).
type position struct {
	path    string
	offset  int64
	partial []byte
	mtime   time.Time
}

// Stats is the rolling delivery counter exposed for diagnostics (spec.md §4.2).
type Stats struct {
	Emitted         int64 `json:"emitted"`
	DroppedDuplicate int64 `json:"dropped_duplicate"`
	ParseErrors     int64 `json:"parse_errors"`
}

// Stream is the transcript tailer. Construct with New, then Run in a
// goroutine; feed it kicks via Kick or let the internal
// watcher/ticker drive it.
type Stream struct {
	newestPath NewestPathFn
	onMessage  func(AssistantMessage)
	pollEvery  time.Duration

	mu       sync.Mutex
	pos      position
	seen     map[string]struct{}
	seenOrder []string
	stats    Stats

	dirty chan struct{} // single "dirty" flag, combines hook+watch+poll kicks
}

const maxSeenDedup = 10_000

// New creates a Stream. onMessage is invoked synchronously from the Run
// goroutine for each newly observed assistant message, deduplicated by
// message id.
func New(newestPath NewestPathFn, onMessage func(AssistantMessage), pollEvery time.Duration) *Stream {
	if pollEvery <= 0 {
		pollEvery = 5 * time.Second
	}
	return &Stream{
		newestPath: newestPath,
		onMessage:  onMessage,
		pollEvery:  pollEvery,
		seen:       make(map[string]struct{}),
		dirty:      make(chan struct{}, 1),
	}
}

// Kick signals the stream to re-read on its next tick. Non-blocking: if a
// dirty flag is already pending, this is a no-op (spec.md §8 boundary
// behavior — one read pass per inflight dirty flag).
func (s *Stream) Kick() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// Stats returns a snapshot of the rolling delivery counters.
func (s *Stream) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run blocks, combining hook kicks (via Kick), an fsnotify watcher on the
// transcript directory, and a safety-net polling ticker, until ctx is
// cancelled.
func (s *Stream) Run(ctx context.Context, watchDir string) {
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if watchDir != "" {
			if err := watcher.Add(watchDir); err != nil {
				logger.WarnCF(component, "failed to watch transcript dir", map[string]interface{}{"error": err.Error()})
			}
		}
		defer watcher.Close()
	} else {
		logger.WarnCF(component, "fsnotify unavailable, relying on poll timer", map[string]interface{}{"error": err.Error()})
	}

	ticker := time.NewTicker(s.pollEvery)
	defer ticker.Stop()

	s.readOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.dirty:
			s.readOnce()
		case <-ticker.C:
			s.readOnce()
		case ev, ok := <-watcherEvents(watcher):
			if !ok {
				continue
			}
			_ = ev
			s.readOnce()
		}
	}
}

func watcherEvents(w *fsnotify.Watcher) chan fsnotify.Event {
	if w == nil {
		return nil
	}
	return w.Events
}

// readOnce discovers the newest transcript file, reads any new bytes, and
// emits assistant messages. Rotation (new path, or shrunk file) resets the
// offset to zero and discards the partial buffer (spec.md §4.2).
func (s *Stream) readOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.newestPath()
	if err != nil {
		logger.WarnCF(component, "failed to resolve newest transcript", map[string]interface{}{"error": err.Error()})
		return
	}
	if path == "" {
		return
	}

	if path != s.pos.path {
		s.pos = position{path: path}
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.WarnCF(component, "failed to stat transcript", map[string]interface{}{"error": err.Error()})
		return
	}
	if info.Size() < s.pos.offset {
		// Rotation mid-session: file shrank below our recorded offset.
		s.pos = position{path: path}
	}

	f, err := os.Open(path)
	if err != nil {
		logger.WarnCF(component, "failed to open transcript", map[string]interface{}{"error": err.Error()})
		return
	}
	defer f.Close()

	if _, err := f.Seek(s.pos.offset, 0); err != nil {
		logger.WarnCF(component, "failed to seek transcript", map[string]interface{}{"error": err.Error()})
		return
	}

	reader := bufio.NewReader(f)
	var advanced int64
	for {
		chunk, err := reader.ReadBytes('\n')
		if len(chunk) > 0 {
			if err == nil {
				// Full line: prepend any partial buffer from a previous read.
				full := append(s.pos.partial, chunk...)
				s.pos.partial = nil
				advanced += int64(len(chunk))
				s.processLine(full)
			} else {
				// Trailing partial line: buffer until a newline arrives, and
				// move the offset past it so it is not read a second time.
				s.pos.partial = append(s.pos.partial, chunk...)
				advanced += int64(len(chunk))
			}
		}
		if err != nil {
			break
		}
	}
	s.pos.offset += advanced
	s.pos.mtime = info.ModTime()
}

func (s *Stream) processLine(raw []byte) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return
	}

	var rl rawLine
	if err := json.Unmarshal(raw, &rl); err != nil {
		s.stats.ParseErrors++
		logger.WarnCF(component, "failed to parse transcript line", map[string]interface{}{"error": err.Error()})
		return
	}

	if !isAssistantTextMessage(rl) {
		return
	}

	text := extractText(rl)
	if text == "" {
		return
	}

	msgID := extractMessageID(rl)
	if msgID == "" {
		msgID = uuid.NewString()
	}

	if _, dup := s.seen[msgID]; dup {
		s.stats.DroppedDuplicate++
		return
	}
	s.markSeen(msgID)
	s.stats.Emitted++

	if s.onMessage != nil {
		s.onMessage(AssistantMessage{Text: text, MessageID: msgID})
	}
}

func (s *Stream) markSeen(id string) {
	s.seen[id] = struct{}{}
	s.seenOrder = append(s.seenOrder, id)
	if len(s.seenOrder) > maxSeenDedup {
		drop := s.seenOrder[0]
		s.seenOrder = s.seenOrder[1:]
		delete(s.seen, drop)
	}
}

func isAssistantTextMessage(rl rawLine) bool {
	if rl.Role != "" && rl.Role != "assistant" {
		return false
	}
	if rl.Type != "" && rl.Type != "assistant" && rl.Type != "message" && rl.Type != "text" {
		return false
	}
	return true
}

func extractMessageID(rl rawLine) string {
	for _, key := range messageIDKeys {
		switch key {
		case "id":
			if rl.ID != "" {
				return rl.ID
			}
		case "message_id":
			if rl.MessageID != "" {
				return rl.MessageID
			}
		case "uuid":
			if rl.UUID != "" {
				return rl.UUID
			}
		case "messageId":
			if rl.MessageIDCamel != "" {
				return rl.MessageIDCamel
			}
		}
	}
	return ""
}

func extractText(rl rawLine) string {
	if rl.Text != "" {
		return strings.TrimSpace(rl.Text)
	}
	if len(rl.Content) == 0 {
		return ""
	}

	// content may be a plain string or a list of content blocks with
	// {"type":"text","text":"..."} entries.
	var asString string
	if err := json.Unmarshal(rl.Content, &asString); err == nil {
		return strings.TrimSpace(asString)
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(rl.Content, &blocks); err != nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range blocks {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

