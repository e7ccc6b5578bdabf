// Package metrics records daemon operational events as an append-only
// JSONL stream, in the same spirit as the teacher's token-usage tracker
// but for the kernel's own operations (inject attempts, task runs, channel
// deliveries) rather than LLM token cost (the kernel never calls an LLM
// API directly, so there is no cost to track).
package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event is one recorded operational occurrence.
type Event struct {
	Timestamp string                 `json:"ts"`
	Kind      string                 `json:"kind"` // "inject", "task_run", "channel_send", "peer_send", ...
	Name      string                 `json:"name"`
	OK        bool                   `json:"ok"`
	DurationMS int64                 `json:"duration_ms,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Tracker appends Events to a JSONL file under stateDir/metrics/events.jsonl.
type Tracker struct {
	filePath string
	mu       sync.Mutex
}

// NewTracker creates a tracker writing to stateDir/metrics/events.jsonl.
func NewTracker(stateDir string) *Tracker {
	dir := filepath.Join(stateDir, "metrics")
	os.MkdirAll(dir, 0755)
	return &Tracker{filePath: filepath.Join(dir, "events.jsonl")}
}

// Record appends an event, stamping Timestamp if unset.
func (t *Tracker) Record(e Event) {
	if e.Timestamp == "" {
		e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	f.Write(data)
	f.Write([]byte("\n"))
}

// Timer returns a func to call at the end of an operation, recording its
// duration and outcome under kind/name.
func (t *Tracker) Timer(kind, name string) func(ok bool, fields map[string]interface{}) {
	start := time.Now()
	return func(ok bool, fields map[string]interface{}) {
		t.Record(Event{
			Kind:       kind,
			Name:       name,
			OK:         ok,
			DurationMS: time.Since(start).Milliseconds(),
			Fields:     fields,
		})
	}
}
