package peer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditLog is an append-only JSONL record of every envelope sent or
// received, independent of the message content itself surviving delivery
// (spec.md §4.5: "peer traffic is audited regardless of inbox eviction").
type AuditLog struct {
	mu   sync.Mutex
	path string
}

type auditRecord struct {
	Direction string    `json:"direction"` // "sent" or "received"
	Peer      string    `json:"peer"`
	MessageID string    `json:"messageId"`
	Type      MessageType `json:"type"`
	At        time.Time `json:"at"`
	Verified  bool      `json:"verified,omitempty"`
}

// NewAuditLog opens (creating if needed) the audit log at path.
func NewAuditLog(path string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("peer: create audit dir: %w", err)
	}
	return &AuditLog{path: path}, nil
}

func (a *AuditLog) append(rec auditRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	f.Write(append(data, '\n'))
}

// RecordSent logs an outbound envelope. Agent.Send calls it only after the
// delivery succeeded, so failed sends are not recorded.
func (a *AuditLog) RecordSent(peerName string, env Envelope) {
	a.append(auditRecord{Direction: "sent", Peer: peerName, MessageID: env.MessageID, Type: env.Type, At: env.Timestamp})
}

// RecordReceived logs an inbound envelope after signature verification.
func (a *AuditLog) RecordReceived(peerName string, env Envelope, verified bool) {
	a.append(auditRecord{Direction: "received", Peer: peerName, MessageID: env.MessageID, Type: env.Type, At: env.Timestamp, Verified: verified})
}
