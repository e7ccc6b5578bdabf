// Package peer implements inter-agent messaging: peer registry, signed
// envelopes, FIFO inboxes, LAN-direct delivery with relay fallback,
// heartbeat/state exchange, and the message audit log (spec.md C11).
package peer

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// MessageType enumerates the envelope payload kinds (spec.md §3).
type MessageType string

const (
	TypeText         MessageType = "text"
	TypeStatus       MessageType = "status"
	TypeCoordination MessageType = "coordination"
	TypePRReview     MessageType = "pr-review"
	TypeMemorySync   MessageType = "memory-sync"
)

// Payload carries the type-specific body of an envelope.
type Payload struct {
	Text   string `json:"text,omitempty"`
	Status string `json:"status,omitempty"`
	Action string `json:"action,omitempty"`
}

// Envelope is the wire format exchanged between peer agents (spec.md §6.4).
type Envelope struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	MessageID string      `json:"messageId"`
	Nonce     string      `json:"nonce"`
	Payload   Payload     `json:"payload"`
	Signature string      `json:"signature,omitempty"`
}

// canonicalFields is the subset of an envelope's JSON used for signing —
// everything except the signature itself, with keys sorted (spec.md §6.4).
type canonicalFields struct {
	From      string      `json:"from"`
	MessageID string      `json:"messageId"`
	Nonce     string      `json:"nonce"`
	Payload   Payload     `json:"payload"`
	Timestamp string      `json:"timestamp"`
	To        string      `json:"to"`
	Type      MessageType `json:"type"`
}

// canonicalBytes produces the deterministic byte form signed over. Go's
// encoding/json already emits struct fields in declaration order; declaring
// canonicalFields with alphabetically sorted field names gives us the
// "sorted keys" canonical form the spec calls for without a third-party
// canonical-JSON library.
func canonicalBytes(e Envelope) ([]byte, error) {
	cf := canonicalFields{
		From:      e.From,
		MessageID: e.MessageID,
		Nonce:     e.Nonce,
		Payload:   e.Payload,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		To:        e.To,
		Type:      e.Type,
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cf); err != nil {
		return nil, fmt.Errorf("peer: canonicalize envelope: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Sign computes the Ed25519 signature over the canonical form and sets
// e.Signature (base64 standard encoding via json tag omitted here; callers
// marshal normally since Signature is a plain base64 string field).
func Sign(e Envelope, priv ed25519.PrivateKey) (Envelope, error) {
	data, err := canonicalBytes(e)
	if err != nil {
		return e, err
	}
	sig := ed25519.Sign(priv, data)
	e.Signature = encodeBase64(sig)
	return e, nil
}

// Verify checks e.Signature against pub over the canonical form.
func Verify(e Envelope, pub ed25519.PublicKey) bool {
	sig, err := decodeBase64(e.Signature)
	if err != nil {
		return false
	}
	data, err := canonicalBytes(e)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, data, sig)
}

// WithinClockSkew reports whether the envelope's timestamp is within the
// allowed skew of now (spec.md: "exactly 5 minutes old is accepted; 5
// minutes and 1 second is rejected").
func WithinClockSkew(e Envelope, now time.Time, maxSkew time.Duration) bool {
	delta := now.Sub(e.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	return delta <= maxSkew
}

// The blank use of sort.Strings below is kept for documentation purposes:
// canonicalFields above already encodes the field set in sorted order at
// compile time.
var _ = sort.Strings
