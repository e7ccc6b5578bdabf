// Package access implements sender classification, the approval state
// machine, and rate limiting (spec.md C8).
package access

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/beaconhq/beacond/internal/logger"
)

const component = "access"

// Tier is the classification result for a sender.
type Tier string

const (
	TierBlocked  Tier = "blocked"
	TierSafe     Tier = "safe"
	TierApproved Tier = "approved"
	TierDenied   Tier = "denied"
	TierUnknown  Tier = "unknown"
)

type ApprovedEntry struct {
	ID        string     `json:"id"`
	Channel   string     `json:"channel"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	ApprovedAt time.Time `json:"approved_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

type DeniedEntry struct {
	ID       string    `json:"id"`
	Channel  string    `json:"channel"`
	Name     string    `json:"name"`
	DeniedAt time.Time `json:"denied_at"`
	Count    int       `json:"count"`
	Reason   string    `json:"reason,omitempty"`
}

type BlockedEntry struct {
	ID        string    `json:"id"`
	Channel   string    `json:"channel"`
	Name      string    `json:"name"`
	BlockedAt time.Time `json:"blocked_at"`
	By        string    `json:"by"`
	Reason    string    `json:"reason,omitempty"`
}

type PendingEntry struct {
	ID             string    `json:"id"`
	Channel        string    `json:"channel"`
	Name           string    `json:"name"`
	RequestedAt    time.Time `json:"requested_at"`
	MessagePreview string    `json:"message_preview"`
}

type stateFile struct {
	Approved []ApprovedEntry `json:"approved"`
	Denied   []DeniedEntry   `json:"denied"`
	Blocked  []BlockedEntry  `json:"blocked"`
	Pending  []PendingEntry  `json:"pending"`
}

type safeFile struct {
	Safe []string `json:"safe"` // "channel:id" keys
}

// autoBlockThreshold is the number of consecutive denials after which a
// sender is automatically moved to blocked (spec.md §4.6).
const autoBlockThreshold = 3

// Store holds classification state and persists it to two JSON files: the
// short-term classification state and the long-term safe-sender list.
type Store struct {
	mu sync.RWMutex

	statePath string
	safePath  string

	approved map[string]ApprovedEntry // key: channel:id
	denied   map[string]DeniedEntry
	blocked  map[string]BlockedEntry
	pending  map[string]PendingEntry
	safe     map[string]struct{}
}

func key(channel, id string) string { return channel + ":" + id }

// NewStore loads (or creates) classification state from statePath and safe
// senders from safePath.
func NewStore(statePath, safePath string) (*Store, error) {
	s := &Store{
		statePath: statePath,
		safePath:  safePath,
		approved:  make(map[string]ApprovedEntry),
		denied:    make(map[string]DeniedEntry),
		blocked:   make(map[string]BlockedEntry),
		pending:   make(map[string]PendingEntry),
		safe:      make(map[string]struct{}),
	}
	if err := s.loadState(); err != nil {
		return nil, err
	}
	if err := s.loadSafe(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadState() error {
	data, err := os.ReadFile(s.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("access: load state: %w", err)
	}
	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("access: parse state: %w", err)
	}
	for _, e := range f.Approved {
		s.approved[key(e.Channel, e.ID)] = e
	}
	for _, e := range f.Denied {
		s.denied[key(e.Channel, e.ID)] = e
	}
	for _, e := range f.Blocked {
		s.blocked[key(e.Channel, e.ID)] = e
	}
	for _, e := range f.Pending {
		s.pending[key(e.Channel, e.ID)] = e
	}
	return nil
}

func (s *Store) loadSafe() error {
	data, err := os.ReadFile(s.safePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("access: load safe: %w", err)
	}
	var f safeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("access: parse safe: %w", err)
	}
	for _, k := range f.Safe {
		s.safe[k] = struct{}{}
	}
	return nil
}

// mu must be held by caller.
func (s *Store) saveState() error {
	f := stateFile{}
	for _, e := range s.approved {
		f.Approved = append(f.Approved, e)
	}
	for _, e := range s.denied {
		f.Denied = append(f.Denied, e)
	}
	for _, e := range s.blocked {
		f.Blocked = append(f.Blocked, e)
	}
	for _, e := range s.pending {
		f.Pending = append(f.Pending, e)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.statePath, data)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".beacond-access-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// Classify returns the first matching tier in the order blocked -> safe ->
// approved (respecting expiry) -> denied -> unknown (spec.md §4.6).
func (s *Store) Classify(channel, id string) Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.classifyLocked(channel, id)
}

func (s *Store) classifyLocked(channel, id string) Tier {
	k := key(channel, id)

	if _, ok := s.blocked[k]; ok {
		return TierBlocked
	}
	if _, ok := s.safe[k]; ok {
		return TierSafe
	}
	if e, ok := s.approved[k]; ok {
		if e.ExpiresAt == nil || e.ExpiresAt.After(time.Now()) {
			return TierApproved
		}
		// Expired: behaves as unknown, triggers re-approval on next cycle.
		delete(s.approved, k)
		s.saveState()
		return TierUnknown
	}
	if _, ok := s.denied[k]; ok {
		return TierDenied
	}
	return TierUnknown
}

// Approve moves a sender to the approved tier, clearing any pending entry.
func (s *Store) Approve(channel, id, name, approveType string, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(channel, id)
	entry := ApprovedEntry{ID: id, Channel: channel, Name: name, Type: approveType, ApprovedAt: time.Now()}
	if duration != 0 {
		exp := time.Now().Add(duration)
		entry.ExpiresAt = &exp
	}
	s.approved[k] = entry
	delete(s.pending, k)
	logger.InfoCF(component, "sender approved", map[string]interface{}{"channel": channel, "id": id})
	return s.saveState()
}

// Deny records a denial, auto-blocking after autoBlockThreshold consecutive denials.
func (s *Store) Deny(channel, id, name, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(channel, id)
	entry, existed := s.denied[k]
	if !existed {
		entry = DeniedEntry{ID: id, Channel: channel, Name: name}
	}
	entry.Count++
	entry.DeniedAt = time.Now()
	entry.Reason = reason
	s.denied[k] = entry
	delete(s.pending, k)

	if entry.Count >= autoBlockThreshold {
		s.blocked[k] = BlockedEntry{ID: id, Channel: channel, Name: name, BlockedAt: time.Now(), By: "auto", Reason: "consecutive denials"}
		logger.WarnCF(component, "sender auto-blocked after repeated denials", map[string]interface{}{"channel": channel, "id": id, "count": entry.Count})
	}

	return s.saveState()
}

// Block adds a sender to the blocked tier explicitly (e.g. via admin action).
func (s *Store) Block(channel, id, name, by, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(channel, id)
	s.blocked[k] = BlockedEntry{ID: id, Channel: channel, Name: name, BlockedAt: time.Now(), By: by, Reason: reason}
	return s.saveState()
}

// RecordPending creates (or refreshes) a pending approval record for an
// unknown sender.
func (s *Store) RecordPending(channel, id, name, preview string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(channel, id)
	s.pending[k] = PendingEntry{ID: id, Channel: channel, Name: name, RequestedAt: time.Now(), MessagePreview: preview}
	return s.saveState()
}

// PendingFor returns the pending entry for a sender, if any.
func (s *Store) PendingFor(channel, id string) (PendingEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.pending[key(channel, id)]
	return e, ok
}

// ExpirePendingOlderThan auto-denies pending approval requests that have
// sat unanswered longer than maxAge, so a forgotten prompt doesn't hold a
// sender's message forever (spec.md C10 pending-approval expiry sweep).
// Returns the entries that were expired.
func (s *Store) ExpirePendingOlderThan(maxAge time.Duration) []PendingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var expired []PendingEntry
	for k, e := range s.pending {
		if e.RequestedAt.Before(cutoff) {
			expired = append(expired, e)
			delete(s.pending, k)
			d := s.denied[k]
			if d.ID == "" {
				d = DeniedEntry{ID: e.ID, Channel: e.Channel, Name: e.Name}
			}
			d.Count++
			d.DeniedAt = time.Now()
			d.Reason = "pending approval expired unanswered"
			s.denied[k] = d
		}
	}
	if len(expired) > 0 {
		s.saveState()
	}
	return expired
}

// SweepExpiredApprovals removes expired approved entries and returns how
// many were removed, for the periodic audit task (spec.md §4.6 Expiry).
func (s *Store) SweepExpiredApprovals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	now := time.Now()
	for k, e := range s.approved {
		if e.ExpiresAt != nil && e.ExpiresAt.Before(now) {
			delete(s.approved, k)
			removed++
		}
	}
	if removed > 0 {
		s.saveState()
	}
	return removed
}
