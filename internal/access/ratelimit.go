package access

import (
	"sync"
	"time"
)

// RateLimiter implements the incoming sliding-window limit and the
// outgoing token-bucket limit from spec.md §3/§4.6.
type RateLimiter struct {
	mu sync.Mutex

	incomingMax int
	outgoingMax int

	incoming map[string][]time.Time // key: channel:senderId
	outgoing map[string]*bucket     // key: channel:recipientId

	// warnedEpisode tracks whether a "slow down" notice was already sent
	// for the sender's current rate-limited episode, so only one fires.
	warnedEpisode map[string]bool
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a limiter with the configured per-minute ceilings.
func NewRateLimiter(incomingMaxPerMinute, outgoingMaxPerMinute int) *RateLimiter {
	return &RateLimiter{
		incomingMax:   incomingMaxPerMinute,
		outgoingMax:   outgoingMaxPerMinute,
		incoming:      make(map[string][]time.Time),
		outgoing:      make(map[string]*bucket),
		warnedEpisode: make(map[string]bool),
	}
}

// AllowIncoming records an incoming message attempt and reports whether it
// is within the sliding 60s window for (channel, senderID). The second
// return value is true exactly once per rate-limited episode (the caller
// should send a "slow down" notice only then).
func (r *RateLimiter) AllowIncoming(channel, senderID string) (allowed bool, shouldWarn bool) {
	if r.incomingMax <= 0 {
		return true, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(channel, senderID)
	now := time.Now()
	cutoff := now.Add(-60 * time.Second)

	times := r.incoming[k]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= r.incomingMax {
		r.incoming[k] = kept
		warn := !r.warnedEpisode[k]
		r.warnedEpisode[k] = true
		return false, warn
	}

	kept = append(kept, now)
	r.incoming[k] = kept
	r.warnedEpisode[k] = false
	return true, false
}

// AllowOutgoing decrements a token from the (channel, recipientID) bucket,
// refilling at outgoingMax tokens per 60s. Returns false if fewer than one
// token is available.
func (r *RateLimiter) AllowOutgoing(channel, recipientID string) bool {
	if r.outgoingMax <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(channel, recipientID)
	b, ok := r.outgoing[k]
	now := time.Now()
	if !ok {
		b = &bucket{tokens: float64(r.outgoingMax), lastRefill: now}
		r.outgoing[k] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	refillRate := float64(r.outgoingMax) / 60.0
	b.tokens += elapsed * refillRate
	if b.tokens > float64(r.outgoingMax) {
		b.tokens = float64(r.outgoingMax)
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// GC drops incoming/outgoing bucket entries that have been idle longer than
// maxAge, bounding the limiter's memory use for senders who never return
// (spec.md C10 rate-limit counters GC task). Returns the number of entries
// removed.
func (r *RateLimiter) GC(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxAge)

	for k, times := range r.incoming {
		if len(times) == 0 || times[len(times)-1].Before(cutoff) {
			delete(r.incoming, k)
			delete(r.warnedEpisode, k)
			removed++
		}
	}
	for k, b := range r.outgoing {
		if b.lastRefill.Before(cutoff) {
			delete(r.outgoing, k)
			removed++
		}
	}
	return removed
}
