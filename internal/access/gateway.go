package access

import (
	"fmt"
	"time"

	"github.com/beaconhq/beacond/internal/logger"
)

// Action tells the caller (a channel adapter's ingress handler) what to do
// with an inbound message after classification.
type Action string

const (
	ActionInject      Action = "inject"       // safe sender: inject normally
	ActionInjectTagged Action = "inject_tagged" // approved: inject with third-party tag
	ActionDropSilent  Action = "drop_silent"  // blocked
	ActionReplyDenied Action = "reply_denied" // denied: brief "need to check first"
	ActionHoldPending Action = "hold_pending" // unknown: hold + prompt primary
	ActionRateLimited Action = "rate_limited" // dropped by rate limiter
)

// Decision is the outcome of Gateway.ProcessInbound.
type Decision struct {
	Action     Action
	Tier       Tier
	ShouldWarn bool // for ActionRateLimited: send a "slow down" notice once per episode
}

// Gateway is the single call site every inbound adapter goes through before
// doing anything else with an unsolicited message (spec.md §4.6).
type Gateway struct {
	store       *Store
	limiter     *RateLimiter
	primaryNotify func(prompt string)
}

// NewGateway creates a Gateway. primaryNotify is called with an approval
// prompt whenever an unknown sender's message is held.
func NewGateway(store *Store, limiter *RateLimiter, primaryNotify func(prompt string)) *Gateway {
	return &Gateway{store: store, limiter: limiter, primaryNotify: primaryNotify}
}

// ThirdPartyTagPrefix is prepended to approved-but-not-safe senders'
// injected text so the LLM restricts its reply to public information.
const ThirdPartyTagPrefix = "[Third-party, do not disclose secrets] "

// ProcessInbound classifies sender and applies the incoming rate limit,
// returning the action the caller must take.
func (g *Gateway) ProcessInbound(channel, senderID, name, text string) Decision {
	if allowed, warn := g.limiter.AllowIncoming(channel, senderID); !allowed {
		logger.InfoCF(component, "incoming message rate-limited", map[string]interface{}{
			"channel": channel, "sender": senderID,
		})
		return Decision{Action: ActionRateLimited, ShouldWarn: warn}
	}

	tier := g.store.Classify(channel, senderID)
	switch tier {
	case TierBlocked:
		return Decision{Action: ActionDropSilent, Tier: tier}
	case TierSafe:
		return Decision{Action: ActionInject, Tier: tier}
	case TierApproved:
		return Decision{Action: ActionInjectTagged, Tier: tier}
	case TierDenied:
		g.store.Deny(channel, senderID, name, "repeat contact while denied")
		return Decision{Action: ActionReplyDenied, Tier: tier}
	default:
		preview := text
		if len(preview) > 200 {
			preview = preview[:200]
		}
		g.store.RecordPending(channel, senderID, name, preview)
		if g.primaryNotify != nil {
			g.primaryNotify(fmt.Sprintf(
				"Unknown sender on %s (%s / %s): %q\nReply \"approve [duration]\" or \"deny\".",
				channel, name, senderID, preview))
		}
		return Decision{Action: ActionHoldPending, Tier: tier}
	}
}

// ResolvePendingApproval is called when the primary human replies to an
// approval prompt. "approve for 1 week" / "approve" / "deny" are the
// recognized forms; duration zero means no expiry.
func (g *Gateway) ResolvePendingApproval(channel, senderID string, approve bool, duration time.Duration, reason string) error {
	entry, ok := g.store.PendingFor(channel, senderID)
	if !ok {
		return fmt.Errorf("access: no pending request for %s:%s", channel, senderID)
	}
	if approve {
		return g.store.Approve(channel, senderID, entry.Name, "approved", duration)
	}
	return g.store.Deny(channel, senderID, entry.Name, reason)
}

// CheckOutgoing applies the outgoing token-bucket limit before a channel
// adapter sends a message.
func (g *Gateway) CheckOutgoing(channel, recipientID string) bool {
	return g.limiter.AllowOutgoing(channel, recipientID)
}
