// Package tasks implements the first-party scheduled chores registered with
// the scheduler (spec.md C10). Each constructor returns a scheduler.Task
// whose Run closure only touches the filesystem under the project
// directory, the session bridge, or a direct adapter send — never an LLM
// API, per spec.md's task-semantics invariant.
package tasks

import (
	"github.com/beaconhq/beacond/internal/access"
	"github.com/beaconhq/beacond/internal/channels"
	"github.com/beaconhq/beacond/internal/metrics"
	"github.com/beaconhq/beacond/internal/peer"
	"github.com/beaconhq/beacond/internal/router"
	"github.com/beaconhq/beacond/internal/scheduler"
	"github.com/beaconhq/beacond/internal/session"
	"github.com/beaconhq/beacond/internal/state"
	"github.com/beaconhq/beacond/internal/transcript"
	"github.com/beaconhq/beacond/internal/vault"
)

// Deps bundles every collaborator a task constructor might need. Not every
// task uses every field.
type Deps struct {
	Bridge      *session.Bridge
	Stream      *transcript.Stream
	Router      *router.Router
	AccessStore *access.Store
	Limiter     *access.RateLimiter
	Scheduler   *scheduler.Dispatcher
	Registry    *scheduler.Registry
	Peers       *peer.Agent
	Mail        []channels.MailAdapter
	Vault       *vault.Vault
	Watermarks  *state.WatermarkStore
	Metrics     *metrics.Tracker

	ProjectDir string // root the watchdog's context-usage.json and briefing inputs live under
}
