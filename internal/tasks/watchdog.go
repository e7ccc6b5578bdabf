package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/beaconhq/beacond/internal/logger"
	"github.com/beaconhq/beacond/internal/scheduler"
)

const watchdogComponent = "tasks.watchdog"

// contextUsage mirrors the status-line file the LLM session writes out with
// its own token-budget accounting (spec.md §9.1 Open Question: thresholds
// are configurable, tiered escalation is the chosen policy).
type contextUsage struct {
	UsedTokens  int `json:"used_tokens"`
	BudgetTokens int `json:"budget_tokens"`
}

func (u contextUsage) fraction() float64 {
	if u.BudgetTokens <= 0 {
		return 0
	}
	return float64(u.UsedTokens) / float64(u.BudgetTokens)
}

// Tier is an escalation level the watchdog can be in for the current
// session. Once raised, a tier is never re-announced for the same session
// until the context resets (a new session starts).
type tier int

const (
	tierNone tier = iota
	tierWarn      // 50%
	tierUrgent    // 65%
	tierCritical  // 90%
)

func tierFor(frac float64) tier {
	switch {
	case frac >= 0.90:
		return tierCritical
	case frac >= 0.65:
		return tierUrgent
	case frac >= 0.50:
		return tierWarn
	default:
		return tierNone
	}
}

var tierPrompt = map[tier]string{
	tierWarn:     "Context usage has crossed 50%. Consider wrapping up the current subtask and summarizing progress soon.",
	tierUrgent:   "Context usage has crossed 65%. Please summarize progress now and prepare to start a fresh session.",
	tierCritical: "Context usage has crossed 90%. Summarize everything important immediately; the session will need to restart shortly.",
}

// NewContextWatchdogTask reads context-usage.json from the project
// directory on each tick and injects an escalating warning into the
// session the first time each tier is crossed. De-duplication is keyed on
// the watermark store so a restart of beacond does not re-announce a tier
// already crossed in the live session.
func NewContextWatchdogTask(d Deps) scheduler.Task {
	const watermarkKey = "context-watchdog.last-tier"

	return scheduler.Task{
		Name:            "context-watchdog",
		RequiresSession: true,
		Run: func(ctx context.Context) error {
			usagePath := filepath.Join(d.ProjectDir, "context-usage.json")
			data, err := os.ReadFile(usagePath)
			if err != nil {
				if os.IsNotExist(err) {
					return nil // status line not written yet this session
				}
				return fmt.Errorf("tasks: read context usage: %w", err)
			}
			var usage contextUsage
			if err := json.Unmarshal(data, &usage); err != nil {
				return fmt.Errorf("tasks: parse context usage: %w", err)
			}

			current := tierFor(usage.fraction())
			lastStr, _ := d.Watermarks.Get(watermarkKey)
			last := parseTier(lastStr)
			if current < last {
				// Usage fell below the recorded tier: the context was reset,
				// so forget the old tier and let the new session be warned.
				return d.Watermarks.Set(watermarkKey, tierString(current))
			}
			if current == tierNone || current == last {
				return nil // below every tier, or this tier already announced
			}

			prompt := tierPrompt[current]
			if !d.Bridge.InjectText(ctx, prompt, true) {
				return fmt.Errorf("tasks: inject watchdog warning")
			}
			logger.WarnCF(watchdogComponent, "context tier escalated", map[string]interface{}{
				"tier": int(current), "fraction": usage.fraction(),
			})
			return d.Watermarks.Set(watermarkKey, tierString(current))
		},
	}
}

func parseTier(s string) tier {
	switch s {
	case "warn":
		return tierWarn
	case "urgent":
		return tierUrgent
	case "critical":
		return tierCritical
	default:
		return tierNone
	}
}

func tierString(t tier) string {
	switch t {
	case tierWarn:
		return "warn"
	case tierUrgent:
		return "urgent"
	case tierCritical:
		return "critical"
	default:
		return ""
	}
}
