package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/beaconhq/beacond/internal/logger"
	"github.com/beaconhq/beacond/internal/scheduler"
)

const briefingComponent = "tasks.briefing"

// NewMorningBriefingTask injects a daily summary prompt into the session
// when the agent is idle and the session exists. Otherwise it logs and
// skips the run; no chat-bot message is sent in its place.
func NewMorningBriefingTask(d Deps) scheduler.Task {
	return scheduler.Task{
		Name:            "morning-briefing",
		RequiresSession: false,
		Run: func(ctx context.Context) error {
			prompt := "Give the user a brief morning summary: unread priority emails, today's calendar, and any overdue reminders."

			if d.Bridge.IsAgentIdle() && d.Bridge.SessionExists(ctx) {
				if !d.Bridge.InjectText(ctx, prompt, true) {
					return fmt.Errorf("tasks: inject morning briefing")
				}
				return nil
			}

			logger.InfoCF(briefingComponent, "no session, skipping morning briefing", nil)
			return nil
		},
	}
}

// digestEntry mirrors the teacher's per-message digest record (pkg/email
// monitor.go digestEntry), trimmed to what the flush task needs.
type digestEntry struct {
	Timestamp string `json:"ts"`
	Account   string `json:"account"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	UID       string `json:"uid"`
}

// NewEmailDigestFlushTask polls every configured mailbox for unread
// messages and writes them to a rolling digest file the briefing task and
// the primary human can both read; it does not call the LLM itself.
func NewEmailDigestFlushTask(d Deps) scheduler.Task {
	return scheduler.Task{
		Name:            "email-digest-flush",
		RequiresSession: false,
		Run: func(ctx context.Context) error {
			if len(d.Mail) == 0 {
				return nil
			}
			var entries []digestEntry
			for _, acct := range d.Mail {
				unread, err := acct.ListUnread(ctx)
				if err != nil {
					logger.WarnCF(briefingComponent, "mailbox poll failed", map[string]interface{}{
						"account": acct.Name(), "error": err.Error(),
					})
					continue
				}
				for _, m := range unread {
					entries = append(entries, digestEntry{
						Timestamp: time.Now().UTC().Format(time.RFC3339),
						Account:   acct.Name(),
						From:      m.From,
						Subject:   m.Subject,
						UID:       m.UID,
					})
				}
			}
			if len(entries) == 0 {
				return nil
			}
			return appendDigest(filepath.Join(d.ProjectDir, "email-digest.jsonl"), entries)
		},
	}
}

func appendDigest(path string, entries []digestEntry) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("tasks: open digest: %w", err)
	}
	defer f.Close()
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			continue
		}
		f.Write(data)
		f.Write([]byte("\n"))
	}
	return nil
}

// calendarReminder is a minimal reminder record read from a JSON file the
// user (or another tool) maintains under the project directory; calendar
// provider specifics are out of scope (spec.md §2 Non-goals).
type calendarReminder struct {
	At   string `json:"at"` // RFC3339
	Text string `json:"text"`
	Sent bool   `json:"sent"`
}

// NewCalendarReminderSweepTask reads reminders.json and injects any
// reminder whose time has passed and hasn't been sent yet.
func NewCalendarReminderSweepTask(d Deps) scheduler.Task {
	return scheduler.Task{
		Name:            "calendar-reminder-sweep",
		RequiresSession: true,
		Run: func(ctx context.Context) error {
			path := filepath.Join(d.ProjectDir, "reminders.json")
			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return fmt.Errorf("tasks: read reminders: %w", err)
			}
			var reminders []calendarReminder
			if err := json.Unmarshal(data, &reminders); err != nil {
				return fmt.Errorf("tasks: parse reminders: %w", err)
			}

			now := time.Now().UTC()
			changed := false
			var due []string
			for i, r := range reminders {
				if r.Sent {
					continue
				}
				at, err := time.Parse(time.RFC3339, r.At)
				if err != nil || at.After(now) {
					continue
				}
				due = append(due, r.Text)
				reminders[i].Sent = true
				changed = true
			}
			if len(due) == 0 {
				return nil
			}
			if !d.Bridge.InjectText(ctx, "Reminder: "+strings.Join(due, "; "), true) {
				return fmt.Errorf("tasks: inject reminder")
			}
			if changed {
				out, err := json.MarshalIndent(reminders, "", "  ")
				if err == nil {
					os.WriteFile(path, out, 0644)
				}
			}
			return nil
		},
	}
}
