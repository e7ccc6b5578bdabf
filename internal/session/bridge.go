// Package session is the sole owner of the multiplexer pane (spec.md C4).
// Every write to the terminal-multiplexer session funnels through Bridge;
// no other package is permitted to shell out to tmux directly.
package session

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/beaconhq/beacond/internal/logger"
)

const (
	component = "session"

	// dismissKeys clears any open autocomplete/menu before typing, the
	// same "clear whatever's in the way first" discipline the teacher's
	// shell-out helpers use before running a fresh command.
	dismissKeys = "Escape"

	enterSettleDelay = 300 * time.Millisecond
	enterRetries     = 2 // plus the first attempt: 3 total
	echoCheckPrefix  = 40
)

// Bridge is the single gateway to the tmux pane hosting the LLM CLI.
type Bridge struct {
	socket        string
	session       string
	transcriptDir string
	transcriptExt string

	mu    sync.Mutex // serializes all writes to the pane (spec.md §5)
	state agentState
}

type agentState struct {
	mu        sync.RWMutex
	idle      bool
	updatedAt time.Time
	everSet   bool
}

// New creates a Bridge bound to the given tmux socket + session name.
func New(socket, sessionName, transcriptDir, transcriptExt string) *Bridge {
	return &Bridge{
		socket:        socket,
		session:       sessionName,
		transcriptDir: transcriptDir,
		transcriptExt: transcriptExt,
		state:         agentState{idle: true}, // fresh start: idle (spec.md §4.1 fallback a)
	}
}

func (b *Bridge) tmux(ctx context.Context, args ...string) (*exec.Cmd, context.Context) {
	full := append([]string{"-S", b.socket}, args...)
	return exec.CommandContext(ctx, "tmux", full...), ctx
}

// SessionExists reports whether the tmux session is currently alive.
func (b *Bridge) SessionExists(ctx context.Context) bool {
	cmd, _ := b.tmux(ctx, "has-session", "-t", b.session)
	err := cmd.Run()
	return err == nil
}

// StartSession spawns the detached tmux session if it does not already exist.
func (b *Bridge) StartSession(ctx context.Context) bool {
	if b.SessionExists(ctx) {
		return true
	}
	cmd, _ := b.tmux(ctx, "new-session", "-d", "-s", b.session)
	if err := cmd.Run(); err != nil {
		logger.ErrorCF(component, "failed to start tmux session", map[string]interface{}{
			"session": b.session, "error": err.Error(),
		})
		return false
	}
	logger.InfoCF(component, "tmux session started", map[string]interface{}{"session": b.session})
	return true
}

// CapturePane returns the last `lines` lines of the pane buffer.
func (b *Bridge) CapturePane(ctx context.Context, lines int) (string, error) {
	if lines <= 0 {
		lines = 100
	}
	cmd, _ := b.tmux(ctx, "capture-pane", "-p", "-t", b.session, "-S", fmt.Sprintf("-%d", lines))
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("session: capture-pane: %w", err)
	}
	return out.String(), nil
}

// InjectText types text literally into the pane and, if pressEnter is true,
// submits it with up to three total Enter attempts, confirming via pane
// capture each time. Returns true only if the sequence completed without
// I/O errors — a "no echo of the prefix" result after retries is logged,
// not treated as fatal (spec.md §4.1 Inject contract).
func (b *Bridge) InjectText(ctx context.Context, text string, pressEnter bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Dismiss any open autocomplete/menu first.
	if cmd, _ := b.tmux(ctx, "send-keys", "-t", b.session, dismissKeys); cmd.Run() != nil {
		logger.WarnCF(component, "dismiss keystroke failed", nil)
	}

	cmd, _ := b.tmux(ctx, "send-keys", "-t", b.session, "-l", text)
	if err := cmd.Run(); err != nil {
		logger.ErrorCF(component, "inject failed", map[string]interface{}{"error": err.Error()})
		return false
	}

	if !pressEnter {
		return true
	}

	prefix := text
	if len(prefix) > echoCheckPrefix {
		prefix = prefix[:echoCheckPrefix]
	}

	for attempt := 0; attempt <= enterRetries; attempt++ {
		time.Sleep(enterSettleDelay)
		enterCmd, _ := b.tmux(ctx, "send-keys", "-t", b.session, "Enter")
		if err := enterCmd.Run(); err != nil {
			logger.ErrorCF(component, "enter keystroke failed", map[string]interface{}{
				"attempt": attempt, "error": err.Error(),
			})
			return false
		}

		pane, err := b.CapturePane(ctx, 5)
		if err != nil {
			logger.WarnCF(component, "post-enter capture failed", map[string]interface{}{"error": err.Error()})
			continue
		}
		if prefix == "" || !strings.Contains(pane, prefix) {
			return true // payload no longer sitting unsubmitted in the tail
		}
	}

	logger.WarnCF(component, "inject retries exhausted, payload may still be unsubmitted", map[string]interface{}{
		"prefix": prefix,
	})
	return true
}

// UpdateAgentState applies a hook event: "Stop" transitions to idle,
// anything else transitions to busy (spec.md §4.1 Agent-state contract).
func (b *Bridge) UpdateAgentState(hookEvent string) {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()
	b.state.idle = hookEvent == "Stop"
	b.state.updatedAt = time.Now()
	b.state.everSet = true
}

// IsAgentIdle reports whether proactive injection is currently permitted.
// A stale busy state (no hook update for 10 minutes) is forced back to
// idle and logged, on the assumption the hook pipeline broke.
func (b *Bridge) IsAgentIdle() bool {
	b.state.mu.Lock()
	defer b.state.mu.Unlock()

	if !b.state.everSet {
		return true
	}
	if !b.state.idle && time.Since(b.state.updatedAt) > 10*time.Minute {
		logger.WarnCF(component, "agent state stale, forcing idle", map[string]interface{}{
			"last_update": b.state.updatedAt,
		})
		b.state.idle = true
		b.state.updatedAt = time.Now()
	}
	return b.state.idle
}

// AgentStateSnapshot is the JSON-friendly view of current agent state.
type AgentStateSnapshot struct {
	Idle      bool      `json:"idle"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns the current agent state (used by the status endpoints).
// It goes through IsAgentIdle, so a stale busy state is reset to idle here
// just as it is there.
func (b *Bridge) Snapshot() AgentStateSnapshot {
	idle := b.IsAgentIdle()
	b.state.mu.RLock()
	defer b.state.mu.RUnlock()
	return AgentStateSnapshot{Idle: idle, UpdatedAt: b.state.updatedAt}
}

// NewestTranscriptPath scans the configured transcript directory for the
// most recently modified file matching the configured extension. Returns
// "" if no matching file exists.
func (b *Bridge) NewestTranscriptPath() (string, error) {
	entries, err := os.ReadDir(b.transcriptDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("session: read transcript dir: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != b.transcriptExt {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(b.transcriptDir, e.Name()),
			modTime: info.ModTime(),
		})
	}
	if len(candidates) == 0 {
		return "", nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modTime.After(candidates[j].modTime) })
	return candidates[0].path, nil
}
