package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/beaconhq/beacond/internal/logger"
)

const adminComponent = "httpapi.admin"

type taskListEntry struct {
	Name string `json:"name"`
}

// handleListTasks lists every registered task name, regardless of whether
// it's currently bound to a schedule (spec.md C10).
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.deps.TaskRegistry == nil {
		writeJSON(w, http.StatusOK, []taskListEntry{})
		return
	}
	names := s.deps.TaskRegistry.Names()
	out := make([]taskListEntry, 0, len(names))
	for _, n := range names {
		out = append(out, taskListEntry{Name: n})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRunTask triggers a named task immediately, bypassing the idle gate
// (spec.md §4.4 manual trigger, L3: never disturbs cron bookkeeping).
func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	if s.deps.Dispatcher == nil {
		http.Error(w, "scheduler not configured", http.StatusServiceUnavailable)
		return
	}
	name := r.PathValue("name")
	if name == "" {
		http.Error(w, "missing task name", http.StatusBadRequest)
		return
	}
	if err := s.deps.Dispatcher.TriggerNow(r.Context(), name); err != nil {
		logger.WarnCF(adminComponent, "manual task trigger failed", map[string]interface{}{"task": name, "error": err.Error()})
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

const maxLogTail = 1 << 20 // 1 MiB

// handleLogs returns the tail of the daemon's own log file, for the admin
// shell's "logs" command.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.deps.LogPath == "" {
		http.Error(w, "log path not configured", http.StatusServiceUnavailable)
		return
	}
	f, err := os.Open(s.deps.LogPath)
	if err != nil {
		http.Error(w, "failed to open log", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "failed to stat log", http.StatusInternalServerError)
		return
	}
	offset := int64(0)
	if info.Size() > maxLogTail {
		offset = info.Size() - maxLogTail
	}
	if _, err := f.Seek(offset, 0); err != nil {
		http.Error(w, "failed to seek log", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	buf := make([]byte, 32*1024)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			w.Write(buf[:n])
		}
		if readErr != nil {
			break
		}
	}
}

// handleSessionClear clears any pending voice callback and starts the
// multiplexer session if it is not running. A session that is already
// running is left as it is; it is not killed or restarted.
func (s *Server) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	if s.deps.Router != nil {
		s.deps.Router.ClearVoicePending()
	}
	if ok := s.deps.Bridge.StartSession(r.Context()); !ok {
		http.Error(w, "failed to (re)start session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type accessApproveRequest struct {
	Channel  string `json:"channel"`
	SenderID string `json:"sender_id"`
	Approve  bool   `json:"approve"`
	Duration string `json:"duration,omitempty"` // e.g. "168h" for "approve for 1 week"; empty means no expiry
	Reason   string `json:"reason,omitempty"`
}

// handleAccessApprove resolves a held pending-approval request, used by the
// `beacond approve` admin command after the primary replies out of band to
// an ActionHoldPending prompt (spec.md §4.6).
func (s *Server) handleAccessApprove(w http.ResponseWriter, r *http.Request) {
	if s.deps.Gateway == nil {
		http.Error(w, "access gateway not configured", http.StatusServiceUnavailable)
		return
	}
	var req accessApproveRequest
	if err := decodeJSON(r, &req); err != nil || req.Channel == "" || req.SenderID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var dur time.Duration
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			http.Error(w, "bad duration", http.StatusBadRequest)
			return
		}
		dur = d
	}
	if err := s.deps.Gateway.ResolvePendingApproval(req.Channel, req.SenderID, req.Approve, dur, req.Reason); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type workerSignalRequest struct {
	Signal string `json:"signal"` // "pause" | "resume" | "shutdown"
}

// handleWorkerSignal is a narrow local-only control surface for operational
// signals that don't fit any other admin route.
func (s *Server) handleWorkerSignal(w http.ResponseWriter, r *http.Request) {
	var req workerSignalRequest
	if err := decodeJSON(r, &req); err != nil || req.Signal == "" {
		http.Error(w, "missing signal", http.StatusBadRequest)
		return
	}
	logger.InfoCF(adminComponent, "worker signal received", map[string]interface{}{"signal": req.Signal})
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
