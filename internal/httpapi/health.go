package httpapi

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type statusResponse struct {
	Idle           bool      `json:"idle"`
	UpdatedAt      time.Time `json:"updated_at"`
	SessionExists  bool      `json:"session_exists"`
	ActiveChannel  string    `json:"active_channel"`
	VoicePending   bool      `json:"voice_pending"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	snap := s.deps.Bridge.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		Idle:          snap.Idle,
		UpdatedAt:     snap.UpdatedAt,
		SessionExists: s.deps.Bridge.SessionExists(ctx),
		ActiveChannel: s.deps.Router.GetChannel(),
		VoicePending:  s.deps.Router.IsVoicePending(),
	})
}

type extendedStatusResponse struct {
	statusResponse
	ScheduledTasks  []scheduleStatus `json:"scheduled_tasks"`
	RegisteredTasks []string         `json:"registered_tasks"`
	TranscriptStats transcriptStats  `json:"transcript_stats"`
	Peers           []peerStatus     `json:"peers"`
}

type scheduleStatus struct {
	Name         string `json:"name"`
	LastRunMillis int64  `json:"last_run_millis"`
	SuccessCount int    `json:"success_count"`
	FailureCount int    `json:"failure_count"`
	LastError    string `json:"last_error,omitempty"`
}

type transcriptStats struct {
	Emitted          int `json:"emitted"`
	DroppedDuplicate int `json:"dropped_duplicate"`
	ParseErrors      int `json:"parse_errors"`
}

type peerStatus struct {
	Name   string `json:"name"`
	Online bool   `json:"online"`
}

// handleStatusExtended is local-only: it surfaces scheduler, transcript, and
// peer internals that shouldn't leak to a tunneled caller (spec.md §4.7).
func (s *Server) handleStatusExtended(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	snap := s.deps.Bridge.Snapshot()
	resp := extendedStatusResponse{
		statusResponse: statusResponse{
			Idle:          snap.Idle,
			UpdatedAt:     snap.UpdatedAt,
			SessionExists: s.deps.Bridge.SessionExists(ctx),
			ActiveChannel: s.deps.Router.GetChannel(),
			VoicePending:  s.deps.Router.IsVoicePending(),
		},
	}

	if s.deps.Dispatcher != nil {
		for _, rec := range s.deps.Dispatcher.Status() {
			resp.ScheduledTasks = append(resp.ScheduledTasks, scheduleStatus{
				Name: rec.Name, LastRunMillis: rec.LastRunMillis,
				SuccessCount: rec.SuccessCount, FailureCount: rec.FailureCount,
				LastError: rec.LastError,
			})
		}
	}
	if s.deps.TaskRegistry != nil {
		resp.RegisteredTasks = s.deps.TaskRegistry.Names()
	}
	if s.deps.Stream != nil {
		st := s.deps.Stream.Stats()
		resp.TranscriptStats = transcriptStats{Emitted: st.Emitted, DroppedDuplicate: st.DroppedDuplicate, ParseErrors: st.ParseErrors}
	}
	if s.deps.Peers != nil {
		for _, p := range s.deps.Peers.Registry().All() {
			resp.Peers = append(resp.Peers, peerStatus{Name: p.Name, Online: p.Online})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
