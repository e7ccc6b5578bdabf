package httpapi

import (
	"io"
	"net/http"

	"github.com/beaconhq/beacond/internal/access"
	"github.com/beaconhq/beacond/internal/logger"
)

const (
	voiceComponent    = "httpapi.voice"
	voiceSenderID     = "voice"
	voiceChannelName  = "voice"
	maxVoiceUploadMiB = 25
)

// handleVoiceTranscribe accepts a raw WAV body, transcribes it, injects the
// text into the session as the active channel, waits (up to the configured
// poll timeout) for the assistant's reply, synthesizes it, and streams the
// reply audio back — the full round trip for a voice turn (spec.md §4.6
// voice channel, at most one pending callback at a time).
func (s *Server) handleVoiceTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.deps.Voice == nil {
		http.Error(w, "voice channel not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxVoiceUploadMiB<<20))
	if err != nil {
		http.Error(w, "failed to read audio", http.StatusBadRequest)
		return
	}

	text, err := s.deps.Voice.Transcribe(r.Context(), body)
	if err != nil {
		logger.ErrorCF(voiceComponent, "transcription failed", map[string]interface{}{"error": err.Error()})
		http.Error(w, "transcription failed", http.StatusBadGateway)
		return
	}
	if text == "" {
		http.Error(w, "empty transcription", http.StatusUnprocessableEntity)
		return
	}

	decision := s.deps.Gateway.ProcessInbound(voiceChannelName, voiceSenderID, "voice", text)
	if decision.Action != access.ActionInject {
		writeJSON(w, http.StatusAccepted, healthResponse{Status: "held"})
		return
	}

	wait, err := s.deps.Router.RegisterVoicePending(s.deps.VoicePollTimeout)
	if err != nil {
		http.Error(w, "voice channel busy", http.StatusConflict)
		return
	}

	s.deps.Bridge.InjectText(r.Context(), text, true)

	reply, err := wait()
	if err != nil {
		logger.WarnCF(voiceComponent, "voice turn timed out", map[string]interface{}{"error": err.Error()})
		http.Error(w, "timed out waiting for response", http.StatusGatewayTimeout)
		return
	}

	wav, err := s.deps.Voice.Speak(r.Context(), reply)
	if err != nil {
		logger.ErrorCF(voiceComponent, "speech synthesis failed", map[string]interface{}{"error": err.Error()})
		http.Error(w, "synthesis failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("X-Beacond-Transcript", reply)
	w.WriteHeader(http.StatusOK)
	w.Write(wav)
}

type voiceSpeakRequest struct {
	Text string `json:"text"`
}

// handleVoiceSpeak synthesizes arbitrary text without going through the
// session at all, which checks the TTS engine in isolation.
func (s *Server) handleVoiceSpeak(w http.ResponseWriter, r *http.Request) {
	if s.deps.Voice == nil {
		http.Error(w, "voice channel not configured", http.StatusServiceUnavailable)
		return
	}
	var req voiceSpeakRequest
	if err := decodeJSON(r, &req); err != nil || req.Text == "" {
		http.Error(w, "missing text", http.StatusBadRequest)
		return
	}
	wav, err := s.deps.Voice.Speak(r.Context(), req.Text)
	if err != nil {
		http.Error(w, "synthesis failed", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	w.Write(wav)
}

type voiceNotifyRequest struct {
	Text string `json:"text"`
}

// handleVoiceNotify synthesizes the announcement text posted by the caller
// and returns the audio in the response; it does not push anything to the
// sidecar itself. Unlike /voice/transcribe, this never registers a pending
// callback.
func (s *Server) handleVoiceNotify(w http.ResponseWriter, r *http.Request) {
	if s.deps.Voice == nil {
		http.Error(w, "voice channel not configured", http.StatusServiceUnavailable)
		return
	}
	var req voiceNotifyRequest
	if err := decodeJSON(r, &req); err != nil || req.Text == "" {
		http.Error(w, "missing text", http.StatusBadRequest)
		return
	}
	wav, err := s.deps.Voice.Speak(r.Context(), req.Text)
	if err != nil {
		http.Error(w, "synthesis failed", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	w.Write(wav)
}

// handleVoiceRegister claims "voice" as the active outbound channel, so the
// next assistant message resolves a pending voice callback instead of going
// to whatever chat channel was previously active.
func (s *Server) handleVoiceRegister(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Router.SetChannel(voiceChannelName); err != nil {
		http.Error(w, "failed to register voice channel", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type voiceStatusResponse struct {
	Pending   bool    `json:"pending"`
	AgeSeconds float64 `json:"age_seconds,omitempty"`
}

func (s *Server) handleVoiceStatus(w http.ResponseWriter, r *http.Request) {
	age, pending := s.deps.Router.VoicePendingAge()
	resp := voiceStatusResponse{Pending: pending}
	if pending {
		resp.AgeSeconds = age.Seconds()
	}
	writeJSON(w, http.StatusOK, resp)
}
