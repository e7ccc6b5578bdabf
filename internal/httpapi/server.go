// Package httpapi is the unified HTTP front end multiplexing every route
// the daemon serves: public adapter ingress, the peer plane, and
// local-only admin endpoints (spec.md C12). A single *http.Server is
// bound once; route families are gated, not separately listened on.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/beaconhq/beacond/internal/access"
	"github.com/beaconhq/beacond/internal/channels"
	"github.com/beaconhq/beacond/internal/logger"
	"github.com/beaconhq/beacond/internal/memory"
	"github.com/beaconhq/beacond/internal/metrics"
	"github.com/beaconhq/beacond/internal/peer"
	"github.com/beaconhq/beacond/internal/router"
	"github.com/beaconhq/beacond/internal/scheduler"
	"github.com/beaconhq/beacond/internal/session"
	"github.com/beaconhq/beacond/internal/transcript"
	"github.com/beaconhq/beacond/internal/vault"
)

const component = "httpapi"

// bindRetries/bindBackoff implement the short retry loop for a restarting
// daemon racing the previous process's socket release (spec.md §4.7).
const (
	bindRetries = 3
	bindBackoff = time.Second
)

// Deps bundles every collaborator the HTTP front end mounts routes for.
type Deps struct {
	Bridge       *session.Bridge
	Stream       *transcript.Stream
	Router       *router.Router
	Gateway      *access.Gateway
	AccessStore  *access.Store
	Dispatcher   *scheduler.Dispatcher
	TaskRegistry *scheduler.Registry
	Peers        *peer.Agent
	Adapters     *channels.Registry
	Voice        *channels.VoiceAdapter
	Vault        *vault.Vault
	Metrics      *metrics.Tracker
	MemoryStore  *memory.Store

	AgentName            string
	LogPath              string
	BearerSecretName     string            // vault key holding the shared secret for the bearer-authenticated agent plane
	ExternalTunnelHeader string            // header a reverse proxy injects for tunneled requests
	ChatbotWebhooks      map[string]string // webhook path -> adapter channel name
	VoicePollTimeout     time.Duration
}

// Server owns the single HTTP listener for the daemon.
type Server struct {
	deps Deps
	mux  *http.ServeMux
	srv  *http.Server
}

// New builds the Server and registers every route family.
func New(deps Deps) *Server {
	if deps.VoicePollTimeout <= 0 {
		deps.VoicePollTimeout = 30 * time.Second
	}
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Public adapter ingress — always served.
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("POST /hook/response", s.handleHookResponse)
	s.mux.HandleFunc("POST /typing-done", s.handleTypingDone)
	for path := range s.deps.ChatbotWebhooks {
		s.mux.HandleFunc("POST "+path, s.handleChatbotWebhook)
	}
	s.mux.HandleFunc("POST /voice/transcribe", s.handleVoiceTranscribe)
	s.mux.HandleFunc("POST /voice/speak", s.handleVoiceSpeak)
	s.mux.HandleFunc("POST /voice/notify", s.handleVoiceNotify)
	s.mux.HandleFunc("POST /voice/register", s.handleVoiceRegister)
	s.mux.HandleFunc("GET /voice/status", s.handleVoiceStatus)
	s.mux.HandleFunc("POST /voice/stt", s.handleVoiceTranscribe)

	// Peer endpoints — bearer/signature authenticated, reachable from the
	// tunnel (peers may be remote).
	s.mux.HandleFunc("POST /agent/message", s.handleAgentMessage)
	s.mux.HandleFunc("POST /agent/status", s.handleAgentStatus)
	s.mux.HandleFunc("GET /agent/status", s.handleAgentStatus)
	s.mux.HandleFunc("POST /agent/memory-sync", s.handleAgentMemorySync)
	s.mux.HandleFunc("POST /agent/p2p", s.handleAgentP2P)
	if s.deps.Peers != nil {
		s.mux.Handle("POST /peer/envelope", s.deps.Peers)
	}

	// Local-only admin — 404 when the request arrived via the external
	// tunnel (identified by a reverse-proxy-injected header).
	s.mux.Handle("GET /status/extended", s.localOnly(http.HandlerFunc(s.handleStatusExtended)))
	s.mux.Handle("GET /tasks", s.localOnly(http.HandlerFunc(s.handleListTasks)))
	s.mux.Handle("POST /tasks/{name}/run", s.localOnly(http.HandlerFunc(s.handleRunTask)))
	s.mux.Handle("GET /logs", s.localOnly(http.HandlerFunc(s.handleLogs)))
	s.mux.Handle("POST /session/clear", s.localOnly(http.HandlerFunc(s.handleSessionClear)))
	s.mux.Handle("POST /worker/signal", s.localOnly(http.HandlerFunc(s.handleWorkerSignal)))
	s.mux.Handle("POST /agent/send", s.localOnly(http.HandlerFunc(s.handleAgentSend)))
	s.mux.Handle("POST /access/approve", s.localOnly(http.HandlerFunc(s.handleAccessApprove)))
}

// localOnly rejects a request with 404 if it carries the external-tunnel
// header, so the reverse-proxy's own forwarding can't be used to reach
// admin surface from outside (spec.md §4.7 family 3).
func (s *Server) localOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.ExternalTunnelHeader != "" && r.Header.Get(s.deps.ExternalTunnelHeader) != "" {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start binds the listener with a short retry loop and serves until ctx is
// cancelled or Shutdown is called.
func (s *Server) Start(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)

	var ln net.Listener
	var err error
	for attempt := 1; attempt <= bindRetries; attempt++ {
		ln, err = net.Listen("tcp", addr)
		if err == nil {
			break
		}
		logger.WarnCF(component, "bind failed, retrying", map[string]interface{}{
			"attempt": attempt, "addr": addr, "error": err.Error(),
		})
		time.Sleep(bindBackoff)
	}
	if err != nil {
		return fmt.Errorf("httpapi: bind %s after %d attempts: %w", addr, bindRetries, err)
	}

	s.srv = &http.Server{Handler: s.mux}
	logger.InfoCF(component, "http server listening", map[string]interface{}{"addr": addr})

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Shutdown gracefully stops the listener, hard-closing after timeout
// (spec.md §4.7 Graceful shutdown: "hard-exit after 5s if cleanup stalls").
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	if err == context.DeadlineExceeded {
		return s.srv.Close()
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
