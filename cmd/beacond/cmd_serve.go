package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/beaconhq/beacond/internal/access"
	"github.com/beaconhq/beacond/internal/bus"
	"github.com/beaconhq/beacond/internal/channels"
	"github.com/beaconhq/beacond/internal/config"
	"github.com/beaconhq/beacond/internal/httpapi"
	"github.com/beaconhq/beacond/internal/logger"
	"github.com/beaconhq/beacond/internal/memory"
	"github.com/beaconhq/beacond/internal/metrics"
	"github.com/beaconhq/beacond/internal/peer"
	"github.com/beaconhq/beacond/internal/router"
	"github.com/beaconhq/beacond/internal/scheduler"
	"github.com/beaconhq/beacond/internal/session"
	"github.com/beaconhq/beacond/internal/state"
	"github.com/beaconhq/beacond/internal/tasks"
	"github.com/beaconhq/beacond/internal/transcript"
	"github.com/beaconhq/beacond/internal/vault"
)

const shutdownCeiling = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
}

func runServe(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("beacond: load config: %w", err)
	}

	logPath := cfg.ResolvePath(cfg.Daemon.LogPath)
	level := logger.Level(cfg.Daemon.LogLevel)
	if err := logger.Configure(logPath, cfg.Daemon.LogRotation.MaxSizeMB, cfg.Daemon.LogRotation.MaxFiles, level, true); err != nil {
		return fmt.Errorf("beacond: configure logger: %w", err)
	}
	logger.InfoCF("main", "starting beacond", map[string]interface{}{"agent": cfg.Agent.Name})

	stateDir := cfg.ResolvePath("state")
	vaultPath := cfg.ResolvePath(cfg.Vault.Path)
	passphrase := os.Getenv(cfg.Vault.PassphraseEnv)
	vlt, err := vault.Open(vaultPath, passphrase)
	if err != nil {
		return fmt.Errorf("beacond: open vault: %w", err)
	}

	br := session.New(cfg.Tmux.Socket, cfg.Tmux.Session, cfg.ResolvePath("transcripts"), ".jsonl")
	msgBus := bus.New()
	rt := router.New(cfg.ResolvePath("state/channel.txt"), msgBus)

	accessStore, err := access.NewStore(cfg.ResolvePath("state/access.json"), cfg.ResolvePath("config/safe_senders.yaml"))
	if err != nil {
		return fmt.Errorf("beacond: open access store: %w", err)
	}
	limiter := access.NewRateLimiter(cfg.Security.RateLimits.IncomingMaxPerMinute, cfg.Security.RateLimits.OutgoingMaxPerMinute)
	gateway := access.NewGateway(accessStore, limiter, func(prompt string) {
		br.InjectText(ctx, "[Access control] "+prompt, true)
	})

	watermarks := state.NewWatermarkStore(stateDir)
	metricsTracker := metrics.NewTracker(stateDir)
	memStore, err := memory.Open(stateDir)
	if err != nil {
		return fmt.Errorf("beacond: open memory store: %w", err)
	}

	taskRegistry := scheduler.NewRegistry()
	dispatcher, err := scheduler.New(taskRegistry, br, cfg.ResolvePath(cfg.Scheduler.StateFile))
	if err != nil {
		return fmt.Errorf("beacond: init scheduler: %w", err)
	}

	adapters := channels.NewRegistry()
	var mailAdapters []channels.MailAdapter
	if err := wireChatbots(cfg, adapters, rt); err != nil {
		return err
	}
	wireEmail(cfg, adapters, &mailAdapters)
	var voiceAdapter *channels.VoiceAdapter
	if cfg.Channels.Voice.Enabled {
		voiceAdapter = channels.NewVoiceAdapter(
			channels.NewProcessSTT(cfg.Channels.Voice.STT),
			channels.NewProcessTTS(cfg.Channels.Voice.TTS),
		)
		adapters.Register(voiceAdapter)
	}

	var peerAgent *peer.Agent
	if cfg.AgentComms.Enabled {
		peerAgent, err = wirePeers(cfg, stateDir, vlt)
		if err != nil {
			return fmt.Errorf("beacond: wire peer messaging: %w", err)
		}
		peerAgent.SetIdleCheck(br.IsAgentIdle)
		peerAgent.OnMessage(func(peerName string, p peer.Payload) {
			br.InjectText(ctx, fmt.Sprintf("[Agent] %s: %s", peerName, p.Text), true)
		})
	}

	tasks.RegisterAll(tasks.Deps{
		Bridge:      br,
		Router:      rt,
		AccessStore: accessStore,
		Limiter:     limiter,
		Scheduler:   dispatcher,
		Registry:    taskRegistry,
		Peers:       peerAgent,
		Mail:        mailAdapters,
		Vault:       vlt,
		Watermarks:  watermarks,
		Metrics:     metricsTracker,
		ProjectDir:  cfg.ResolvePath("."),
	}, tasks.Paths{
		StateDir:  stateDir,
		BackupDir: cfg.ResolvePath("backups"),
		LogPath:   logPath,
		VaultPath: vaultPath,
	}, memStore)

	slots := make([]scheduler.Slot, 0, len(cfg.Scheduler.Tasks))
	for _, t := range cfg.Scheduler.Tasks {
		if !t.Enabled {
			continue
		}
		requiresSession := true
		if t.RequiresSession != nil {
			requiresSession = *t.RequiresSession
		}
		slots = append(slots, scheduler.Slot{
			TaskName:        t.Name,
			Interval:        t.Interval,
			Cron:            t.Cron,
			RequiresSession: requiresSession,
		})
	}
	dispatcher.Bind(slots)

	stream := transcript.New(br.NewestTranscriptPath, func(am transcript.AssistantMessage) {
		chatID := rt.LastChatID(rt.GetChannel())
		rt.RouteAssistantMessage(am.Text, chatID)
	}, 500*time.Millisecond)

	msgBus.SubscribeInbound(func(msg bus.InboundMessage) {
		rt.RecordLastChatID(msg.Channel, msg.ChatID)
		decision := gateway.ProcessInbound(msg.Channel, msg.SenderID, msg.Metadata["name"], msg.Text)
		switch decision.Action {
		case access.ActionInject:
			br.InjectText(ctx, msg.Text, true)
		case access.ActionInjectTagged:
			br.InjectText(ctx, access.ThirdPartyTagPrefix+msg.Text, true)
		case access.ActionReplyDenied:
			if err := msgBus.PublishOutbound(bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID, Content: "I need to check with my primary before responding to you."}); err != nil {
				logger.WarnCF("main", "failed to send denial reply", map[string]interface{}{"error": err.Error()})
			}
		case access.ActionRateLimited:
			if decision.ShouldWarn {
				if err := msgBus.PublishOutbound(bus.OutboundMessage{Channel: msg.Channel, ChatID: msg.ChatID, Content: "Slow down a little, please."}); err != nil {
					logger.WarnCF("main", "failed to send rate-limit notice", map[string]interface{}{"error": err.Error()})
				}
			}
		case access.ActionDropSilent, access.ActionHoldPending:
			// nothing further to do: blocked is silent, pending already notified the primary.
		}
	})

	for _, a := range adapters.All() {
		msgBus.RegisterSender(a.Name(), func(a channels.Adapter) func(bus.OutboundMessage) error {
			return func(out bus.OutboundMessage) error {
				return a.SendMessage(ctx, out.ChatID, out.Content)
			}
		}(a))
		rt.RegisterTypingIndicator(a.Name(), adapterTypingIndicator{ctx: ctx, adapter: a})
	}

	srv := httpapi.New(httpapi.Deps{
		Bridge:               br,
		Stream:               stream,
		Router:                rt,
		Gateway:              gateway,
		AccessStore:          accessStore,
		Dispatcher:           dispatcher,
		TaskRegistry:         taskRegistry,
		Peers:                peerAgent,
		Adapters:             adapters,
		Voice:                voiceAdapter,
		Vault:                vlt,
		Metrics:              metricsTracker,
		MemoryStore:          memStore,
		AgentName:            cfg.Agent.Name,
		LogPath:              logPath,
		BearerSecretName:     os.Getenv(cfg.AgentComms.SecretEnv),
		ExternalTunnelHeader: cfg.Daemon.ExternalTunnelHeader,
		ChatbotWebhooks:      chatbotWebhookPaths(cfg),
		VoicePollTimeout:     30 * time.Second,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	dispatcher.Start(runCtx)
	go stream.Run(runCtx, cfg.ResolvePath("transcripts"))
	for _, a := range adapters.All() {
		go func(a channels.Adapter) {
			if err := a.Run(runCtx, func(msg channels.IncomingMessage) {
				msgBus.PublishInbound(bus.InboundMessage{
					Channel:  msg.Channel,
					SenderID: msg.SenderID,
					ChatID:   msg.ChatID,
					Text:     msg.Text,
					Metadata: map[string]string{"name": msg.Name},
				})
			}); err != nil {
				logger.ErrorCF("main", "adapter ingress loop exited", map[string]interface{}{"adapter": a.Name(), "error": err.Error()})
			}
		}(a)
	}
	if peerAgent != nil {
		peerAgent.StartHeartbeatLoop(runCtx, 5*time.Minute)
		if cfg.Network.RelayURL != "" {
			peerAgent.StartRelayPollLoop(runCtx, 30*time.Second)
		}
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start(runCtx, cfg.Daemon.Port) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			logger.ErrorCF("main", "http server exited with error", map[string]interface{}{"error": err.Error()})
		}
	case sig := <-sigCh:
		logger.InfoCF("main", "received shutdown signal", map[string]interface{}{"signal": sig.String()})
	}

	cancel()
	if peerAgent != nil {
		peerAgent.StopHeartbeatLoop()
		peerAgent.StopRelayPollLoop()
	}
	dispatcher.Stop()
	if err := srv.Shutdown(shutdownCeiling); err != nil {
		logger.WarnCF("main", "http shutdown did not complete cleanly", map[string]interface{}{"error": err.Error()})
	}
	logger.InfoCF("main", "beacond stopped", nil)
	return nil
}

// adapterTypingIndicator adapts a channels.Adapter's context-and-error
// typing calls to the router's fire-and-forget TypingIndicator contract.
type adapterTypingIndicator struct {
	ctx     context.Context
	adapter channels.Adapter
}

func (t adapterTypingIndicator) StartTyping(chatID string) {
	if err := t.adapter.StartTyping(t.ctx, chatID); err != nil {
		logger.WarnCF("main", "start typing failed", map[string]interface{}{"adapter": t.adapter.Name(), "error": err.Error()})
	}
}

func (t adapterTypingIndicator) StopTyping(chatID string) {
	if err := t.adapter.StopTyping(t.ctx, chatID); err != nil {
		logger.WarnCF("main", "stop typing failed", map[string]interface{}{"adapter": t.adapter.Name(), "error": err.Error()})
	}
}

// wireChatbots constructs the configured chat-platform adapters (spec.md
// §3 ChatbotConfig) from environment-held tokens.
func wireChatbots(cfg *config.Config, adapters *channels.Registry, rt *router.Router) error {
	for _, cb := range cfg.Channels.Chatbots {
		if !cb.Enabled {
			continue
		}
		token := os.Getenv(cb.TokenEnv)
		switch cb.Type {
		case "telegram":
			a, err := channels.NewTelegramAdapter(token, nil)
			if err != nil {
				return fmt.Errorf("beacond: wire telegram: %w", err)
			}
			adapters.Register(a)
		case "slack":
			appToken := os.Getenv(cb.TokenEnv + "_APP")
			adapters.Register(channels.NewSlackAdapter(token, appToken))
		case "discord":
			a, err := channels.NewDiscordAdapter(token, nil)
			if err != nil {
				return fmt.Errorf("beacond: wire discord: %w", err)
			}
			adapters.Register(a)
		case "whatsapp":
			a, err := channels.OpenWhatsApp(context.Background(), filepath.Join(cfg.ResolvePath("state"), "whatsapp.db"), nil)
			if err != nil {
				return fmt.Errorf("beacond: wire whatsapp: %w", err)
			}
			adapters.Register(a)
		default:
			logger.WarnCF("main", "unknown chatbot adapter type", map[string]interface{}{"type": cb.Type})
		}
	}
	return nil
}

func wireEmail(cfg *config.Config, adapters *channels.Registry, mail *[]channels.MailAdapter) {
	if !cfg.Channels.Email.Enabled {
		return
	}
	for _, acc := range cfg.Channels.Email.Accounts {
		a := channels.NewEmailAdapter(channels.EmailAccount{
			Address:      acc.Address,
			IMAPHost:     acc.IMAPHost,
			SMTPHost:     acc.SMTPHost,
			Password:     os.Getenv(acc.OAuthEnv),
			PollInterval: cfg.Channels.Email.PollInterval,
		})
		adapters.Register(a)
		*mail = append(*mail, a)
	}
}

func chatbotWebhookPaths(cfg *config.Config) map[string]string {
	out := make(map[string]string)
	for _, cb := range cfg.Channels.Chatbots {
		if cb.Enabled && cb.WebhookPath != "" {
			out[cb.WebhookPath] = cb.Type
		}
	}
	return out
}

const relaySecretName = "relay_token"

// wirePeers builds the Ed25519-signed peer-messaging plane: a local
// identity (generated on first run), the known-peer registry loaded from
// config, the relay/LAN transport, and the audit log (spec.md §4.5).
func wirePeers(cfg *config.Config, stateDir string, vlt *vault.Vault) (*peer.Agent, error) {
	identity, err := peer.LoadOrCreateIdentity(filepath.Join(stateDir, "peer_identity.json"), cfg.Agent.Name)
	if err != nil {
		return nil, err
	}
	registry, err := peer.NewRegistry(filepath.Join(stateDir, "peers.json"))
	if err != nil {
		return nil, err
	}
	for _, p := range cfg.Agent.Peers {
		addr := fmt.Sprintf("%s:%d", p.Host, p.Port)
		if _, ok := registry.Get(p.Name); !ok {
			registry.Add(peer.Info{Name: p.Name, LANAddr: addr})
		}
	}
	relayAuth, err := vlt.Get(relaySecretName)
	if err != nil && err != vault.ErrKeyNotFound {
		return nil, err
	}
	transport := peer.NewTransport(cfg.Network.RelayURL, relayAuth)
	audit, err := peer.NewAuditLog(filepath.Join(stateDir, "peer_audit.jsonl"))
	if err != nil {
		return nil, err
	}
	return peer.NewAgent(identity, registry, transport, audit), nil
}
