// Package config loads the daemon's single YAML configuration file, merges
// struct-tag defaults, overlays BEACOND_* environment variables, and
// resolves relative paths against the project root.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the merged, process-wide configuration. It is read-only after
// Load returns (spec.md Design Note 9: "config: never after startup").
type Config struct {
	Agent   AgentConfig   `yaml:"agent"`
	Tmux    TmuxConfig    `yaml:"tmux"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Channels ChannelsConfig `yaml:"channels"`
	AgentComms AgentCommsConfig `yaml:"agent-comms"`
	Network NetworkConfig `yaml:"network"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Security SecurityConfig `yaml:"security"`
	Vault   VaultConfig   `yaml:"vault"`

	// rootDir is the directory the YAML file was loaded from; relative
	// paths in the config are resolved against it.
	rootDir string
}

type PeerConfig struct {
	Name       string   `yaml:"name"`
	Host       string   `yaml:"host"`
	Port       int      `yaml:"port"`
	FallbackIP string   `yaml:"fallback_ip"`
	Teams      []string `yaml:"teams"`
}

type AgentConfig struct {
	Name  string       `yaml:"name" env:"BEACOND_AGENT_NAME"`
	Role  string       `yaml:"role"`
	Peers []PeerConfig `yaml:"peers"`
}

type TmuxConfig struct {
	Session string `yaml:"session" env:"BEACOND_TMUX_SESSION"`
	Socket  string `yaml:"socket" env:"BEACOND_TMUX_SOCKET"`
}

type LogRotationConfig struct {
	MaxSizeMB int `yaml:"max_size_mb"`
	MaxFiles  int `yaml:"max_files"`
}

type DaemonConfig struct {
	Port         int               `yaml:"port" env:"BEACOND_PORT"`
	LogLevel     string            `yaml:"log_level" env:"BEACOND_LOG_LEVEL"`
	LogPath      string            `yaml:"log_path"`
	LogRotation  LogRotationConfig `yaml:"log_rotation"`
	ExternalTunnelHeader string    `yaml:"external_tunnel_header"`
}

type EmailTriageConfig struct {
	VIP         []string `yaml:"vip"`
	Junk        []string `yaml:"junk"`
	Newsletters []string `yaml:"newsletters"`
	Receipts    []string `yaml:"receipts"`
	AutoRead    []string `yaml:"auto_read"`
}

type EmailAccount struct {
	Label     string `yaml:"label"`
	Address   string `yaml:"address"`
	Provider  string `yaml:"provider"`
	IMAPHost  string `yaml:"imap_host"`
	SMTPHost  string `yaml:"smtp_host"`
	OAuthEnv  string `yaml:"oauth_token_env"`
}

type EmailChannelConfig struct {
	Enabled    bool               `yaml:"enabled"`
	Providers  []string           `yaml:"providers"`
	Accounts   []EmailAccount     `yaml:"accounts"`
	Triage     EmailTriageConfig  `yaml:"triage"`
	PollInterval string           `yaml:"poll_interval"`
}

type VoiceChannelConfig struct {
	Enabled     bool   `yaml:"enabled"`
	STT         string `yaml:"stt"`
	TTS         string `yaml:"tts"`
	WakeWord    string `yaml:"wake_word"`
	Client      string `yaml:"client"`
	Initiation  string `yaml:"initiation"`
}

type ChatbotConfig struct {
	Type        string `yaml:"type"`
	Enabled     bool   `yaml:"enabled"`
	TokenEnv    string `yaml:"token_env"`
	WebhookPath string `yaml:"webhook_path"`
}

type ChannelsConfig struct {
	Chatbots []ChatbotConfig    `yaml:"chatbots"`
	Email    EmailChannelConfig `yaml:"email"`
	Voice    VoiceChannelConfig `yaml:"voice"`
}

type AgentCommsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	SecretEnv string `yaml:"secret_env"`
}

type NetworkConfig struct {
	Enabled  bool   `yaml:"enabled"`
	RelayURL string `yaml:"relay_url"`
}

type TaskConfig struct {
	Name            string `yaml:"name"`
	Enabled         bool   `yaml:"enabled"`
	Interval        string `yaml:"interval"`
	Cron            string `yaml:"cron"`
	RequiresSession *bool  `yaml:"requires_session"`
}

type SchedulerConfig struct {
	StateFile string       `yaml:"state_file"`
	Tasks     []TaskConfig `yaml:"tasks"`
}

type RateLimitConfig struct {
	IncomingMaxPerMinute int `yaml:"incoming_max_per_minute"`
	OutgoingMaxPerMinute int `yaml:"outgoing_max_per_minute"`
}

type SecurityConfig struct {
	RateLimits RateLimitConfig `yaml:"rate_limits"`
}

type VaultConfig struct {
	Path           string `yaml:"path"`
	PassphraseEnv  string `yaml:"passphrase_env"`
}

// Defaults returns a Config with every documented default applied.
func Defaults() Config {
	return Config{
		Agent: AgentConfig{Name: "beacon", Role: "personal assistant"},
		Tmux:  TmuxConfig{Session: "beacon", Socket: "default"},
		Daemon: DaemonConfig{
			Port:     8077,
			LogLevel: "info",
			LogPath:  "logs/beacond.jsonl",
			LogRotation: LogRotationConfig{MaxSizeMB: 50, MaxFiles: 5},
			ExternalTunnelHeader: "X-Forwarded-Tunnel",
		},
		Security: SecurityConfig{
			RateLimits: RateLimitConfig{IncomingMaxPerMinute: 20, OutgoingMaxPerMinute: 20},
		},
		Scheduler: SchedulerConfig{StateFile: "state/scheduler.json"},
		Vault:     VaultConfig{Path: "state/vault.json", PassphraseEnv: "BEACOND_VAULT_PASSPHRASE"},
	}
}

// Load reads the YAML file at path, merges it over Defaults(), applies the
// BEACOND_* environment overlay, and resolves the root directory. Unknown
// YAML keys are ignored (yaml.v3's default decode behavior); missing keys
// keep their default value.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		// Missing file: defaults + env overlay only.
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: env overlay: %w", err)
	}

	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		abs = "."
	}
	cfg.rootDir = abs

	return &cfg, nil
}

// ResolvePath joins a possibly-relative path against the config's root
// directory. Absolute paths are returned unchanged.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.rootDir, p)
}

// ParseInterval parses strings like "3m", "15m", "1h" used by scheduler.tasks[].interval.
func ParseInterval(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: parse interval %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: interval %q must be positive", s)
	}
	return d, nil
}
