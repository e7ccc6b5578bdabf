package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsAppliedWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.Name != "beacon" {
		t.Errorf("expected default agent name beacon, got %q", cfg.Agent.Name)
	}
	if cfg.Daemon.Port != 8077 {
		t.Errorf("expected default port 8077, got %d", cfg.Daemon.Port)
	}
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `
agent:
  name: other-agent
daemon:
  port: 9000
`
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.Name != "other-agent" {
		t.Errorf("expected overridden agent name, got %q", cfg.Agent.Name)
	}
	if cfg.Daemon.Port != 9000 {
		t.Errorf("expected overridden port 9000, got %d", cfg.Daemon.Port)
	}
	// Untouched defaults should survive the merge.
	if cfg.Daemon.LogLevel != "info" {
		t.Errorf("expected default log level to survive merge, got %q", cfg.Daemon.LogLevel)
	}
}

func TestLoadAppliesEnvOverlay(t *testing.T) {
	t.Setenv("BEACOND_PORT", "5555")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Daemon.Port != 5555 {
		t.Errorf("expected env override to win, got %d", cfg.Daemon.Port)
	}
}

func TestResolvePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := cfg.ResolvePath("state/vault.json"); got != filepath.Join(dir, "state/vault.json") {
		t.Errorf("expected relative path resolved against root dir, got %q", got)
	}
	if got := cfg.ResolvePath("/abs/path"); got != "/abs/path" {
		t.Errorf("expected absolute path unchanged, got %q", got)
	}
	if got := cfg.ResolvePath(""); got != "" {
		t.Errorf("expected empty path unchanged, got %q", got)
	}
}

func TestParseInterval(t *testing.T) {
	if _, err := ParseInterval("not-a-duration"); err == nil {
		t.Error("expected error for unparseable interval")
	}
	if _, err := ParseInterval("-5m"); err == nil {
		t.Error("expected error for non-positive interval")
	}
	d, err := ParseInterval("15m")
	if err != nil {
		t.Fatalf("ParseInterval: %v", err)
	}
	if d.Minutes() != 15 {
		t.Errorf("expected 15m, got %v", d)
	}
}
