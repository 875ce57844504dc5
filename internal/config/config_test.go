package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reactions.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := cfg.ListenAddr(); got != "127.0.0.1:37778" {
		t.Errorf("ListenAddr = %q", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
backend:
  driver: badger
  timeout: 500ms
policy:
  max_users_per_reaction: 10
  cleanup_threshold: 0.9
  cooldown: 1m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("Bind = %q, default should survive", cfg.Server.Bind)
	}
	if cfg.Backend.Driver != "badger" || cfg.Backend.Timeout != 500*time.Millisecond {
		t.Errorf("Backend = %+v", cfg.Backend)
	}
	if cfg.Policy.MaxUsersPerReaction != 10 || cfg.Policy.CleanupThreshold != 0.9 {
		t.Errorf("Policy = %+v", cfg.Policy)
	}
	if cfg.Policy.Cooldown != time.Minute {
		t.Errorf("Cooldown = %v, want 1m", cfg.Policy.Cooldown)
	}
	if cfg.Policy.MaxReactionsPerMessage != 20 {
		t.Errorf("MaxReactionsPerMessage = %d, default should survive", cfg.Policy.MaxReactionsPerMessage)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("REACTIONS_SERVER_PORT", "9100")
	t.Setenv("REACTIONS_POLICY_RETENTION_FACTOR", "0.5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Policy.RetentionFactor != 0.5 {
		t.Errorf("RetentionFactor = %v, want 0.5", cfg.Policy.RetentionFactor)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad driver", "backend:\n  driver: redis\n"},
		{"bad policy", "policy:\n  cleanup_threshold: 1.5\n"},
		{"bad port", "server:\n  port: 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
