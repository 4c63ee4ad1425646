package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	if cfg.Web.Port != 8700 {
		t.Errorf("expected web port 8700, got %d", cfg.Web.Port)
	}
	if cfg.Web.AuthToken != "" {
		t.Error("expected open mode by default")
	}
	if cfg.Store.Path != "data/hivehub.db" {
		t.Errorf("expected store path data/hivehub.db, got %s", cfg.Store.Path)
	}
	if cfg.NATS.Port != 4222 {
		t.Errorf("expected nats port 4222, got %d", cfg.NATS.Port)
	}
	if cfg.Janitor.Schedule != "*/5 * * * *" {
		t.Errorf("expected janitor schedule */5 * * * *, got %s", cfg.Janitor.Schedule)
	}
	if cfg.Janitor.KeepEvents != 5000 {
		t.Errorf("expected keep_events 5000, got %d", cfg.Janitor.KeepEvents)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	// Point config to a non-existent file so we use defaults
	t.Setenv("HIVEHUB_CONFIG", "/nonexistent/config.yaml")
	t.Setenv("SWARM_AUTH_TOKEN", "hub-secret")
	t.Setenv("HIVEHUB_PORT", "9090")
	t.Setenv("HIVEHUB_STORE_PATH", "/tmp/hub.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Web.AuthToken != "hub-secret" {
		t.Errorf("expected auth token hub-secret, got %s", cfg.Web.AuthToken)
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("expected web port 9090, got %d", cfg.Web.Port)
	}
	if cfg.Store.Path != "/tmp/hub.db" {
		t.Errorf("expected store path /tmp/hub.db, got %s", cfg.Store.Path)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
web:
  port: 3000
  auth_token: "yaml-token"
store:
  path: "/custom/hub.db"
nats:
  port: -1
janitor:
  schedule: "0 * * * *"
  keep_events: 100
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("HIVEHUB_CONFIG", cfgPath)
	// Clear any env overrides
	t.Setenv("SWARM_AUTH_TOKEN", "")
	t.Setenv("HIVEHUB_PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Web.Port != 3000 {
		t.Errorf("expected web port 3000, got %d", cfg.Web.Port)
	}
	if cfg.Web.AuthToken != "yaml-token" {
		t.Errorf("expected yaml-token, got %s", cfg.Web.AuthToken)
	}
	if cfg.Store.Path != "/custom/hub.db" {
		t.Errorf("expected /custom/hub.db, got %s", cfg.Store.Path)
	}
	if cfg.NATS.Port != -1 {
		t.Errorf("expected nats disabled (-1), got %d", cfg.NATS.Port)
	}
	if cfg.Janitor.KeepEvents != 100 {
		t.Errorf("expected keep_events 100, got %d", cfg.Janitor.KeepEvents)
	}
}
