package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Web     WebConfig     `yaml:"web"`
	Store   StoreConfig   `yaml:"store"`
	NATS    NATSConfig    `yaml:"nats"`
	Janitor JanitorConfig `yaml:"janitor"`
}

type WebConfig struct {
	Port int `yaml:"port"`
	// AuthToken is the shared bearer token. Empty means open (development) mode.
	AuthToken string `yaml:"auth_token"`
	// WebhookSecret enables HMAC verification of GitHub webhook deliveries
	// when set. Empty means deliveries are accepted unverified.
	WebhookSecret string `yaml:"webhook_secret"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type NATSConfig struct {
	// Port for the embedded NATS server. 0 picks an ephemeral port,
	// -1 disables the event mirror entirely.
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type JanitorConfig struct {
	// Schedule is a cron expression gating compaction sweeps.
	Schedule string `yaml:"schedule"`
	// KeepEvents bounds the stored event log per room.
	KeepEvents int `yaml:"keep_events"`
}

func defaults() Config {
	return Config{
		Web: WebConfig{
			Port: 8700,
		},
		Store: StoreConfig{
			Path: "data/hivehub.db",
		},
		NATS: NATSConfig{
			Port:    4222,
			DataDir: "data/nats",
		},
		Janitor: JanitorConfig{
			Schedule:   "*/5 * * * *",
			KeepEvents: 5000,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("HIVEHUB_CONFIG")
	if path == "" {
		path = "config/hivehub.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SWARM_AUTH_TOKEN"); v != "" {
		cfg.Web.AuthToken = v
	}
	if v := os.Getenv("GITHUB_WEBHOOK_SECRET"); v != "" {
		cfg.Web.WebhookSecret = v
	}
	if v := os.Getenv("HIVEHUB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("HIVEHUB_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("HIVEHUB_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
}
