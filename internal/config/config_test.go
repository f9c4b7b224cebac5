package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"toursync/internal/models"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_GATEWAY_KEY", "secret-key")
	t.Setenv("MONGODB_URI", "")
	t.Setenv("MONGODB_DB", "")

	path := writeConfig(t, `
mongo:
  uri: "mongodb://localhost:27017"
  connect_timeout: 5s
gateway:
  api_keys:
    - key: "${TEST_GATEWAY_KEY}"
      name: "desktop"
retention:
  enabled: false
reports:
  timezone: "America/Chicago"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Gateway.APIKeys[0].Key != "secret-key" {
		t.Errorf("expected expanded api key, got %q", cfg.Gateway.APIKeys[0].Key)
	}
	if cfg.Mongo.ConnectTimeout != 5*time.Second {
		t.Errorf("expected connect timeout 5s, got %s", cfg.Mongo.ConnectTimeout)
	}
	if cfg.Mongo.Database != models.DefaultDatabaseName {
		t.Errorf("expected default database %s, got %s", models.DefaultDatabaseName, cfg.Mongo.Database)
	}
	if cfg.Retention.IsEnabled() {
		t.Errorf("expected retention disabled")
	}
	loc, err := cfg.Reports.Location()
	if err != nil || loc.String() != "America/Chicago" {
		t.Errorf("expected America/Chicago location, got %v (%v)", loc, err)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("MONGODB_URI", "mongodb+srv://cluster.example.net")
	t.Setenv("MONGODB_DB", "tours_staging")

	path := writeConfig(t, `
mongo:
  uri: "mongodb://ignored"
gateway:
  api_keys:
    - key: "k"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Mongo.URI != "mongodb+srv://cluster.example.net" {
		t.Errorf("MONGODB_URI not applied, got %s", cfg.Mongo.URI)
	}
	if cfg.Mongo.Database != "tours_staging" {
		t.Errorf("MONGODB_DB not applied, got %s", cfg.Mongo.Database)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidateConfig(t *testing.T) {
	keys := []APIClientKey{{Key: "k", Name: "one"}}
	base := func() Config {
		c := Config{Mongo: MongoConfig{URI: "mongodb://localhost"}, Gateway: GatewayConfig{APIKeys: keys}}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing uri", mutate: func(c *Config) { c.Mongo.URI = "" }, wantErr: true},
		{name: "in-memory needs no uri", mutate: func(c *Config) { c.Mongo.URI = ""; c.Mongo.InMemory = true }},
		{name: "no api keys", mutate: func(c *Config) { c.Gateway.APIKeys = nil }, wantErr: true},
		{name: "empty api key", mutate: func(c *Config) { c.Gateway.APIKeys = []APIClientKey{{Key: " "}} }, wantErr: true},
		{
			name: "duplicate api key",
			mutate: func(c *Config) {
				c.Gateway.APIKeys = []APIClientKey{{Key: "k", Name: "a"}, {Key: "k", Name: "b"}}
			},
			wantErr: true,
		},
		{name: "redis backend without address", mutate: func(c *Config) { c.Gateway.RateLimit.Backend = "redis" }, wantErr: true},
		{
			name: "redis backend",
			mutate: func(c *Config) {
				c.Gateway.RateLimit.Backend = "redis"
				c.Redis.Address = "localhost:6379"
			},
		},
		{name: "unknown backend", mutate: func(c *Config) { c.Gateway.RateLimit.Backend = "etcd" }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Reports.Timezone = "Mars/Olympus" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Gateway.Address != DefaultGatewayAddress {
		t.Errorf("expected default address %s, got %s", DefaultGatewayAddress, cfg.Gateway.Address)
	}
	if cfg.Mongo.ConnectTimeout != 30*time.Second {
		t.Errorf("expected default connect timeout 30s, got %s", cfg.Mongo.ConnectTimeout)
	}
	if cfg.Gateway.HeaderAPIKey != "x-api-key" {
		t.Errorf("expected default api key header, got %s", cfg.Gateway.HeaderAPIKey)
	}
	if cfg.Gateway.RateLimit.Backend != "memory" {
		t.Errorf("expected memory rate limit backend, got %s", cfg.Gateway.RateLimit.Backend)
	}
	if !cfg.Retention.IsEnabled() || cfg.Retention.Interval != 24*time.Hour {
		t.Errorf("expected retention on every 24h, got %v %s", cfg.Retention.IsEnabled(), cfg.Retention.Interval)
	}
	if cfg.Monitoring.PrometheusPort != 0 {
		t.Errorf("prometheus port should stay unset while disabled")
	}
}
