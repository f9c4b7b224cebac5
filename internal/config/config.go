package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"toursync/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath           = "configs/config.yaml"
	DefaultGatewayAddress = "127.0.0.1:8787"
	DefaultAPIKeyHeader   = "x-api-key"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	Retention  RetentionConfig  `yaml:"retention"`
	Updates    UpdatesConfig    `yaml:"updates"`
	Reports    ReportsConfig    `yaml:"reports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// MongoConfig holds the only copy of the connection string. It is passed to
// the store and nowhere else.
type MongoConfig struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// InMemory swaps MongoDB for a process-local database. Nothing persists.
	InMemory bool `yaml:"in_memory"`
}

type GatewayConfig struct {
	Address         string          `yaml:"address"`
	HeaderAPIKey    string          `yaml:"header_api_key"`
	APIKeys         []APIClientKey  `yaml:"api_keys"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	AllowedOrigins  []string        `yaml:"allowed_origins"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
}

type APIClientKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// Backend is "memory" (token bucket) or "redis" (fixed window shared
	// between gateway processes, falling back to memory while Redis is down).
	Backend string        `yaml:"backend"`
	Window  time.Duration `yaml:"window"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type RetentionConfig struct {
	Enabled  *bool         `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// IsEnabled is true unless retention.enabled is explicitly false.
func (r RetentionConfig) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

type UpdatesConfig struct {
	FeedURL string        `yaml:"feed_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ReportsConfig struct {
	Timezone string `yaml:"timezone"`
}

// Location resolves the report timezone; empty means the local zone.
func (r ReportsConfig) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(r.Timezone)
}

// Path returns CONFIG_PATH or the default location.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

func Load(configPath string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyEnv() {
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		c.Mongo.URI = uri
	}
	if db := os.Getenv("MONGODB_DB"); db != "" {
		c.Mongo.Database = db
	}
}

func (c *Config) Validate() error {
	if c.Mongo.URI == "" && !c.Mongo.InMemory {
		return errors.New("mongo uri is required (mongo.uri or MONGODB_URI)")
	}

	if len(c.Gateway.APIKeys) == 0 {
		return errors.New("at least one gateway api key is required")
	}
	seen := make(map[string]bool)
	for _, k := range c.Gateway.APIKeys {
		if strings.TrimSpace(k.Key) == "" {
			return fmt.Errorf("api key %q is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client %q", k.Name)
		}
		seen[k.Key] = true
	}

	switch c.Gateway.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.Address == "" {
			return errors.New("rate_limit.backend=redis requires redis.address")
		}
	default:
		return fmt.Errorf("unknown rate limit backend %q", c.Gateway.RateLimit.Backend)
	}

	if _, err := c.Reports.Location(); err != nil {
		return fmt.Errorf("reports.timezone: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "toursync"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = models.DefaultDatabaseName
	}
	if c.Mongo.ConnectTimeout == 0 {
		c.Mongo.ConnectTimeout = models.DefaultConnectTimeout
	}

	if c.Gateway.Address == "" {
		c.Gateway.Address = DefaultGatewayAddress
	}
	if c.Gateway.HeaderAPIKey == "" {
		c.Gateway.HeaderAPIKey = DefaultAPIKeyHeader
	}
	if c.Gateway.ReadTimeout == 0 {
		c.Gateway.ReadTimeout = 15 * time.Second
	}
	if c.Gateway.WriteTimeout == 0 {
		c.Gateway.WriteTimeout = 60 * time.Second
	}
	if c.Gateway.ShutdownTimeout == 0 {
		c.Gateway.ShutdownTimeout = 10 * time.Second
	}
	if c.Gateway.RateLimit.RPS == 0 {
		c.Gateway.RateLimit.RPS = 20
	}
	if c.Gateway.RateLimit.Burst == 0 {
		c.Gateway.RateLimit.Burst = 40
	}
	if c.Gateway.RateLimit.Backend == "" {
		c.Gateway.RateLimit.Backend = "memory"
	}
	if c.Gateway.RateLimit.Window == 0 {
		c.Gateway.RateLimit.Window = time.Minute
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Retention.Interval == 0 {
		c.Retention.Interval = models.DefaultRetentionInterval
	}
	if c.Updates.Timeout == 0 {
		c.Updates.Timeout = 15 * time.Second
	}
}
