package config

import (
	"errors"
	"fmt"
	"os"

	"staysync/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Logging    LoggingConfig    `yaml:"logging"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	API        APIConfig        `yaml:"api"`
	Sync       SyncConfig       `yaml:"sync"`
	Property   PropertyConfig   `yaml:"property"`
	Sources    []SourceConfig   `yaml:"sources"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	Port      int                `yaml:"port"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// SyncConfig holds process-wide defaults for the sync engine.
type SyncConfig struct {
	IntervalMinutes     int    `yaml:"interval_minutes"`
	FetchTimeoutSeconds int    `yaml:"fetch_timeout_seconds"`
	RetryAttempts       int    `yaml:"retry_attempts"`
	BackoffBaseSeconds  int    `yaml:"backoff_base_seconds"`
	BackoffMaxSeconds   int    `yaml:"backoff_max_seconds"`
	DownloadDir         string `yaml:"download_dir"`
}

type PropertyConfig struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// SourceConfig seeds a calendar source at startup. Sources created here are
// upserted into the database on boot; the database remains the source of truth
// for last-sync state.
type SourceConfig struct {
	Name            string `yaml:"name"`
	Platform        string `yaml:"platform"`
	FeedURL         string `yaml:"feed_url"`
	SyncEnabled     bool   `yaml:"sync_enabled"`
	IntervalMinutes int    `yaml:"interval_minutes"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; it only feeds os.ExpandEnv below.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Property.ID == 0 {
		return errors.New("property id is required")
	}
	return ValidateSources(c.Sources)
}

func ValidateSources(sources []SourceConfig) error {
	seen := make(map[string]bool)
	for _, src := range sources {
		if src.FeedURL == "" {
			return fmt.Errorf("source '%s' has empty feed_url", src.Name)
		}
		if !models.Platform(src.Platform).Valid() {
			return fmt.Errorf("source '%s' has unknown platform '%s'", src.Name, src.Platform)
		}
		if seen[src.FeedURL] {
			return fmt.Errorf("duplicate feed_url found: %s", src.FeedURL)
		}
		seen[src.FeedURL] = true
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 5
	}

	// Sync defaults
	if c.Sync.IntervalMinutes == 0 {
		c.Sync.IntervalMinutes = models.DefaultSyncIntervalMinutes
	}
	if c.Sync.FetchTimeoutSeconds == 0 {
		c.Sync.FetchTimeoutSeconds = models.DefaultFetchTimeoutSeconds
	}
	if c.Sync.RetryAttempts == 0 {
		c.Sync.RetryAttempts = models.DefaultRetryAttempts
	}
	if c.Sync.BackoffBaseSeconds == 0 {
		c.Sync.BackoffBaseSeconds = models.DefaultBackoffBaseSeconds
	}
	if c.Sync.BackoffMaxSeconds == 0 {
		c.Sync.BackoffMaxSeconds = models.DefaultBackoffMaxSeconds
	}
	if c.Sync.DownloadDir == "" {
		c.Sync.DownloadDir = "data/downloads"
	}

	for i := range c.Sources {
		if c.Sources[i].IntervalMinutes == 0 {
			c.Sources[i].IntervalMinutes = c.Sync.IntervalMinutes
		}
	}
}
