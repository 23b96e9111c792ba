package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv   = "SUMMARIZERD_CONFIG"
	listenAddrEnv   = "SUMMARIZERD_ADDR"
	databasePathEnv = "SUMMARIZERD_DB_PATH"
	snapshotPathEnv = "SUMMARIZERD_SNAPSHOT_PATH"
	redisAddrEnv    = "SUMMARIZERD_REDIS_ADDR"
)

// Config holds all settings required across the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Fetch     FetchConfig     `yaml:"fetch"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Summary   SummaryConfig   `yaml:"summary"`
	Refresh   RefreshConfig   `yaml:"refresh"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig describes where articles and raw snapshots live. RedisAddr
// is optional; when set, rate limiting moves to Redis so multiple instances
// can share one window.
type StorageConfig struct {
	DatabasePath string `yaml:"databasePath"`
	SnapshotPath string `yaml:"snapshotPath"`
	RedisAddr    string `yaml:"redisAddr"`
}

// FetchConfig bounds outbound article fetches.
type FetchConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes"`
	UserAgent    string        `yaml:"userAgent"`
}

// RateLimitConfig caps submissions per client within a sliding window.
type RateLimitConfig struct {
	MaxRequests int           `yaml:"maxRequests"`
	Window      time.Duration `yaml:"window"`
}

// SummaryConfig bounds the extractive summary length in sentences.
type SummaryConfig struct {
	MinSentences int `yaml:"minSentences"`
	MaxSentences int `yaml:"maxSentences"`
}

// RefreshConfig controls the poll reconciliation pass.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{
			DatabasePath: "summarizerd.db",
			SnapshotPath: "snapshots",
		},
		Fetch: FetchConfig{
			Timeout:      15 * time.Second,
			MaxBodyBytes: 5 * 1024 * 1024,
			UserAgent:    "Read-it-Later-Summarizer/1.0",
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 10,
			Window:      time.Hour,
		},
		Summary: SummaryConfig{MinSentences: 2, MaxSentences: 5},
		Refresh: RefreshConfig{Interval: 5 * time.Second},
	}
}

// Load reads YAML configuration (if SUMMARIZERD_CONFIG is set) and applies
// environment overrides on top of the defaults.
func Load() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv(listenAddrEnv); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(databasePathEnv); v != "" {
		cfg.Storage.DatabasePath = v
	}
	if v := os.Getenv(snapshotPathEnv); v != "" {
		cfg.Storage.SnapshotPath = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		cfg.Storage.RedisAddr = v
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.Fetch.Timeout)
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch max body must be positive, got %d", c.Fetch.MaxBodyBytes)
	}
	if c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit requires positive max and window")
	}
	if c.Summary.MinSentences <= 0 || c.Summary.MaxSentences < c.Summary.MinSentences {
		return fmt.Errorf("summary sentence bounds invalid: min=%d max=%d",
			c.Summary.MinSentences, c.Summary.MaxSentences)
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %s", c.Refresh.Interval)
	}
	return nil
}
