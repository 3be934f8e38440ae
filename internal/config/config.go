package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains runtime configuration for canvas-mcp.
type Config struct {
	ServerName                string  `yaml:"server_name"`
	Backend                   string  `yaml:"backend"`
	DBPath                    string  `yaml:"db_path"`
	RedisAddr                 string  `yaml:"redis_addr"`
	Namespace                 string  `yaml:"namespace"`
	LogLevel                  string  `yaml:"log_level"`
	CompressionThresholdBytes int     `yaml:"compression_threshold_bytes"`
	ConfidenceNormalizer      float64 `yaml:"confidence_normalizer"`
	LowConfidenceThreshold    float64 `yaml:"low_confidence_threshold"`
	QueryCacheTTLSeconds      int     `yaml:"query_cache_ttl_seconds"`
	CleanupIntervalSeconds    int     `yaml:"cleanup_interval_seconds"`
	CleanupMaxAgeHours        int     `yaml:"cleanup_max_age_hours"`
	SessionIdleMinutes        int     `yaml:"session_idle_minutes"`
	MetricsAddr               string  `yaml:"metrics_addr"`
}

var namespaceExpr = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Default returns a Config populated with safe defaults.
func Default() Config {
	return Config{
		ServerName:                "canvas-mcp",
		Backend:                   "sqlite",
		DBPath:                    filepath.Join(userHomeDir(), ".canvas-mcp", "cache.db"),
		RedisAddr:                 "127.0.0.1:6379",
		Namespace:                 "canvas",
		LogLevel:                  "info",
		CompressionThresholdBytes: 1024,
		ConfidenceNormalizer:      3,
		LowConfidenceThreshold:    0.3,
		QueryCacheTTLSeconds:      60,
		CleanupIntervalSeconds:    3600,
		CleanupMaxAgeHours:        24 * 7,
		SessionIdleMinutes:        30,
	}
}

// Load loads config from disk; if path does not exist, default config is returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate checks configuration sanity.
func (c *Config) Validate() error {
	if c.ServerName == "" {
		return errors.New("server_name must not be empty")
	}
	switch c.Backend {
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("db_path must not be empty")
		}
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("redis_addr must not be empty")
		}
	default:
		return fmt.Errorf("invalid backend %q (expected sqlite or redis)", c.Backend)
	}
	if !namespaceExpr.MatchString(c.Namespace) {
		return fmt.Errorf("namespace %q must be alphanumeric", c.Namespace)
	}
	if c.CompressionThresholdBytes <= 0 {
		return errors.New("compression_threshold_bytes must be > 0")
	}
	if c.ConfidenceNormalizer <= 0 {
		return errors.New("confidence_normalizer must be > 0")
	}
	if c.LowConfidenceThreshold < 0 || c.LowConfidenceThreshold > 1 {
		return errors.New("low_confidence_threshold must be within [0, 1]")
	}
	if c.QueryCacheTTLSeconds <= 0 {
		return errors.New("query_cache_ttl_seconds must be > 0")
	}
	if c.CleanupIntervalSeconds <= 0 {
		return errors.New("cleanup_interval_seconds must be > 0")
	}
	if c.CleanupMaxAgeHours <= 0 {
		return errors.New("cleanup_max_age_hours must be > 0")
	}
	if c.SessionIdleMinutes <= 0 {
		return errors.New("session_idle_minutes must be > 0")
	}
	return nil
}

// EnsurePaths creates parent directories for config-managed paths.
func (c *Config) EnsurePaths() error {
	c.DBPath = ExpandPath(c.DBPath)
	if c.Backend != "sqlite" {
		return nil
	}
	parent := filepath.Dir(c.DBPath)
	if parent == "." {
		return nil
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create db parent dir: %w", err)
	}
	return nil
}

// QueryCacheTTL is the lifetime of cached query results.
func (c Config) QueryCacheTTL() time.Duration {
	return time.Duration(c.QueryCacheTTLSeconds) * time.Second
}

// CleanupInterval is the period of the background cleanup sweep.
func (c Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

// CleanupMaxAge is the record age beyond which the sweep deletes.
func (c Config) CleanupMaxAge() time.Duration {
	return time.Duration(c.CleanupMaxAgeHours) * time.Hour
}

// SessionIdle is how long an untouched conversation keeps its context.
func (c Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleMinutes) * time.Minute
}

// ExpandPath expands "~/" to the current user's home directory.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" {
		return userHomeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(userHomeDir(), p[2:])
	}
	return p
}

func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
