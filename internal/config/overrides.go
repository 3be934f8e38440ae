package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. CANVAS_MCP_BACKEND.
const EnvPrefix = "CANVAS_MCP"

// NewViper returns a viper instance reading CANVAS_MCP_* variables. Command
// flags are bound onto it by the caller under the yaml key names.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Apply overlays every key set in v (flag or environment) onto c and
// validates the result.
func (c *Config) Apply(v *viper.Viper) error {
	strs := map[string]*string{
		"server_name":  &c.ServerName,
		"backend":      &c.Backend,
		"db_path":      &c.DBPath,
		"redis_addr":   &c.RedisAddr,
		"namespace":    &c.Namespace,
		"log_level":    &c.LogLevel,
		"metrics_addr": &c.MetricsAddr,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	ints := map[string]*int{
		"compression_threshold_bytes": &c.CompressionThresholdBytes,
		"query_cache_ttl_seconds":     &c.QueryCacheTTLSeconds,
		"cleanup_interval_seconds":    &c.CleanupIntervalSeconds,
		"cleanup_max_age_hours":       &c.CleanupMaxAgeHours,
		"session_idle_minutes":        &c.SessionIdleMinutes,
	}
	for key, dst := range ints {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	floats := map[string]*float64{
		"confidence_normalizer":    &c.ConfidenceNormalizer,
		"low_confidence_threshold": &c.LowConfidenceThreshold,
	}
	for key, dst := range floats {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	return c.Validate()
}
