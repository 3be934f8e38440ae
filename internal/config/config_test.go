package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	t.Parallel()
	got := ExpandPath("~/cache.db")
	if got == "~/cache.db" {
		t.Fatalf("expected home-expanded path, got %q", got)
	}
	if !strings.Contains(got, "cache.db") {
		t.Fatalf("expected expanded path to contain file name, got %q", got)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesAndValidates(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "canvas-mcp.yaml")
	body := "namespace: school\ncompression_threshold_bytes: 2048\nconfidence_normalizer: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "school", cfg.Namespace)
	assert.Equal(t, 2048, cfg.CompressionThresholdBytes)
	assert.InDelta(t, 4.0, cfg.ConfidenceNormalizer, 1e-9)
	assert.InDelta(t, 0.3, cfg.LowConfidenceThreshold, 1e-9)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	t.Parallel()
	cases := map[string]func(*Config){
		"backend":    func(c *Config) { c.Backend = "mongo" },
		"namespace":  func(c *Config) { c.Namespace = "bad_ns" },
		"threshold":  func(c *Config) { c.CompressionThresholdBytes = 0 },
		"normalizer": func(c *Config) { c.ConfidenceNormalizer = 0 },
		"confidence": func(c *Config) { c.LowConfidenceThreshold = 1.5 },
		"session":    func(c *Config) { c.SessionIdleMinutes = 0 },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestApply_OverlaysSetKeys(t *testing.T) {
	t.Parallel()
	v := NewViper()
	v.Set("backend", "redis")
	v.Set("cleanup_max_age_hours", 12)
	v.Set("low_confidence_threshold", 0.5)
	v.Set("session_idle_minutes", 5)

	cfg := Default()
	require.NoError(t, cfg.Apply(v))
	assert.Equal(t, 5*time.Minute, cfg.SessionIdle())
	assert.Equal(t, "redis", cfg.Backend)
	assert.Equal(t, 12, cfg.CleanupMaxAgeHours)
	assert.InDelta(t, 0.5, cfg.LowConfidenceThreshold, 1e-9)
	assert.Equal(t, Default().Namespace, cfg.Namespace)
}

func TestApply_ReadsEnvironment(t *testing.T) {
	t.Setenv("CANVAS_MCP_NAMESPACE", "school")
	t.Setenv("CANVAS_MCP_COMPRESSION_THRESHOLD_BYTES", "4096")

	cfg := Default()
	require.NoError(t, cfg.Apply(NewViper()))
	assert.Equal(t, "school", cfg.Namespace)
	assert.Equal(t, 4096, cfg.CompressionThresholdBytes)
}

func TestApply_RejectsInvalidOverride(t *testing.T) {
	t.Parallel()
	v := NewViper()
	v.Set("backend", "mongo")
	cfg := Default()
	assert.Error(t, cfg.Apply(v))
}
