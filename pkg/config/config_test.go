package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2*time.Second, cfg.RateLimit.MinDelay)
	assert.Equal(t, 50, cfg.RateLimit.MaxRequestsPerWindow)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.WindowDuration)

	assert.Equal(t, 50, cfg.Collector.ConsecutiveKnownLimit)
	assert.Equal(t, 5*time.Minute, cfg.Collector.ProgressTimeout)
	assert.Equal(t, 0.8, cfg.Collector.CoverageThreshold)

	assert.True(t, cfg.Fallback.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Fallback.SessionCap)
	assert.Equal(t, 3, cfg.Fallback.StagnantPassLimit)
	assert.Greater(t, cfg.Fallback.RateLimit.JitterFactor, 0.0)

	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero window requests",
			mutate:  func(c *Config) { c.RateLimit.MaxRequestsPerWindow = 0 },
			wantErr: "max requests per window",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.Collector.BatchSize = 0 },
			wantErr: "batch size",
		},
		{
			name:    "coverage threshold above one",
			mutate:  func(c *Config) { c.Collector.CoverageThreshold = 1.5 },
			wantErr: "coverage threshold",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.Retry.MaxRetries = -1 },
			wantErr: "max retries",
		},
		{
			name:    "fallback without session cap",
			mutate:  func(c *Config) { c.Fallback.SessionCap = 0 },
			wantErr: "session cap",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "log level",
		},
		{
			name:    "fallback disabled skips fallback checks",
			mutate:  func(c *Config) { c.Fallback.Enabled = false; c.Fallback.SessionCap = 0 },
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ValidateCredentials()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth token")
	assert.Contains(t, err.Error(), "CSRF token")

	cfg.Source.AuthToken = "token"
	cfg.Source.CSRFToken = "csrf"
	assert.NoError(t, cfg.ValidateCredentials())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("XSCRAPER_AUTH_TOKEN", "env_token")
	t.Setenv("XSCRAPER_MIN_DELAY", "500ms")
	t.Setenv("XSCRAPER_REQUESTS_PER_WINDOW", "25")
	t.Setenv("XSCRAPER_FALLBACK_ENABLED", "false")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "env_token", cfg.Source.AuthToken)
	assert.Equal(t, 500*time.Millisecond, cfg.RateLimit.MinDelay)
	assert.Equal(t, 25, cfg.RateLimit.MaxRequestsPerWindow)
	assert.False(t, cfg.Fallback.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
rate_limit:
  min_delay: 1s
  max_requests_per_window: 10
collector:
  batch_size: 20
  include_replies: false
output:
  base_directory: /tmp/out
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, time.Second, cfg.RateLimit.MinDelay)
	assert.Equal(t, 10, cfg.RateLimit.MaxRequestsPerWindow)
	assert.Equal(t, 20, cfg.Collector.BatchSize)
	assert.False(t, cfg.Collector.IncludeReplies)
	assert.Equal(t, "/tmp/out", cfg.Output.BaseDirectory)

	// Untouched sections keep defaults.
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMergeFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeFlags(map[string]interface{}{
		"batch-size":         40,
		"coverage-threshold": 0.9,
		"fallback":           false,
		"output":             "/data/archive",
	})

	assert.Equal(t, 40, cfg.Collector.BatchSize)
	assert.Equal(t, 0.9, cfg.Collector.CoverageThreshold)
	assert.False(t, cfg.Fallback.Enabled)
	assert.Equal(t, "/data/archive", cfg.Output.BaseDirectory)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Collector.BatchSize = 77
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 77, loaded.Collector.BatchSize)
}
