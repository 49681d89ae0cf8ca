package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.example.com/x")
	t.Setenv("WATCHER_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/log/nginx/access.log", cfg.LogPath)
	assert.Equal(t, 200, cfg.WindowSize)
	assert.Equal(t, 2.0, cfg.ThresholdPct)
	assert.Equal(t, 5*time.Minute, cfg.Cooldown)
	assert.False(t, cfg.Maintenance)
	assert.Equal(t, "blue", cfg.PrimaryPool)
	assert.Equal(t, "green", cfg.BackupPool)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Empty(t, cfg.DBPath)
	assert.Empty(t, cfg.Addr)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.example.com/x")
	t.Setenv("WATCHER_CONFIG", "")
	t.Setenv("WATCHER_LOG_FILE", "/tmp/proxy.log")
	t.Setenv("WINDOW_SIZE", "50")
	t.Setenv("ERROR_RATE_THRESHOLD", "1.5")
	t.Setenv("ALERT_COOLDOWN_SEC", "60")
	t.Setenv("MAINTENANCE_MODE", "true")
	t.Setenv("WATCHER_POLL_INTERVAL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/proxy.log", cfg.LogPath)
	assert.Equal(t, 50, cfg.WindowSize)
	assert.Equal(t, 1.5, cfg.ThresholdPct)
	assert.Equal(t, time.Minute, cfg.Cooldown)
	assert.True(t, cfg.Maintenance)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
}

func TestYAMLFileOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_file: /srv/logs/access.log
window_size: 120
error_rate_threshold: 3.5
maintenance_mode: true
poll_interval: 2s
`), 0o644))

	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.example.com/x")
	t.Setenv("WINDOW_SIZE", "10")
	t.Setenv("WATCHER_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/srv/logs/access.log", cfg.LogPath)
	assert.Equal(t, 120, cfg.WindowSize)
	assert.Equal(t, 3.5, cfg.ThresholdPct)
	assert.True(t, cfg.Maintenance)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	// Keys absent from the file keep the env/default value.
	assert.Equal(t, "https://hooks.example.com/x", cfg.WebhookURL)
	assert.Equal(t, "blue", cfg.PrimaryPool)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte("window_size: [not an int"), 0o644))
	t.Setenv("WATCHER_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
}

func validConfig() Config {
	return Config{
		LogPath:       "/var/log/nginx/access.log",
		WebhookURL:    "https://hooks.example.com/x",
		WindowSize:    200,
		ThresholdPct:  2,
		Cooldown:      5 * time.Minute,
		PrimaryPool:   "blue",
		BackupPool:    "green",
		PollInterval:  time.Second,
		DispatchQueue: 8,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(validConfig()))

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing webhook", func(c *Config) { c.WebhookURL = "" }},
		{"missing log path", func(c *Config) { c.LogPath = "" }},
		{"zero window", func(c *Config) { c.WindowSize = 0 }},
		{"negative threshold", func(c *Config) { c.ThresholdPct = -1 }},
		{"negative cooldown", func(c *Config) { c.Cooldown = -time.Second }},
		{"same pools", func(c *Config) { c.PrimaryPool = "green" }},
		{"empty primary", func(c *Config) { c.PrimaryPool = "" }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"zero queue", func(c *Config) { c.DispatchQueue = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			require.Error(t, Validate(cfg))
		})
	}
}
