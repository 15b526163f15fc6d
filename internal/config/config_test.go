package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.Aggregator.WindowSize)
	assert.Equal(t, 50, cfg.Aggregator.KeyPrefixLen)
	assert.Equal(t, 5*time.Second, cfg.Monitor.SampleInterval)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero window", func(c *Config) { c.Aggregator.WindowSize = 0 }},
		{"negative flush", func(c *Config) { c.Aggregator.FlushInterval = -time.Second }},
		{"zero prefix", func(c *Config) { c.Aggregator.KeyPrefixLen = 0 }},
		{"zero queue", func(c *Config) { c.Stream.QueueSize = 0 }},
		{"bad format", func(c *Config) { c.Archive.Format = "rar" }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"disk warning too high", func(c *Config) { c.Health.DiskWarningPercent = 100 }},
		{"critical below warning", func(c *Config) { c.Health.DiskCriticalPercent = 50 }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
node_id: node-a
aggregator:
  window_size: 25
  flush_interval: 2s
security:
  passphrase: hunter2
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "node-a", cfg.NodeID)
	assert.Equal(t, 25, cfg.Aggregator.WindowSize)
	assert.Equal(t, 2*time.Second, cfg.Aggregator.FlushInterval)
	// Untouched sections keep defaults.
	assert.Equal(t, 50, cfg.Aggregator.KeyPrefixLen)
	assert.Equal(t, "logs.db", cfg.Database.Path)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aggregator:\n  window_size: -1\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aggregator:\n  flush_interval: soon\n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "flush_interval")
}
