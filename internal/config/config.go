// Package config loads and validates the pipeline configuration.
// Invalid configuration fails loudly at load time; no component ever
// re-validates at runtime.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the pipeline.
type Config struct {
	// NodeID identifies this node in generated log IDs. Auto-generated
	// when empty.
	NodeID string `yaml:"node_id"`

	// DataDir is the working directory for sequence files and logs.
	DataDir string `yaml:"data_dir"`

	Aggregator AggregatorConfig `yaml:"aggregator"`
	Stream     StreamConfig     `yaml:"stream"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Memory     MemoryConfig     `yaml:"memory"`
	Security   SecurityConfig   `yaml:"security"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Backup     BackupConfig     `yaml:"backup"`
	Database   DatabaseConfig   `yaml:"database"`
	Health     HealthConfig     `yaml:"health"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AggregatorConfig controls the sliding aggregation window.
// Intervals arrive as strings ("5s") and are parsed during Load.
type AggregatorConfig struct {
	WindowSize          int    `yaml:"window_size"`
	FlushIntervalString string `yaml:"flush_interval,omitempty"`
	// KeyPrefixLen is how many leading runes of the message participate
	// in the duplicate-grouping key.
	KeyPrefixLen int `yaml:"key_prefix_len"`

	FlushInterval time.Duration `yaml:"-"`
}

// StreamConfig controls the stream processor queues.
type StreamConfig struct {
	QueueSize         int    `yaml:"queue_size"`
	PollTimeoutString string `yaml:"poll_timeout,omitempty"`

	PollTimeout time.Duration `yaml:"-"`
}

// MonitorConfig controls the performance monitor.
type MonitorConfig struct {
	SampleIntervalString string `yaml:"sample_interval,omitempty"`
	HistorySize          int    `yaml:"history_size"`

	SampleInterval time.Duration `yaml:"-"`
}

// MemoryConfig controls the memory limiter.
type MemoryConfig struct {
	MaxMemoryMB      int    `yaml:"max_memory_mb"`
	GCIntervalString string `yaml:"gc_interval,omitempty"`

	GCInterval time.Duration `yaml:"-"`
}

// SecurityConfig controls sanitization and encryption. An empty passphrase
// disables encryption; the health checker surfaces that as a warning.
type SecurityConfig struct {
	Passphrase string `yaml:"passphrase"`
}

// ArchiveConfig controls old-log compression.
type ArchiveConfig struct {
	Dir         string `yaml:"dir"`
	Format      string `yaml:"format"` // gzip, zstd or tar.gz
	Concurrency int    `yaml:"concurrency"`
}

// BackupConfig controls log backups.
type BackupConfig struct {
	Dir string `yaml:"dir"`
}

// DatabaseConfig controls the SQLite sink.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// HealthConfig holds the health-check thresholds.
type HealthConfig struct {
	DiskCriticalPercent float64 `yaml:"disk_critical_percent"`
	DiskWarningPercent  float64 `yaml:"disk_warning_percent"`
	MemoryWarningMB     float64 `yaml:"memory_warning_mb"`
}

// LoggingConfig controls the diagnostic logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns a fully-populated configuration with production defaults.
func Default() Config {
	return Config{
		DataDir: "./data",
		Aggregator: AggregatorConfig{
			WindowSize:    100,
			FlushInterval: 5 * time.Second,
			KeyPrefixLen:  50,
		},
		Stream: StreamConfig{
			QueueSize:   1024,
			PollTimeout: time.Second,
		},
		Monitor: MonitorConfig{
			SampleInterval: 5 * time.Second,
			HistorySize:    1000,
		},
		Memory: MemoryConfig{
			MaxMemoryMB: 512,
			GCInterval:  time.Minute,
		},
		Archive: ArchiveConfig{
			Dir:         "archives",
			Format:      "gzip",
			Concurrency: 4,
		},
		Backup: BackupConfig{
			Dir: "backups",
		},
		Database: DatabaseConfig{
			Path: "logs.db",
		},
		Health: HealthConfig{
			DiskCriticalPercent: 90,
			DiskWarningPercent:  80,
			MemoryWarningMB:     1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a yaml file on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.parseDurations(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// parseDurations converts the string interval fields set from yaml into
// their time.Duration counterparts. Empty strings keep the defaults.
func (c *Config) parseDurations() error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"aggregator.flush_interval", c.Aggregator.FlushIntervalString, &c.Aggregator.FlushInterval},
		{"stream.poll_timeout", c.Stream.PollTimeoutString, &c.Stream.PollTimeout},
		{"monitor.sample_interval", c.Monitor.SampleIntervalString, &c.Monitor.SampleInterval},
		{"memory.gc_interval", c.Memory.GCIntervalString, &c.Memory.GCInterval},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("%s: invalid duration %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate checks every threshold and path. The error names the offending
// field so misconfiguration is diagnosable without a debugger.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Aggregator.WindowSize <= 0 {
		return fmt.Errorf("aggregator.window_size must be positive, got %d", c.Aggregator.WindowSize)
	}
	if c.Aggregator.FlushInterval <= 0 {
		return fmt.Errorf("aggregator.flush_interval must be positive, got %v", c.Aggregator.FlushInterval)
	}
	if c.Aggregator.KeyPrefixLen <= 0 {
		return fmt.Errorf("aggregator.key_prefix_len must be positive, got %d", c.Aggregator.KeyPrefixLen)
	}
	if c.Stream.QueueSize <= 0 {
		return fmt.Errorf("stream.queue_size must be positive, got %d", c.Stream.QueueSize)
	}
	if c.Stream.PollTimeout <= 0 {
		return fmt.Errorf("stream.poll_timeout must be positive, got %v", c.Stream.PollTimeout)
	}
	if c.Monitor.SampleInterval <= 0 {
		return fmt.Errorf("monitor.sample_interval must be positive, got %v", c.Monitor.SampleInterval)
	}
	if c.Monitor.HistorySize <= 0 {
		return fmt.Errorf("monitor.history_size must be positive, got %d", c.Monitor.HistorySize)
	}
	if c.Memory.MaxMemoryMB <= 0 {
		return fmt.Errorf("memory.max_memory_mb must be positive, got %d", c.Memory.MaxMemoryMB)
	}
	if c.Memory.GCInterval <= 0 {
		return fmt.Errorf("memory.gc_interval must be positive, got %v", c.Memory.GCInterval)
	}
	switch c.Archive.Format {
	case "gzip", "zstd", "tar.gz":
	default:
		return fmt.Errorf("archive.format must be gzip, zstd or tar.gz, got %q", c.Archive.Format)
	}
	if c.Archive.Concurrency <= 0 {
		return fmt.Errorf("archive.concurrency must be positive, got %d", c.Archive.Concurrency)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Health.DiskWarningPercent <= 0 || c.Health.DiskWarningPercent >= 100 {
		return fmt.Errorf("health.disk_warning_percent must be in (0, 100), got %v", c.Health.DiskWarningPercent)
	}
	if c.Health.DiskCriticalPercent <= c.Health.DiskWarningPercent || c.Health.DiskCriticalPercent > 100 {
		return fmt.Errorf("health.disk_critical_percent must be in (warning, 100], got %v", c.Health.DiskCriticalPercent)
	}
	if c.Health.MemoryWarningMB <= 0 {
		return fmt.Errorf("health.memory_warning_mb must be positive, got %v", c.Health.MemoryWarningMB)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
