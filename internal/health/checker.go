// Package health produces point-in-time snapshots of log subsystem health:
// disk usage, process memory and log file inventory, classified against
// configured thresholds.
package health

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/coffersTech/logpipe/internal/config"
)

// Status values in increasing severity.
const (
	StatusHealthy  = "healthy"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// Snapshot is one health check result.
type Snapshot struct {
	Status           string    `json:"status"`
	DiskUsagePercent float64   `json:"disk_usage_percent"`
	MemoryUsageMB    float64   `json:"memory_usage_mb"`
	LogFileCount     int       `json:"log_files_count"`
	TotalLogSizeMB   float64   `json:"total_log_size_mb"`
	Warnings         []string  `json:"warnings,omitempty"`
	CheckedAt        time.Time `json:"last_check"`
}

// MemoryFunc returns the process resident set size in MB.
type MemoryFunc func() (float64, error)

// Checker classifies system health against fixed thresholds.
type Checker struct {
	diskCritical float64
	diskWarning  float64
	memWarningMB float64
	memFunc      MemoryFunc

	// extraWarnings are configuration gaps surfaced on every snapshot,
	// e.g. encryption configured off.
	mu            sync.Mutex
	extraWarnings []string
}

// NewChecker validates the thresholds and builds a Checker. memFunc may be
// nil, disabling the memory check.
func NewChecker(cfg config.HealthConfig, memFunc MemoryFunc) (*Checker, error) {
	if cfg.DiskWarningPercent <= 0 || cfg.DiskWarningPercent >= 100 {
		return nil, fmt.Errorf("health: disk warning threshold out of range: %v", cfg.DiskWarningPercent)
	}
	if cfg.DiskCriticalPercent <= cfg.DiskWarningPercent || cfg.DiskCriticalPercent > 100 {
		return nil, fmt.Errorf("health: disk critical threshold out of range: %v", cfg.DiskCriticalPercent)
	}
	if cfg.MemoryWarningMB <= 0 {
		return nil, fmt.Errorf("health: memory warning threshold must be positive: %v", cfg.MemoryWarningMB)
	}

	return &Checker{
		diskCritical: cfg.DiskCriticalPercent,
		diskWarning:  cfg.DiskWarningPercent,
		memWarningMB: cfg.MemoryWarningMB,
		memFunc:      memFunc,
	}, nil
}

// AddWarning attaches a persistent warning string to every future snapshot.
// Safe to call concurrently with Check.
func (c *Checker) AddWarning(msg string) {
	c.mu.Lock()
	c.extraWarnings = append(c.extraWarnings, msg)
	c.mu.Unlock()
}

// Check computes a health snapshot for the given log directory.
func (c *Checker) Check(dir string) (Snapshot, error) {
	snap := Snapshot{
		Status:    StatusHealthy,
		CheckedAt: time.Now(),
	}

	diskPct, err := diskUsagePercent(dir)
	if err != nil {
		return Snapshot{}, fmt.Errorf("health: disk usage for %s: %w", dir, err)
	}
	snap.DiskUsagePercent = diskPct

	if c.memFunc != nil {
		if memMB, err := c.memFunc(); err == nil {
			snap.MemoryUsageMB = memMB
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return Snapshot{}, fmt.Errorf("health: scan %s: %w", dir, err)
	}
	var totalSize int64
	for _, path := range matches {
		if info, err := os.Stat(path); err == nil {
			totalSize += info.Size()
		}
	}
	snap.LogFileCount = len(matches)
	snap.TotalLogSizeMB = float64(totalSize) / 1024 / 1024

	// Classification. Disk drives the status; memory only ever raises
	// healthy to warning.
	switch {
	case diskPct > c.diskCritical:
		snap.Status = StatusCritical
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("disk usage critical: %.1f%%", diskPct))
	case diskPct > c.diskWarning:
		snap.Status = StatusWarning
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("disk usage high: %.1f%%", diskPct))
	}

	if snap.MemoryUsageMB > c.memWarningMB {
		if snap.Status == StatusHealthy {
			snap.Status = StatusWarning
		}
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("memory usage high: %.1f MB", snap.MemoryUsageMB))
	}

	c.mu.Lock()
	extras := append([]string(nil), c.extraWarnings...)
	c.mu.Unlock()
	if len(extras) > 0 {
		if snap.Status == StatusHealthy {
			snap.Status = StatusWarning
		}
		snap.Warnings = append(snap.Warnings, extras...)
	}

	return snap, nil
}

// diskUsagePercent returns used space as a percentage of the filesystem
// holding dir.
func diskUsagePercent(dir string) (float64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	if total == 0 {
		return 0, nil
	}
	free := stat.Bavail * uint64(stat.Bsize)
	used := total - free
	return float64(used) / float64(total) * 100, nil
}
