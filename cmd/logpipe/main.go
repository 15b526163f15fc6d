package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coffersTech/logpipe/internal/analysis"
	"github.com/coffersTech/logpipe/internal/archive"
	"github.com/coffersTech/logpipe/internal/config"
	"github.com/coffersTech/logpipe/internal/health"
	"github.com/coffersTech/logpipe/internal/model"
	"github.com/coffersTech/logpipe/internal/pipeline"
	"github.com/coffersTech/logpipe/internal/security"
	"github.com/coffersTech/logpipe/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to yaml config (defaults apply when empty)")
	dataDir := flag.String("data", "", "Override data directory")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logrus.Fatalf("Config error: %v", err)
		}
		cfg = loaded
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	log := newLogger(cfg.Logging)
	log.Info("logpipe starting...")

	// Storage sink for aggregated output.
	ctx := context.Background()
	sink, err := storage.Open(ctx, cfg.Database.Path)
	if err != nil {
		log.Fatalf("Storage init failed: %v", err)
	}

	flushSink := func(entries []model.LogEntry) error {
		for _, e := range entries {
			if err := sink.Insert(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}

	pipe, err := pipeline.New(cfg, flushSink, log)
	if err != nil {
		log.Fatalf("Pipeline init failed: %v", err)
	}
	log.Infof("Pipeline initialized. Node: %s, Window: %d, Flush: %v",
		pipe.NodeID(), cfg.Aggregator.WindowSize, cfg.Aggregator.FlushInterval)

	// Analysis on routed errors.
	analyzer := analysis.NewAnalyzer()
	pipe.AddRoute(
		func(e model.LogEntry) bool { return e.Level.IsError() },
		func(e model.LogEntry) {
			report := analyzer.Analyze(e)
			log.WithFields(logrus.Fields{
				"severity":   report.Severity,
				"categories": strings.Join(report.Categories, ","),
			}).Warnf("Flagged entry: %s", e.Message)
		},
	)
	pipe.SetDefaultRoute(func(e model.LogEntry) {
		log.Debugf("[%s] %s", e.Level, e.Message)
	})

	// Cipher for at-rest protection of serialized batches.
	cipher, err := security.NewCipher(cfg.Security.Passphrase)
	if err != nil {
		log.Fatalf("Cipher init failed: %v", err)
	}

	checker, err := health.NewChecker(cfg.Health, func() (float64, error) {
		return pipe.Metrics().MemoryUsageMB, nil
	})
	if err != nil {
		log.Fatalf("Health checker init failed: %v", err)
	}
	if !cipher.Enabled() {
		checker.AddWarning("log encryption disabled: no passphrase configured")
	}

	// Periodic health report and archive sweep.
	archiver, err := archive.NewArchiver(cfg.Archive, log)
	if err != nil {
		log.Fatalf("Archiver init failed: %v", err)
	}
	backups, err := archive.NewBackupManager(cfg.Backup, log)
	if err != nil {
		log.Fatalf("Backup init failed: %v", err)
	}
	housekeepingDone := make(chan struct{})
	go runHousekeeping(cfg, checker, archiver, backups, log, housekeepingDone)

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Infof("Received signal: %v. Shutting down...", sig)

	close(housekeepingDone)
	pipe.Shutdown()

	if err := sink.Close(); err != nil {
		log.Warnf("Storage close error: %v", err)
	}
	log.Info("logpipe exited gracefully.")
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()

	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// runHousekeeping logs a health snapshot every minute, archives aged-out
// logs every hour and takes a daily backup.
func runHousekeeping(cfg config.Config, checker *health.Checker, archiver *archive.Archiver, backups *archive.BackupManager, log *logrus.Logger, done <-chan struct{}) {
	healthTicker := time.NewTicker(time.Minute)
	archiveTicker := time.NewTicker(time.Hour)
	backupTicker := time.NewTicker(24 * time.Hour)
	defer healthTicker.Stop()
	defer archiveTicker.Stop()
	defer backupTicker.Stop()

	for {
		select {
		case <-healthTicker.C:
			snap, err := checker.Check(cfg.DataDir)
			if err != nil {
				log.Warnf("Health check failed: %v", err)
				continue
			}
			entry := log.WithFields(logrus.Fields{
				"disk_pct": snap.DiskUsagePercent,
				"files":    snap.LogFileCount,
			})
			if snap.Status == health.StatusHealthy {
				entry.Debug("Health check")
			} else {
				entry.Warnf("Health %s: %s", snap.Status, strings.Join(snap.Warnings, "; "))
			}
		case <-archiveTicker.C:
			artifacts, err := archiver.Archive(cfg.DataDir, 7*24*time.Hour)
			if err != nil {
				log.Warnf("Archive sweep failed: %v", err)
			} else if len(artifacts) > 0 {
				log.Infof("Archived %d log files", len(artifacts))
			}
		case <-backupTicker.C:
			if path, err := backups.Create(cfg.DataDir, ""); err != nil {
				log.Warnf("Backup failed: %v", err)
			} else {
				log.Infof("Backup written: %s", path)
			}
		case <-done:
			return
		}
	}
}
