package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"github.com/coffersTech/logpipe/internal/config"
)

// BackupInfo describes one backup artifact on disk.
type BackupInfo struct {
	Name    string    `json:"name"`
	SizeMB  float64   `json:"size_mb"`
	Created time.Time `json:"created"`
}

// BackupManager bundles log files into timestamped tar.gz archives and
// restores them. Backups are never auto-expired; deletion is caller-driven.
type BackupManager struct {
	dir string
	log *logrus.Logger
}

// NewBackupManager creates the manager and its backup directory.
func NewBackupManager(cfg config.BackupConfig, log *logrus.Logger) (*BackupManager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("backup: dir must not be empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("backup: create dir: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BackupManager{dir: cfg.Dir, log: log}, nil
}

// Create bundles every *.log file in dir into one tar.gz archive. An empty
// name gets a timestamped default. Returns the archive path.
func (b *BackupManager) Create(dir, name string) (string, error) {
	if name == "" {
		name = "backup_" + time.Now().Format("20060102_150405")
	}
	dst := filepath.Join(b.dir, name+".tar.gz")

	matches, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return "", fmt.Errorf("backup: scan %s: %w", dir, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("backup: create archive: %w", err)
	}

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	for _, path := range matches {
		if err := addFileToTar(tw, path); err != nil {
			tw.Close()
			gz.Close()
			out.Close()
			os.Remove(dst)
			return "", fmt.Errorf("backup: add %s: %w", path, err)
		}
	}

	err = tw.Close()
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("backup: finalize archive: %w", err)
	}

	b.log.Infof("Backup created: %s (%d files)", dst, len(matches))
	return dst, nil
}

// Restore extracts a backup archive into dir. Entries that would escape the
// destination directory are rejected.
func (b *BackupManager) Restore(path, dir string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("backup: open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("backup: read archive: %w", err)
	}
	defer gz.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("backup: create restore dir: %w", err)
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("backup: read entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.Clean(hdr.Name)
		if strings.HasPrefix(name, "..") || filepath.IsAbs(name) {
			return fmt.Errorf("backup: unsafe entry name %q", hdr.Name)
		}

		dst := filepath.Join(dir, name)
		out, err := os.Create(dst)
		if err != nil {
			return fmt.Errorf("backup: create %s: %w", dst, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("backup: extract %s: %w", dst, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("backup: close %s: %w", dst, err)
		}
	}
	return nil
}

// List returns metadata for all backups, newest first.
func (b *BackupManager) List() ([]BackupInfo, error) {
	matches, err := filepath.Glob(filepath.Join(b.dir, "*.tar.gz"))
	if err != nil {
		return nil, fmt.Errorf("backup: scan: %w", err)
	}

	backups := make([]BackupInfo, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Name:    filepath.Base(path),
			SizeMB:  float64(info.Size()) / 1024 / 1024,
			Created: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Created.After(backups[j].Created)
	})
	return backups, nil
}
