// Package archive compresses, archives and backs up log files on disk.
// These utilities run off the hot path; a failure on one file never fails
// the batch.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/coffersTech/logpipe/internal/config"
)

// Archiver compresses aged-out log files into the archive directory and
// removes the originals.
type Archiver struct {
	dir         string
	format      string
	concurrency int
	log         *logrus.Logger
}

// NewArchiver creates the Archiver and its output directory.
func NewArchiver(cfg config.ArchiveConfig, log *logrus.Logger) (*Archiver, error) {
	switch cfg.Format {
	case "gzip", "zstd", "tar.gz":
	default:
		return nil, fmt.Errorf("archive: unsupported format %q", cfg.Format)
	}
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("archive: concurrency must be positive, got %d", cfg.Concurrency)
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("archive: create dir: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Archiver{
		dir:         cfg.Dir,
		format:      cfg.Format,
		concurrency: cfg.Concurrency,
		log:         log,
	}, nil
}

// Archive compresses every *.log file in dir whose modification time is
// older than the threshold, removing originals on success. Files are
// processed with bounded concurrency; per-file failures are logged and
// skipped. Returns the paths of produced artifacts.
func (a *Archiver) Archive(dir string, olderThan time.Duration) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil {
		return nil, fmt.Errorf("archive: scan %s: %w", dir, err)
	}

	cutoff := time.Now().Add(-olderThan)

	var (
		mu        sync.Mutex
		artifacts []string
	)

	var g errgroup.Group
	g.SetLimit(a.concurrency)

	for _, path := range matches {
		path := path
		g.Go(func() error {
			info, err := os.Stat(path)
			if err != nil {
				a.log.WithError(err).Warnf("Archive skip %s", path)
				return nil
			}
			if info.ModTime().After(cutoff) {
				return nil
			}

			artifact, err := a.compressFile(path)
			if err != nil {
				a.log.WithError(err).Warnf("Archive failed for %s", path)
				return nil
			}
			if err := os.Remove(path); err != nil {
				a.log.WithError(err).Warnf("Archived but could not remove %s", path)
			}

			mu.Lock()
			artifacts = append(artifacts, artifact)
			mu.Unlock()
			return nil
		})
	}

	// Workers swallow their own errors, so Wait only synchronizes.
	_ = g.Wait()

	sort.Strings(artifacts)
	return artifacts, nil
}

// compressFile writes one compressed artifact for path into the archive
// directory and returns its path.
func (a *Archiver) compressFile(path string) (string, error) {
	base := filepath.Base(path)

	switch a.format {
	case "gzip":
		return a.writeCompressed(path, base+".gz", func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriter(w), nil
		})
	case "zstd":
		return a.writeCompressed(path, base+".zst", func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		})
	case "tar.gz":
		return a.writeTarGz(path, base+".tar.gz")
	}
	return "", fmt.Errorf("unsupported format %q", a.format)
}

func (a *Archiver) writeCompressed(src, name string, wrap func(io.Writer) (io.WriteCloser, error)) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	dst := filepath.Join(a.dir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}

	cw, err := wrap(out)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}

	if _, err := io.Copy(cw, in); err != nil {
		cw.Close()
		out.Close()
		os.Remove(dst)
		return "", err
	}
	if err := cw.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}
	return dst, nil
}

func (a *Archiver) writeTarGz(src, name string) (string, error) {
	dst := filepath.Join(a.dir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	err = addFileToTar(tw, src)
	if cerr := tw.Close(); err == nil {
		err = cerr
	}
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		os.Remove(dst)
		return "", err
	}
	return dst, nil
}

func addFileToTar(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
