// Package ident generates node-scoped, monotonically increasing log IDs
// backed by a durable sequence counter.
package ident

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SequenceStore persists a per-node counter so that sequences keep
// increasing across restarts. The counter file lives at
// <dir>/sequence_<node>.dat and is replaced atomically on every save.
type SequenceStore struct {
	path string
}

// NewSequenceStore creates the store, creating the directory if needed.
func NewSequenceStore(dir, nodeID string) (*SequenceStore, error) {
	if nodeID == "" {
		return nil, fmt.Errorf("ident: node ID must not be empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("ident: create sequence dir: %w", err)
	}
	return &SequenceStore{
		path: filepath.Join(dir, fmt.Sprintf("sequence_%s.dat", nodeID)),
	}, nil
}

// Load returns the last persisted counter. A missing or corrupt file counts
// as zero; a process that never ran starts from scratch.
func (s *SequenceStore) Load() uint64 {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Save persists the counter via a temp file and atomic rename.
func (s *SequenceStore) Save(n uint64) error {
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.FormatUint(n, 10)), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
