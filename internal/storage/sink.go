// Package storage persists log entries to an append-only SQLite table and
// serves best-effort historical queries.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/coffersTech/logpipe/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	level TEXT NOT NULL,
	message TEXT NOT NULL,
	file TEXT,
	line INTEGER,
	function TEXT,
	process_id INTEGER,
	thread_id INTEGER,
	extra_data TEXT
);
CREATE INDEX IF NOT EXISTS idx_timestamp ON logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_level ON logs(level);
`

// queryColumns are the columns Query accepts as filter keys. Anything else
// is rejected before it reaches SQL.
var queryColumns = map[string]bool{
	"timestamp":  true,
	"level":      true,
	"message":    true,
	"file":       true,
	"line":       true,
	"function":   true,
	"process_id": true,
	"thread_id":  true,
}

// Record is a stored log row as returned by Query.
type Record struct {
	ID        int64             `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	File      string            `json:"file,omitempty"`
	Line      int               `json:"line,omitempty"`
	Function  string            `json:"function,omitempty"`
	PID       int               `json:"process_id,omitempty"`
	TID       int               `json:"thread_id,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Sink writes entries into the logs table. Safe for concurrent use; the
// underlying *sql.DB pools connections.
type Sink struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Sink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &Sink{db: db}, nil
}

// Close closes the database.
func (s *Sink) Close() error {
	return s.db.Close()
}

// Insert appends one entry. Extra fields are stored as a JSON blob.
func (s *Sink) Insert(ctx context.Context, e model.LogEntry) error {
	extra := "{}"
	if len(e.Extra) > 0 {
		data, err := json.Marshal(e.Extra)
		if err != nil {
			return fmt.Errorf("storage: marshal extra: %w", err)
		}
		extra = string(data)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (timestamp, level, message, file, line, function, process_id, thread_id, extra_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Time.UTC().Format(time.RFC3339Nano),
		e.Level.Name, e.Message, e.File, e.Line, e.Function, e.PID, e.TID, extra,
	)
	if err != nil {
		return fmt.Errorf("storage: insert: %w", err)
	}
	return nil
}

// Query returns rows matching every condition (equality conjunction over
// whitelisted columns), newest first, capped at limit.
func (s *Sink) Query(ctx context.Context, conditions map[string]any, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 1000
	}

	query := "SELECT id, timestamp, level, message, file, line, function, process_id, thread_id, extra_data FROM logs"
	var (
		clauses []string
		args    []any
	)
	for col, val := range conditions {
		if !queryColumns[col] {
			return nil, fmt.Errorf("storage: unknown query column %q", col)
		}
		clauses = append(clauses, col+" = ?")
		args = append(args, val)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: query: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec   Record
			ts    string
			extra string
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.Level, &rec.Message, &rec.File,
			&rec.Line, &rec.Function, &rec.PID, &rec.TID, &extra); err != nil {
			return nil, fmt.Errorf("storage: scan: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = t
		}
		if extra != "" && extra != "{}" {
			_ = json.Unmarshal([]byte(extra), &rec.Extra)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored rows.
func (s *Sink) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs").Scan(&n)
	return n, err
}
