package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/logpipe/internal/model"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "logs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entryAt(level, message string, at time.Time) model.LogEntry {
	e := model.NewEntry(level, message)
	e.Time = at
	return e
}

func TestSinkInsertAndQuery(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	e := entryAt("error", "disk failure", base)
	e.File = "io.go"
	e.Line = 17
	e.Function = "writeBlock"
	e.PID = 4242
	e.TID = 7
	e.SetExtra("request_id", "r-1")
	require.NoError(t, s.Insert(ctx, e))

	records, err := s.Query(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "ERROR", rec.Level)
	assert.Equal(t, "disk failure", rec.Message)
	assert.Equal(t, "io.go", rec.File)
	assert.Equal(t, 17, rec.Line)
	assert.Equal(t, "writeBlock", rec.Function)
	assert.Equal(t, 4242, rec.PID)
	assert.Equal(t, 7, rec.TID)
	assert.True(t, rec.Timestamp.Equal(base))
	assert.Equal(t, "r-1", rec.Extra["request_id"])
}

func TestSinkQueryConditions(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Insert(ctx, entryAt("info", "ok", base)))
	require.NoError(t, s.Insert(ctx, entryAt("error", "boom", base.Add(time.Second))))
	require.NoError(t, s.Insert(ctx, entryAt("error", "boom again", base.Add(2*time.Second))))

	records, err := s.Query(ctx, map[string]any{"level": "ERROR"}, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Newest first.
	assert.Equal(t, "boom again", records[0].Message)
	assert.Equal(t, "boom", records[1].Message)

	records, err = s.Query(ctx, map[string]any{"level": "ERROR", "message": "boom"}, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestSinkQueryLimit(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Insert(ctx, entryAt("info", "m", base.Add(time.Duration(i)*time.Second))))
	}

	records, err := s.Query(ctx, nil, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestSinkQueryRejectsUnknownColumn(t *testing.T) {
	s := newTestSink(t)

	_, err := s.Query(context.Background(), map[string]any{"message; DROP TABLE logs": "x"}, 10)
	assert.Error(t, err)
}

func TestSinkCount(t *testing.T) {
	s := newTestSink(t)
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, s.Insert(ctx, model.NewEntry("info", "one")))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
