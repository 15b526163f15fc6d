package pipeline

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/logpipe/internal/config"
	"github.com/coffersTech/logpipe/internal/model"
)

func newTestStream(t *testing.T, queueSize int) *StreamProcessor {
	t.Helper()
	sp, err := NewStreamProcessor(config.StreamConfig{
		QueueSize:   queueSize,
		PollTimeout: time.Second,
	}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(sp.Stop)
	return sp
}

// pollWait polls until an entry arrives or the deadline passes.
func pollWait(t *testing.T, sp *StreamProcessor) model.LogEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if entry, ok := sp.Poll(); ok {
			return entry
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no processed entry within deadline")
	return model.LogEntry{}
}

func TestStreamAppliesStagesInOrder(t *testing.T) {
	sp := newTestStream(t, 16)
	sp.AddStage(func(e model.LogEntry) (model.LogEntry, error) {
		e.Message += "-a"
		return e, nil
	})
	sp.AddStage(func(e model.LogEntry) (model.LogEntry, error) {
		e.Message += "-b"
		return e, nil
	})

	require.NoError(t, sp.Submit(model.NewEntry("info", "x")))

	got := pollWait(t, sp)
	assert.Equal(t, "x-a-b", got.Message)
}

func TestStreamPreservesSubmissionOrder(t *testing.T) {
	sp := newTestStream(t, 64)
	sp.AddStage(func(e model.LogEntry) (model.LogEntry, error) {
		e.Message = strings.ToUpper(e.Message)
		return e, nil
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, sp.Submit(model.NewEntry("info", "msg"+strconv.Itoa(i))))
	}

	for i := 0; i < 10; i++ {
		got := pollWait(t, sp)
		assert.Equal(t, "MSG"+strconv.Itoa(i), got.Message)
	}
}

func TestStreamDropsEntryOnStageError(t *testing.T) {
	sp := newTestStream(t, 16)
	sp.AddStage(func(e model.LogEntry) (model.LogEntry, error) {
		if e.Message == "bad" {
			return model.LogEntry{}, errors.New("stage rejects")
		}
		return e, nil
	})

	require.NoError(t, sp.Submit(model.NewEntry("info", "bad")))
	require.NoError(t, sp.Submit(model.NewEntry("info", "good")))

	// The bad entry is dropped; the good one survives.
	got := pollWait(t, sp)
	assert.Equal(t, "good", got.Message)

	_, ok := sp.Poll()
	assert.False(t, ok)
}

func TestStreamIsolatesPanickingStage(t *testing.T) {
	sp := newTestStream(t, 16)
	sp.AddStage(func(e model.LogEntry) (model.LogEntry, error) {
		if e.Message == "boom" {
			panic("stage bug")
		}
		return e, nil
	})

	require.NoError(t, sp.Submit(model.NewEntry("info", "boom")))
	require.NoError(t, sp.Submit(model.NewEntry("info", "fine")))

	got := pollWait(t, sp)
	assert.Equal(t, "fine", got.Message)
}

func TestStreamPollEmpty(t *testing.T) {
	sp := newTestStream(t, 16)
	_, ok := sp.Poll()
	assert.False(t, ok)
}

func TestStreamQueueFull(t *testing.T) {
	sp, err := NewStreamProcessor(config.StreamConfig{
		QueueSize:   2,
		PollTimeout: time.Second,
	}, quietLogger())
	require.NoError(t, err)
	defer sp.Stop()

	// Block the worker so the input queue backs up.
	gate := make(chan struct{})
	sp.AddStage(func(e model.LogEntry) (model.LogEntry, error) {
		<-gate
		return e, nil
	})

	// First submit is consumed by the worker; two more fill the queue.
	require.NoError(t, sp.Submit(model.NewEntry("info", "1")))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, sp.Submit(model.NewEntry("info", "2")))
	require.NoError(t, sp.Submit(model.NewEntry("info", "3")))

	err = sp.Submit(model.NewEntry("info", "4"))
	assert.ErrorIs(t, err, ErrQueueFull)

	close(gate)
}

func TestStreamSubmitAfterStop(t *testing.T) {
	sp := newTestStream(t, 16)
	sp.Stop()

	err := sp.Submit(model.NewEntry("info", "late"))
	assert.ErrorIs(t, err, ErrStopped)
}
