package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/logpipe/internal/config"
	"github.com/coffersTech/logpipe/internal/model"
)

func newTestPipeline(t *testing.T, sink FlushSink) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.NodeID = "test-node"
	cfg.Aggregator.WindowSize = 3
	cfg.Aggregator.FlushInterval = time.Hour
	cfg.Monitor.SampleInterval = time.Hour
	cfg.Memory.GCInterval = time.Hour

	p, err := New(cfg, sink, quietLogger())
	require.NoError(t, err)
	t.Cleanup(p.Shutdown)
	return p
}

func TestPipelineProcessSanitizesAndStamps(t *testing.T) {
	c := &collectSink{}
	p := newTestPipeline(t, c.sink)

	var routed model.LogEntry
	p.SetDefaultRoute(func(e model.LogEntry) { routed = e })

	p.Process(model.NewEntry("info", "login with password: hunter2"))

	assert.Contains(t, routed.Message, "password=***")
	assert.NotContains(t, routed.Message, "hunter2")
	assert.True(t, strings.HasPrefix(routed.Extra["log_id"], "test-node_"))
}

func TestPipelineAggregatesIntoSink(t *testing.T) {
	c := &collectSink{}
	p := newTestPipeline(t, c.sink)

	p.Process(model.NewEntry("info", "repeat"))
	p.Process(model.NewEntry("info", "repeat"))
	p.Process(model.NewEntry("info", "repeat"))

	require.Equal(t, 1, c.count())
	require.Len(t, c.batches[0], 1)
	assert.Equal(t, 3, c.batches[0][0].Count)
}

func TestPipelineStreamStage(t *testing.T) {
	c := &collectSink{}
	p := newTestPipeline(t, c.sink)

	p.AddStage(func(e model.LogEntry) (model.LogEntry, error) {
		e.SetExtra("stage", "done")
		return e, nil
	})

	p.Process(model.NewEntry("info", "streamed"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e, ok := p.Poll(); ok {
			assert.Equal(t, "done", e.Extra["stage"])
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("stream-processed entry never arrived")
}

func TestPipelineStageMutationStaysOutOfFlushedBatch(t *testing.T) {
	c := &collectSink{}
	p := newTestPipeline(t, c.sink)

	p.AddStage(func(e model.LogEntry) (model.LogEntry, error) {
		e.SetExtra("stage", "mutated")
		return e, nil
	})

	p.Process(model.NewEntry("info", "shared entry"))

	// Wait until the stage has actually run.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if e, ok := p.Poll(); ok {
			assert.Equal(t, "mutated", e.Extra["stage"])
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("stream-processed entry never arrived")
		}
		time.Sleep(time.Millisecond)
	}

	p.Flush()
	require.Equal(t, 1, c.count())
	require.Len(t, c.batches[0], 1)

	// The aggregator holds its own copy; the stage's write must not leak
	// into the flushed entry.
	_, tainted := c.batches[0][0].Extra["stage"]
	assert.False(t, tainted)
	assert.NotEmpty(t, c.batches[0][0].Extra["log_id"])
}

func TestPipelineRecordsMetrics(t *testing.T) {
	c := &collectSink{}
	p := newTestPipeline(t, c.sink)

	p.Process(model.NewEntry("error", "Failed to connect"))
	p.Process(model.NewEntry("info", "fine"))

	snap := p.Metrics()
	assert.Equal(t, int64(2), snap.LogCount)
	assert.Equal(t, int64(1), snap.ErrorCount)
}

func TestPipelineFlushAndShutdown(t *testing.T) {
	c := &collectSink{}
	p := newTestPipeline(t, c.sink)

	p.Process(model.NewEntry("info", "buffered"))
	assert.Equal(t, 0, c.count())

	p.Flush()
	assert.Equal(t, 1, c.count())

	p.Process(model.NewEntry("info", "buffered again"))
	p.Shutdown()
	assert.Equal(t, 2, c.count())
}

func TestPipelineRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Aggregator.WindowSize = -1

	_, err := New(cfg, nil, quietLogger())
	assert.Error(t, err)
}
