package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/logpipe/internal/config"
	"github.com/coffersTech/logpipe/internal/model"
)

func newTestMonitor(t *testing.T, historySize int) *Monitor {
	t.Helper()
	m, err := NewMonitor(config.MonitorConfig{
		SampleInterval: time.Hour, // keep the sampler quiet during tests
		HistorySize:    historySize,
	}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m
}

func TestMonitorAverageProcessingTime(t *testing.T) {
	m := newTestMonitor(t, 1000)

	m.Record(model.ParseLevel("info"), 10*time.Millisecond)
	m.Record(model.ParseLevel("info"), 20*time.Millisecond)
	m.Record(model.ParseLevel("info"), 30*time.Millisecond)

	snap := m.Metrics()
	assert.Equal(t, int64(3), snap.LogCount)
	assert.Equal(t, int64(0), snap.ErrorCount)
	assert.InDelta(t, 20.0, snap.AvgProcessingTime, 0.001)
}

func TestMonitorCountsErrors(t *testing.T) {
	m := newTestMonitor(t, 1000)

	m.Record(model.ParseLevel("error"), time.Millisecond)
	m.Record(model.ParseLevel("critical"), time.Millisecond)
	m.Record(model.ParseLevel("warning"), time.Millisecond)

	snap := m.Metrics()
	assert.Equal(t, int64(3), snap.LogCount)
	assert.Equal(t, int64(2), snap.ErrorCount)
}

func TestMonitorHistoryIsBounded(t *testing.T) {
	m := newTestMonitor(t, 4)

	// Fill beyond capacity; the four most recent samples survive.
	for i := 0; i < 8; i++ {
		m.Record(model.ParseLevel("info"), time.Duration(i+1)*10*time.Millisecond)
	}

	snap := m.Metrics()
	assert.Equal(t, int64(8), snap.LogCount)
	// Last four: 50, 60, 70, 80 ms -> avg 65.
	assert.InDelta(t, 65.0, snap.AvgProcessingTime, 0.001)
}

func TestMonitorSnapshotIsACopy(t *testing.T) {
	m := newTestMonitor(t, 16)
	m.Record(model.ParseLevel("info"), 10*time.Millisecond)

	snap := m.Metrics()
	snap.LogCount = 999

	assert.Equal(t, int64(1), m.Metrics().LogCount)
}

func TestMonitorSampleUpdatesThroughput(t *testing.T) {
	m := newTestMonitor(t, 16)
	m.Record(model.ParseLevel("info"), time.Millisecond)
	m.Record(model.ParseLevel("info"), time.Millisecond)

	m.sample()
	snap := m.Metrics()
	assert.Greater(t, snap.Throughput, 0.0)
}
