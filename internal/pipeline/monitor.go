package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coffersTech/logpipe/internal/config"
	"github.com/coffersTech/logpipe/internal/model"
)

// MetricsSnapshot is a point-in-time copy of the monitor's state. Callers
// always receive a copy, never the live structure.
type MetricsSnapshot struct {
	LogCount          int64   `json:"log_count"`
	ErrorCount        int64   `json:"error_count"`
	AvgProcessingTime float64 `json:"avg_processing_time"` // milliseconds
	MemoryUsageMB     float64 `json:"memory_usage"`
	CPUPercent        float64 `json:"cpu_usage"`
	Throughput        float64 `json:"throughput"` // entries per second
}

// Monitor tracks processing latency and counters on the hot path, and
// samples process resource usage on a background ticker.
type Monitor struct {
	log            *logrus.Logger
	sampleInterval time.Duration
	start          time.Time

	mu      sync.Mutex
	total   int64
	errs    int64
	history []time.Duration // circular buffer
	next    int             // next write position
	filled  bool
	memMB   float64
	cpuPct  float64
	thruput float64

	cpu cpuSampler

	done     chan struct{}
	stopOnce sync.Once
}

// NewMonitor creates a Monitor and starts its resource sampler.
func NewMonitor(cfg config.MonitorConfig, log *logrus.Logger) (*Monitor, error) {
	if cfg.SampleInterval <= 0 {
		return nil, fmt.Errorf("monitor: sample interval must be positive, got %v", cfg.SampleInterval)
	}
	if cfg.HistorySize <= 0 {
		return nil, fmt.Errorf("monitor: history size must be positive, got %d", cfg.HistorySize)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	m := &Monitor{
		log:            log,
		sampleInterval: cfg.SampleInterval,
		start:          time.Now(),
		history:        make([]time.Duration, cfg.HistorySize),
		done:           make(chan struct{}),
	}

	go m.sampleLoop()
	return m, nil
}

// Record counts one processed entry and its latency. The latency history is
// bounded; the oldest sample is evicted once the buffer wraps.
func (m *Monitor) Record(level model.Level, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if level.IsError() {
		m.errs++
	}

	m.history[m.next] = d
	m.next++
	if m.next == len(m.history) {
		m.next = 0
		m.filled = true
	}
}

// Metrics returns a snapshot copy of the current metrics.
func (m *Monitor) Metrics() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.next
	if m.filled {
		n = len(m.history)
	}

	var sum time.Duration
	for i := 0; i < n; i++ {
		sum += m.history[i]
	}
	avg := 0.0
	if n > 0 {
		avg = float64(sum.Microseconds()) / float64(n) / 1000.0
	}

	return MetricsSnapshot{
		LogCount:          m.total,
		ErrorCount:        m.errs,
		AvgProcessingTime: avg,
		MemoryUsageMB:     m.memMB,
		CPUPercent:        m.cpuPct,
		Throughput:        m.thruput,
	}
}

// Stop terminates the resource sampler.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

// sampleLoop updates resource usage and throughput every sample interval.
// A failed sample is logged at debug and retried on the next tick; the
// sampler never takes the process down.
func (m *Monitor) sampleLoop() {
	ticker := time.NewTicker(m.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sample()
		case <-m.done:
			return
		}
	}
}

func (m *Monitor) sample() {
	memMB, err := processRSSMB()
	if err != nil {
		m.log.WithError(err).Debug("Memory sample failed")
	}

	cpuPct, err := m.cpu.percent()
	if err != nil {
		m.log.WithError(err).Debug("CPU sample failed")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if memMB > 0 {
		m.memMB = memMB
	}
	if cpuPct >= 0 {
		m.cpuPct = cpuPct
	}
	if elapsed := time.Since(m.start).Seconds(); elapsed > 0 {
		m.thruput = float64(m.total) / elapsed
	}
}
