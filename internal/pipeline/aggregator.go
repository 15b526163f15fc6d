// Package pipeline contains the concurrent core of the log processing
// pipeline: the aggregation window, the router, the stream processor and the
// performance monitor. Each component owns exactly one mutex and one
// optional background goroutine, stoppable via Stop.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coffersTech/logpipe/internal/config"
	"github.com/coffersTech/logpipe/internal/model"
)

// FlushSink receives the aggregated output of a window flush.
type FlushSink func(entries []model.LogEntry) error

// Aggregator buffers entries in a bounded window and flushes them grouped by
// (level, message prefix). A size trigger flushes synchronously inside Add;
// a background ticker flushes on time when the window sat non-empty past the
// flush interval.
type Aggregator struct {
	windowSize    int
	flushInterval time.Duration
	keyPrefixLen  int
	sink          FlushSink
	log           *logrus.Logger

	mu        sync.Mutex
	window    []model.LogEntry
	lastFlush time.Time

	done     chan struct{}
	stopOnce sync.Once
}

// NewAggregator creates an Aggregator and starts its flush ticker. The sink
// may be nil, in which case flushed batches are logged and discarded.
func NewAggregator(cfg config.AggregatorConfig, sink FlushSink, log *logrus.Logger) (*Aggregator, error) {
	if cfg.WindowSize <= 0 {
		return nil, fmt.Errorf("aggregator: window size must be positive, got %d", cfg.WindowSize)
	}
	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("aggregator: flush interval must be positive, got %v", cfg.FlushInterval)
	}
	if cfg.KeyPrefixLen <= 0 {
		return nil, fmt.Errorf("aggregator: key prefix length must be positive, got %d", cfg.KeyPrefixLen)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	a := &Aggregator{
		windowSize:    cfg.WindowSize,
		flushInterval: cfg.FlushInterval,
		keyPrefixLen:  cfg.KeyPrefixLen,
		sink:          sink,
		log:           log,
		window:        make([]model.LogEntry, 0, cfg.WindowSize),
		lastFlush:     time.Now(),
		done:          make(chan struct{}),
	}

	go a.flushLoop()
	return a, nil
}

// Add appends an entry to the window. Reaching the window size triggers a
// flush on the caller's goroutine. The window swaps out under the lock and
// the sink runs after it is released, so a slow sink never blocks
// concurrent Adds.
func (a *Aggregator) Add(entry model.LogEntry) {
	a.mu.Lock()
	a.window = append(a.window, entry)
	var batch []model.LogEntry
	if len(a.window) >= a.windowSize {
		batch = a.takeLocked()
	}
	a.mu.Unlock()

	a.deliver(batch)
}

// Flush forces an immediate flush of whatever the window holds.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	batch := a.takeLocked()
	a.mu.Unlock()

	a.deliver(batch)
}

// Len returns the current window length.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.window)
}

// Stop terminates the flush ticker and forces a final flush.
func (a *Aggregator) Stop() {
	a.stopOnce.Do(func() {
		close(a.done)
		a.Flush()
	})
}

func (a *Aggregator) flushLoop() {
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.mu.Lock()
			var batch []model.LogEntry
			if len(a.window) > 0 && time.Since(a.lastFlush) >= a.flushInterval {
				batch = a.takeLocked()
			}
			a.mu.Unlock()
			a.deliver(batch)
		case <-a.done:
			return
		}
	}
}

// takeLocked swaps the window out for a fresh buffer and resets the flush
// clock. Returns nil for an empty window. Callers must hold a.mu.
func (a *Aggregator) takeLocked() []model.LogEntry {
	if len(a.window) == 0 {
		return nil
	}
	batch := a.window
	a.window = make([]model.LogEntry, 0, a.windowSize)
	a.lastFlush = time.Now()
	return batch
}

// deliver groups a taken batch and hands the result to the sink. Sink errors
// are logged; the batch is gone either way, to bound memory.
func (a *Aggregator) deliver(batch []model.LogEntry) {
	if len(batch) == 0 {
		return
	}

	aggregated := a.aggregate(batch)

	if a.sink != nil {
		if err := a.sink(aggregated); err != nil {
			a.log.WithError(err).Warn("Aggregator sink failed, dropping batch")
		}
	} else {
		a.log.Debugf("Aggregated %d entries -> %d", len(batch), len(aggregated))
	}
}

// aggregate collapses near-duplicate entries. Groups keep the insertion
// order of their first member; original entry order within the window is not
// preserved across groups.
func (a *Aggregator) aggregate(window []model.LogEntry) []model.LogEntry {
	groups := make(map[string][]model.LogEntry)
	var order []string

	for _, entry := range window {
		key := a.groupKey(entry)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], entry)
	}

	out := make([]model.LogEntry, 0, len(order))
	for _, key := range order {
		members := groups[key]
		if len(members) == 1 {
			out = append(out, members[0])
			continue
		}

		first := members[0].Clone()
		first.Message = fmt.Sprintf("%s (repeated %d times)", members[0].Message, len(members))
		first.Count = len(members)
		first.Originals = append([]model.LogEntry(nil), members...)
		out = append(out, first)
	}
	return out
}

func (a *Aggregator) groupKey(entry model.LogEntry) string {
	msg := entry.Message
	if runes := []rune(msg); len(runes) > a.keyPrefixLen {
		msg = string(runes[:a.keyPrefixLen])
	}
	return entry.Level.Name + ":" + msg
}
