package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coffersTech/logpipe/internal/config"
	"github.com/coffersTech/logpipe/internal/model"
)

// ErrQueueFull is returned by Submit when the input queue is saturated.
var ErrQueueFull = errors.New("stream: input queue full")

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("stream: processor stopped")

// Stage transforms an entry. Returning an error drops the entry without
// stopping the pipeline.
type Stage func(entry model.LogEntry) (model.LogEntry, error)

// StreamProcessor applies an ordered list of stages to each submitted entry
// on a single worker goroutine. Entries come out in submission order (strict
// FIFO per worker); ordering across concurrent producers is whatever order
// their Submit calls hit the queue.
type StreamProcessor struct {
	log         *logrus.Logger
	pollTimeout time.Duration

	mu     sync.RWMutex
	stages []Stage

	input   chan model.LogEntry
	output  chan model.LogEntry
	done    chan struct{}
	stopped chan struct{}

	stopOnce sync.Once
}

// NewStreamProcessor creates the processor and starts its worker.
func NewStreamProcessor(cfg config.StreamConfig, log *logrus.Logger) (*StreamProcessor, error) {
	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("stream: queue size must be positive, got %d", cfg.QueueSize)
	}
	if cfg.PollTimeout <= 0 {
		return nil, fmt.Errorf("stream: poll timeout must be positive, got %v", cfg.PollTimeout)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	sp := &StreamProcessor{
		log:         log,
		pollTimeout: cfg.PollTimeout,
		input:       make(chan model.LogEntry, cfg.QueueSize),
		output:      make(chan model.LogEntry, cfg.QueueSize),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	go sp.worker()
	return sp, nil
}

// AddStage appends a transform stage. Stages added after entries are in
// flight apply from the next dequeued entry onward.
func (sp *StreamProcessor) AddStage(stage Stage) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.stages = append(sp.stages, stage)
}

// Submit enqueues an entry for processing without blocking.
func (sp *StreamProcessor) Submit(entry model.LogEntry) error {
	select {
	case <-sp.done:
		return ErrStopped
	default:
	}

	select {
	case sp.input <- entry:
		return nil
	default:
		return ErrQueueFull
	}
}

// Poll returns the next processed entry, or false when none is available.
func (sp *StreamProcessor) Poll() (model.LogEntry, bool) {
	select {
	case entry := <-sp.output:
		return entry, true
	default:
		return model.LogEntry{}, false
	}
}

// Stop signals the worker and waits briefly for it to finish the entry in
// hand. Entries still queued at that point are discarded. On timeout the
// worker is abandoned rather than joined: it may still complete its current
// entry and place it on the output queue afterwards.
func (sp *StreamProcessor) Stop() {
	sp.stopOnce.Do(func() {
		close(sp.done)
		select {
		case <-sp.stopped:
		case <-time.After(sp.pollTimeout):
			sp.log.Warn("Stream worker did not stop in time, abandoning queued entries")
		}
	})
}

func (sp *StreamProcessor) worker() {
	defer close(sp.stopped)

	for {
		select {
		case entry := <-sp.input:
			sp.process(entry)
		case <-sp.done:
			return
		}
	}
}

// process runs every stage in order. A stage error or panic drops the entry;
// one bad stage must not halt the pipeline or corrupt later entries.
func (sp *StreamProcessor) process(entry model.LogEntry) {
	sp.mu.RLock()
	stages := sp.stages
	sp.mu.RUnlock()

	result, ok := sp.applyStages(stages, entry)
	if !ok {
		return
	}

	select {
	case sp.output <- result:
	default:
		sp.log.Warn("Stream output queue full, dropping processed entry")
	}
}

func (sp *StreamProcessor) applyStages(stages []Stage, entry model.LogEntry) (out model.LogEntry, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			sp.log.Errorf("Stream stage panicked, dropping entry: %v", rec)
			ok = false
		}
	}()

	out = entry
	for i, stage := range stages {
		next, err := stage(out)
		if err != nil {
			sp.log.WithError(err).Warnf("Stream stage %d failed, dropping entry", i)
			return model.LogEntry{}, false
		}
		out = next
	}
	return out, true
}
