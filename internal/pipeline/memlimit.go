package pipeline

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coffersTech/logpipe/internal/config"
)

// MemLimiter watches process memory on a ticker and forces a garbage
// collection pass when usage crosses the configured ceiling.
type MemLimiter struct {
	maxMB    float64
	interval time.Duration
	log      *logrus.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// NewMemLimiter creates the limiter and starts its check loop.
func NewMemLimiter(cfg config.MemoryConfig, log *logrus.Logger) (*MemLimiter, error) {
	if cfg.MaxMemoryMB <= 0 {
		return nil, fmt.Errorf("memlimit: max memory must be positive, got %d", cfg.MaxMemoryMB)
	}
	if cfg.GCInterval <= 0 {
		return nil, fmt.Errorf("memlimit: gc interval must be positive, got %v", cfg.GCInterval)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	ml := &MemLimiter{
		maxMB:    float64(cfg.MaxMemoryMB),
		interval: cfg.GCInterval,
		log:      log,
		done:     make(chan struct{}),
	}

	go ml.loop()
	return ml, nil
}

// OverLimit reports whether current RSS exceeds the ceiling.
func (ml *MemLimiter) OverLimit() bool {
	memMB, err := processRSSMB()
	if err != nil {
		return false
	}
	return memMB > ml.maxMB
}

// Stop terminates the check loop.
func (ml *MemLimiter) Stop() {
	ml.stopOnce.Do(func() { close(ml.done) })
}

func (ml *MemLimiter) loop() {
	ticker := time.NewTicker(ml.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ml.check()
		case <-ml.done:
			return
		}
	}
}

func (ml *MemLimiter) check() {
	if !ml.OverLimit() {
		return
	}

	before, _ := processRSSMB()
	runtime.GC()
	debug.FreeOSMemory()
	after, _ := processRSSMB()

	ml.log.Infof("Memory over %.0f MB ceiling, forced GC: %.1f MB -> %.1f MB", ml.maxMB, before, after)
}
