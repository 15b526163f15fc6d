package pipeline

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/coffersTech/logpipe/internal/config"
	"github.com/coffersTech/logpipe/internal/ident"
	"github.com/coffersTech/logpipe/internal/model"
	"github.com/coffersTech/logpipe/internal/security"
)

// Pipeline is the explicit facade over the hot path. Callers depend on this
// interface surface instead of reaching into individual components.
type Pipeline struct {
	sanitizer *security.Sanitizer
	generator *ident.Generator

	aggregator *Aggregator
	stream     *StreamProcessor
	router     *Router
	monitor    *Monitor
	limiter    *MemLimiter

	log *logrus.Logger
}

// New wires the hot-path components from a validated configuration.
// Construction fails on the first component that rejects its settings.
func New(cfg config.Config, sink FlushSink, log *logrus.Logger) (*Pipeline, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	generator, err := ident.NewGenerator(cfg.DataDir, cfg.NodeID, log)
	if err != nil {
		return nil, err
	}
	aggregator, err := NewAggregator(cfg.Aggregator, sink, log)
	if err != nil {
		return nil, err
	}
	stream, err := NewStreamProcessor(cfg.Stream, log)
	if err != nil {
		aggregator.Stop()
		return nil, err
	}
	monitor, err := NewMonitor(cfg.Monitor, log)
	if err != nil {
		aggregator.Stop()
		stream.Stop()
		return nil, err
	}
	limiter, err := NewMemLimiter(cfg.Memory, log)
	if err != nil {
		aggregator.Stop()
		stream.Stop()
		monitor.Stop()
		return nil, err
	}

	return &Pipeline{
		sanitizer:  security.NewSanitizer(),
		generator:  generator,
		aggregator: aggregator,
		stream:     stream,
		router:     NewRouter(log),
		monitor:    monitor,
		limiter:    limiter,
		log:        log,
	}, nil
}

// Process pushes one entry through sanitization, aggregation, stream
// processing and routing, and records the observed latency. Downstream
// failures degrade (logged, entry dropped from that leg) without reaching
// the producer. The aggregator and the stream worker each receive their own
// clone; a stage mutating an entry can never reach into a flushed batch.
func (p *Pipeline) Process(entry model.LogEntry) {
	start := time.Now()

	entry.Message = p.sanitizer.Sanitize(entry.Message)
	entry.SetExtra("log_id", p.generator.NextID())

	p.aggregator.Add(entry.Clone())

	if err := p.stream.Submit(entry.Clone()); err != nil {
		p.log.WithError(err).Debug("Stream submit failed, entry not stream-processed")
	}

	p.router.Route(entry)

	p.monitor.Record(entry.Level, time.Since(start))
}

// AddRoute appends a routing rule.
func (p *Pipeline) AddRoute(pred Predicate, handler Handler) {
	p.router.AddRoute(pred, handler)
}

// SetDefaultRoute installs the handler for unmatched entries.
func (p *Pipeline) SetDefaultRoute(handler Handler) {
	p.router.SetDefault(handler)
}

// AddStage appends a stream transform stage.
func (p *Pipeline) AddStage(stage Stage) {
	p.stream.AddStage(stage)
}

// Poll returns the next stream-processed entry, if any.
func (p *Pipeline) Poll() (model.LogEntry, bool) {
	return p.stream.Poll()
}

// Metrics returns a snapshot of pipeline metrics.
func (p *Pipeline) Metrics() MetricsSnapshot {
	return p.monitor.Metrics()
}

// NodeID returns the identifier stamped into generated log IDs.
func (p *Pipeline) NodeID() string {
	return p.generator.NodeID()
}

// Flush forces the aggregation window out.
func (p *Pipeline) Flush() {
	p.aggregator.Flush()
}

// Shutdown stops every background worker. The aggregator flushes its
// remaining window; queued stream entries may be discarded.
func (p *Pipeline) Shutdown() {
	p.stream.Stop()
	p.aggregator.Stop()
	p.monitor.Stop()
	p.limiter.Stop()
}
