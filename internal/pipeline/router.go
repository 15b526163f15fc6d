package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/coffersTech/logpipe/internal/model"
)

// Predicate decides whether a route claims an entry.
type Predicate func(entry model.LogEntry) bool

// Handler consumes a routed entry. Handlers run synchronously on the
// caller's goroutine; a slow handler stalls the producer.
type Handler func(entry model.LogEntry)

type route struct {
	pred    Predicate
	handler Handler
}

// Router dispatches entries to the first route whose predicate matches.
// Routes are evaluated in insertion order with no fallthrough; entries that
// match nothing go to the default handler, or are dropped when none is set.
type Router struct {
	log *logrus.Logger

	mu         sync.RWMutex
	routes     []route
	defHandler Handler

	dropped int64
}

// NewRouter creates an empty Router.
func NewRouter(log *logrus.Logger) *Router {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Router{log: log}
}

// AddRoute appends a (predicate, handler) pair. Routes cannot be removed.
func (r *Router) AddRoute(pred Predicate, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{pred: pred, handler: handler})
}

// SetDefault installs the handler for unmatched entries.
func (r *Router) SetDefault(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defHandler = handler
}

// Route dispatches the entry. First match wins; a panicking predicate or
// handler is recovered and logged, and routing of that entry stops.
func (r *Router) Route(entry model.LogEntry) {
	r.mu.RLock()
	routes := r.routes
	def := r.defHandler
	r.mu.RUnlock()

	for i := range routes {
		matched := r.safeMatch(routes[i].pred, entry)
		if matched {
			r.safeHandle(routes[i].handler, entry)
			return
		}
	}

	if def != nil {
		r.safeHandle(def, entry)
		return
	}
	atomic.AddInt64(&r.dropped, 1)
}

// Dropped returns how many entries matched no route and had no default.
func (r *Router) Dropped() int64 {
	return atomic.LoadInt64(&r.dropped)
}

func (r *Router) safeMatch(pred Predicate, entry model.LogEntry) (matched bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorf("Route predicate panicked: %v", rec)
			matched = false
		}
	}()
	return pred(entry)
}

func (r *Router) safeHandle(handler Handler, entry model.LogEntry) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorf("Route handler panicked: %v", rec)
		}
	}()
	handler(entry)
}
