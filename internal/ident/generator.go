package ident

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Generator produces IDs of the form {node}_{unixMillis}_{sequence}. IDs are
// unique within the node and strictly increasing in sequence. Concurrent
// callers serialize through the generator's lock.
type Generator struct {
	nodeID string
	store  *SequenceStore
	log    *logrus.Logger

	mu  sync.Mutex
	seq uint64
}

// NewGenerator creates a Generator, reloading the persisted sequence.
// An empty nodeID gets a random short identifier.
func NewGenerator(dir, nodeID string, log *logrus.Logger) (*Generator, error) {
	if nodeID == "" {
		nodeID = uuid.NewString()[:8]
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	store, err := NewSequenceStore(dir, nodeID)
	if err != nil {
		return nil, err
	}

	return &Generator{
		nodeID: nodeID,
		store:  store,
		log:    log,
		seq:    store.Load(),
	}, nil
}

// NodeID returns the node identifier used in generated IDs.
func (g *Generator) NodeID() string {
	return g.nodeID
}

// NextID returns the next log ID. A persistence failure is logged and
// swallowed: the in-memory counter still advances, so uniqueness holds for
// the lifetime of the process; only crash recovery gets weaker.
func (g *Generator) NextID() string {
	g.mu.Lock()
	g.seq++
	seq := g.seq
	if err := g.store.Save(seq); err != nil {
		g.log.WithError(err).Warn("Sequence persist failed, continuing in memory")
	}
	g.mu.Unlock()

	return fmt.Sprintf("%s_%d_%d", g.nodeID, time.Now().UnixMilli(), seq)
}
