package sequencer

import (
	"context"
	"time"

	"github.com/cznic/mathutil"
	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Sequencer cuts appended actions into batches and orders them in a Log. It plays the part of the ordering layer
// for a single process: batch ids and versions simply count up.
type Sequencer struct {
	log          *Log
	origin       action.ReplicaID
	pending      *action.Queue
	maxBatchSize int

	// Owned by the goroutine calling Cut.
	nextID      uint64
	nextVersion uint64
}

// NewSequencer creates a sequencer writing to l. Actions appended to it are stamped with origin.
func NewSequencer(l *Log, origin action.ReplicaID, maxBatchSize int) *Sequencer {
	return &Sequencer{
		log:          l,
		origin:       origin,
		pending:      action.NewQueue(),
		maxBatchSize: mathutil.Max(1, maxBatchSize),
		nextID:       1,
		nextVersion:  1,
	}
}

// Append queues a for the next batch. It may be called from any goroutine.
func (s *Sequencer) Append(a *action.Action) {
	a.Origin = s.origin
	s.pending.Push(a)
}

// Cut moves up to maxBatchSize pending actions into a new batch and sequences it. It returns the number of actions
// in the batch; no batch is created when nothing is pending.
func (s *Sequencer) Cut() int {
	n := mathutil.Min(s.pending.Len(), s.maxBatchSize)
	if n == 0 {
		return 0
	}
	b := &Batch{ID: s.nextID, Actions: make([]*action.Action, 0, n)}
	for i := 0; i < n; i++ {
		a, ok := s.pending.Poll()
		if !ok {
			break
		}
		a.VersionOffset = uint64(len(b.Actions))
		b.Actions = append(b.Actions, a)
	}
	s.log.AddBatch(b)
	s.log.Sequence(b.ID, s.nextVersion)
	log.Debug("cut batch", zap.Uint64("batch", b.ID), zap.Uint64("base-version", s.nextVersion),
		zap.Int("size", len(b.Actions)))
	s.nextID++
	s.nextVersion += uint64(len(b.Actions))
	return len(b.Actions)
}

// Run cuts a batch every epoch until ctx is done.
func (s *Sequencer) Run(ctx context.Context, epoch time.Duration) {
	ticker := time.NewTicker(epoch)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Cut()
		}
	}
}
