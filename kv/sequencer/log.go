package sequencer

import (
	"sync"

	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Batch is a group of actions that are ordered together. The VersionOffset of each action is its offset from the
// version the batch is eventually sequenced at.
type Batch struct {
	ID      uint64
	Actions []*action.Action
}

type slot struct {
	batchID     uint64
	baseVersion uint64
}

// Log joins two streams that arrive independently: the contents of batches, and the agreed order in which batches
// are applied. A Source over the Log yields the actions of each sequenced batch once its contents are known.
//
// AddBatch and Sequence may be called from any goroutine.
type Log struct {
	mu      sync.Mutex
	batches map[uint64]*Batch
	slots   []slot
}

func NewLog() *Log {
	return &Log{
		batches: make(map[uint64]*Batch),
	}
}

// AddBatch stores the contents of a batch. The batch becomes visible once it is also sequenced.
func (l *Log) AddBatch(b *Batch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.batches[b.ID]; ok {
		log.Warn("duplicated batch", zap.Uint64("batch", b.ID))
		return
	}
	l.batches[b.ID] = b
}

// Sequence appends batchID to the order. Its actions get versions baseVersion + VersionOffset.
func (l *Log) Sequence(batchID, baseVersion uint64) {
	l.mu.Lock()
	l.slots = append(l.slots, slot{batchID: batchID, baseVersion: baseVersion})
	l.mu.Unlock()
}

// Pending returns the number of sequenced slots not consumed yet, and the number of stored batches.
func (l *Log) Pending() (slots, batches int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots), len(l.batches)
}

// next takes the first sequenced slot if its batch has arrived.
func (l *Log) next() (*Batch, uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.slots) == 0 {
		return nil, 0, false
	}
	s := l.slots[0]
	b, ok := l.batches[s.batchID]
	if !ok {
		return nil, 0, false
	}
	delete(l.batches, s.batchID)
	l.slots = l.slots[1:]
	return b, s.baseVersion, true
}

// Source returns the reader of the log. There must be at most one.
func (l *Log) Source() action.Source {
	return &source{log: l}
}

type source struct {
	log *Log

	current     *Batch
	pos         int
	baseVersion uint64
}

// Poll returns the next action in sequence order, or false if the next batch has not been sequenced or has not
// arrived yet. Empty batches are skipped.
func (s *source) Poll() (*action.Action, bool) {
	for s.current == nil {
		b, base, ok := s.log.next()
		if !ok {
			return nil, false
		}
		if len(b.Actions) == 0 {
			continue
		}
		s.current, s.pos, s.baseVersion = b, 0, base
	}

	a := s.current.Actions[s.pos]
	s.current.Actions[s.pos] = nil
	s.pos++
	a.Version = s.baseVersion + a.VersionOffset
	a.VersionOffset = 0
	if s.pos == len(s.current.Actions) {
		s.current = nil
	}
	return a, true
}
