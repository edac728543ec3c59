package action

import "sync"

// Source supplies actions in ascending version order. Poll never blocks; it returns false when nothing is
// available right now.
type Source interface {
	Poll() (*Action, bool)
}

// Queue is an unbounded FIFO of actions. Any number of goroutines may Push; Poll is safe to call concurrently too,
// although the scheduler is its only consumer.
type Queue struct {
	mu    sync.Mutex
	items []*Action
	head  int
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Push(a *Action) {
	q.mu.Lock()
	q.items = append(q.items, a)
	q.mu.Unlock()
}

func (q *Queue) Poll() (*Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.items) {
		return nil, false
	}
	a := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	// Compact once the consumed prefix dominates the slice.
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		for i := n; i < len(q.items); i++ {
			q.items[i] = nil
		}
		q.items = q.items[:n]
		q.head = 0
	}
	return a, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}
