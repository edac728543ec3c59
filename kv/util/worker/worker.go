package worker

import (
	"sync"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

type TaskStop struct{}

type Task interface{}

// Worker runs Tasks sent to it on a fixed number of goroutines sharing one buffered queue.
type Worker struct {
	name        string
	concurrency int
	sender      chan<- Task
	receiver    <-chan Task
	wg          *sync.WaitGroup
}

type TaskHandler interface {
	Handle(t Task)
}

// Starter is implemented by handlers that need setup before the first Task.
type Starter interface {
	Start()
}

func (w *Worker) Start(handler TaskHandler) {
	if s, ok := handler.(Starter); ok {
		s.Start()
	}
	w.wg.Add(w.concurrency)
	for i := 0; i < w.concurrency; i++ {
		go func() {
			defer w.wg.Done()
			for {
				task := <-w.receiver
				if _, ok := task.(TaskStop); ok {
					return
				}
				handler.Handle(task)
			}
		}()
	}
	log.Debug("worker started", zap.String("name", w.name), zap.Int("concurrency", w.concurrency))
}

func (w *Worker) Sender() chan<- Task {
	return w.sender
}

// Stop makes every goroutine exit once the Tasks queued before it are handled.
func (w *Worker) Stop() {
	for i := 0; i < w.concurrency; i++ {
		w.sender <- TaskStop{}
	}
}

// Capacity returns how many Tasks may be queued before Sender blocks.
func (w *Worker) Capacity() int {
	return cap(w.receiver)
}

const defaultWorkerCapacity = 128

func NewWorker(name string, wg *sync.WaitGroup) *Worker {
	return NewPool(name, 1, defaultWorkerCapacity, wg)
}

// NewPool creates a Worker handling Tasks on concurrency goroutines with room for capacity queued Tasks.
func NewPool(name string, concurrency, capacity int, wg *sync.WaitGroup) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	ch := make(chan Task, capacity)
	return &Worker{
		sender:      (chan<- Task)(ch),
		receiver:    (<-chan Task)(ch),
		name:        name,
		concurrency: concurrency,
		wg:          wg,
	}
}
