package executor

import (
	"strconv"
	"sync"
	"time"

	"github.com/cznic/mathutil"
	"github.com/juju/ratelimit"
	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"github.com/pingcap-incubator/tinycalvin/kv/config"
	"github.com/pingcap-incubator/tinycalvin/kv/locality"
	"github.com/pingcap-incubator/tinycalvin/kv/storage"
	"github.com/pingcap-incubator/tinycalvin/kv/util/worker"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

type task struct {
	action *action.Action
	done   chan<- *action.Action
}

// Pool runs the body of dispatched actions on a fixed set of goroutines. Only ops on keys the scheduler locked for
// the action are applied (see locality.Relevant); the rest are handled elsewhere. The writes of one action are
// applied as a single batch after all of its ops ran, so an action that fails part way leaves storage untouched.
type Pool struct {
	engine  storage.Engine
	oracle  locality.Oracle
	sink    ResultSink
	limiter *ratelimit.Bucket
	latency *MedianFilter

	worker *worker.Worker
	wg     sync.WaitGroup
}

// NewPool creates a pool. queueCap is the number of actions that may wait for a free goroutine; callers pass at
// least their own running ceiling so that RunAsync never blocks.
func NewPool(cfg *config.ExecutorConfig, queueCap int, engine storage.Engine, oracle locality.Oracle, sink ResultSink) *Pool {
	p := &Pool{
		engine:  engine,
		oracle:  oracle,
		sink:    sink,
		latency: NewMedianFilter(cfg.LatencyWindow),
	}
	if cfg.MaxExecRate > 0 {
		capacity := int64(mathutil.Max(1, int(cfg.MaxExecRate)))
		p.limiter = ratelimit.NewBucketWithRate(cfg.MaxExecRate, capacity)
	}
	workers := mathutil.Max(1, cfg.Workers)
	p.worker = worker.NewPool("executor", workers, mathutil.Max(queueCap, workers), &p.wg)
	return p
}

func (p *Pool) Start() {
	p.worker.Start(taskHandler{pool: p})
}

// Stop waits for every queued action to finish.
func (p *Pool) Stop() {
	p.worker.Stop()
	p.wg.Wait()
}

func (p *Pool) RunAsync(a *action.Action, done chan<- *action.Action) {
	p.worker.Sender() <- task{action: a, done: done}
}

// MedianLatency returns the median time spent running recent actions.
func (p *Pool) MedianLatency() time.Duration {
	return time.Duration(p.latency.Get())
}

// taskHandler runs the tasks of a Pool's worker. Pool itself must not be the handler: its Start method would
// satisfy worker.Starter.
type taskHandler struct {
	pool *Pool
}

func (h taskHandler) Handle(t worker.Task) {
	h.pool.handle(t.(task))
}

func (p *Pool) handle(tk task) {
	a := tk.action
	if p.limiter != nil {
		p.limiter.Wait(1)
	}
	start := time.Now()
	p.execute(a)
	elapsed := time.Since(start)
	p.latency.Add(float64(elapsed))
	execDuration.Observe(elapsed.Seconds())

	if a.Err != "" {
		executedCounter.WithLabelValues("failed").Inc()
	} else {
		executedCounter.WithLabelValues("ok").Inc()
	}
	if a.HasClient() && p.sink != nil {
		p.sink.Deliver(a.ClientMachine, a.ClientChannel, newReply(a))
	}
	tk.done <- a
}

// execute applies the ops of a. Reads observe the action's own earlier writes.
func (p *Pool) execute(a *action.Action) {
	a.Results = a.Results[:0]
	a.Err = ""
	// Pending writes, a nil value is a delete.
	pending := make(map[string][]byte)
	var order []string

	read := func(key string) ([]byte, bool, error) {
		if v, ok := pending[key]; ok {
			return v, v != nil, nil
		}
		v, err := p.engine.Get([]byte(key))
		if err == storage.ErrNotFound {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	}
	write := func(key string, v []byte) {
		if _, ok := pending[key]; !ok {
			order = append(order, key)
		}
		pending[key] = v
	}

	for _, op := range a.Ops {
		if err := checkDeclared(a, op); err != nil {
			p.fail(a, err)
			return
		}
		if !locality.Relevant(p.oracle, a, op.Key) {
			continue
		}
		opCounter.WithLabelValues(op.Type.String()).Inc()
		switch op.Type {
		case action.OpGet:
			v, found, err := read(op.Key)
			if err != nil {
				p.fail(a, err)
				return
			}
			a.Results = append(a.Results, action.Result{Key: op.Key, Value: v, Found: found})
		case action.OpPut:
			write(op.Key, append([]byte{}, op.Value...))
		case action.OpDelete:
			write(op.Key, nil)
		case action.OpAdd:
			v, found, err := read(op.Key)
			if err != nil {
				p.fail(a, err)
				return
			}
			var n int64
			if found {
				n, err = strconv.ParseInt(string(v), 10, 64)
				if err != nil {
					p.fail(a, errors.Errorf("add on non-numeric value of %q: %v", op.Key, err))
					return
				}
			}
			write(op.Key, []byte(strconv.FormatInt(n+op.Delta, 10)))
		default:
			p.fail(a, errors.Errorf("unknown op type %d", op.Type))
			return
		}
	}

	if len(order) == 0 {
		return
	}
	batch := make([]storage.Modify, 0, len(order))
	for _, key := range order {
		if v := pending[key]; v != nil {
			batch = append(batch, storage.NewPut([]byte(key), v))
		} else {
			batch = append(batch, storage.NewDelete([]byte(key)))
		}
	}
	if err := p.engine.Write(batch); err != nil {
		p.fail(a, err)
	}
}

func (p *Pool) fail(a *action.Action, err error) {
	a.Err = err.Error()
	log.Warn("action failed", zap.Uint64("version", a.Version), zap.Error(err))
}

// checkDeclared returns an error if op touches a key outside the sets declared by a.
func checkDeclared(a *action.Action, op action.Op) error {
	if op.Type.IsWrite() {
		if !a.Writes(op.Key) {
			return errors.Errorf("%s on %q, which is not in the write set", op.Type, op.Key)
		}
		return nil
	}
	if !a.Reads(op.Key) {
		return errors.Errorf("%s on %q, which is not in the read set", op.Type, op.Key)
	}
	return nil
}
