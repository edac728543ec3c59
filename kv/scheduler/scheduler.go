package scheduler

import (
	"context"
	"time"

	"github.com/google/btree"
	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"github.com/pingcap-incubator/tinycalvin/kv/config"
	"github.com/pingcap-incubator/tinycalvin/kv/locality"
	"github.com/pingcap-incubator/tinycalvin/kv/lockmgr"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Executor runs the body of an action whose locks are all held. RunAsync must not block, and must push a onto
// done exactly once when the action has finished. Until then the executor owns a.
type Executor interface {
	RunAsync(a *action.Action, done chan<- *action.Action)
}

// Stats is a snapshot of the scheduler's counters.
type Stats struct {
	SafeVersion   uint64 `json:"safe_version"`
	HighWaterMark uint64 `json:"high_water_mark"`
	Active        int64  `json:"active"`
	Running       int64  `json:"running"`
	Waiting       int64  `json:"waiting"`
	Admitted      uint64 `json:"admitted"`
	Dispatched    uint64 `json:"dispatched"`
	Completed     uint64 `json:"completed"`
	Skipped       uint64 `json:"skipped"`
}

type versionItem uint64

func (v versionItem) Less(than btree.Item) bool {
	return v < than.(versionItem)
}

// Scheduler turns an ordered stream of actions into bounded concurrent execution. It takes every lock an action
// needs on this replica in arrival order, hands the action to the executor once all of them are held and releases
// them when the executor hands it back.
//
// Tick and Run must be called from one goroutine only. SafeVersion and Stats may be called from anywhere.
type Scheduler struct {
	cfg      config.SchedulerConfig
	source   action.Source
	oracle   locality.Oracle
	executor Executor

	lm *lockmgr.LockManager
	// active holds the versions of admitted actions that are not retired yet.
	active  *btree.BTree
	running int
	// admittedAt records when each parked action was admitted.
	admittedAt map[uint64]time.Time

	highWaterMark uint64
	admittedAny   bool
	done          chan *action.Action

	safeVersion atomic.Uint64
	stats       struct {
		highWaterMark atomic.Uint64
		active        atomic.Int64
		running       atomic.Int64
		waiting       atomic.Int64
		admitted      atomic.Uint64
		dispatched    atomic.Uint64
		completed     atomic.Uint64
		skipped       atomic.Uint64
	}
}

// New creates a scheduler pulling from source. cfg must already be validated.
func New(cfg config.SchedulerConfig, source action.Source, oracle locality.Oracle, executor Executor) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		source:     source,
		oracle:     oracle,
		executor:   executor,
		lm:         lockmgr.NewLockManager(),
		active:     btree.New(32),
		admittedAt: make(map[uint64]time.Time),
		done:       make(chan *action.Action, cfg.MaxRunningActions),
	}
}

// Run calls Tick until ctx is done. After a tick that made no progress it waits up to IdleWait for a completion.
// Cancelling ctx stops admission between ticks; actions already handed to the executor are not waited for.
func (s *Scheduler) Run(ctx context.Context) {
	idle := time.NewTimer(s.cfg.IdleWait.Duration)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if s.Tick() {
			continue
		}
		if !idle.Stop() {
			select {
			case <-idle.C:
			default:
			}
		}
		idle.Reset(s.cfg.IdleWait.Duration)
		select {
		case <-ctx.Done():
			return
		case a := <-s.done:
			s.complete(a)
		case <-idle.C:
		}
	}
}

// Tick runs one iteration of the control loop: admit at most one action, retire every finished action, dispatch
// the actions that became runnable and publish the new safe version. It never blocks and returns true if anything
// changed.
func (s *Scheduler) Tick() bool {
	progress := s.admit()

	for drained := false; !drained; {
		select {
		case a := <-s.done:
			s.complete(a)
			progress = true
		default:
			drained = true
		}
	}

	for s.running < s.cfg.MaxRunningActions {
		a, ok := s.lm.Ready()
		if !ok {
			break
		}
		s.stats.waiting.Dec()
		s.dispatch(a, "ready")
		progress = true
	}

	s.publish()
	return progress
}

func (s *Scheduler) admit() bool {
	if s.active.Len() >= s.cfg.MaxActiveActions || s.running >= s.cfg.MaxRunningActions {
		return false
	}
	a, ok := s.source.Poll()
	if !ok {
		return false
	}
	if s.admittedAny && a.Version <= s.highWaterMark {
		log.Warn("action admitted out of order",
			zap.Uint64("version", a.Version), zap.Uint64("high-water-mark", s.highWaterMark))
	}
	s.admittedAny = true
	if a.Version > s.highWaterMark {
		s.highWaterMark = a.Version
	}
	s.active.ReplaceOrInsert(versionItem(a.Version))
	s.stats.admitted.Inc()
	actionEventCounter.WithLabelValues("admitted").Inc()
	s.checkCeilings()

	writes, reads := relevantKeys(a, s.oracle)
	if !a.SingleReplica && len(writes) == 0 && len(reads) == 0 {
		// Nothing to lock or run here: another replica executes it.
		s.active.Delete(versionItem(a.Version))
		s.stats.skipped.Inc()
		actionEventCounter.WithLabelValues("skipped").Inc()
		log.Debug("skip action with no relevant key", zap.Uint64("version", a.Version))
		return true
	}

	ungranted := 0
	for _, key := range writes {
		if !s.lm.WriteLock(a, key) {
			ungranted++
		}
	}
	for _, key := range reads {
		if !s.lm.ReadLock(a, key) {
			ungranted++
		}
	}
	if ungranted == 0 {
		s.dispatch(a, "immediate")
		return true
	}
	s.admittedAt[a.Version] = time.Now()
	s.stats.waiting.Inc()
	return true
}

func (s *Scheduler) dispatch(a *action.Action, path string) {
	s.running++
	s.checkCeilings()
	if start, ok := s.admittedAt[a.Version]; ok {
		lockWaitHistogram.Observe(time.Since(start).Seconds())
		delete(s.admittedAt, a.Version)
	} else {
		lockWaitHistogram.Observe(0)
	}
	s.stats.dispatched.Inc()
	dispatchCounter.WithLabelValues(path).Inc()
	s.executor.RunAsync(a, s.done)
}

// complete releases the locks of a finished action and retires it.
func (s *Scheduler) complete(a *action.Action) {
	writes, reads := relevantKeys(a, s.oracle)
	for _, key := range writes {
		s.lm.Release(a, key)
	}
	for _, key := range reads {
		s.lm.Release(a, key)
	}
	if s.active.Delete(versionItem(a.Version)) == nil {
		log.Panic("completed action is not active", zap.Uint64("version", a.Version))
	}
	s.running--
	s.checkCeilings()
	s.stats.completed.Inc()
	actionEventCounter.WithLabelValues("completed").Inc()
}

func (s *Scheduler) checkCeilings() {
	active := s.active.Len()
	if active > s.cfg.MaxActiveActions {
		log.Panic("too many active actions",
			zap.Int("active", active), zap.Int("max-active-actions", s.cfg.MaxActiveActions))
	}
	if s.running > s.cfg.MaxRunningActions || s.running < 0 {
		log.Panic("running action count out of range",
			zap.Int("running", s.running), zap.Int("max-running-actions", s.cfg.MaxRunningActions))
	}
}

// watermark is the lowest version that may still be outstanding here.
func (s *Scheduler) watermark() uint64 {
	if min := s.active.Min(); min != nil {
		return uint64(min.(versionItem))
	}
	return s.highWaterMark + 1
}

func (s *Scheduler) publish() {
	active, running := int64(s.active.Len()), int64(s.running)
	s.stats.active.Store(active)
	s.stats.running.Store(running)
	s.stats.highWaterMark.Store(s.highWaterMark)
	actionStatusGauge.WithLabelValues("active").Set(float64(active))
	actionStatusGauge.WithLabelValues("running").Set(float64(running))
	actionStatusGauge.WithLabelValues("waiting").Set(float64(s.stats.waiting.Load()))
	if !s.admittedAny {
		return
	}
	if v := s.watermark(); v > s.safeVersion.Load() {
		s.safeVersion.Store(v)
		safeVersionGauge.Set(float64(v))
	}
}

// SafeVersion returns the published watermark: every action with a smaller version has been retired here.
func (s *Scheduler) SafeVersion() uint64 {
	return s.safeVersion.Load()
}

// Stats returns the counters as of the last tick.
func (s *Scheduler) Stats() Stats {
	return Stats{
		SafeVersion:   s.safeVersion.Load(),
		HighWaterMark: s.stats.highWaterMark.Load(),
		Active:        s.stats.active.Load(),
		Running:       s.stats.running.Load(),
		Waiting:       s.stats.waiting.Load(),
		Admitted:      s.stats.admitted.Load(),
		Dispatched:    s.stats.dispatched.Load(),
		Completed:     s.stats.completed.Load(),
		Skipped:       s.stats.skipped.Load(),
	}
}
