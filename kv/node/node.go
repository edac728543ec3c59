package node

import (
	"context"
	"sync"
	"time"

	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"github.com/pingcap-incubator/tinycalvin/kv/config"
	"github.com/pingcap-incubator/tinycalvin/kv/executor"
	"github.com/pingcap-incubator/tinycalvin/kv/locality"
	"github.com/pingcap-incubator/tinycalvin/kv/scheduler"
	"github.com/pingcap-incubator/tinycalvin/kv/sequencer"
	"github.com/pingcap-incubator/tinycalvin/kv/server"
	"github.com/pingcap-incubator/tinycalvin/kv/storage"
	"github.com/pingcap-incubator/tinycalvin/kv/workload"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Node is one machine of a replica: a sequencer feeding the scheduler, an executor pool over a storage engine and
// an optional status server.
type Node struct {
	cfg *config.Config

	Engine    storage.Engine
	Oracle    *locality.Hash
	Log       *sequencer.Log
	Sequencer *sequencer.Sequencer
	Channels  *executor.Channels
	Pool      *executor.Pool
	Scheduler *scheduler.Scheduler

	status *server.Server
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// MachineID numbers the machines of a cluster replica by replica.
func MachineID(l *config.LocalityConfig) uint64 {
	return uint64(l.Replica)*l.Partitions + l.Partition
}

// NewNode opens storage and builds every component of a node. cfg must already be adjusted.
func NewNode(cfg *config.Config) (*Node, error) {
	engine, err := storage.Open(&cfg.Storage)
	if err != nil {
		return nil, errors.Trace(err)
	}

	masters := make([]locality.Master, 0, len(cfg.Locality.Masters))
	for _, m := range cfg.Locality.Masters {
		masters = append(masters, locality.Master{Prefix: m.Prefix, Replica: action.ReplicaID(m.Replica)})
	}
	oracle := locality.NewHash(cfg.Locality.Replicas, cfg.Locality.Partitions, cfg.Locality.Partition, masters)

	l := sequencer.NewLog()
	seq := sequencer.NewSequencer(l, action.ReplicaID(cfg.Locality.Replica), cfg.Sequencer.MaxBatchSize)
	channels := executor.NewChannels(MachineID(&cfg.Locality), cfg.Executor.ReplyBuffer)
	pool := executor.NewPool(&cfg.Executor, cfg.Scheduler.MaxRunningActions, engine, oracle, channels)
	sched := scheduler.New(cfg.Scheduler, l.Source(), oracle, pool)

	n := &Node{
		cfg:       cfg,
		Engine:    engine,
		Oracle:    oracle,
		Log:       l,
		Sequencer: seq,
		Channels:  channels,
		Pool:      pool,
		Scheduler: sched,
	}
	if cfg.StatusAddr != "" {
		n.status = server.NewServer(cfg.StatusAddr, &server.Options{
			Config:    cfg,
			Stats:     sched,
			Engine:    engine,
			Submitter: seq,
			Latency:   pool,
		})
	}
	return n, nil
}

// Start launches the executor, the control loop and the batch cutter.
func (n *Node) Start() error {
	if n.status != nil {
		if err := n.status.Start(); err != nil {
			return errors.Trace(err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.Pool.Start()
	n.wg.Add(2)
	go func() {
		defer n.wg.Done()
		n.Scheduler.Run(ctx)
	}()
	go func() {
		defer n.wg.Done()
		n.Sequencer.Run(ctx, n.cfg.Sequencer.Epoch.Duration)
	}()
	log.Info("node started",
		zap.Uint32("replica", n.cfg.Locality.Replica),
		zap.Uint64("partition", n.cfg.Locality.Partition),
		zap.String("engine", n.cfg.Storage.Engine))
	return nil
}

// Submit queues a for sequencing. Replies for a are addressed to this machine.
func (n *Node) Submit(a *action.Action) {
	a.ClientMachine = MachineID(&n.cfg.Locality)
	n.Sequencer.Append(a)
}

// RunWorkload submits the actions of p until its count is reached or ctx is done. It returns the number of actions
// submitted; their versions are the next ones handed out by this node's sequencer.
func (n *Node) RunWorkload(ctx context.Context, p *workload.Profile) (int, error) {
	submitted := 0
	err := workload.NewGenerator(p).Run(ctx, func(a *action.Action) error {
		n.Submit(a)
		submitted++
		return nil
	})
	log.Info("workload finished", zap.Int("submitted", submitted))
	return submitted, errors.Trace(err)
}

// WaitRetired blocks until every action with a version up to and including version has been retired here.
func (n *Node) WaitRetired(ctx context.Context, version uint64) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for n.Scheduler.SafeVersion() <= version {
		select {
		case <-ctx.Done():
			return errors.Annotatef(ctx.Err(), "wait for version %d, safe version %d",
				version, n.Scheduler.SafeVersion())
		case <-ticker.C:
		}
	}
	return nil
}

// Stop halts the loops, waits for running actions and closes storage.
func (n *Node) Stop() {
	if n.cancel != nil {
		n.cancel()
		n.wg.Wait()
		n.Pool.Stop()
	}
	if n.status != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := n.status.Close(ctx); err != nil {
			log.Warn("close status server failed", zap.Error(err))
		}
		cancel()
	}
	if err := n.Engine.Close(); err != nil {
		log.Warn("close storage failed", zap.Error(err))
	}
	log.Info("node stopped")
}
