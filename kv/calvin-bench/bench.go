package main

import (
	"context"
	"encoding/binary"
	"sort"
	"sync"
	"time"

	"github.com/dgryski/go-farm"
	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"github.com/pingcap-incubator/tinycalvin/kv/config"
	"github.com/pingcap-incubator/tinycalvin/kv/executor"
	"github.com/pingcap-incubator/tinycalvin/kv/node"
	"github.com/pingcap-incubator/tinycalvin/kv/storage"
	"github.com/pingcap-incubator/tinycalvin/kv/workload"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const benchChannel = "calvin-bench"

// benchResult is what one node did with one workload.
type benchResult struct {
	Submitted int
	Failed    int
	Elapsed   time.Duration
	// Latencies from submission to reply, in milliseconds.
	Latencies []float64
	Replies   map[uint64]*executor.Reply
	// StateDigest covers every key of the profile after the run.
	StateDigest uint64
}

// runBench starts a node, feeds it p and waits until every submitted action has been retired.
func runBench(ctx context.Context, cfg *config.Config, p *workload.Profile) (*benchResult, error) {
	n, err := node.NewNode(cfg)
	if err != nil {
		return nil, err
	}
	if err = n.Start(); err != nil {
		n.Stop()
		return nil, err
	}
	defer n.Stop()

	res := &benchResult{
		Latencies: make([]float64, 0, p.Count),
		Replies:   make(map[uint64]*executor.Reply, p.Count),
	}
	var (
		mu          sync.Mutex
		submittedAt = make(map[uint64]time.Time, p.Count)
	)
	replies := n.Channels.DataChannel(benchChannel)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for r := range replies {
			mu.Lock()
			start := submittedAt[r.DistinctID]
			mu.Unlock()
			res.Latencies = append(res.Latencies, float64(time.Since(start))/float64(time.Millisecond))
			res.Replies[r.DistinctID] = r
			if r.Err != "" {
				res.Failed++
			}
		}
	}()

	profile := *p
	profile.ReplyChannel = benchChannel
	start := time.Now()
	err = workload.NewGenerator(&profile).Run(ctx, func(a *action.Action) error {
		mu.Lock()
		submittedAt[a.DistinctID] = time.Now()
		mu.Unlock()
		n.Submit(a)
		res.Submitted++
		return nil
	})
	if err == nil {
		err = n.WaitRetired(ctx, uint64(res.Submitted))
	}
	res.Elapsed = time.Since(start)
	n.Channels.CloseDataChannel(benchChannel)
	<-collected
	if err != nil {
		return res, err
	}
	if len(res.Replies) != res.Submitted {
		return res, errors.Errorf("got %d replies for %d actions", len(res.Replies), res.Submitted)
	}

	res.StateDigest, err = storage.Digest(n.Engine, p.AllKeys())
	if err != nil {
		return res, err
	}
	log.Info("bench finished",
		zap.Int("submitted", res.Submitted),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", res.Elapsed),
		zap.Uint64("state-digest", res.StateDigest))
	return res, nil
}

// replyDigest folds the results of every reply in client id order.
func replyDigest(replies map[uint64]*executor.Reply) uint64 {
	ids := make([]uint64, 0, len(replies))
	for id := range replies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var buf []byte
	var num [8]byte
	for _, id := range ids {
		r := replies[id]
		binary.BigEndian.PutUint64(num[:], id)
		buf = append(buf, num[:]...)
		for _, res := range r.Results {
			buf = append(buf, res.Key...)
			if res.Found {
				buf = append(buf, 1)
				buf = append(buf, res.Value...)
			} else {
				buf = append(buf, 0)
			}
		}
		buf = append(buf, r.Err...)
	}
	return farm.Fingerprint64(buf)
}
