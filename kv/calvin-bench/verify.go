package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/cznic/mathutil"
	"github.com/pingcap-incubator/tinycalvin/kv/config"
	"github.com/pingcap-incubator/tinycalvin/kv/workload"
	"github.com/pingcap/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runsArg int

func newVerifyCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "verify",
		Short: "Run one workload on several replicas with different executor timing and compare their results",
		Args:  cobra.NoArgs,
		RunE:  verifyCommandFunc,
	}
	initCommonFlags(m)
	m.Flags().IntVar(&runsArg, "runs", 2, "number of replicas to compare")
	return m
}

func verifyCommandFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := loadProfile(cmd)
	if err != nil {
		return err
	}
	if err = verify(globalContext, cfg, p, mathutil.Max(2, runsArg)); err != nil {
		return err
	}
	fmt.Println("all replicas agree")
	return nil
}

// replicaConfig derives the config of the i-th replica. Replicas differ in executor parallelism so that actions
// finish in different orders, and each one gets its own data directory under dir.
func replicaConfig(base *config.Config, dir string, i int) *config.Config {
	cfg := base.Clone()
	cfg.Executor.Workers = 1 << uint(i)
	cfg.Scheduler.MaxRunningActions = mathutil.Max(cfg.Executor.Workers, 1)
	cfg.Scheduler.MaxActiveActions = mathutil.Max(cfg.Scheduler.MaxActiveActions, cfg.Scheduler.MaxRunningActions)
	cfg.Storage.DBPath = filepath.Join(dir, fmt.Sprintf("replica-%d", i))
	return cfg
}

// verify runs p once per replica and fails if two replicas end up with different data or replies.
func verify(ctx context.Context, base *config.Config, p *workload.Profile, runs int) error {
	dir, err := ioutil.TempDir("", "calvin-verify")
	if err != nil {
		return errors.WithStack(err)
	}
	defer os.RemoveAll(dir)

	var firstState, firstReplies uint64
	for i := 0; i < runs; i++ {
		cfg := replicaConfig(base, dir, i)
		res, err := runBench(ctx, cfg, p)
		if err != nil {
			return errors.Wrapf(err, "replica %d", i)
		}
		state, replies := res.StateDigest, replyDigest(res.Replies)
		log.Info("replica finished",
			zap.Int("replica", i),
			zap.Int("workers", cfg.Executor.Workers),
			zap.Uint64("state-digest", state),
			zap.Uint64("reply-digest", replies))
		fmt.Printf("replica %d (%d workers): %s", i, cfg.Executor.Workers, formatResult(res))
		if i == 0 {
			firstState, firstReplies = state, replies
			continue
		}
		if state != firstState {
			return errors.Errorf("replica %d state digest %016x differs from %016x", i, state, firstState)
		}
		if replies != firstReplies {
			return errors.Errorf("replica %d reply digest %016x differs from %016x", i, replies, firstReplies)
		}
	}
	return nil
}
