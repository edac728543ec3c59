package main

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	m := &cobra.Command{
		Use:   "run",
		Short: "Run a workload against an in-process node and report throughput and latency",
		Args:  cobra.NoArgs,
		RunE:  runCommandFunc,
	}
	initCommonFlags(m)
	return m
}

func runCommandFunc(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := loadProfile(cmd)
	if err != nil {
		return err
	}
	res, err := runBench(globalContext, cfg, p)
	if err != nil {
		return err
	}
	fmt.Print(formatResult(res))
	return nil
}

var reportPercentiles = []float64{50, 90, 99, 99.9}

func formatResult(res *benchResult) string {
	out := fmt.Sprintf("actions: %d, failed: %d, takes %s\n", res.Submitted, res.Failed, res.Elapsed)
	if res.Elapsed > 0 {
		out += fmt.Sprintf("throughput: %.1f actions/s\n", float64(res.Submitted)/res.Elapsed.Seconds())
	}
	if len(res.Latencies) == 0 {
		return out
	}
	mean, _ := stats.Mean(res.Latencies)
	max, _ := stats.Max(res.Latencies)
	out += fmt.Sprintf("latency (ms): avg %.3f, max %.3f", mean, max)
	for _, pct := range reportPercentiles {
		v, err := stats.Percentile(res.Latencies, pct)
		if err != nil {
			continue
		}
		out += fmt.Sprintf(", p%g %.3f", pct, v)
	}
	out += fmt.Sprintf("\nstate digest: %016x, reply digest: %016x\n", res.StateDigest, replyDigest(res.Replies))
	return out
}

