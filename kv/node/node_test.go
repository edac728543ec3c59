package node

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"github.com/pingcap-incubator/tinycalvin/kv/config"
	"github.com/pingcap-incubator/tinycalvin/kv/sequencer"
	"github.com/pingcap-incubator/tinycalvin/kv/storage"
	"github.com/pingcap-incubator/tinycalvin/kv/workload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startNode(t *testing.T, cfg *config.Config) *Node {
	n, err := NewNode(cfg)
	require.Nil(t, err)
	require.Nil(t, n.Start())
	return n
}

func TestSubmittedActionsRunInOrder(t *testing.T) {
	n := startNode(t, config.NewTestConfig())
	defer n.Stop()

	replies := n.Channels.DataChannel("client")
	const count = 20
	for i := 1; i <= count; i++ {
		n.Submit(&action.Action{
			DistinctID:    uint64(i),
			SingleReplica: true,
			WriteSet:      []string{"counter"},
			Ops:           []action.Op{action.Get("counter"), action.Add("counter", 1)},
			ClientChannel: "client",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.Nil(t, n.WaitRetired(ctx, count))

	v, err := n.Engine.Get([]byte("counter"))
	require.Nil(t, err)
	assert.Equal(t, strconv.Itoa(count), string(v))

	// Each action reads the value left by the action before it.
	for i := 0; i < count; i++ {
		select {
		case r := <-replies:
			require.Empty(t, r.Err)
			require.Len(t, r.Results, 1)
			if r.Version == 1 {
				assert.False(t, r.Results[0].Found)
			} else {
				assert.Equal(t, strconv.FormatUint(r.Version-1, 10), string(r.Results[0].Value))
			}
		case <-ctx.Done():
			t.Fatalf("got %d replies, want %d", i, count)
		}
	}
}

func TestRunWorkload(t *testing.T) {
	n := startNode(t, config.NewTestConfig())
	defer n.Stop()

	p := workload.DefaultProfile()
	p.Keys = 16
	p.Count = 200
	p.Zipf = 1.5

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	submitted, err := n.RunWorkload(ctx, p)
	require.Nil(t, err)
	assert.Equal(t, p.Count, submitted)
	require.Nil(t, n.WaitRetired(ctx, uint64(submitted)))

	total := 0
	for _, key := range p.AllKeys() {
		v, err := n.Engine.Get([]byte(key))
		if err == storage.ErrNotFound {
			continue
		}
		require.Nil(t, err)
		c, err := strconv.Atoi(string(v))
		require.Nil(t, err)
		total += c
	}
	assert.Equal(t, p.Count*p.WriteKeys, total)

	stats := n.Scheduler.Stats()
	assert.Equal(t, uint64(p.Count), stats.Completed)
	assert.Equal(t, uint64(p.Count+1), stats.SafeVersion)
}

// replay puts the actions of p into n's log as one ordered batch, the way every replica receives the same input.
// Origins alternate between the two replicas.
func replay(n *Node, p *workload.Profile) int {
	g := workload.NewGenerator(p)
	b := &sequencer.Batch{ID: 1}
	for !g.Done() {
		a := g.Next()
		a.Origin = action.ReplicaID(len(b.Actions) % 2)
		a.VersionOffset = uint64(len(b.Actions))
		b.Actions = append(b.Actions, a)
	}
	n.Log.AddBatch(b)
	n.Log.Sequence(b.ID, 1)
	return len(b.Actions)
}

func TestReplicasAgreeWithSpanningActions(t *testing.T) {
	p := workload.DefaultProfile()
	p.Keys = 8
	p.Count = 400
	p.ReadKeys = 1
	p.WriteKeys = 2
	p.Zipf = 1.5
	p.MultiReplicaRatio = 0.5

	var digests []uint64
	for replica := 0; replica < 2; replica++ {
		cfg := config.NewTestConfig()
		cfg.Locality.Replicas = 2
		cfg.Locality.Replica = uint32(replica)
		cfg.Executor.Workers = 1 + 7*replica
		n := startNode(t, cfg)

		count := replay(n, p)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := n.WaitRetired(ctx, uint64(count))
		cancel()
		require.Nil(t, err)

		stats := n.Scheduler.Stats()
		assert.Equal(t, uint64(count), stats.Completed+stats.Skipped)
		digest, err := storage.Digest(n.Engine, p.AllKeys())
		require.Nil(t, err)
		digests = append(digests, digest)
		n.Stop()
	}
	assert.Equal(t, digests[0], digests[1])
}

func TestWaitRetiredTimesOut(t *testing.T) {
	n := startNode(t, config.NewTestConfig())
	defer n.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NotNil(t, n.WaitRetired(ctx, 1))
}

func TestStatusServer(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.StatusAddr = "127.0.0.1:0"
	n := startNode(t, cfg)
	assert.NotEqual(t, "127.0.0.1:0", n.status.Addr())
	n.Stop()
}

func TestMachineID(t *testing.T) {
	l := &config.LocalityConfig{Replica: 2, Replicas: 3, Partition: 1, Partitions: 4}
	assert.Equal(t, uint64(9), MachineID(l))
}
