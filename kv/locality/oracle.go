package locality

import (
	"sort"
	"strings"

	"github.com/dgryski/go-farm"
	"github.com/pingcap-incubator/tinycalvin/kv/action"
)

// Oracle answers where data lives. The scheduler only uses it to decide which keys this replica must lock.
type Oracle interface {
	// IsLocal returns true if key is stored on this machine.
	IsLocal(key string) bool
	// ReplicaOwner returns the replica that masters key.
	ReplicaOwner(key string) action.ReplicaID
}

// Relevant reports whether this machine handles key on behalf of a. A single-replica action covers every local key.
// An action spanning replicas only covers the local keys mastered by the replica it was submitted to. The scheduler
// locks exactly the relevant keys and the executor touches nothing else.
func Relevant(o Oracle, a *action.Action, key string) bool {
	if !o.IsLocal(key) {
		return false
	}
	return a.SingleReplica || o.ReplicaOwner(key) == a.Origin
}

// Master pins every key under Prefix to a replica.
type Master struct {
	Prefix  string
	Replica action.ReplicaID
}

// Hash is an Oracle for a cluster of Replicas full copies of the data, each split over Partitions machines. Keys are
// spread over partitions by fingerprint. Ownership follows the longest matching master prefix and falls back to a
// second, independent hash so that partition and owner are not correlated.
//
// A Hash is immutable and safe for concurrent use.
type Hash struct {
	replicas   uint32
	partitions uint64
	partition  uint64
	masters    []Master
}

// NewHash builds the oracle of the machine holding partition `partition` of some replica.
func NewHash(replicas uint32, partitions, partition uint64, masters []Master) *Hash {
	ms := append([]Master(nil), masters...)
	// Longest prefix first.
	sort.SliceStable(ms, func(i, j int) bool {
		return len(ms[i].Prefix) > len(ms[j].Prefix)
	})
	return &Hash{
		replicas:   replicas,
		partitions: partitions,
		partition:  partition,
		masters:    ms,
	}
}

// PartitionOf returns the partition storing key.
func (h *Hash) PartitionOf(key string) uint64 {
	return farm.Fingerprint64([]byte(key)) % h.partitions
}

func (h *Hash) IsLocal(key string) bool {
	return h.PartitionOf(key) == h.partition
}

func (h *Hash) ReplicaOwner(key string) action.ReplicaID {
	for _, m := range h.masters {
		if strings.HasPrefix(key, m.Prefix) {
			return m.Replica
		}
	}
	return action.ReplicaID(farm.Hash32([]byte(key)) % h.replicas)
}

// Static is an Oracle over explicit key sets. Keys missing from the owner map belong to replica 0.
type Static struct {
	local  map[string]bool
	owners map[string]action.ReplicaID
}

func NewStatic(local []string, owners map[string]action.ReplicaID) *Static {
	s := &Static{
		local:  make(map[string]bool, len(local)),
		owners: make(map[string]action.ReplicaID, len(owners)),
	}
	for _, k := range local {
		s.local[k] = true
	}
	for k, r := range owners {
		s.owners[k] = r
	}
	return s
}

func (s *Static) IsLocal(key string) bool {
	return s.local[key]
}

func (s *Static) ReplicaOwner(key string) action.ReplicaID {
	return s.owners[key]
}

// Everything is an Oracle for a single-machine deployment: every key is local and owned by one replica.
type Everything action.ReplicaID

func (e Everything) IsLocal(string) bool {
	return true
}

func (e Everything) ReplicaOwner(string) action.ReplicaID {
	return action.ReplicaID(e)
}
