package action

import (
	"fmt"
)

// ReplicaID identifies one full copy of the data set. Every replica receives the same ordered action stream.
type ReplicaID uint32

// Action is one transactional unit. It declares every key it may read or write up front, which is what lets a
// replica take all of its locks before running it.
//
// An Action is owned by exactly one component at a time: the source while queued, the scheduler while it waits for
// locks, the executor while it runs, and the scheduler again once it comes back over the completion channel.
type Action struct {
	// Version is the position of the action in the global order.
	Version uint64
	// VersionOffset is the position of the action inside its sequenced batch. It is folded into Version (and reset)
	// when the action leaves the sequencer.
	VersionOffset uint64
	// DistinctID is assigned by the client and survives re-sequencing.
	DistinctID uint64
	// Origin is the replica the action was submitted to.
	Origin ReplicaID
	// SingleReplica is true when the action's footprint is confined to one replica, in which case every local key is
	// relevant regardless of which replica masters it.
	SingleReplica bool

	ReadSet  []string
	WriteSet []string

	// Client routing. When ClientChannel is non-empty the executor delivers a Result there.
	ClientMachine uint64
	ClientChannel string

	Ops     []Op
	Results []Result
	Err     string
}

// HasClient returns true if a result should be routed back to a client.
func (a *Action) HasClient() bool {
	return a.ClientChannel != ""
}

// Reads reports whether key is declared in the read set or the write set.
func (a *Action) Reads(key string) bool {
	return contains(a.ReadSet, key) || contains(a.WriteSet, key)
}

// Writes reports whether key is declared in the write set.
func (a *Action) Writes(key string) bool {
	return contains(a.WriteSet, key)
}

func (a *Action) String() string {
	return fmt.Sprintf("action{version: %d, id: %d, origin: %d, single: %v, reads: %v, writes: %v}",
		a.Version, a.DistinctID, a.Origin, a.SingleReplica, a.ReadSet, a.WriteSet)
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
