package scheduler

import (
	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"github.com/pingcap-incubator/tinycalvin/kv/locality"
)

// relevantKeys returns the keys a must write-lock and read-lock here. Both lists are de-duplicated and keep the
// order in which keys first appear, and a key in the write set is never returned as a read. The result depends only
// on a and the oracle, so acquisition and release always agree.
func relevantKeys(a *action.Action, oracle locality.Oracle) (writes, reads []string) {
	seen := make(map[string]struct{}, len(a.WriteSet)+len(a.ReadSet))
	for _, key := range a.WriteSet {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if locality.Relevant(oracle, a, key) {
			writes = append(writes, key)
		}
	}
	for _, key := range a.ReadSet {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if locality.Relevant(oracle, a, key) {
			reads = append(reads, key)
		}
	}
	return
}
