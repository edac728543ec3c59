package lockmgr

import (
	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Mode is the access mode of a lock request.
type Mode int

const (
	Read Mode = iota
	Write
)

func (m Mode) String() string {
	if m == Write {
		return "write"
	}
	return "read"
}

type request struct {
	version uint64
	action  *action.Action
	mode    Mode
}

// keyQueue holds every request for one key in arrival order. The first `granted` requests hold the lock: either a
// single Write or a run of Reads.
type keyQueue struct {
	requests []request
	granted  int
}

// LockManager arbitrates reader/writer locks over named keys. Requests on a key are granted strictly in the order
// they were made, so any two LockManagers fed the same sequence of calls grant locks in the same order.
//
// A LockManager is not safe for concurrent use. It has exactly one owner, the scheduler's control loop.
type LockManager struct {
	// lockMap maps each key with at least one request to its queue.
	lockMap map[string]*keyQueue
	// waits counts, per waiting action, the queued requests that have not been granted yet.
	waits map[*action.Action]int
	// ready holds actions whose last queued request was granted, in the order that happened.
	ready []*action.Action
}

func NewLockManager() *LockManager {
	return &LockManager{
		lockMap: make(map[string]*keyQueue),
		waits:   make(map[*action.Action]int),
	}
}

// WriteLock requests an exclusive lock on key for a. It returns true if the lock was granted immediately, otherwise
// the request is queued and a will be reported by Ready once all of its queued requests are granted.
func (lm *LockManager) WriteLock(a *action.Action, key string) bool {
	q := lm.queue(key)
	q.requests = append(q.requests, request{version: a.Version, action: a, mode: Write})
	if len(q.requests) == 1 {
		q.granted = 1
		return true
	}
	lm.waits[a]++
	return false
}

// ReadLock requests a shared lock on key for a. It is granted immediately when every request already on the key is
// a granted read.
func (lm *LockManager) ReadLock(a *action.Action, key string) bool {
	q := lm.queue(key)
	shared := q.granted == len(q.requests) && (q.granted == 0 || q.requests[0].mode == Read)
	q.requests = append(q.requests, request{version: a.Version, action: a, mode: Read})
	if shared {
		q.granted++
		return true
	}
	lm.waits[a]++
	return false
}

// Release gives up a's lock on key and grants the lock to whoever is next in line. Releasing a key that a does not
// hold is a no-op, so callers may release the same key twice. Requests are matched by action, not by version.
func (lm *LockManager) Release(a *action.Action, key string) {
	q, ok := lm.lockMap[key]
	if !ok {
		return
	}
	idx := -1
	for i := 0; i < q.granted; i++ {
		if q.requests[i].action == a {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	q.requests = append(q.requests[:idx], q.requests[idx+1:]...)
	q.granted--
	if len(q.requests) == 0 {
		delete(lm.lockMap, key)
		return
	}
	lm.promote(q)
}

// Ready pops one action that became fully granted since it was queued. It never blocks.
func (lm *LockManager) Ready() (*action.Action, bool) {
	if len(lm.ready) == 0 {
		return nil, false
	}
	a := lm.ready[0]
	lm.ready[0] = nil
	lm.ready = lm.ready[1:]
	return a, true
}

// promote grants the head of q after a release: a lone Write if no one holds the key, otherwise every Read up to
// the next Write.
func (lm *LockManager) promote(q *keyQueue) {
	if q.granted == 0 && q.requests[0].mode == Write {
		lm.grant(q.requests[0])
		q.granted = 1
		return
	}
	if q.requests[0].mode == Write {
		return
	}
	for q.granted < len(q.requests) && q.requests[q.granted].mode == Read {
		lm.grant(q.requests[q.granted])
		q.granted++
	}
}

func (lm *LockManager) grant(r request) {
	n, ok := lm.waits[r.action]
	if !ok || n <= 0 {
		log.Panic("lock granted to an action with no queued requests",
			zap.Uint64("version", r.version), zap.Stringer("mode", r.mode))
	}
	if n == 1 {
		delete(lm.waits, r.action)
		lm.ready = append(lm.ready, r.action)
		return
	}
	lm.waits[r.action] = n - 1
}

func (lm *LockManager) queue(key string) *keyQueue {
	q, ok := lm.lockMap[key]
	if !ok {
		q = &keyQueue{}
		lm.lockMap[key] = q
	}
	return q
}

// Len returns the number of keys with at least one request.
func (lm *LockManager) Len() int {
	return len(lm.lockMap)
}

// Waiting returns the number of actions that still wait for at least one lock.
func (lm *LockManager) Waiting() int {
	return len(lm.waits)
}

// Holders returns the versions currently holding key, in grant order.
func (lm *LockManager) Holders(key string) []uint64 {
	q, ok := lm.lockMap[key]
	if !ok {
		return nil
	}
	holders := make([]uint64, 0, q.granted)
	for _, r := range q.requests[:q.granted] {
		holders = append(holders, r.version)
	}
	return holders
}

// Queued returns the number of requests on key that are not granted.
func (lm *LockManager) Queued(key string) int {
	q, ok := lm.lockMap[key]
	if !ok {
		return 0
	}
	return len(q.requests) - q.granted
}
