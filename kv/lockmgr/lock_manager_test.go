package lockmgr

import (
	"math/rand"
	"testing"

	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAction(version uint64) *action.Action {
	return &action.Action{Version: version}
}

// checkQueues asserts the per-key grant invariant: the granted prefix is one Write or a run of Reads, and a
// granted run of Reads is never followed by an ungranted Read.
func checkQueues(t *testing.T, lm *LockManager) {
	for key, q := range lm.lockMap {
		require.NotEmpty(t, q.requests, key)
		require.True(t, q.granted >= 1 && q.granted <= len(q.requests), key)
		if q.requests[0].mode == Write {
			require.Equal(t, 1, q.granted, key)
			continue
		}
		for i := 0; i < q.granted; i++ {
			require.Equal(t, Read, q.requests[i].mode, key)
		}
		if q.granted < len(q.requests) {
			require.Equal(t, Write, q.requests[q.granted].mode, key)
		}
	}
}

func TestWriteLockEmptyQueue(t *testing.T) {
	lm := NewLockManager()
	x := newAction(1)
	assert.True(t, lm.WriteLock(x, "k"))
	assert.Equal(t, []uint64{1}, lm.Holders("k"))
	_, ok := lm.Ready()
	assert.False(t, ok)
}

func TestDisjointWritesGrantedTogether(t *testing.T) {
	lm := NewLockManager()
	x, y := newAction(1), newAction(2)
	assert.True(t, lm.WriteLock(x, "a"))
	assert.True(t, lm.WriteLock(y, "b"))
	assert.Equal(t, 0, lm.Waiting())
	checkQueues(t, lm)
}

func TestWriteQueuesBehindWrite(t *testing.T) {
	lm := NewLockManager()
	x, y := newAction(1), newAction(2)
	require.True(t, lm.WriteLock(x, "k"))
	require.False(t, lm.WriteLock(y, "k"))
	assert.Equal(t, 1, lm.Queued("k"))
	_, ok := lm.Ready()
	assert.False(t, ok)

	lm.Release(x, "k")
	a, ok := lm.Ready()
	require.True(t, ok)
	assert.Equal(t, y, a)
	assert.Equal(t, []uint64{2}, lm.Holders("k"))
	_, ok = lm.Ready()
	assert.False(t, ok)

	lm.Release(y, "k")
	assert.Equal(t, 0, lm.Len())
}

func TestReadersShareThenWriterWaits(t *testing.T) {
	lm := NewLockManager()
	a, b, c, d := newAction(1), newAction(2), newAction(3), newAction(4)
	assert.True(t, lm.ReadLock(a, "k"))
	assert.True(t, lm.ReadLock(b, "k"))
	assert.True(t, lm.ReadLock(c, "k"))
	assert.False(t, lm.WriteLock(d, "k"))
	assert.Equal(t, []uint64{1, 2, 3}, lm.Holders("k"))

	lm.Release(b, "k")
	_, ok := lm.Ready()
	assert.False(t, ok)
	lm.Release(a, "k")
	_, ok = lm.Ready()
	assert.False(t, ok)
	lm.Release(c, "k")
	got, ok := lm.Ready()
	require.True(t, ok)
	assert.Equal(t, d, got)
	assert.Equal(t, []uint64{4}, lm.Holders("k"))
	checkQueues(t, lm)
}

func TestReadBehindQueuedWriteWaits(t *testing.T) {
	lm := NewLockManager()
	r1, w, r2, r3 := newAction(1), newAction(2), newAction(3), newAction(4)
	require.True(t, lm.ReadLock(r1, "k"))
	require.False(t, lm.WriteLock(w, "k"))
	require.False(t, lm.ReadLock(r2, "k"))
	require.False(t, lm.ReadLock(r3, "k"))
	checkQueues(t, lm)

	lm.Release(r1, "k")
	got, ok := lm.Ready()
	require.True(t, ok)
	assert.Equal(t, w, got)

	lm.Release(w, "k")
	got, ok = lm.Ready()
	require.True(t, ok)
	assert.Equal(t, r2, got)
	got, ok = lm.Ready()
	require.True(t, ok)
	assert.Equal(t, r3, got)
	assert.Equal(t, []uint64{3, 4}, lm.Holders("k"))
}

func TestReadyOnlyAfterAllQueuedGranted(t *testing.T) {
	lm := NewLockManager()
	x, y, z := newAction(1), newAction(2), newAction(3)
	require.True(t, lm.WriteLock(x, "a"))
	require.True(t, lm.WriteLock(y, "b"))
	require.False(t, lm.WriteLock(z, "a"))
	require.False(t, lm.WriteLock(z, "b"))
	require.True(t, lm.WriteLock(z, "c"))
	assert.Equal(t, 1, lm.Waiting())

	lm.Release(x, "a")
	_, ok := lm.Ready()
	assert.False(t, ok)
	lm.Release(y, "b")
	got, ok := lm.Ready()
	require.True(t, ok)
	assert.Equal(t, z, got)
	assert.Equal(t, 0, lm.Waiting())
}

func TestReleaseIsIdempotent(t *testing.T) {
	lm := NewLockManager()
	x, y, z := newAction(1), newAction(2), newAction(3)
	require.True(t, lm.WriteLock(x, "k"))
	require.False(t, lm.WriteLock(y, "k"))

	// z never asked for k, y only queued for it.
	lm.Release(z, "k")
	lm.Release(y, "k")
	lm.Release(z, "unknown")
	assert.Equal(t, []uint64{1}, lm.Holders("k"))
	assert.Equal(t, 1, lm.Queued("k"))

	lm.Release(x, "k")
	lm.Release(x, "k")
	assert.Equal(t, []uint64{2}, lm.Holders("k"))
	got, ok := lm.Ready()
	require.True(t, ok)
	assert.Equal(t, y, got)
	_, ok = lm.Ready()
	assert.False(t, ok)
}

func TestRandomSequencesKeepInvariant(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	keys := []string{"a", "b", "c", "d"}
	lm := NewLockManager()
	held := make(map[uint64][]string)
	running := make(map[uint64]*action.Action)
	version := uint64(0)

	for step := 0; step < 5000; step++ {
		if rnd.Intn(3) > 0 || len(running) == 0 {
			version++
			a := newAction(version)
			ungranted := 0
			for _, key := range keys {
				switch rnd.Intn(3) {
				case 0:
					if !lm.ReadLock(a, key) {
						ungranted++
					}
					held[version] = append(held[version], key)
				case 1:
					if !lm.WriteLock(a, key) {
						ungranted++
					}
					held[version] = append(held[version], key)
				}
			}
			if ungranted == 0 {
				running[version] = a
			}
		} else {
			for v, a := range running {
				for _, key := range held[v] {
					lm.Release(a, key)
				}
				delete(running, v)
				delete(held, v)
				break
			}
		}
		for {
			a, ok := lm.Ready()
			if !ok {
				break
			}
			running[a.Version] = a
		}
		checkQueues(t, lm)
		for v := range running {
			for _, key := range held[v] {
				require.Contains(t, lm.Holders(key), v)
			}
		}
	}
}

func TestActionsSharingVersionAreKeptApart(t *testing.T) {
	lm := NewLockManager()
	w, y, z := newAction(1), newAction(2), newAction(2)
	for _, key := range []string{"a", "b", "c"} {
		require.True(t, lm.WriteLock(w, key))
	}
	require.False(t, lm.WriteLock(y, "a"))
	require.False(t, lm.WriteLock(y, "c"))
	require.False(t, lm.WriteLock(z, "b"))
	assert.Equal(t, 2, lm.Waiting())

	// z released a key it never held: y keeps its place on a.
	lm.Release(z, "a")
	assert.Equal(t, []uint64{1}, lm.Holders("a"))
	assert.Equal(t, 1, lm.Queued("a"))

	lm.Release(w, "b")
	got, ok := lm.Ready()
	require.True(t, ok)
	assert.True(t, got == z)
	_, ok = lm.Ready()
	assert.False(t, ok)

	lm.Release(w, "a")
	lm.Release(w, "c")
	got, ok = lm.Ready()
	require.True(t, ok)
	assert.True(t, got == y)
	assert.Equal(t, 0, lm.Waiting())
}
