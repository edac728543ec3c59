package workload

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pingcap-incubator/tinycalvin/kv/action"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfile(t *testing.T) {
	dir, err := ioutil.TempDir("", "calvin-workload")
	require.Nil(t, err)
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "hot.yaml")
	require.Nil(t, ioutil.WriteFile(path, []byte("keys: 50\nzipf: 1.5\nmulti-replica-ratio: 0.25\nrate: 200\n"), 0644))
	p, err := LoadProfile(path)
	require.Nil(t, err)
	assert.Equal(t, 50, p.Keys)
	assert.Equal(t, 1.5, p.Zipf)
	assert.Equal(t, 0.25, p.MultiReplicaRatio)
	assert.Equal(t, 200.0, p.Rate)
	// Defaults survive.
	assert.Equal(t, 2, p.ReadKeys)
	assert.Equal(t, "/k/", p.Prefix)

	require.Nil(t, ioutil.WriteFile(path, []byte("zipf: 0.5\n"), 0644))
	_, err = LoadProfile(path)
	assert.NotNil(t, err)

	_, err = LoadProfile(filepath.Join(dir, "missing.yaml"))
	assert.NotNil(t, err)
}

func TestValidate(t *testing.T) {
	p := DefaultProfile()
	assert.Nil(t, p.Validate())
	p.Keys = 0
	assert.NotNil(t, p.Validate())
	p = DefaultProfile()
	p.MultiReplicaRatio = 2
	assert.NotNil(t, p.Validate())
	p = DefaultProfile()
	p.Rate = -1
	assert.NotNil(t, p.Validate())
}

func TestGeneratorIsDeterministic(t *testing.T) {
	p := DefaultProfile()
	p.Zipf = 1.2
	p.MultiReplicaRatio = 0.5
	a, b := NewGenerator(p), NewGenerator(p)
	keys := make(map[string]bool)
	for _, k := range p.AllKeys() {
		keys[k] = true
	}
	for i := 0; i < 500; i++ {
		x, y := a.Next(), b.Next()
		assert.Equal(t, x, y)
		assert.Equal(t, uint64(i+1), x.DistinctID)
		assert.True(t, len(x.WriteSet) >= 1 && len(x.WriteSet) <= p.WriteKeys)
		for _, k := range append(x.ReadSet, x.WriteSet...) {
			assert.True(t, keys[k], k)
		}
		for _, op := range x.Ops {
			if op.Type.IsWrite() {
				assert.True(t, x.Writes(op.Key))
			} else {
				assert.True(t, x.Reads(op.Key))
			}
		}
	}
}

func TestGeneratorRun(t *testing.T) {
	p := DefaultProfile()
	p.Count = 20
	p.Rate = 1000
	g := NewGenerator(p)
	var got []*action.Action
	require.Nil(t, g.Run(context.Background(), func(a *action.Action) error {
		got = append(got, a)
		return nil
	}))
	assert.Len(t, got, 20)
	assert.True(t, g.Done())

	p = DefaultProfile()
	p.Count = 0
	p.Rate = 100
	g = NewGenerator(p)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	n := 0
	require.Nil(t, g.Run(ctx, func(*action.Action) error {
		n++
		return nil
	}))
	assert.True(t, n > 0 && n < 100, "%d", n)

	g = NewGenerator(DefaultProfile())
	stop := errors.New("stop")
	err := g.Run(context.Background(), func(a *action.Action) error {
		if a.DistinctID == 3 {
			return stop
		}
		return nil
	})
	assert.Equal(t, stop, err)
}
