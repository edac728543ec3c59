package util

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	base, err := ioutil.TempDir("", "util-file")
	require.Nil(t, err)
	defer os.RemoveAll(base)

	path := filepath.Join(base, "a", "b")
	assert.False(t, DirExists(path))
	created, err := EnsureDir(path)
	require.Nil(t, err)
	assert.True(t, created)
	assert.True(t, DirExists(path))

	created, err = EnsureDir(path)
	require.Nil(t, err)
	assert.False(t, created)
}

func TestEnsureDirOnFile(t *testing.T) {
	f, err := ioutil.TempFile("", "util-file")
	require.Nil(t, err)
	f.Close()
	defer os.Remove(f.Name())

	assert.False(t, DirExists(f.Name()))
	_, err = EnsureDir(f.Name())
	assert.NotNil(t, err)
}
