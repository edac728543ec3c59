package util

import (
	"os"

	"github.com/pingcap/errors"
)

func DirExists(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.IsDir()
}

// EnsureDir creates path and its parents if needed. It returns true if the directory was created.
func EnsureDir(path string) (bool, error) {
	if DirExists(path) {
		return false, nil
	}
	if err := os.MkdirAll(path, os.ModePerm); err != nil {
		return false, errors.WithStack(err)
	}
	return true, nil
}
