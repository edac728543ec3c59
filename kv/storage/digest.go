package storage

import (
	"sort"

	"github.com/dgryski/go-farm"
	"github.com/pingcap/errors"
)

// Digest fingerprints the values of keys. Missing keys count, so two engines agree on the digest only if they agree
// on which keys exist and what they hold.
func Digest(e Engine, keys []string) (uint64, error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	var h uint64
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		val, err := e.Get([]byte(key))
		entry := append([]byte(key), 0)
		switch {
		case err == ErrNotFound:
		case err != nil:
			return 0, errors.Trace(err)
		default:
			entry = append(append(entry, 1), val...)
		}
		h = farm.Hash64WithSeed(entry, h)
	}
	return h, nil
}
