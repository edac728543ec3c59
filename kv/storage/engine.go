package storage

import (
	"github.com/pingcap-incubator/tinycalvin/kv/config"
	"github.com/pingcap-incubator/tinycalvin/kv/util"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Engine.Get for a missing key.
var ErrNotFound = errors.New("storage: key not found")

// Engine is the local key/value store that executed actions read from and write to. Implementations are safe for
// concurrent use. A batch passed to Write is applied atomically.
type Engine interface {
	Get(key []byte) ([]byte, error)
	Write(batch []Modify) error
	Close() error
}

// Open creates the engine named by conf.
func Open(conf *config.StorageConfig) (Engine, error) {
	switch conf.Engine {
	case config.EngineBadger:
		if err := prepareDir(conf.DBPath); err != nil {
			return nil, err
		}
		return NewBadgerEngine(conf)
	case config.EngineLevelDB:
		if err := prepareDir(conf.DBPath); err != nil {
			return nil, err
		}
		return NewLevelDBEngine(conf.DBPath)
	case config.EngineMemory:
		return NewMemEngine(), nil
	}
	return nil, errors.Errorf("unknown storage engine %q", conf.Engine)
}

func prepareDir(path string) error {
	created, err := util.EnsureDir(path)
	if err != nil {
		return errors.Trace(err)
	}
	if created {
		log.Info("created data directory", zap.String("path", path))
	}
	return nil
}
