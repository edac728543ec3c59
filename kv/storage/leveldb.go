package storage

import (
	"github.com/pingcap/errors"
	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDBEngine stores data in a goleveldb database.
type LevelDBEngine struct {
	db *leveldb.DB
}

func NewLevelDBEngine(path string) (*LevelDBEngine, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Annotatef(err, "open leveldb at %s", path)
	}
	return &LevelDBEngine{db: db}, nil
}

func (e *LevelDBEngine) Get(key []byte) ([]byte, error) {
	val, err := e.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return val, errors.Trace(err)
}

func (e *LevelDBEngine) Write(batch []Modify) error {
	wb := new(leveldb.Batch)
	for _, m := range batch {
		switch data := m.Data.(type) {
		case Put:
			wb.Put(data.Key, data.Value)
		case Delete:
			wb.Delete(data.Key)
		}
	}
	return errors.Trace(e.db.Write(wb, nil))
}

func (e *LevelDBEngine) Close() error {
	return errors.Trace(e.db.Close())
}
