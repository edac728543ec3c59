package storage

import (
	"github.com/coocood/badger"
	"github.com/pingcap-incubator/tinycalvin/kv/config"
	"github.com/pingcap/errors"
)

// BadgerEngine stores data in a badger database under one directory.
type BadgerEngine struct {
	db   *badger.DB
	path string
}

func NewBadgerEngine(conf *config.StorageConfig) (*BadgerEngine, error) {
	opts := badger.DefaultOptions
	opts.Dir = conf.DBPath
	opts.ValueDir = conf.DBPath
	opts.ValueLogFileSize = int64(conf.ValueLogFileSize)
	opts.MaxTableSize = int64(conf.MaxTableSize)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Annotatef(err, "open badger at %s", conf.DBPath)
	}
	return &BadgerEngine{db: db, path: conf.DBPath}, nil
}

func (e *BadgerEngine) Get(key []byte) (val []byte, err error) {
	err = e.db.View(func(txn *badger.Txn) error {
		item, err1 := txn.Get(key)
		if err1 != nil {
			return err1
		}
		v, err1 := item.Value()
		if err1 != nil {
			return err1
		}
		val = append([]byte(nil), v...)
		return nil
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	return val, errors.Trace(err)
}

func (e *BadgerEngine) Write(batch []Modify) error {
	return e.db.Update(func(txn *badger.Txn) error {
		for _, m := range batch {
			var err error
			switch data := m.Data.(type) {
			case Put:
				err = txn.Set(data.Key, data.Value)
			case Delete:
				err = txn.Delete(data.Key)
			}
			if err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	})
}

func (e *BadgerEngine) Close() error {
	return errors.Trace(e.db.Close())
}
