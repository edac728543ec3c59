package storage

import (
	"github.com/syndtr/goleveldb/leveldb"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

// NewMemEngine creates a LevelDBEngine that keeps everything in memory. Data is not written to disk.
func NewMemEngine() *LevelDBEngine {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		panic(err)
	}
	return &LevelDBEngine{db: db}
}
