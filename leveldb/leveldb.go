package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

type LevelStore struct {
	*leveldb.DB
}

func NewLevelStore(path string) (*LevelStore, error) {
	handle, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelStore{handle}, nil
}

// NewMemoryStore opens a store that lives only as long as the process.
func NewMemoryStore() (*LevelStore, error) {
	handle, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelStore{handle}, nil
}

func (db *LevelStore) Put(key []byte, value []byte) error {
	return db.DB.Put(key, value, nil)
}

func (db *LevelStore) Get(key []byte) ([]byte, error) {
	data, err := db.DB.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (db *LevelStore) Delete(key []byte) error {
	return db.DB.Delete(key, nil)
}
