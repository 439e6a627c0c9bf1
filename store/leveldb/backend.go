package leveldb

import (
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	tplog "github.com/KaviraWallet/kavira/log"
)

type LeveldbBackend struct {
	log   tplog.Logger
	name  string
	cache *lru.ARCCache
	db    *leveldb.DB
}

func NewLeveldbBackend(log tplog.Logger, name string, path string, cacheSize int) *LeveldbBackend {
	pathWithName := filepath.Join(path, name+".db")
	if err := os.MkdirAll(pathWithName, 0755); err != nil {
		log.Panicf("can't change the path %s to 0755", pathWithName)
		return nil
	}

	db, err := leveldb.OpenFile(pathWithName, nil)
	if err != nil {
		log.Panicf("Create leveldb %s error %v, dbPath=%s", name, err, pathWithName)
		return nil
	}

	cache, _ := lru.NewARC(cacheSize)
	return &LeveldbBackend{
		log:   log,
		name:  name,
		cache: cache,
		db:    db,
	}
}

func (b *LeveldbBackend) Get(key []byte) ([]byte, error) {
	if cached, ok := b.cache.Get(string(key)); ok {
		return cached.([]byte), nil
	}

	val, err := b.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b.cache.Add(string(key), val)
	return val, nil
}

func (b *LeveldbBackend) Has(key []byte) (bool, error) {
	if b.cache.Contains(string(key)) {
		return true, nil
	}
	return b.db.Has(key, nil)
}

func (b *LeveldbBackend) Set(key []byte, value []byte) error {
	if err := b.db.Put(key, value, nil); err != nil {
		return err
	}
	b.cache.Add(string(key), value)
	return nil
}

func (b *LeveldbBackend) Delete(key []byte) error {
	if err := b.db.Delete(key, nil); err != nil {
		return err
	}
	b.cache.Remove(string(key))
	return nil
}

func (b *LeveldbBackend) IteratePrefix(prefix []byte, fn func(key []byte, value []byte) bool) error {
	iter := b.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		if !fn(key, value) {
			break
		}
	}

	return iter.Error()
}

func (b *LeveldbBackend) Close() error {
	b.cache.Purge()
	return b.db.Close()
}
