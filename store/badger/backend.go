package badger

import (
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	lru "github.com/hashicorp/golang-lru"

	tplog "github.com/KaviraWallet/kavira/log"
)

type BadgerBackend struct {
	log   tplog.Logger
	name  string
	cache *lru.ARCCache
	db    *badger.DB
}

func NewBadgerBackend(log tplog.Logger, name string, path string, cacheSize int) *BadgerBackend {
	pathWithName := filepath.Join(path, name+".db")
	if err := os.MkdirAll(pathWithName, 0755); err != nil {
		log.Panicf("can't change the path %s to 0755", pathWithName)
		return nil
	}

	opts := badger.DefaultOptions(pathWithName)
	opts.SyncWrites = false
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		log.Panicf("can't open badger: path=%s, err=%v", pathWithName, err)
		return nil
	}

	cache, _ := lru.NewARC(cacheSize)
	return &BadgerBackend{
		log:   log,
		name:  name,
		cache: cache,
		db:    db,
	}
}

func (b *BadgerBackend) Get(key []byte) ([]byte, error) {
	if cached, ok := b.cache.Get(string(key)); ok {
		return cached.([]byte), nil
	}

	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b.cache.Add(string(key), val)
	return val, nil
}

func (b *BadgerBackend) Has(key []byte) (bool, error) {
	if b.cache.Contains(string(key)) {
		return true, nil
	}

	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (b *BadgerBackend) Set(key []byte, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return err
	}

	b.cache.Add(string(key), value)
	return nil
}

func (b *BadgerBackend) Delete(key []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}

	b.cache.Remove(string(key))
	return nil
}

func (b *BadgerBackend) IteratePrefix(prefix []byte, fn func(key []byte, value []byte) bool) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			item := iter.Item()
			key := item.KeyCopy(nil)
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !fn(key, value) {
				break
			}
		}

		return nil
	})
}

func (b *BadgerBackend) Close() error {
	b.cache.Purge()
	return b.db.Close()
}
