package memdb

import (
	"sort"
	"strings"
	"sync"

	tplog "github.com/KaviraWallet/kavira/log"
)

// MemDBBackend keeps everything in process memory. Used by tests and as the
// throwaway session backend.
type MemDBBackend struct {
	log tplog.Logger

	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDBBackend(log tplog.Logger) *MemDBBackend {
	return &MemDBBackend{
		log:  log,
		data: make(map[string][]byte),
	}
}

func (b *MemDBBackend) Get(key []byte) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	val, ok := b.data[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), val...), nil
}

func (b *MemDBBackend) Has(key []byte) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.data[string(key)]
	return ok, nil
}

func (b *MemDBBackend) Set(key []byte, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (b *MemDBBackend) Delete(key []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.data, string(key))
	return nil
}

func (b *MemDBBackend) IteratePrefix(prefix []byte, fn func(key []byte, value []byte) bool) error {
	b.mu.RLock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	type kv struct {
		key   []byte
		value []byte
	}
	items := make([]kv, 0, len(keys))
	for _, k := range keys {
		items = append(items, kv{[]byte(k), append([]byte(nil), b.data[k]...)})
	}
	b.mu.RUnlock()

	for _, item := range items {
		if !fn(item.key, item.value) {
			break
		}
	}

	return nil
}

func (b *MemDBBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data = make(map[string][]byte)
	return nil
}
