package store

import (
	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
	"github.com/KaviraWallet/kavira/store/badger"
	"github.com/KaviraWallet/kavira/store/leveldb"
	"github.com/KaviraWallet/kavira/store/memdb"
)

type BackendType int

const (
	BackendType_Unknown BackendType = iota
	BackendType_Leveldb
	BackendType_Badger
	BackendType_Memdb
)

const (
	DefaultCacheSize = 8192
)

func (t BackendType) String() string {
	switch t {
	case BackendType_Leveldb:
		return "leveldb"
	case BackendType_Badger:
		return "badger"
	case BackendType_Memdb:
		return "memdb"
	default:
		return "unknown"
	}
}

// ParseBackendType maps a backend name to its type; unknown names map to
// BackendType_Unknown.
func ParseBackendType(name string) BackendType {
	switch name {
	case "leveldb":
		return BackendType_Leveldb
	case "badger":
		return BackendType_Badger
	case "memdb":
		return BackendType_Memdb
	default:
		return BackendType_Unknown
	}
}

// Backend is the raw key-value surface a record store runs on.
type Backend interface {
	// Get returns nil with no error when the key is absent.
	Get(key []byte) ([]byte, error)

	Has(key []byte) (bool, error)

	Set(key []byte, value []byte) error

	Delete(key []byte) error

	// IteratePrefix visits every key with the given prefix; returning false
	// from fn stops the walk early.
	IteratePrefix(prefix []byte, fn func(key []byte, value []byte) bool) error

	Close() error
}

func NewBackend(backendType BackendType, log tplog.Logger, path string, name string) Backend {
	bLog := tplog.CreateModuleLogger(tplogcmm.InfoLevel, "StoreBackend", log)

	switch backendType {
	case BackendType_Leveldb:
		return leveldb.NewLeveldbBackend(bLog, name, path, DefaultCacheSize)
	case BackendType_Badger:
		return badger.NewBadgerBackend(bLog, name, path, DefaultCacheSize)
	case BackendType_Memdb:
		return memdb.NewMemDBBackend(bLog)
	default:
		bLog.Panicf("Invalid backend type %d", backendType)
	}

	return nil
}
