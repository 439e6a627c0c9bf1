package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/KaviraWallet/kavira/codec"
	tpcrtypes "github.com/KaviraWallet/kavira/crypt/types"
	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
	wltypes "github.com/KaviraWallet/kavira/wallet/types"
)

const (
	MOD_NAME = "store"

	keyRecordPrefix = "key/"
	txRecordPrefix  = "tx/"
	settingsRecord  = "settings"
	selectedRecord  = "selectedKey"
)

// RecordStore is the persistence contract the session coordinator consumes:
// four independent record kinds, each with get/save/remove. Every operation
// may fail and failures surface as errors, never as silent data loss.
type RecordStore interface {
	GetKeys(ctx context.Context) ([]wltypes.Account, error)
	SaveKey(ctx context.Context, account wltypes.Account) error
	RemoveKey(ctx context.Context, address tpcrtypes.Address) error

	GetTransactions(ctx context.Context) ([]wltypes.Transaction, error)
	SaveTransaction(ctx context.Context, tx wltypes.Transaction) error
	SaveTransactions(ctx context.Context, all []wltypes.Transaction) error

	GetSettings(ctx context.Context) (wltypes.Settings, bool, error)
	SaveSettings(ctx context.Context, s wltypes.Settings) error

	GetSelectedKey(ctx context.Context) (tpcrtypes.Address, error)
	SetSelectedKey(ctx context.Context, address tpcrtypes.Address) error

	ClearAllData(ctx context.Context) error
}

type recordStore struct {
	log       tplog.Logger
	backend   Backend
	marshaler codec.Marshaler
}

func NewRecordStore(level tplogcmm.LogLevel, log tplog.Logger, backend Backend) RecordStore {
	sLog := tplog.CreateModuleLogger(level, MOD_NAME, log)

	return &recordStore{
		log:       sLog,
		backend:   backend,
		marshaler: codec.CreateMarshaler(codec.CodecType_JSON),
	}
}

func (s *recordStore) GetKeys(ctx context.Context) ([]wltypes.Account, error) {
	var accounts []wltypes.Account
	var iterErr error
	err := s.backend.IteratePrefix([]byte(keyRecordPrefix), func(key, value []byte) bool {
		var acc wltypes.Account
		if iterErr = s.marshaler.Unmarshal(value, &acc); iterErr != nil {
			return false
		}
		accounts = append(accounts, acc)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("storage: iterate keys: %w", err)
	}
	if iterErr != nil {
		return nil, fmt.Errorf("storage: decode key record: %w", iterErr)
	}

	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Address < accounts[j].Address })
	return accounts, nil
}

func (s *recordStore) SaveKey(ctx context.Context, account wltypes.Account) error {
	data, err := s.marshaler.Marshal(&account)
	if err != nil {
		return fmt.Errorf("storage: encode key record: %w", err)
	}
	if err = s.backend.Set([]byte(keyRecordPrefix+string(account.Address)), data); err != nil {
		return fmt.Errorf("storage: save key %s: %w", account.Address, err)
	}
	return nil
}

func (s *recordStore) RemoveKey(ctx context.Context, address tpcrtypes.Address) error {
	if err := s.backend.Delete([]byte(keyRecordPrefix + string(address))); err != nil {
		return fmt.Errorf("storage: remove key %s: %w", address, err)
	}
	return nil
}

func (s *recordStore) GetTransactions(ctx context.Context) ([]wltypes.Transaction, error) {
	var txs []wltypes.Transaction
	var iterErr error
	err := s.backend.IteratePrefix([]byte(txRecordPrefix), func(key, value []byte) bool {
		var tx wltypes.Transaction
		if iterErr = s.marshaler.Unmarshal(value, &tx); iterErr != nil {
			return false
		}
		txs = append(txs, tx)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("storage: iterate transactions: %w", err)
	}
	if iterErr != nil {
		return nil, fmt.Errorf("storage: decode transaction record: %w", iterErr)
	}

	// most-recent-first
	sort.Slice(txs, func(i, j int) bool { return txs[i].Timestamp.After(txs[j].Timestamp) })
	return txs, nil
}

func (s *recordStore) SaveTransaction(ctx context.Context, tx wltypes.Transaction) error {
	data, err := s.marshaler.Marshal(&tx)
	if err != nil {
		return fmt.Errorf("storage: encode transaction record: %w", err)
	}
	if err = s.backend.Set([]byte(txRecordPrefix+tx.ID), data); err != nil {
		return fmt.Errorf("storage: save transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (s *recordStore) SaveTransactions(ctx context.Context, all []wltypes.Transaction) error {
	var stale [][]byte
	err := s.backend.IteratePrefix([]byte(txRecordPrefix), func(key, value []byte) bool {
		stale = append(stale, key)
		return true
	})
	if err != nil {
		return fmt.Errorf("storage: iterate transactions: %w", err)
	}
	for _, key := range stale {
		if err = s.backend.Delete(key); err != nil {
			return fmt.Errorf("storage: prune transaction record: %w", err)
		}
	}

	for _, tx := range all {
		if err = s.SaveTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (s *recordStore) GetSettings(ctx context.Context) (wltypes.Settings, bool, error) {
	data, err := s.backend.Get([]byte(settingsRecord))
	if err != nil {
		return wltypes.Settings{}, false, fmt.Errorf("storage: load settings: %w", err)
	}
	if data == nil {
		return wltypes.Settings{}, false, nil
	}

	var settings wltypes.Settings
	if err = s.marshaler.Unmarshal(data, &settings); err != nil {
		return wltypes.Settings{}, false, fmt.Errorf("storage: decode settings record: %w", err)
	}
	return settings, true, nil
}

func (s *recordStore) SaveSettings(ctx context.Context, settings wltypes.Settings) error {
	data, err := s.marshaler.Marshal(&settings)
	if err != nil {
		return fmt.Errorf("storage: encode settings record: %w", err)
	}
	if err = s.backend.Set([]byte(settingsRecord), data); err != nil {
		return fmt.Errorf("storage: save settings: %w", err)
	}
	return nil
}

func (s *recordStore) GetSelectedKey(ctx context.Context) (tpcrtypes.Address, error) {
	data, err := s.backend.Get([]byte(selectedRecord))
	if err != nil {
		return tpcrtypes.UndefAddress, fmt.Errorf("storage: load selected key: %w", err)
	}
	return tpcrtypes.Address(data), nil
}

func (s *recordStore) SetSelectedKey(ctx context.Context, address tpcrtypes.Address) error {
	if address == tpcrtypes.UndefAddress {
		if err := s.backend.Delete([]byte(selectedRecord)); err != nil {
			return fmt.Errorf("storage: clear selected key: %w", err)
		}
		return nil
	}
	if err := s.backend.Set([]byte(selectedRecord), []byte(address)); err != nil {
		return fmt.Errorf("storage: save selected key: %w", err)
	}
	return nil
}

func (s *recordStore) ClearAllData(ctx context.Context) error {
	var keys [][]byte
	err := s.backend.IteratePrefix(nil, func(key, value []byte) bool {
		keys = append(keys, key)
		return true
	})
	if err != nil {
		return fmt.Errorf("storage: iterate all records: %w", err)
	}

	for _, key := range keys {
		if err = s.backend.Delete(key); err != nil {
			return fmt.Errorf("storage: clear record: %w", err)
		}
	}

	s.log.Info("all wallet records cleared")
	return nil
}
