package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaviraWallet/kavira/autolock"
	"github.com/KaviraWallet/kavira/configuration"
	tpcrtypes "github.com/KaviraWallet/kavira/crypt/types"
	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
	"github.com/KaviraWallet/kavira/store"
	wltypes "github.com/KaviraWallet/kavira/wallet/types"
	"github.com/KaviraWallet/kavira/werror"
)

type nullSource struct{}

func (s *nullSource) FetchResult(ctx context.Context, hash string) (*wltypes.TxResult, error) {
	return nil, nil
}

type testFixture struct {
	coord   *Coordinator
	store   store.RecordStore
	handler *werror.Handler
	config  *configuration.Configuration
}

func newTestFixture(t *testing.T) *testFixture {
	testLog, err := tplog.CreateMainLogger(tplogcmm.ErrorLevel, tplog.JSONFormat, tplog.StdErrOutput, "")
	require.NoError(t, err)

	config := configuration.DefConfiguration()
	backend := store.NewBackend(store.BackendType_Memdb, testLog, "", "")
	recordStore := store.NewRecordStore(tplogcmm.ErrorLevel, testLog, backend)
	handler := werror.NewHandler(tplogcmm.ErrorLevel, testLog, config.HistoryConfig.MaxErrors, nil)

	coord := NewCoordinator(tplogcmm.ErrorLevel, testLog, config, recordStore, &nullSource{}, handler, nil)
	t.Cleanup(func() { coord.TransactionManager().Stop() })

	return &testFixture{coord: coord, store: recordStore, handler: handler, config: config}
}

func testAccount(n byte) wltypes.Account {
	pub := fmt.Sprintf("%02x%02x", n, n)
	return wltypes.Account{
		Address:   tpcrtypes.Address(tpcrtypes.KeyAddrPrefix + pub),
		PublicKey: pub,
		Name:      fmt.Sprintf("acct-%d", n),
		ChainID:   "0",
	}
}

func TestInitializeEmptySession(t *testing.T) {
	f := newTestFixture(t)

	st := f.coord.Initialize(context.Background())

	assert.Empty(t, st.Accounts)
	assert.Nil(t, st.SelectedAccount)
	assert.False(t, st.IsLocked)
	assert.Equal(t, wltypes.Screen_Accounts, st.CurrentScreen)
	assert.Equal(t, wltypes.DefaultSettings(), st.Settings)
	require.NotNil(t, st.ActiveNetwork)
	assert.Equal(t, "mainnet01", st.ActiveNetwork.ID)
	assert.Equal(t, 2, len(st.Networks))
}

func TestInitializeRestoresPersistedRecords(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	acc := testAccount(1)
	require.NoError(t, f.store.SaveKey(ctx, acc))
	require.NoError(t, f.store.SetSelectedKey(ctx, acc.Address))
	require.NoError(t, f.store.SaveSettings(ctx, wltypes.Settings{AutoLock: false, ShowTestNetworks: true}))
	require.NoError(t, f.store.SaveTransaction(ctx, wltypes.Transaction{ID: "tx-1", From: string(acc.Address), ChainID: "0", Status: wltypes.TxStatus_Success, Timestamp: time.Now()}))

	st := f.coord.Initialize(ctx)

	require.Equal(t, 1, len(st.Accounts))
	require.NotNil(t, st.SelectedAccount)
	assert.Equal(t, acc.Address, st.SelectedAccount.Address)
	assert.False(t, st.Settings.AutoLock)
	require.Equal(t, 1, len(st.Transactions))
	assert.Equal(t, "tx-1", st.Transactions[0].ID)
}

func TestAddAccountOnEmptyStateSelectsIt(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	acc := testAccount(1)
	require.NoError(t, f.coord.AddAccount(ctx, acc))

	st := f.coord.GetState()
	require.Equal(t, 1, len(st.Accounts))
	require.NotNil(t, st.SelectedAccount)
	assert.Equal(t, acc.Address, st.SelectedAccount.Address)

	stored, err := f.store.GetKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, len(stored))

	selected, err := f.store.GetSelectedKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, acc.Address, selected)
}

func TestAddAccountRejectsDuplicates(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	acc := testAccount(1)
	require.NoError(t, f.coord.AddAccount(ctx, acc))
	assert.Error(t, f.coord.AddAccount(ctx, acc))
}

func TestAddTransactionWithoutHashDoesNotPoll(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	tx, err := f.coord.AddTransaction(ctx, wltypes.Transaction{From: "k:aa", ChainID: "0", Status: wltypes.TxStatus_Pending})
	require.NoError(t, err)

	assert.Equal(t, wltypes.TxStatus_Pending, tx.Status)
	assert.False(t, f.coord.TransactionManager().HasPoll(tx.ID))

	st := f.coord.GetState()
	require.Equal(t, 1, len(st.Transactions))
	assert.Equal(t, tx.ID, st.Transactions[0].ID)
}

func TestSetSelectedAccountWhileLocked(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	acc := testAccount(1)
	require.NoError(t, f.coord.AddAccount(ctx, acc))
	require.NoError(t, f.coord.LockWallet())

	err := f.coord.SetSelectedAccount(ctx, acc.Address)
	require.Error(t, err)

	we, ok := err.(*werror.WalletError)
	require.True(t, ok)
	assert.Equal(t, werror.ErrCode_PermissionDenied, we.Code)
	assert.Nil(t, f.coord.GetState().SelectedAccount)
}

func TestRemoveSelectedAccountReselectsSurvivor(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	first := testAccount(1)
	second := testAccount(2)
	require.NoError(t, f.coord.AddAccount(ctx, first))
	require.NoError(t, f.coord.AddAccount(ctx, second))

	st := f.coord.GetState()
	require.NotNil(t, st.SelectedAccount)
	require.Equal(t, first.Address, st.SelectedAccount.Address)

	require.NoError(t, f.coord.RemoveAccount(ctx, first.Address))

	st = f.coord.GetState()
	require.Equal(t, 1, len(st.Accounts))
	require.NotNil(t, st.SelectedAccount)
	assert.Equal(t, second.Address, st.SelectedAccount.Address)

	selected, err := f.store.GetSelectedKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Address, selected)
}

func TestLockClearsSelectionAndScreen(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	require.NoError(t, f.coord.AddAccount(ctx, testAccount(1)))
	require.NoError(t, f.coord.SetCurrentScreen(ctx, wltypes.Screen_Settings))

	require.NoError(t, f.coord.LockWallet())

	st := f.coord.GetState()
	assert.True(t, st.IsLocked)
	assert.Nil(t, st.SelectedAccount)
	assert.Equal(t, wltypes.Screen_Accounts, st.CurrentScreen)
	assert.True(t, f.coord.IsLocked())

	require.NoError(t, f.coord.UnlockWallet())
	assert.False(t, f.coord.IsLocked())
}

func TestUpdateStateSerialized(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	const writers = 50

	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := f.coord.UpdateState(ctx, func(s *State) error {
				if s.Settings.Flags == nil {
					s.Settings.Flags = make(map[string]bool)
				}
				s.Settings.Flags[fmt.Sprintf("flag-%d", i)] = true
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	st := f.coord.GetState()
	assert.Equal(t, writers, len(st.Settings.Flags))
}

func TestSubscribeOrderAndUnsubscribe(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	var mu sync.Mutex
	var order []string

	cancelA := f.coord.Subscribe(func(st State) {
		mu.Lock()
		order = append(order, "a")
		mu.Unlock()
	})
	f.coord.Subscribe(func(st State) {
		mu.Lock()
		order = append(order, "b")
		mu.Unlock()
	})

	f.coord.Touch(ctx)

	mu.Lock()
	require.Equal(t, []string{"a", "b"}, order)
	order = nil
	mu.Unlock()

	cancelA()
	f.coord.Touch(ctx)

	mu.Lock()
	assert.Equal(t, []string{"b"}, order)
	mu.Unlock()
}

func TestPanickingListenerDoesNotBlockOthers(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	notified := 0
	f.coord.Subscribe(func(st State) { panic("bad listener") })
	f.coord.Subscribe(func(st State) { notified++ })

	f.coord.Touch(ctx)

	assert.Equal(t, 1, notified)
}

func TestUpdateTransactionStatusLifecycle(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	tx, err := f.coord.AddTransaction(ctx, wltypes.Transaction{From: "k:aa", ChainID: "0"})
	require.NoError(t, err)

	require.NoError(t, f.coord.UpdateTransactionStatus(ctx, tx.ID, wltypes.TxStatus_Submitted, nil))

	result := &wltypes.TxResult{Status: wltypes.TxStatus_Success}
	require.NoError(t, f.coord.UpdateTransactionStatus(ctx, tx.ID, wltypes.TxStatus_Success, result))

	// re-applying the identical terminal update is a no-op
	require.NoError(t, f.coord.UpdateTransactionStatus(ctx, tx.ID, wltypes.TxStatus_Success, result))

	// but any other transition out of a terminal status is rejected
	err = f.coord.UpdateTransactionStatus(ctx, tx.ID, wltypes.TxStatus_Failure, nil)
	require.Error(t, err)

	st := f.coord.GetState()
	require.Equal(t, 1, len(st.Transactions))
	assert.Equal(t, wltypes.TxStatus_Success, st.Transactions[0].Status)
}

func TestUpdateTransactionStatusRejectsIllegalTransition(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	tx, err := f.coord.AddTransaction(ctx, wltypes.Transaction{From: "k:aa", ChainID: "0"})
	require.NoError(t, err)

	err = f.coord.UpdateTransactionStatus(ctx, tx.ID, wltypes.TxStatus_Pending, nil)
	assert.Error(t, err)

	err = f.coord.UpdateTransactionStatus(ctx, "no-such-id", wltypes.TxStatus_Submitted, nil)
	assert.Error(t, err)
}

func TestTransactionHistoryCapMostRecentFirst(t *testing.T) {
	f := newTestFixture(t)
	f.config.HistoryConfig.MaxTransactions = 5
	ctx := context.Background()
	f.coord.Initialize(ctx)

	var lastID string
	for i := 0; i < 7; i++ {
		tx, err := f.coord.AddTransaction(ctx, wltypes.Transaction{From: "k:aa", ChainID: "0"})
		require.NoError(t, err)
		lastID = tx.ID
	}

	st := f.coord.GetState()
	require.Equal(t, 5, len(st.Transactions))
	assert.Equal(t, lastID, st.Transactions[0].ID)
}

func TestSetSettingsTogglesGuard(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	testLog, err := tplog.CreateMainLogger(tplogcmm.ErrorLevel, tplog.JSONFormat, tplog.StdErrOutput, "")
	require.NoError(t, err)

	guard := autolock.NewGuard(tplogcmm.ErrorLevel, testLog, f.config.AutoLockConfig, f.coord, nil)
	f.coord.AttachGuard(guard)
	defer guard.Stop()

	require.NoError(t, f.coord.SetSettings(ctx, wltypes.Settings{AutoLock: true}))
	assert.True(t, guard.IsEnabled())

	require.NoError(t, f.coord.SetSettings(ctx, wltypes.Settings{AutoLock: false}))
	assert.False(t, guard.IsEnabled())

	got, found, err := f.store.GetSettings(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, got.AutoLock)
}

// failingStore wraps a real record store and fails settings writes on demand.
type failingStore struct {
	store.RecordStore
	failSettings bool
}

func (f *failingStore) SaveSettings(ctx context.Context, s wltypes.Settings) error {
	if f.failSettings {
		return errors.New("disk full")
	}
	return f.RecordStore.SaveSettings(ctx, s)
}

func TestSettingsPersistenceFailureRollsBack(t *testing.T) {
	testLog, err := tplog.CreateMainLogger(tplogcmm.ErrorLevel, tplog.JSONFormat, tplog.StdErrOutput, "")
	require.NoError(t, err)

	config := configuration.DefConfiguration()
	backend := store.NewBackend(store.BackendType_Memdb, testLog, "", "")
	failing := &failingStore{RecordStore: store.NewRecordStore(tplogcmm.ErrorLevel, testLog, backend)}
	handler := werror.NewHandler(tplogcmm.ErrorLevel, testLog, config.HistoryConfig.MaxErrors, nil)

	coord := NewCoordinator(tplogcmm.ErrorLevel, testLog, config, failing, &nullSource{}, handler, nil)
	t.Cleanup(func() { coord.TransactionManager().Stop() })

	ctx := context.Background()
	coord.Initialize(ctx)
	before := coord.GetState()

	notified := 0
	unsub := coord.Subscribe(func(s State) { notified++ })
	defer unsub()

	next := before.Settings
	next.ShowTestNetworks = !next.ShowTestNetworks

	failing.failSettings = true
	err = coord.SetSettings(ctx, next)
	require.Error(t, err)

	// pre-update state stays and no subscriber ever saw the failed update
	assert.Equal(t, 0, notified)
	assert.Equal(t, before.Settings, coord.GetState().Settings)

	failing.failSettings = false
	require.NoError(t, coord.SetSettings(ctx, next))
	assert.Equal(t, 1, notified)
	assert.Equal(t, next, coord.GetState().Settings)
}

func TestSetActiveNetwork(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	require.NoError(t, f.coord.SetActiveNetwork(ctx, "testnet04"))
	st := f.coord.GetState()
	require.NotNil(t, st.ActiveNetwork)
	assert.Equal(t, "testnet04", st.ActiveNetwork.ID)

	assert.Error(t, f.coord.SetActiveNetwork(ctx, "devnet99"))
}

func TestPendingTransactionRejectFlow(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	draft := wltypes.Transaction{From: "k:aa", ChainID: "0", Capability: "coin.TRANSFER"}
	require.NoError(t, f.coord.SetPendingTransaction(ctx, draft, []byte(`{"cmd":"transfer"}`)))

	st := f.coord.GetState()
	require.NotNil(t, st.PendingTransaction)
	assert.Equal(t, wltypes.Screen_Sign, st.CurrentScreen)

	require.NoError(t, f.coord.RejectPendingTransaction(ctx))

	st = f.coord.GetState()
	assert.Nil(t, st.PendingTransaction)
	require.Equal(t, 1, len(st.Transactions))
	assert.Equal(t, wltypes.TxStatus_Rejected, st.Transactions[0].Status)

	assert.Error(t, f.coord.RejectPendingTransaction(ctx))
}

func TestPendingTransactionApproveFlow(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	created, err := f.coord.AccountRegistry().Create(ctx, tpcrtypes.CryptType_Ed25519, "signer", "0")
	require.NoError(t, err)
	f.coord.Initialize(ctx)
	require.NoError(t, f.coord.SetSelectedAccount(ctx, created.Address))

	draft := wltypes.Transaction{From: string(created.Address), ChainID: "0"}
	require.NoError(t, f.coord.SetPendingTransaction(ctx, draft, []byte(`{"cmd":"transfer"}`)))

	tx, err := f.coord.ApprovePendingTransaction(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, tx.Hash)
	assert.Equal(t, wltypes.TxStatus_Submitted, tx.Status)
	assert.True(t, f.coord.TransactionManager().HasPoll(tx.ID))

	st := f.coord.GetState()
	assert.Nil(t, st.PendingTransaction)
	assert.Equal(t, wltypes.Screen_Transactions, st.CurrentScreen)
}

func TestApproveWithoutPendingFails(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	_, err := f.coord.ApprovePendingTransaction(ctx)
	assert.Error(t, err)
}

func TestResetConnectionState(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	require.NoError(t, f.coord.SetPendingTransaction(ctx, wltypes.Transaction{From: "k:aa", ChainID: "0"}, nil))
	require.NoError(t, f.coord.ResetConnectionState(ctx))

	st := f.coord.GetState()
	assert.Nil(t, st.PendingTransaction)
	assert.Equal(t, wltypes.Screen_Accounts, st.CurrentScreen)
}

func TestClearAllData(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	require.NoError(t, f.coord.AddAccount(ctx, testAccount(1)))
	_, err := f.coord.AddTransaction(ctx, wltypes.Transaction{From: "k:aa", ChainID: "0"})
	require.NoError(t, err)

	require.NoError(t, f.coord.ClearAllData(ctx))

	st := f.coord.GetState()
	assert.Empty(t, st.Accounts)
	assert.Nil(t, st.SelectedAccount)
	assert.Empty(t, st.Transactions)
	require.NotNil(t, st.ActiveNetwork)

	stored, err := f.store.GetKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestGetStateMirrorsHandledErrors(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	f.handler.Handle(werror.New(werror.ErrCode_NetworkError, "rpc unreachable", werror.Severity_Medium, false), nil)

	st := f.coord.GetState()
	require.Equal(t, 1, len(st.Errors))
	assert.Equal(t, werror.ErrCode_NetworkError, st.Errors[0].Code)
}

func TestExportAccountRequiresUnlocked(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	created, err := f.coord.AccountRegistry().Create(ctx, tpcrtypes.CryptType_Ed25519, "exportable", "0")
	require.NoError(t, err)

	exported, err := f.coord.ExportAccount(ctx, created.Address)
	require.NoError(t, err)
	assert.Equal(t, created.PrivateKey, exported)

	require.NoError(t, f.coord.LockWallet())

	_, err = f.coord.ExportAccount(ctx, created.Address)
	require.Error(t, err)

	we, ok := err.(*werror.WalletError)
	require.True(t, ok)
	assert.Equal(t, werror.ErrCode_PermissionDenied, we.Code)
}

func TestSetCurrentScreenValidation(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.coord.Initialize(ctx)

	require.NoError(t, f.coord.SetCurrentScreen(ctx, wltypes.Screen_Networks))
	assert.Equal(t, wltypes.Screen_Networks, f.coord.GetState().CurrentScreen)

	assert.Error(t, f.coord.SetCurrentScreen(ctx, wltypes.Screen("lobby")))
}
