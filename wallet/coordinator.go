package wallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/KaviraWallet/kavira/account"
	"github.com/KaviraWallet/kavira/autolock"
	"github.com/KaviraWallet/kavira/configuration"
	tpcrtypes "github.com/KaviraWallet/kavira/crypt/types"
	"github.com/KaviraWallet/kavira/eventhub"
	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
	"github.com/KaviraWallet/kavira/settings"
	"github.com/KaviraWallet/kavira/store"
	"github.com/KaviraWallet/kavira/transaction"
	wltypes "github.com/KaviraWallet/kavira/wallet/types"
	"github.com/KaviraWallet/kavira/werror"
)

const (
	MOD_NAME = "wallet"
)

// Listener receives a full state snapshot after every applied mutation.
// Listeners must not call back into the coordinator synchronously.
type Listener func(state State)

type subscriber struct {
	id uint64
	fn Listener
}

// Coordinator is the aggregate root: it owns the canonical wallet state,
// applies validated mutations, persists through its collaborators and fans
// the new state out to subscribers. Every mutation is serialized through one
// mutex, so racing calls never interleave their merge-persist-notify
// sequences.
type Coordinator struct {
	log     tplog.Logger
	config  *configuration.Configuration
	store   store.RecordStore
	acctReg *account.Registry
	setReg  *settings.Registry
	txMgr   *transaction.Manager
	handler *werror.Handler
	hub     eventhub.EventHub
	guard   *autolock.Guard

	mu             sync.Mutex
	state          *State
	subscribers    []subscriber
	nextSubID      uint64
	pendingCommand []byte
}

func NewCoordinator(level tplogcmm.LogLevel, log tplog.Logger, config *configuration.Configuration, recordStore store.RecordStore, source transaction.ResultSource, handler *werror.Handler, hub eventhub.EventHub) *Coordinator {
	cLog := tplog.CreateModuleLogger(level, MOD_NAME, log)

	c := &Coordinator{
		log:     cLog,
		config:  config,
		store:   recordStore,
		acctReg: account.NewRegistry(level, log, recordStore),
		setReg:  settings.NewRegistry(level, log, recordStore),
		handler: handler,
		hub:     hub,
		state:   newEmptyState(),
	}
	c.txMgr = transaction.NewManager(level, log, config.TxConfig, source, c.onPollUpdate)

	return c
}

// AttachGuard hands the coordinator the auto-lock guard so settings changes
// can arm and disarm it. Called once during composition.
func (c *Coordinator) AttachGuard(guard *autolock.Guard) {
	c.guard = guard
}

func (c *Coordinator) AccountRegistry() *account.Registry {
	return c.acctReg
}

func (c *Coordinator) TransactionManager() *transaction.Manager {
	return c.txMgr
}

// Initialize loads accounts, settings, transaction history and the selected
// key from the record store. It never fails: a failing sub-collection
// degrades to empty and the error is routed through the handler, so the
// session always starts with a usable state.
func (c *Coordinator) Initialize(ctx context.Context) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := newEmptyState()

	netConf := c.config.NetworkConfig.Check()
	st.Networks = append([]wltypes.Network(nil), netConf.Networks...)
	st.ActiveNetwork = st.findNetwork(netConf.ActiveNetworkID)

	if accounts, err := c.acctReg.List(ctx); err != nil {
		c.handler.Handle(err, map[string]interface{}{"phase": "initialize", "collection": "accounts"})
	} else {
		st.Accounts = accounts
	}

	if s, err := c.setReg.Load(ctx); err != nil {
		c.handler.Handle(err, map[string]interface{}{"phase": "initialize", "collection": "settings"})
		st.Settings = wltypes.DefaultSettings()
	} else {
		st.Settings = s
	}

	if txs, err := c.store.GetTransactions(ctx); err != nil {
		c.handler.Handle(err, map[string]interface{}{"phase": "initialize", "collection": "transactions"})
	} else {
		if len(txs) > c.config.HistoryConfig.MaxTransactions {
			txs = txs[:c.config.HistoryConfig.MaxTransactions]
		}
		st.Transactions = txs
	}

	if selected, err := c.store.GetSelectedKey(ctx); err != nil {
		c.handler.Handle(err, map[string]interface{}{"phase": "initialize", "collection": "selectedKey"})
	} else if selected != tpcrtypes.UndefAddress {
		if acc := st.findAccount(string(selected)); acc != nil {
			sel := *acc
			st.SelectedAccount = &sel
		}
	}

	st.LastActivity = time.Now()
	c.state = st

	c.log.Infof("session initialized: accounts=%d transactions=%d networks=%d", len(st.Accounts), len(st.Transactions), len(st.Networks))
	return *c.snapshotLocked()
}

// GetState returns an immutable snapshot of the current state.
func (c *Coordinator) GetState() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return *c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() *State {
	snap := c.state.Clone()
	if c.handler != nil {
		errs := c.handler.Errors()
		if max := c.config.HistoryConfig.MaxErrors; len(errs) > max {
			errs = errs[len(errs)-max:]
		}
		snap.Errors = errs
	}
	return snap
}

// Subscribe registers a listener; the returned func unsubscribes it. After
// that func returns, no further notifications are delivered. Notification
// order is registration order.
func (c *Coordinator) Subscribe(fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		for i := range c.subscribers {
			if c.subscribers[i].id == id {
				c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
				break
			}
		}
	}
}

// UpdateState is the single mutation entry point. The mutate func works on a
// clone of the current state; if it returns an error, nothing is applied. A
// settings change detected after the mutation is persisted before the swap;
// if that persistence fails the pre-update state stays in place and the
// error is returned. Subscribers are notified after the swap with the same
// snapshot, so no observer ever sees a half-applied update.
func (c *Coordinator) UpdateState(ctx context.Context, mutate func(s *State) error) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.updateStateLocked(ctx, mutate)
}

func (c *Coordinator) updateStateLocked(ctx context.Context, mutate func(s *State) error) (State, error) {
	prev := c.state
	next := prev.Clone()

	if err := mutate(next); err != nil {
		return *c.snapshotLocked(), err
	}
	next.LastActivity = time.Now()

	if !reflect.DeepEqual(prev.Settings, next.Settings) {
		if err := c.setReg.Save(ctx, next.Settings); err != nil {
			// rollback: the swap never happened, nobody observed next
			return *c.snapshotLocked(), err
		}
	}

	c.state = next
	c.notifyLocked()

	return *c.snapshotLocked(), nil
}

func (c *Coordinator) notifyLocked() {
	snap := c.snapshotLocked()

	var merr *multierror.Error
	for _, sub := range c.subscribers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					merr = multierror.Append(merr, fmt.Errorf("listener %d panicked: %v", sub.id, r))
				}
			}()
			sub.fn(*snap)
		}()
	}
	if merr != nil {
		c.log.Errorf("state notification failures: %v", merr.ErrorOrNil())
	}
}

func (c *Coordinator) trig(name string, data interface{}) {
	if c.hub == nil {
		return
	}
	if err := c.hub.Trig(context.Background(), name, data); err != nil {
		c.log.Errorf("trig %s failed: %v", name, err)
	}
}

// Touch registers raw user activity: it stamps lastActivity through the
// normal mutation path.
func (c *Coordinator) Touch(ctx context.Context) {
	c.UpdateState(ctx, func(s *State) error { return nil })
}

func (c *Coordinator) SetCurrentScreen(ctx context.Context, screen wltypes.Screen) error {
	if !screen.IsValid() {
		return werror.NewValidation("unknown screen " + string(screen))
	}
	_, err := c.UpdateState(ctx, func(s *State) error {
		s.CurrentScreen = screen
		return nil
	})
	return err
}

// SetSelectedAccount selects a known account. On a locked wallet the call is
// rejected and state stays unchanged.
func (c *Coordinator) SetSelectedAccount(ctx context.Context, address tpcrtypes.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsLocked {
		return werror.New(werror.ErrCode_PermissionDenied, "wallet is locked", werror.Severity_Medium, false)
	}
	acc := c.state.findAccount(string(address))
	if acc == nil {
		return werror.New(werror.ErrCode_AccountNotFound, "no account for address "+string(address), werror.Severity_Low, false)
	}

	if err := c.store.SetSelectedKey(ctx, address); err != nil {
		return werror.NewWithCause(werror.ErrCode_StorageError, "persist selected key failed", werror.Severity_High, true, err)
	}

	selected := *acc
	_, err := c.updateStateLocked(ctx, func(s *State) error {
		s.SelectedAccount = &selected
		return nil
	})
	if err != nil {
		return err
	}

	c.trig(eventhub.EventName_AccountSelected, &selected)
	return nil
}

// AddAccount persists the account record first and only then makes it
// visible in state; the first account of a session is auto-selected.
func (c *Coordinator) AddAccount(ctx context.Context, acc wltypes.Account) error {
	if err := c.acctReg.Validate(acc); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.findAccount(string(acc.Address)) != nil {
		return werror.NewValidation("account already exists: " + string(acc.Address))
	}

	if err := c.store.SaveKey(ctx, acc); err != nil {
		return werror.NewWithCause(werror.ErrCode_StorageError, "persist account failed", werror.Severity_High, true, err)
	}

	selectIt := c.state.SelectedAccount == nil && !c.state.IsLocked
	if selectIt {
		if err := c.store.SetSelectedKey(ctx, acc.Address); err != nil {
			return werror.NewWithCause(werror.ErrCode_StorageError, "persist selected key failed", werror.Severity_High, true, err)
		}
	}

	_, err := c.updateStateLocked(ctx, func(s *State) error {
		s.Accounts = append(s.Accounts, acc)
		if selectIt {
			sel := acc
			s.SelectedAccount = &sel
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.trig(eventhub.EventName_AccountCreated, &acc)
	if selectIt {
		sel := acc
		c.trig(eventhub.EventName_AccountSelected, &sel)
	}
	return nil
}

// RemoveAccount drops an account; when the selected account is removed the
// first surviving account becomes the selection.
func (c *Coordinator) RemoveAccount(ctx context.Context, address tpcrtypes.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.findAccount(string(address)) == nil {
		return werror.New(werror.ErrCode_AccountNotFound, "no account for address "+string(address), werror.Severity_Low, false)
	}

	if err := c.acctReg.Remove(ctx, address); err != nil {
		return err
	}

	var reselected *wltypes.Account
	_, err := c.updateStateLocked(ctx, func(s *State) error {
		kept := s.Accounts[:0]
		for _, acc := range s.Accounts {
			if acc.Address != address {
				kept = append(kept, acc)
			}
		}
		s.Accounts = kept

		if s.SelectedAccount != nil && s.SelectedAccount.Address == address {
			s.SelectedAccount = nil
			if len(s.Accounts) > 0 && !s.IsLocked {
				sel := s.Accounts[0]
				s.SelectedAccount = &sel
				reselected = &sel
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	newSelected := tpcrtypes.UndefAddress
	if reselected != nil {
		newSelected = reselected.Address
	}
	if err := c.store.SetSelectedKey(ctx, newSelected); err != nil {
		c.handler.Handle(err, map[string]interface{}{"op": "removeAccount", "collection": "selectedKey"})
	}

	if reselected != nil {
		c.trig(eventhub.EventName_AccountSelected, reselected)
	}
	return nil
}

func (c *Coordinator) SetActiveNetwork(ctx context.Context, networkID string) error {
	var active wltypes.Network
	_, err := c.UpdateState(ctx, func(s *State) error {
		net := s.findNetwork(networkID)
		if net == nil {
			return werror.New(werror.ErrCode_NetworkUnavailable, "unknown network "+networkID, werror.Severity_Low, true)
		}
		active = *net
		s.ActiveNetwork = &active
		return nil
	})
	if err != nil {
		return err
	}

	c.trig(eventhub.EventName_NetworkChanged, &active)
	return nil
}

// AddTransaction validates and stores a draft; history stays most-recent-
// first and never exceeds the configured cap. A draft arriving with a known
// hash starts polling immediately.
func (c *Coordinator) AddTransaction(ctx context.Context, draft wltypes.Transaction) (wltypes.Transaction, error) {
	tx, err := c.txMgr.Add(draft)
	if err != nil {
		return wltypes.Transaction{}, err
	}

	c.mu.Lock()
	if err := c.store.SaveTransaction(ctx, tx); err != nil {
		c.mu.Unlock()
		return wltypes.Transaction{}, werror.NewWithCause(werror.ErrCode_StorageError, "persist transaction failed", werror.Severity_High, true, err)
	}

	_, err = c.updateStateLocked(ctx, func(s *State) error {
		s.Transactions = append([]wltypes.Transaction{tx}, s.Transactions...)
		if max := c.config.HistoryConfig.MaxTransactions; len(s.Transactions) > max {
			s.Transactions = s.Transactions[:max]
		}
		return nil
	})
	c.mu.Unlock()
	if err != nil {
		return wltypes.Transaction{}, err
	}

	c.trig(eventhub.EventName_TxAdded, &tx)

	if tx.Hash != "" && !tx.Status.IsTerminal() {
		c.txMgr.StartPolling(tx.Hash, tx.ID)
	}
	return tx, nil
}

// UpdateTransactionStatus applies a lifecycle transition. Re-applying the
// same terminal status with the same result is a no-op; any other transition
// out of a terminal status is rejected. Reaching a terminal status stops the
// transaction's poll.
func (c *Coordinator) UpdateTransactionStatus(ctx context.Context, id string, status wltypes.TxStatus, result *wltypes.TxResult) error {
	c.mu.Lock()

	cur := c.state.findTransaction(id)
	if cur == nil {
		c.mu.Unlock()
		return werror.New(werror.ErrCode_InvalidTransaction, "no transaction with id "+id, werror.Severity_Low, false)
	}

	if cur.Status.IsTerminal() {
		same := cur.Status == status && reflect.DeepEqual(cur.Result, result)
		c.mu.Unlock()
		if same {
			return nil
		}
		return werror.New(werror.ErrCode_InvalidTransaction, fmt.Sprintf("transaction %s already terminal (%s)", id, cur.Status), werror.Severity_Low, false)
	}
	if !cur.Status.CanTransition(status) {
		c.mu.Unlock()
		return werror.New(werror.ErrCode_InvalidTransaction, fmt.Sprintf("illegal transition %s -> %s", cur.Status, status), werror.Severity_Low, false)
	}

	updated := *cur
	updated.Status = status
	updated.Result = result
	updated.UpdatedAt = time.Now()

	if err := c.store.SaveTransaction(ctx, updated); err != nil {
		c.mu.Unlock()
		return werror.NewWithCause(werror.ErrCode_StorageError, "persist transaction failed", werror.Severity_High, true, err)
	}

	_, err := c.updateStateLocked(ctx, func(s *State) error {
		if tx := s.findTransaction(id); tx != nil {
			*tx = updated
		}
		return nil
	})
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if status.IsTerminal() {
		c.txMgr.StopPolling(id)
	}

	c.trig(eventhub.EventName_TxUpdated, &updated)
	return nil
}

func (c *Coordinator) onPollUpdate(update transaction.StatusUpdate) {
	if err := c.UpdateTransactionStatus(context.Background(), update.ID, update.Status, update.Result); err != nil {
		c.handler.Handle(err, map[string]interface{}{"op": "pollUpdate", "txId": update.ID})
	}
}

// LockWallet forces the locked state: selection cleared, accounts view.
func (c *Coordinator) LockWallet() error {
	_, err := c.UpdateState(context.Background(), func(s *State) error {
		s.IsLocked = true
		s.SelectedAccount = nil
		s.CurrentScreen = wltypes.Screen_Accounts
		return nil
	})
	if err != nil {
		return err
	}

	c.trig(eventhub.EventName_WalletLocked, &eventhub.LockEvent{Locked: true})
	return nil
}

func (c *Coordinator) UnlockWallet() error {
	_, err := c.UpdateState(context.Background(), func(s *State) error {
		s.IsLocked = false
		return nil
	})
	if err != nil {
		return err
	}

	c.trig(eventhub.EventName_WalletUnlocked, &eventhub.LockEvent{Locked: false})
	return nil
}

func (c *Coordinator) IsLocked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state.IsLocked
}

// SetSettings persists and applies new settings; the auto-lock guard follows
// the autoLock flag.
func (c *Coordinator) SetSettings(ctx context.Context, s wltypes.Settings) error {
	if err := c.setReg.Validate(s); err != nil {
		return err
	}

	next := s
	_, err := c.UpdateState(ctx, func(st *State) error {
		st.Settings = next
		return nil
	})
	if err != nil {
		return err
	}

	if c.guard != nil {
		c.guard.SetEnabled(next.AutoLock)
	}

	c.trig(eventhub.EventName_SettingsChanged, &next)
	return nil
}

// ExportAccount reveals the hex private key of a stored account. A locked
// wallet never exports key material.
func (c *Coordinator) ExportAccount(ctx context.Context, address tpcrtypes.Address) (string, error) {
	if c.IsLocked() {
		return "", werror.New(werror.ErrCode_PermissionDenied, "wallet is locked", werror.Severity_Medium, false)
	}
	return c.acctReg.Export(ctx, address)
}

// SetPendingTransaction parks an unsigned request awaiting approval.
func (c *Coordinator) SetPendingTransaction(ctx context.Context, draft wltypes.Transaction, command []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsLocked {
		return werror.New(werror.ErrCode_PermissionDenied, "wallet is locked", werror.Severity_Medium, false)
	}

	c.pendingCommand = command
	_, err := c.updateStateLocked(ctx, func(s *State) error {
		pend := draft
		s.PendingTransaction = &pend
		s.CurrentScreen = wltypes.Screen_Sign
		return nil
	})
	return err
}

// ApprovePendingTransaction signs the parked command with the selected
// account, records the submitted transaction and starts polling its hash.
func (c *Coordinator) ApprovePendingTransaction(ctx context.Context) (wltypes.Transaction, error) {
	c.mu.Lock()
	if c.state.PendingTransaction == nil {
		c.mu.Unlock()
		return wltypes.Transaction{}, werror.NewValidation("no pending transaction to approve")
	}
	if c.state.SelectedAccount == nil {
		c.mu.Unlock()
		return wltypes.Transaction{}, werror.New(werror.ErrCode_AccountNotFound, "no selected account to sign with", werror.Severity_Low, false)
	}
	draft := *c.state.PendingTransaction
	signer := c.state.SelectedAccount.Address
	command := c.pendingCommand
	c.mu.Unlock()

	sigInfo, err := c.acctReg.Sign(ctx, signer, command)
	if err != nil {
		return wltypes.Transaction{}, err
	}

	digest := sha256.Sum256(append(command, sigInfo.SignData...))
	draft.Hash = hex.EncodeToString(digest[:])
	draft.Status = wltypes.TxStatus_Submitted

	tx, err := c.AddTransaction(ctx, draft)
	if err != nil {
		return wltypes.Transaction{}, err
	}

	c.mu.Lock()
	c.pendingCommand = nil
	_, clearErr := c.updateStateLocked(ctx, func(s *State) error {
		s.PendingTransaction = nil
		s.CurrentScreen = wltypes.Screen_Transactions
		return nil
	})
	c.mu.Unlock()
	if clearErr != nil {
		return tx, clearErr
	}

	return tx, nil
}

// RejectPendingTransaction clears the parked request and records it as a
// rejected transaction.
func (c *Coordinator) RejectPendingTransaction(ctx context.Context) error {
	c.mu.Lock()
	if c.state.PendingTransaction == nil {
		c.mu.Unlock()
		return werror.NewValidation("no pending transaction to reject")
	}
	draft := *c.state.PendingTransaction
	c.pendingCommand = nil
	_, err := c.updateStateLocked(ctx, func(s *State) error {
		s.PendingTransaction = nil
		s.CurrentScreen = wltypes.Screen_Accounts
		return nil
	})
	c.mu.Unlock()
	if err != nil {
		return err
	}

	draft.Status = wltypes.TxStatus_Rejected
	if _, err := c.AddTransaction(ctx, draft); err != nil {
		return err
	}
	return nil
}

// ResetConnectionState abandons any pending approval flow.
func (c *Coordinator) ResetConnectionState(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pendingCommand = nil
	_, err := c.updateStateLocked(ctx, func(s *State) error {
		s.PendingTransaction = nil
		s.CurrentScreen = wltypes.Screen_Accounts
		return nil
	})
	return err
}

// ClearAllData wipes every record and resets the session to a fresh state.
// Active polls are torn down; the manager stays usable for new transactions.
func (c *Coordinator) ClearAllData(ctx context.Context) error {
	c.txMgr.StopAllPolls()

	c.mu.Lock()
	if err := c.store.ClearAllData(ctx); err != nil {
		c.mu.Unlock()
		return werror.NewWithCause(werror.ErrCode_StorageError, "clear wallet data failed", werror.Severity_Critical, false, err)
	}

	netConf := c.config.NetworkConfig.Check()
	_, err := c.updateStateLocked(ctx, func(s *State) error {
		fresh := newEmptyState()
		fresh.Networks = append([]wltypes.Network(nil), netConf.Networks...)
		fresh.ActiveNetwork = fresh.findNetwork(netConf.ActiveNetworkID)
		*s = *fresh
		return nil
	})
	c.mu.Unlock()
	if err != nil {
		return err
	}

	c.trig(eventhub.EventName_WalletDataCleared, &eventhub.DataClearedEvent{})
	return nil
}
