package transaction

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/subchen/go-trylock/v2"
	"lukechampine.com/frand"

	"github.com/KaviraWallet/kavira/configuration"
	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
	wltypes "github.com/KaviraWallet/kavira/wallet/types"
	"github.com/KaviraWallet/kavira/werror"
)

const (
	MOD_NAME = "transaction"

	txIDBytes = 16
)

// ResultSource fetches the current chain-side result for a submitted command
// hash. A nil result with nil error means "not yet known".
type ResultSource interface {
	FetchResult(ctx context.Context, hash string) (*wltypes.TxResult, error)
}

// StatusUpdate is what polling reports back to the owner of wallet state.
type StatusUpdate struct {
	ID     string
	Status wltypes.TxStatus
	Result *wltypes.TxResult
}

// pollEntry is one registered poll. The generation distinguishes a poll from
// a later re-registration under the same transaction id, so a superseded poll
// can never tear down its replacement.
type pollEntry struct {
	cancel context.CancelFunc
	gen    uint64
}

// Manager drives the transaction lifecycle: it validates drafts, assigns ids
// and polls the result source until a terminal status is known. It never
// touches wallet state itself; terminal outcomes are delivered through the
// update callback.
type Manager struct {
	log      tplog.Logger
	config   *configuration.TransactionConfiguration
	source   ResultSource
	onUpdate func(update StatusUpdate)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	gen         uint64
	polls       map[string]*pollEntry        // tx id -> active poll
	fetchGuards map[string]trylock.TryLocker // tx id -> in-flight fetch guard
}

func NewManager(level tplogcmm.LogLevel, log tplog.Logger, config *configuration.TransactionConfiguration, source ResultSource, onUpdate func(update StatusUpdate)) *Manager {
	mLog := tplog.CreateModuleLogger(level, MOD_NAME, log)
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		log:         mLog,
		config:      config.Check(),
		source:      source,
		onUpdate:    onUpdate,
		ctx:         ctx,
		cancel:      cancel,
		polls:       make(map[string]*pollEntry),
		fetchGuards: make(map[string]trylock.TryLocker),
	}
}

func NewTxID() string {
	return hex.EncodeToString(frand.Bytes(txIDBytes))
}

// Add validates a draft and stamps it with id, timestamp and default status.
func (m *Manager) Add(draft wltypes.Transaction) (wltypes.Transaction, error) {
	if draft.From == "" {
		return wltypes.Transaction{}, werror.NewValidation("transaction from is required")
	}
	if draft.ChainID == "" {
		return wltypes.Transaction{}, werror.NewValidation("transaction chainId is required")
	}
	if draft.Amount != nil && *draft.Amount < 0 {
		return wltypes.Transaction{}, werror.New(werror.ErrCode_InvalidTransaction, "transaction amount must not be negative", werror.Severity_Low, true)
	}
	if draft.Status == "" {
		draft.Status = wltypes.TxStatus_Pending
	}
	if !draft.Status.IsValid() {
		return wltypes.Transaction{}, werror.New(werror.ErrCode_InvalidTransaction, "unknown transaction status "+string(draft.Status), werror.Severity_Low, true)
	}

	draft.ID = NewTxID()
	draft.Timestamp = time.Now()

	return draft, nil
}

// StartPolling begins polling the result source for the transaction's hash.
// Any prior poll for the same id is cancelled first: at most one active
// polling timer per transaction id.
func (m *Manager) StartPolling(hash string, id string) {
	m.StartPollingInterval(hash, id, m.config.PollInterval)
}

func (m *Manager) StartPollingInterval(hash string, id string, interval time.Duration) {
	if hash == "" || id == "" {
		m.log.Warn("poll request missing hash or id, ignored")
		return
	}

	m.mu.Lock()
	if entry, ok := m.polls[id]; ok {
		entry.cancel()
	}
	// the fetch guard survives re-registration: a replacement poll contends
	// with the superseded poll's still-in-flight fetch on the same lock
	guard, ok := m.fetchGuards[id]
	if !ok {
		guard = trylock.New()
		m.fetchGuards[id] = guard
	}
	m.gen++
	gen := m.gen
	pollCtx, cancel := context.WithTimeout(m.ctx, m.config.MaxPollDuration)
	m.polls[id] = &pollEntry{cancel: cancel, gen: gen}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.pollLoop(pollCtx, hash, id, gen, interval, guard)
}

// StopPolling cancels the active poll for a transaction id, if any.
func (m *Manager) StopPolling(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.polls[id]; ok {
		entry.cancel()
		delete(m.polls, id)
		delete(m.fetchGuards, id)
	}
}

// HasPoll reports whether a poll is currently tracked for the id.
func (m *Manager) HasPoll(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.polls[id]
	return ok
}

// StopAllPolls cancels every active poll but keeps the manager usable for
// new transactions.
func (m *Manager) StopAllPolls() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, entry := range m.polls {
		entry.cancel()
		delete(m.polls, id)
		delete(m.fetchGuards, id)
	}
}

// Stop cancels every active poll and waits for the poll goroutines to drain.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	m.polls = make(map[string]*pollEntry)
	m.fetchGuards = make(map[string]trylock.TryLocker)
	m.mu.Unlock()
}

func (m *Manager) pollLoop(ctx context.Context, hash string, id string, gen uint64, interval time.Duration, fetchGuard trylock.TryLocker) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				m.log.Warnf("poll for tx %s exceeded max duration, expiring", id)
				m.finish(id, gen, StatusUpdate{ID: id, Status: wltypes.TxStatus_Expired})
			}
			return
		case <-ticker.C:
			// a fetch outlasting the interval, here or in a superseded poll
			// for the same id, must not stack a second one
			if !fetchGuard.TryLock(nil) {
				continue
			}
			done := m.pollOnce(ctx, hash, id, gen)
			fetchGuard.Unlock()
			if done {
				return
			}
		}
	}
}

func (m *Manager) pollOnce(ctx context.Context, hash string, id string, gen uint64) bool {
	result, err := m.source.FetchResult(ctx, hash)
	if err != nil {
		we := werror.Classify(err)
		if we.Severity == werror.Severity_Critical {
			m.log.Errorf("critical poll error for tx %s: %v", id, err)
			m.finish(id, gen, StatusUpdate{
				ID:     id,
				Status: wltypes.TxStatus_Failure,
				Result: &wltypes.TxResult{Status: wltypes.TxStatus_Failure, Data: map[string]interface{}{"error": we.Message}},
			})
			return true
		}
		m.log.Debugf("poll error for tx %s, will retry: %v", id, err)
		return false
	}
	if result == nil {
		return false
	}

	if result.Status.IsTerminal() {
		m.finish(id, gen, StatusUpdate{ID: id, Status: result.Status, Result: result})
		return true
	}

	return false
}

// finish removes the poll registration and delivers the update, but only when
// the registration still belongs to the calling poll. A stale generation means
// the poll was superseded or stopped; its result is dropped.
func (m *Manager) finish(id string, gen uint64, update StatusUpdate) {
	m.mu.Lock()
	entry, ok := m.polls[id]
	if !ok || entry.gen != gen {
		m.mu.Unlock()
		return
	}
	entry.cancel()
	delete(m.polls, id)
	delete(m.fetchGuards, id)
	m.mu.Unlock()

	if m.onUpdate != nil {
		m.onUpdate(update)
	}
}
