package werror

import (
	"sync"

	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
)

const (
	MOD_NAME = "errorhandler"

	DefaultErrorLogCap = 100
)

// RecoveryStrategy is an automated remediation for one error code. CanRecover
// is consulted before Recover runs.
type RecoveryStrategy struct {
	CanRecover func(we *WalletError) bool
	Recover    func(we *WalletError) error
}

// Emitter forwards an unrecovered error outward for UI consumption.
type Emitter func(we *WalletError)

type Handler struct {
	log  tplog.Logger
	emit Emitter

	mu         sync.Mutex
	cap        int
	errLog     []*WalletError
	strategies map[ErrorCode]RecoveryStrategy
}

func NewHandler(level tplogcmm.LogLevel, log tplog.Logger, cap int, emit Emitter) *Handler {
	hLog := tplog.CreateModuleLogger(level, MOD_NAME, log)

	if cap <= 0 {
		cap = DefaultErrorLogCap
	}

	return &Handler{
		log:        hLog,
		emit:       emit,
		cap:        cap,
		strategies: make(map[ErrorCode]RecoveryStrategy),
	}
}

func (h *Handler) RegisterRecovery(code ErrorCode, strategy RecoveryStrategy) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.strategies[code] = strategy
}

// Handle normalizes err, appends it to the bounded error log, attempts a
// registered recovery and, if the error stays unrecovered, emits it outward.
// The normalized error is returned so call sites can re-raise it.
func (h *Handler) Handle(err error, context map[string]interface{}) *WalletError {
	we := Classify(err)
	if we == nil {
		return nil
	}
	if len(context) > 0 {
		if we.Context == nil {
			we.Context = make(map[string]interface{}, len(context))
		}
		for k, v := range context {
			we.Context[k] = v
		}
	}

	h.append(we)
	h.log.Errorf("handled wallet error: code=%s severity=%s msg=%s", we.Code, we.Severity, we.Message)

	if h.tryRecover(we) {
		return we
	}

	if h.emit != nil {
		h.emit(we)
	}

	return we
}

func (h *Handler) append(we *WalletError) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.errLog = append(h.errLog, we)
	if len(h.errLog) > h.cap {
		h.errLog = h.errLog[len(h.errLog)-h.cap:]
	}
}

func (h *Handler) tryRecover(we *WalletError) bool {
	if !we.Recoverable {
		return false
	}

	h.mu.Lock()
	strategy, ok := h.strategies[we.Code]
	h.mu.Unlock()
	if !ok {
		return false
	}

	if strategy.CanRecover != nil && !strategy.CanRecover(we) {
		return false
	}

	if err := strategy.Recover(we); err != nil {
		h.log.Warnf("recovery for %s failed: %v", we.Code, err)
		return false
	}

	h.log.Infof("recovered from %s", we.Code)
	return true
}

// Errors returns a snapshot of the logged errors, oldest first.
func (h *Handler) Errors() []*WalletError {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*WalletError, len(h.errLog))
	copy(out, h.errLog)
	return out
}

// GetErrorStats derives the per-code counts from the current log.
func (h *Handler) GetErrorStats() map[ErrorCode]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := make(map[ErrorCode]int)
	for _, we := range h.errLog {
		stats[we.Code]++
	}
	return stats
}
