package autolock

import (
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"

	"github.com/KaviraWallet/kavira/configuration"
	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
)

const (
	MOD_NAME = "autolock"
)

// Locker is the slice of the session coordinator the guard needs.
type Locker interface {
	LockWallet() error
	IsLocked() bool
}

// Guard forces a wallet lock after a span of inactivity. It keeps exactly one
// timer; every accepted activity signal rewinds it to the full timeout.
// Activity intake is throttled through a fixed-window rate limiter so the
// handler runs at most once per window regardless of signal volume.
type Guard struct {
	log     tplog.Logger
	config  *configuration.AutoLockConfiguration
	locker  Locker
	onLock  func() // auto-lock signal emission
	kinds   mapset.Set
	limiter *RateLimiter
	now     func() time.Time

	mu           sync.Mutex
	timer        *time.Timer
	lastActivity time.Time
	enabled      bool
}

func NewGuard(level tplogcmm.LogLevel, log tplog.Logger, config *configuration.AutoLockConfiguration, locker Locker, onLock func()) *Guard {
	gLog := tplog.CreateModuleLogger(level, MOD_NAME, log)
	conf := config.Check()

	kinds := mapset.NewSet()
	for _, k := range conf.ActivityKinds {
		kinds.Add(k)
	}

	return &Guard{
		log:     gLog,
		config:  conf,
		locker:  locker,
		onLock:  onLock,
		kinds:   kinds,
		limiter: NewRateLimiter(conf.ActivityWindow),
		now:     time.Now,
	}
}

// Start arms the guard: the timer begins at the full timeout.
func (g *Guard) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.enabled {
		return
	}
	g.enabled = true
	g.lastActivity = g.now()
	g.timer = time.AfterFunc(g.config.LockTimeout, g.fire)
	g.log.Infof("auto-lock armed, timeout=%s", g.config.LockTimeout)
}

// Stop tears down the timer and stops accepting activity. Re-arming later is
// done with Start.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.enabled = false
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.limiter.Reset()
	g.log.Info("auto-lock disarmed")
}

// SetEnabled follows the autoLock settings flag: disabling tears everything
// down, re-enabling re-establishes the timer.
func (g *Guard) SetEnabled(enabled bool) {
	if enabled {
		g.Start()
	} else {
		g.Stop()
	}
}

func (g *Guard) IsEnabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.enabled
}

// OnActivity feeds one raw activity signal into the guard and reports whether
// it was accepted. Unknown kinds are dropped; known kinds are throttled by the
// fixed window, at most one acceptance per window. An accepted signal updates
// lastActivity and, while unlocked and enabled, rewinds the timer to the full
// timeout. Callers doing further per-activity work must gate it on the return
// value so the whole activity path rides the same window.
func (g *Guard) OnActivity(kind string) bool {
	if !g.kinds.Contains(kind) {
		return false
	}
	if !g.limiter.Allow() {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastActivity = g.now()
	if g.enabled && !g.locker.IsLocked() && g.timer != nil {
		g.timer.Stop()
		g.timer = time.AfterFunc(g.config.LockTimeout, g.fire)
	}
	return true
}

// RemainingLockTime is a pure function of now-lastActivity clamped to
// [0, timeout].
func (g *Guard) RemainingLockTime() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	elapsed := g.now().Sub(g.lastActivity)
	remaining := g.config.LockTimeout - elapsed
	if remaining < 0 {
		return 0
	}
	if remaining > g.config.LockTimeout {
		return g.config.LockTimeout
	}
	return remaining
}

func (g *Guard) fire() {
	g.mu.Lock()
	enabled := g.enabled
	g.mu.Unlock()

	if !enabled || g.locker.IsLocked() {
		return
	}

	if err := g.locker.LockWallet(); err != nil {
		g.log.Errorf("auto-lock failed: %v", err)
		return
	}

	g.log.Info("wallet locked after inactivity")
	if g.onLock != nil {
		g.onLock()
	}
}
