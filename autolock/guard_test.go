package autolock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaviraWallet/kavira/configuration"
	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
)

type fakeLocker struct {
	mu     sync.Mutex
	locked bool
	calls  int
}

func (f *fakeLocker) LockWallet() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.locked = true
	f.calls++
	return nil
}

func (f *fakeLocker) IsLocked() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.locked
}

func (f *fakeLocker) lockCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func newTestGuard(t *testing.T, timeout time.Duration, window time.Duration, locker Locker, onLock func()) *Guard {
	testLog, err := tplog.CreateMainLogger(tplogcmm.ErrorLevel, tplog.JSONFormat, tplog.StdErrOutput, "")
	require.NoError(t, err)

	conf := &configuration.AutoLockConfiguration{
		LockTimeout:    timeout,
		ActivityWindow: window,
		ActivityKinds:  []string{"pointer", "keyboard", "scroll"},
	}
	return NewGuard(tplogcmm.ErrorLevel, testLog, conf, locker, onLock)
}

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	l := NewRateLimiterWithClock(time.Second, clock)

	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	now = now.Add(500 * time.Millisecond)
	assert.False(t, l.Allow())

	now = now.Add(500 * time.Millisecond)
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())

	l.Reset()
	assert.True(t, l.Allow())
}

func TestGuardFiresAfterTimeout(t *testing.T) {
	locker := &fakeLocker{}
	signalled := make(chan struct{}, 1)

	g := newTestGuard(t, 30*time.Millisecond, time.Millisecond, locker, func() {
		signalled <- struct{}{}
	})
	g.Start()
	defer g.Stop()

	select {
	case <-signalled:
	case <-time.After(2 * time.Second):
		t.Fatal("guard never fired")
	}

	assert.True(t, locker.IsLocked())
	assert.Equal(t, 1, locker.lockCalls())
}

func TestGuardActivityRewindsTimer(t *testing.T) {
	locker := &fakeLocker{}

	g := newTestGuard(t, 100*time.Millisecond, time.Millisecond, locker, nil)
	g.Start()
	defer g.Stop()

	// keep poking before the timeout elapses
	for i := 0; i < 10; i++ {
		time.Sleep(20 * time.Millisecond)
		g.OnActivity("pointer")
	}

	assert.False(t, locker.IsLocked())
	assert.Equal(t, 0, locker.lockCalls())
}

func TestGuardActivityAcceptance(t *testing.T) {
	locker := &fakeLocker{}

	g := newTestGuard(t, time.Minute, time.Hour, locker, nil)
	g.Start()
	defer g.Stop()

	assert.False(t, g.OnActivity("gamepad"))
	assert.True(t, g.OnActivity("pointer"))
	// same window: every further signal is dropped, whatever the kind
	assert.False(t, g.OnActivity("pointer"))
	assert.False(t, g.OnActivity("keyboard"))
}

func TestGuardIgnoresUnknownKinds(t *testing.T) {
	locker := &fakeLocker{}

	g := newTestGuard(t, time.Minute, time.Millisecond, locker, nil)
	g.Start()
	defer g.Stop()

	before := g.RemainingLockTime()
	g.OnActivity("gamepad")

	assert.LessOrEqual(t, g.RemainingLockTime(), before)
}

func TestGuardDisabledNeverFires(t *testing.T) {
	locker := &fakeLocker{}

	g := newTestGuard(t, 20*time.Millisecond, time.Millisecond, locker, nil)
	g.Start()
	g.SetEnabled(false)

	time.Sleep(80 * time.Millisecond)

	assert.False(t, locker.IsLocked())
	assert.False(t, g.IsEnabled())

	g.SetEnabled(true)
	defer g.Stop()
	assert.True(t, g.IsEnabled())
}

func TestRemainingLockTimeClamped(t *testing.T) {
	locker := &fakeLocker{}

	g := newTestGuard(t, time.Minute, time.Millisecond, locker, nil)
	g.Start()
	defer g.Stop()

	remaining := g.RemainingLockTime()
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, time.Minute)
}
