package bridge

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set"
	"github.com/hashicorp/go-multierror"

	"github.com/KaviraWallet/kavira/autolock"
	"github.com/KaviraWallet/kavira/eventhub"
	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
	"github.com/KaviraWallet/kavira/wallet"
	wltypes "github.com/KaviraWallet/kavira/wallet/types"
	"github.com/KaviraWallet/kavira/werror"
)

const (
	MOD_NAME = "bridge"
)

type observation struct {
	obsID  string
	evName string
}

// Bridge subscribes to the inbound signal set on the event hub and maps each
// signal to exactly one coordinator or guard call. It keeps a registration
// table of its observations so Cleanup can unwind every one of them.
type Bridge struct {
	log     tplog.Logger
	hub     eventhub.EventHub
	coord   *wallet.Coordinator
	guard   *autolock.Guard
	handler *werror.Handler

	observations mapset.Set
}

func NewBridge(level tplogcmm.LogLevel, log tplog.Logger, hub eventhub.EventHub, coord *wallet.Coordinator, guard *autolock.Guard, handler *werror.Handler) *Bridge {
	bLog := tplog.CreateModuleLogger(level, MOD_NAME, log)

	return &Bridge{
		log:          bLog,
		hub:          hub,
		coord:        coord,
		guard:        guard,
		handler:      handler,
		observations: mapset.NewSet(),
	}
}

// Start registers one observer per inbound signal. A failed registration
// unwinds the ones already made and returns the failure.
func (b *Bridge) Start(ctx context.Context) error {
	table := map[string]eventhub.EventHandler{
		eventhub.EventName_Navigate:             b.onNavigate,
		eventhub.EventName_AccountSelectReq:     b.onAccountSelect,
		eventhub.EventName_NetworkChangeReq:     b.onNetworkChange,
		eventhub.EventName_SignRequested:        b.onSignRequested,
		eventhub.EventName_SignApproved:         b.onSignDecision,
		eventhub.EventName_SignRejected:         b.onSignDecision,
		eventhub.EventName_ConnectRequested:     b.onConnectRequested,
		eventhub.EventName_ConnectApproved:      b.onConnectApproved,
		eventhub.EventName_ConnectCancelled:     b.onConnectCancelled,
		eventhub.EventName_SettingsChangeReq:    b.onSettingsChange,
		eventhub.EventName_ResetConnectionState: b.onResetConnection,
		eventhub.EventName_UserActivity:         b.onUserActivity,
	}

	for evName, evHandler := range table {
		obsID, err := b.hub.Observe(ctx, evName, evHandler)
		if err != nil {
			b.log.Errorf("observe %s failed: %v", evName, err)
			if cErr := b.Cleanup(ctx); cErr != nil {
				b.log.Errorf("unwind after failed start: %v", cErr)
			}
			return err
		}
		b.observations.Add(observation{obsID: obsID, evName: evName})
	}

	b.log.Infof("bridge started: %d signals observed", b.observations.Cardinality())
	return nil
}

// Cleanup removes every registered observation. All failures are collected
// so one bad unobserve never strands the rest.
func (b *Bridge) Cleanup(ctx context.Context) error {
	var merr *multierror.Error
	for _, item := range b.observations.ToSlice() {
		obs := item.(observation)
		if err := b.hub.UnObserve(ctx, obs.obsID, obs.evName); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("unobserve %s: %w", obs.evName, err))
		}
		b.observations.Remove(item)
	}

	return merr.ErrorOrNil()
}

func (b *Bridge) report(err error, signal string) error {
	if err == nil {
		return nil
	}
	b.handler.Handle(err, map[string]interface{}{"signal": signal})
	return err
}

func (b *Bridge) onNavigate(ctx context.Context, data interface{}) error {
	ev, ok := data.(*eventhub.NavigateEvent)
	if !ok {
		return b.report(werror.NewValidation("unexpected payload for navigate"), eventhub.EventName_Navigate)
	}
	return b.report(b.coord.SetCurrentScreen(ctx, ev.Screen), eventhub.EventName_Navigate)
}

func (b *Bridge) onAccountSelect(ctx context.Context, data interface{}) error {
	ev, ok := data.(*eventhub.AccountSelectEvent)
	if !ok {
		return b.report(werror.NewValidation("unexpected payload for account select"), eventhub.EventName_AccountSelectReq)
	}
	return b.report(b.coord.SetSelectedAccount(ctx, ev.Address), eventhub.EventName_AccountSelectReq)
}

func (b *Bridge) onNetworkChange(ctx context.Context, data interface{}) error {
	ev, ok := data.(*eventhub.NetworkChangeEvent)
	if !ok {
		return b.report(werror.NewValidation("unexpected payload for network change"), eventhub.EventName_NetworkChangeReq)
	}
	return b.report(b.coord.SetActiveNetwork(ctx, ev.NetworkID), eventhub.EventName_NetworkChangeReq)
}

func (b *Bridge) onSignRequested(ctx context.Context, data interface{}) error {
	ev, ok := data.(*eventhub.SignRequestEvent)
	if !ok {
		return b.report(werror.NewValidation("unexpected payload for sign request"), eventhub.EventName_SignRequested)
	}
	return b.report(b.coord.SetPendingTransaction(ctx, ev.Draft, ev.Command), eventhub.EventName_SignRequested)
}

func (b *Bridge) onSignDecision(ctx context.Context, data interface{}) error {
	ev, ok := data.(*eventhub.SignDecisionEvent)
	if !ok {
		return b.report(werror.NewValidation("unexpected payload for sign decision"), eventhub.EventName_SignApproved)
	}
	if ev.Approved {
		_, err := b.coord.ApprovePendingTransaction(ctx)
		return b.report(err, eventhub.EventName_SignApproved)
	}
	return b.report(b.coord.RejectPendingTransaction(ctx), eventhub.EventName_SignRejected)
}

func (b *Bridge) onConnectRequested(ctx context.Context, data interface{}) error {
	ev, ok := data.(*eventhub.ConnectEvent)
	if !ok {
		return b.report(werror.NewValidation("unexpected payload for connect request"), eventhub.EventName_ConnectRequested)
	}
	b.log.Infof("connect requested from origin %s", ev.Origin)
	return b.report(b.coord.SetCurrentScreen(ctx, wltypes.Screen_Sign), eventhub.EventName_ConnectRequested)
}

func (b *Bridge) onConnectApproved(ctx context.Context, data interface{}) error {
	if _, ok := data.(*eventhub.ConnectEvent); !ok {
		return b.report(werror.NewValidation("unexpected payload for connect approval"), eventhub.EventName_ConnectApproved)
	}
	return b.report(b.coord.SetCurrentScreen(ctx, wltypes.Screen_Accounts), eventhub.EventName_ConnectApproved)
}

func (b *Bridge) onConnectCancelled(ctx context.Context, data interface{}) error {
	if _, ok := data.(*eventhub.ConnectEvent); !ok {
		return b.report(werror.NewValidation("unexpected payload for connect cancel"), eventhub.EventName_ConnectCancelled)
	}
	return b.report(b.coord.ResetConnectionState(ctx), eventhub.EventName_ConnectCancelled)
}

func (b *Bridge) onSettingsChange(ctx context.Context, data interface{}) error {
	ev, ok := data.(*wltypes.Settings)
	if !ok {
		return b.report(werror.NewValidation("unexpected payload for settings change"), eventhub.EventName_SettingsChangeReq)
	}
	return b.report(b.coord.SetSettings(ctx, *ev), eventhub.EventName_SettingsChangeReq)
}

func (b *Bridge) onResetConnection(ctx context.Context, data interface{}) error {
	if _, ok := data.(*eventhub.ConnectEvent); !ok {
		return b.report(werror.NewValidation("unexpected payload for connection reset"), eventhub.EventName_ResetConnectionState)
	}
	return b.report(b.coord.ResetConnectionState(ctx), eventhub.EventName_ResetConnectionState)
}

func (b *Bridge) onUserActivity(ctx context.Context, data interface{}) error {
	ev, ok := data.(*eventhub.ActivityEvent)
	if !ok {
		return b.report(werror.NewValidation("unexpected payload for user activity"), eventhub.EventName_UserActivity)
	}
	// dropped or throttled signals never reach the coordinator
	if !b.guard.OnActivity(ev.Kind) {
		return nil
	}
	b.coord.Touch(ctx)
	return nil
}
