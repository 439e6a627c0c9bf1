package eventhub

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"reflect"

	"github.com/AsynkronIT/protoactor-go/actor"

	tplog "github.com/KaviraWallet/kavira/log"
	tplogcmm "github.com/KaviraWallet/kavira/log/common"
	wltypes "github.com/KaviraWallet/kavira/wallet/types"
	"github.com/KaviraWallet/kavira/werror"
)

type EventHub interface {
	Start(sysActor *actor.ActorSystem) error
	Stop()
	Trig(ctx context.Context, name string, data interface{}) error
	Observe(ctx context.Context, evName string, evHandler EventHandler) (string, error) //return observation id
	UnObserve(ctx context.Context, obsID string, evName string) error
}

type eventHub struct {
	log       tplog.Logger
	sysActor  *actor.ActorSystem
	evPID     *actor.PID
	evManager *eventManager
}

func NewEventHub(level tplogcmm.LogLevel, log tplog.Logger) EventHub {
	logEVActor := tplog.CreateModuleLogger(level, "EventHub", log)

	evManager := newEventManager()

	evManager.registerEvent(EventName_AccountSelected, reflect.TypeOf(&wltypes.Account{}).String())
	evManager.registerEvent(EventName_AccountCreated, reflect.TypeOf(&wltypes.Account{}).String())
	evManager.registerEvent(EventName_NetworkChanged, reflect.TypeOf(&wltypes.Network{}).String())
	evManager.registerEvent(EventName_WalletLocked, reflect.TypeOf(&LockEvent{}).String())
	evManager.registerEvent(EventName_WalletUnlocked, reflect.TypeOf(&LockEvent{}).String())
	evManager.registerEvent(EventName_AutoLocked, reflect.TypeOf(&LockEvent{}).String())
	evManager.registerEvent(EventName_SettingsChanged, reflect.TypeOf(&wltypes.Settings{}).String())
	evManager.registerEvent(EventName_WalletDataCleared, reflect.TypeOf(&DataClearedEvent{}).String())
	evManager.registerEvent(EventName_TxAdded, reflect.TypeOf(&wltypes.Transaction{}).String())
	evManager.registerEvent(EventName_TxUpdated, reflect.TypeOf(&wltypes.Transaction{}).String())
	evManager.registerEvent(EventName_WalletError, reflect.TypeOf(&werror.WalletError{}).String())

	evManager.registerEvent(EventName_Navigate, reflect.TypeOf(&NavigateEvent{}).String())
	evManager.registerEvent(EventName_AccountSelectReq, reflect.TypeOf(&AccountSelectEvent{}).String())
	evManager.registerEvent(EventName_NetworkChangeReq, reflect.TypeOf(&NetworkChangeEvent{}).String())
	evManager.registerEvent(EventName_SignRequested, reflect.TypeOf(&SignRequestEvent{}).String())
	evManager.registerEvent(EventName_SignApproved, reflect.TypeOf(&SignDecisionEvent{}).String())
	evManager.registerEvent(EventName_SignRejected, reflect.TypeOf(&SignDecisionEvent{}).String())
	evManager.registerEvent(EventName_ConnectRequested, reflect.TypeOf(&ConnectEvent{}).String())
	evManager.registerEvent(EventName_ConnectApproved, reflect.TypeOf(&ConnectEvent{}).String())
	evManager.registerEvent(EventName_ConnectCancelled, reflect.TypeOf(&ConnectEvent{}).String())
	evManager.registerEvent(EventName_SettingsChangeReq, reflect.TypeOf(&wltypes.Settings{}).String())
	evManager.registerEvent(EventName_ResetConnectionState, reflect.TypeOf(&ConnectEvent{}).String())
	evManager.registerEvent(EventName_UserActivity, reflect.TypeOf(&ActivityEvent{}).String())

	return &eventHub{
		log:       logEVActor,
		evManager: evManager,
	}
}

func (hub *eventHub) Start(sysActor *actor.ActorSystem) error {
	evPID, err := createEventActor(hub.log, sysActor, hub.evManager)
	if err != nil {
		hub.log.Errorf("create event actor error: %v", err)
		return err
	}

	hub.sysActor = sysActor
	hub.evPID = evPID
	return nil
}

func (hub *eventHub) Trig(ctx context.Context, name string, data interface{}) error {
	if hub.sysActor == nil || hub.evPID == nil {
		return fmt.Errorf("event hub not started, can't trig event %s", name)
	}
	hub.sysActor.Root.Send(hub.evPID, &EventMsg{name, data})

	return nil
}

func (hub *eventHub) generateObsID() (string, error) {
	r := make([]byte, 10)
	_, err := rand.Read(r)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(r), nil
}

func (hub *eventHub) Observe(ctx context.Context, evName string, evHandler EventHandler) (string, error) {
	obsID, err := hub.generateObsID()
	if err != nil {
		hub.log.Errorf("Can't generate observation id: %v", err)
		return "", err
	}

	return obsID, hub.evManager.addEvObserver(obsID, evName, evHandler)
}

func (hub *eventHub) UnObserve(ctx context.Context, obsID string, evName string) error {
	return hub.evManager.removeEvObserver(obsID, evName)
}

func (hub *eventHub) Stop() {
	if hub.sysActor == nil || hub.evPID == nil {
		return
	}
	hub.sysActor.Root.Poison(hub.evPID)
}
