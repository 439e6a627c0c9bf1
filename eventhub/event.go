package eventhub

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	tplog "github.com/KaviraWallet/kavira/log"
)

// Outbound signals produced by the session coordinator and its services.
const (
	EventName_AccountSelected   = "AccountSelected"
	EventName_AccountCreated    = "AccountCreated"
	EventName_NetworkChanged    = "NetworkChanged"
	EventName_WalletLocked      = "WalletLocked"
	EventName_WalletUnlocked    = "WalletUnlocked"
	EventName_SettingsChanged   = "SettingsChanged"
	EventName_WalletDataCleared = "WalletDataCleared"
	EventName_TxAdded           = "TxAdded"
	EventName_TxUpdated         = "TxUpdated"
	EventName_WalletError       = "WalletError"
	EventName_AutoLocked        = "AutoLocked"
)

// Inbound signals consumed by the event bridge.
const (
	EventName_Navigate             = "Navigate"
	EventName_AccountSelectReq     = "AccountSelectRequest"
	EventName_NetworkChangeReq     = "NetworkChangeRequest"
	EventName_SignRequested        = "SignRequested"
	EventName_SignApproved         = "SignApproved"
	EventName_SignRejected         = "SignRejected"
	EventName_ConnectRequested     = "ConnectRequested"
	EventName_ConnectApproved      = "ConnectApproved"
	EventName_ConnectCancelled     = "ConnectCancelled"
	EventName_SettingsChangeReq    = "SettingsChangeRequest"
	EventName_ResetConnectionState = "ResetConnectionState"
	EventName_UserActivity         = "UserActivity"
)

type EventTrigger interface {
	Trig(ctx context.Context, name string, data interface{}) error
}

type EventHandler func(ctx context.Context, data interface{}) error

type EventObserver interface {
	Observe(ctx context.Context, evName string, evHandler EventHandler) (string, error) //return observation id
	UnObserve(ctx context.Context, obsID string, evName string) error
}

type EventMsg struct {
	Name string
	Data interface{}
}

type Event struct {
	Name        string
	DataType    string
	sync        sync.RWMutex
	handlerList map[string]EventHandler //observation id -> EventHandler
}

func (ev *Event) addObserver(obsID string, evHandler EventHandler) error {
	ev.sync.Lock()
	defer ev.sync.Unlock()

	if _, ok := ev.handlerList[obsID]; ok {
		return fmt.Errorf("duplicated observation id: %s", obsID)
	}

	ev.handlerList[obsID] = evHandler

	return nil
}

func (ev *Event) removeObserver(obsID string) error {
	ev.sync.Lock()
	defer ev.sync.Unlock()

	delete(ev.handlerList, obsID)

	return nil
}

func (ev *Event) process(log tplog.Logger, ctx context.Context, data interface{}) error {
	if reflect.TypeOf(data).String() != ev.DataType {
		err := fmt.Errorf("invalid event data type: expected %s, actual %s", ev.DataType, reflect.TypeOf(data).String())
		log.Errorf("%v", err)
		return err
	}

	ev.sync.RLock()
	defer ev.sync.RUnlock()

	for _, evHandler := range ev.handlerList {
		go evHandler(ctx, data)
	}

	return nil
}
