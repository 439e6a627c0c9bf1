package eventhub

import (
	tpcrtypes "github.com/KaviraWallet/kavira/crypt/types"
	wltypes "github.com/KaviraWallet/kavira/wallet/types"
)

// LockEvent carries lock state transitions, including timer-forced ones.
type LockEvent struct {
	Locked bool
	Auto   bool
}

type DataClearedEvent struct{}

type NavigateEvent struct {
	Screen wltypes.Screen
}

type AccountSelectEvent struct {
	Address tpcrtypes.Address
}

type NetworkChangeEvent struct {
	NetworkID string
}

// SignRequestEvent holds the unsigned command awaiting approval.
type SignRequestEvent struct {
	Draft   wltypes.Transaction
	Command []byte
}

type SignDecisionEvent struct {
	Approved bool
}

type ConnectEvent struct {
	Origin string
}

type ActivityEvent struct {
	Kind string
}
