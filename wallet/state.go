package wallet

import (
	"time"

	wltypes "github.com/KaviraWallet/kavira/wallet/types"
	"github.com/KaviraWallet/kavira/werror"
)

// State is the single aggregate a session owns. It is only ever replaced as
// a whole by the coordinator; nothing outside the coordinator mutates it.
type State struct {
	CurrentScreen      wltypes.Screen
	Accounts           []wltypes.Account
	SelectedAccount    *wltypes.Account
	Networks           []wltypes.Network
	ActiveNetwork      *wltypes.Network
	Transactions       []wltypes.Transaction // most-recent-first, capped
	PendingTransaction *wltypes.Transaction
	IsLocked           bool
	LastActivity       time.Time
	Settings           wltypes.Settings
	Errors             []*werror.WalletError // mirror of the error handler's log
}

func newEmptyState() *State {
	return &State{
		CurrentScreen: wltypes.Screen_Accounts,
		Settings:      wltypes.DefaultSettings(),
		LastActivity:  time.Now(),
	}
}

// Clone deep-copies the aggregate so observers can never reach live state.
func (s *State) Clone() *State {
	next := *s

	if s.Accounts != nil {
		next.Accounts = make([]wltypes.Account, len(s.Accounts))
		copy(next.Accounts, s.Accounts)
	}
	if s.SelectedAccount != nil {
		sel := *s.SelectedAccount
		next.SelectedAccount = &sel
	}
	if s.Networks != nil {
		next.Networks = make([]wltypes.Network, len(s.Networks))
		copy(next.Networks, s.Networks)
	}
	if s.ActiveNetwork != nil {
		act := *s.ActiveNetwork
		next.ActiveNetwork = &act
	}
	if s.Transactions != nil {
		next.Transactions = make([]wltypes.Transaction, len(s.Transactions))
		copy(next.Transactions, s.Transactions)
	}
	if s.PendingTransaction != nil {
		pend := *s.PendingTransaction
		next.PendingTransaction = &pend
	}
	if s.Settings.Flags != nil {
		next.Settings.Flags = make(map[string]bool, len(s.Settings.Flags))
		for k, v := range s.Settings.Flags {
			next.Settings.Flags[k] = v
		}
	}
	if s.Errors != nil {
		next.Errors = make([]*werror.WalletError, len(s.Errors))
		copy(next.Errors, s.Errors)
	}

	return &next
}

func (s *State) findAccount(address string) *wltypes.Account {
	for i := range s.Accounts {
		if string(s.Accounts[i].Address) == address {
			return &s.Accounts[i]
		}
	}
	return nil
}

func (s *State) findNetwork(id string) *wltypes.Network {
	for i := range s.Networks {
		if s.Networks[i].ID == id {
			return &s.Networks[i]
		}
	}
	return nil
}

func (s *State) findTransaction(id string) *wltypes.Transaction {
	for i := range s.Transactions {
		if s.Transactions[i].ID == id {
			return &s.Transactions[i]
		}
	}
	return nil
}
