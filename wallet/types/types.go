package types

import (
	tpcrtypes "github.com/KaviraWallet/kavira/crypt/types"
)

// Screen identifies one of the fixed wallet views.
type Screen string

const (
	Screen_Accounts     Screen = "accounts"
	Screen_Networks     Screen = "networks"
	Screen_Transactions Screen = "transactions"
	Screen_Settings     Screen = "settings"
	Screen_Sign         Screen = "sign"
)

func (s Screen) IsValid() bool {
	switch s {
	case Screen_Accounts, Screen_Networks, Screen_Transactions, Screen_Settings, Screen_Sign:
		return true
	default:
		return false
	}
}

type Account struct {
	Address    tpcrtypes.Address   `json:"address"`
	PublicKey  string              `json:"publicKey"`
	PrivateKey string              `json:"privateKey,omitempty"`
	Name       string              `json:"name"`
	ChainID    string              `json:"chainId"`
	Balance    float64             `json:"balance"`
	CryptType  tpcrtypes.CryptType `json:"cryptType"`
}

type Network struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Host      string `json:"host"`
	IsTestnet bool   `json:"isTestnet"`
}

type Settings struct {
	AutoLock         bool            `json:"autoLock"`
	ShowTestNetworks bool            `json:"showTestNetworks"`
	Flags            map[string]bool `json:"flags,omitempty"`
}

func DefaultSettings() Settings {
	return Settings{
		AutoLock:         true,
		ShowTestNetworks: false,
	}
}
