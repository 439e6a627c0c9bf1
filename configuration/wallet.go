package configuration

import (
	"time"

	wltypes "github.com/KaviraWallet/kavira/wallet/types"
)

type AutoLockConfiguration struct {
	LockTimeout      time.Duration // inactivity span that forces a lock
	ActivityWindow   time.Duration // fixed throttle window for activity signals
	ActivityKinds    []string
	DisabledByConfig bool
}

func DefAutoLockConfiguration() *AutoLockConfiguration {
	return &AutoLockConfiguration{
		LockTimeout:    5 * time.Minute,
		ActivityWindow: time.Second,
		ActivityKinds:  []string{"pointer", "keyboard", "scroll"},
	}
}

func (config *AutoLockConfiguration) Check() *AutoLockConfiguration {
	conf := *config
	if conf.LockTimeout <= 0 {
		conf.LockTimeout = DefAutoLockConfiguration().LockTimeout
	}
	if conf.ActivityWindow <= 0 {
		conf.ActivityWindow = DefAutoLockConfiguration().ActivityWindow
	}
	if len(conf.ActivityKinds) == 0 {
		conf.ActivityKinds = DefAutoLockConfiguration().ActivityKinds
	}
	return &conf
}

type TransactionConfiguration struct {
	PollInterval    time.Duration
	MaxPollDuration time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
}

func DefTransactionConfiguration() *TransactionConfiguration {
	return &TransactionConfiguration{
		PollInterval:    5 * time.Second,
		MaxPollDuration: 5 * time.Minute,
		MaxRetries:      3,
		RetryBaseDelay:  time.Second,
	}
}

func (config *TransactionConfiguration) Check() *TransactionConfiguration {
	conf := *config
	def := DefTransactionConfiguration()
	if conf.PollInterval <= 0 {
		conf.PollInterval = def.PollInterval
	}
	if conf.MaxPollDuration < conf.PollInterval {
		conf.MaxPollDuration = def.MaxPollDuration
	}
	if conf.MaxRetries < 0 {
		conf.MaxRetries = def.MaxRetries
	}
	if conf.RetryBaseDelay <= 0 {
		conf.RetryBaseDelay = def.RetryBaseDelay
	}
	return &conf
}

type HistoryConfiguration struct {
	MaxTransactions int // history entries kept, most recent first
	MaxErrors       int // error records mirrored on wallet state
}

func DefHistoryConfiguration() *HistoryConfiguration {
	return &HistoryConfiguration{
		MaxTransactions: 100,
		MaxErrors:       100,
	}
}

func (config *HistoryConfiguration) Check() *HistoryConfiguration {
	conf := *config
	def := DefHistoryConfiguration()
	if conf.MaxTransactions <= 0 {
		conf.MaxTransactions = def.MaxTransactions
	}
	if conf.MaxErrors <= 0 {
		conf.MaxErrors = def.MaxErrors
	}
	return &conf
}

type NetworkConfiguration struct {
	Networks        []wltypes.Network
	ActiveNetworkID string
}

func DefNetworkConfiguration() *NetworkConfiguration {
	return &NetworkConfiguration{
		Networks: []wltypes.Network{
			{ID: "mainnet01", Name: "Mainnet", Host: "https://api.chainweb.com", IsTestnet: false},
			{ID: "testnet04", Name: "Testnet", Host: "https://api.testnet.chainweb.com", IsTestnet: true},
		},
		ActiveNetworkID: "mainnet01",
	}
}

func (config *NetworkConfiguration) Check() *NetworkConfiguration {
	conf := *config
	if len(conf.Networks) == 0 {
		return DefNetworkConfiguration()
	}
	found := false
	for _, n := range conf.Networks {
		if n.ID == conf.ActiveNetworkID {
			found = true
			break
		}
	}
	if !found {
		conf.ActiveNetworkID = conf.Networks[0].ID
	}
	return &conf
}
