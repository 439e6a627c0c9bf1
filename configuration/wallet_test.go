package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAutoLockConfigurationCheck(t *testing.T) {
	conf := (&AutoLockConfiguration{}).Check()

	assert.Equal(t, 5*time.Minute, conf.LockTimeout)
	assert.Equal(t, time.Second, conf.ActivityWindow)
	assert.NotEmpty(t, conf.ActivityKinds)

	custom := (&AutoLockConfiguration{LockTimeout: time.Minute, ActivityWindow: 2 * time.Second, ActivityKinds: []string{"pointer"}}).Check()
	assert.Equal(t, time.Minute, custom.LockTimeout)
	assert.Equal(t, 2*time.Second, custom.ActivityWindow)
}

func TestTransactionConfigurationCheck(t *testing.T) {
	conf := (&TransactionConfiguration{}).Check()

	assert.Equal(t, 5*time.Second, conf.PollInterval)
	assert.Equal(t, 5*time.Minute, conf.MaxPollDuration)
	assert.Equal(t, 3, conf.MaxRetries)

	// a max below the interval cannot stand
	odd := (&TransactionConfiguration{PollInterval: time.Minute, MaxPollDuration: time.Second}).Check()
	assert.GreaterOrEqual(t, odd.MaxPollDuration, odd.PollInterval)
}

func TestHistoryConfigurationCheck(t *testing.T) {
	conf := (&HistoryConfiguration{}).Check()

	assert.Equal(t, 100, conf.MaxTransactions)
	assert.Equal(t, 100, conf.MaxErrors)
}

func TestNetworkConfigurationCheck(t *testing.T) {
	conf := (&NetworkConfiguration{}).Check()
	assert.NotEmpty(t, conf.Networks)
	assert.Equal(t, "mainnet01", conf.ActiveNetworkID)

	// an active id pointing nowhere falls back to the first network
	odd := (&NetworkConfiguration{
		Networks:        DefNetworkConfiguration().Networks,
		ActiveNetworkID: "devnet99",
	}).Check()
	assert.Equal(t, "mainnet01", odd.ActiveNetworkID)
}

func TestDefConfiguration(t *testing.T) {
	conf := DefConfiguration()

	assert.Equal(t, "kavira", conf.StoreName)
	assert.NotNil(t, conf.AutoLockConfig)
	assert.NotNil(t, conf.TxConfig)
	assert.NotNil(t, conf.HistoryConfig)
	assert.NotNil(t, conf.NetworkConfig)
}
