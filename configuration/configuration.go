package configuration

type Configuration struct {
	RootPath       string
	StoreName      string
	AutoLockConfig *AutoLockConfiguration
	TxConfig       *TransactionConfiguration
	HistoryConfig  *HistoryConfiguration
	NetworkConfig  *NetworkConfiguration
}

func DefConfiguration() *Configuration {
	return &Configuration{
		RootPath:       ".",
		StoreName:      "kavira",
		AutoLockConfig: DefAutoLockConfiguration(),
		TxConfig:       DefTransactionConfiguration(),
		HistoryConfig:  DefHistoryConfiguration(),
		NetworkConfig:  DefNetworkConfiguration(),
	}
}
