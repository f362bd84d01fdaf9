package config

import "github.com/spf13/pflag"

// InfoConfig holds configuration for the info command.
type InfoConfig struct {
	Store StoreConfig
	// Pool is the pool account address. It keys the Postgres row when
	// Store.PoolID is empty.
	Pool     string
	LogLevel string
}

func LoadInfo(cfgFile string, flags *pflag.FlagSet) (InfoConfig, error) {
	v, err := newViper(cfgFile, flags, storeDefaults)
	if err != nil {
		return InfoConfig{}, err
	}
	return InfoConfig{
		Store:    storeConfig(v),
		Pool:     v.GetString("pool"),
		LogLevel: v.GetString("log-level"),
	}, nil
}

// SimulateConfig holds configuration for the simulate command.
type SimulateConfig struct {
	Scenario string
	LogLevel string
}

func LoadSimulate(cfgFile string, flags *pflag.FlagSet) (SimulateConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return SimulateConfig{}, err
	}
	return SimulateConfig{Scenario: v.GetString("scenario"), LogLevel: v.GetString("log-level")}, nil
}
