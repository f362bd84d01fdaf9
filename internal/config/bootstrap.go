package config

import (
	"time"

	"github.com/spf13/pflag"
)

// BootstrapConfig holds configuration for the bootstrap command.
type BootstrapConfig struct {
	Chain    ChainConfig
	Store    StoreConfig
	Owner    string
	TokenA   string
	TokenB   string
	Timeout  time.Duration
	LogLevel string
}

// LoadBootstrap merges config file, environment variables, and flags into BootstrapConfig.
func LoadBootstrap(cfgFile string, flags *pflag.FlagSet) (BootstrapConfig, error) {
	v, err := newViper(cfgFile, flags, withDefaults(storeDefaults, map[string]interface{}{
		"timeout": 2 * time.Minute,
	}))
	if err != nil {
		return BootstrapConfig{}, err
	}

	return BootstrapConfig{
		Chain:    chainConfig(v),
		Store:    storeConfig(v),
		Owner:    v.GetString("owner"),
		TokenA:   v.GetString("token-a"),
		TokenB:   v.GetString("token-b"),
		Timeout:  v.GetDuration("timeout"),
		LogLevel: v.GetString("log-level"),
	}, nil
}
