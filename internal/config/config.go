package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "POOL"

// StoreConfig selects where the pool ledger is persisted.
type StoreConfig struct {
	// Backend is "file" or "postgres".
	Backend   string
	StateFile string
	PGDSN     string
	// PoolID keys the ledger row in Postgres. Empty means the pool account address.
	PoolID string
}

// ChainConfig holds the RPC endpoint and the pool account's signing key.
type ChainConfig struct {
	RPCURL     string
	PrivateKey string
	GasLimit   uint64
}

// newViper builds a viper instance layering flags over env (POOL_*) over the
// config file over defaults.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return v, nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

var storeDefaults = map[string]interface{}{
	"store":      "file",
	"state-file": "./data/pool.json",
}

func storeConfig(v *viper.Viper) StoreConfig {
	return StoreConfig{
		Backend:   strings.ToLower(v.GetString("store")),
		StateFile: v.GetString("state-file"),
		PGDSN:     v.GetString("pg-dsn"),
		PoolID:    v.GetString("pool-id"),
	}
}

func chainConfig(v *viper.Viper) ChainConfig {
	return ChainConfig{
		RPCURL:     v.GetString("rpc"),
		PrivateKey: v.GetString("private-key"),
		GasLimit:   v.GetUint64("gas-limit"),
	}
}

func withDefaults(sets ...map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	switch typed := v.Get(key).(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		if typed == "" {
			return nil
		}
		return cleanStrings(strings.Split(typed, ","))
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
