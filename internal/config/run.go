package config

import (
	"time"

	"github.com/spf13/pflag"
)

// RunConfig holds configuration for the run command.
type RunConfig struct {
	Chain             ChainConfig
	Store             StoreConfig
	Owner             string
	Tokens            []string
	FromBlock         uint64
	ToBlock           uint64
	Confirmations     uint64
	BatchSize         uint64
	Checkpoint        string
	CheckpointEnabled bool
	Journal           string
	MaxRetries        int
	RetryBackoff      time.Duration
	Follow            bool
	PollInterval      time.Duration
	HTTPAddr          string
	LogLevel          string
}

// LoadRun merges config file, environment variables, and flags into RunConfig.
func LoadRun(cfgFile string, flags *pflag.FlagSet) (RunConfig, error) {
	v, err := newViper(cfgFile, flags, withDefaults(storeDefaults, map[string]interface{}{
		"batch-size":         uint64(2000),
		"confirmations":      uint64(0),
		"checkpoint":         "./data/cursor.json",
		"checkpoint-enabled": true,
		"journal":            "./data/journal.jsonl",
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"follow":             true,
		"poll-interval":      3 * time.Second,
		"http-addr":          ":8080",
	}))
	if err != nil {
		return RunConfig{}, err
	}

	return RunConfig{
		Chain:             chainConfig(v),
		Store:             storeConfig(v),
		Owner:             v.GetString("owner"),
		Tokens:            getStringSlice(v, "token"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		Confirmations:     v.GetUint64("confirmations"),
		BatchSize:         v.GetUint64("batch-size"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		Journal:           v.GetString("journal"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Follow:            v.GetBool("follow"),
		PollInterval:      v.GetDuration("poll-interval"),
		HTTPAddr:          v.GetString("http-addr"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}
