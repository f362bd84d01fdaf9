package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "poold",
		Short:        "Two-asset constant-product liquidity pool",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	bootstrapCmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bind the pool to its two tokens",
		RunE:  runBootstrap,
	}
	addChainFlags(bootstrapCmd)
	addStoreFlags(bootstrapCmd)
	bootstrapCmd.Flags().String("owner", "", "liquidity owner address")
	bootstrapCmd.Flags().String("token-a", "", "first token address")
	bootstrapCmd.Flags().String("token-b", "", "second token address")
	bootstrapCmd.Flags().Duration("timeout", 2*time.Minute, "metadata fetch timeout")
	bootstrapCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(bootstrapCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Route incoming token transfers into the pool",
		RunE:  runPool,
	}
	addChainFlags(runCmd)
	addStoreFlags(runCmd)
	runCmd.Flags().String("owner", "", "liquidity owner address")
	runCmd.Flags().StringSlice("token", nil, "token addresses to watch (comma-separated), empty watches all")
	runCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	runCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means head")
	runCmd.Flags().Uint64("confirmations", 0, "blocks to stay behind head")
	runCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	runCmd.Flags().String("checkpoint", "./data/cursor.json", "cursor file path")
	runCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	runCmd.Flags().String("journal", "./data/journal.jsonl", "journal JSONL path")
	runCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	runCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	runCmd.Flags().Bool("follow", true, "keep polling for new blocks")
	runCmd.Flags().Duration("poll-interval", 3*time.Second, "poll interval in follow mode")
	runCmd.Flags().String("http-addr", ":8080", "HTTP listen address, empty disables")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(runCmd)

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Print the persisted pool info",
		RunE:  runInfo,
	}
	addStoreFlags(infoCmd)
	infoCmd.Flags().String("pool", "", "pool account address, keys the postgres row when --pool-id is unset")
	infoCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")
	root.AddCommand(infoCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a YAML scenario against in-process ledgers",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().String("scenario", "", "scenario YAML path")
	simulateCmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")
	root.AddCommand(simulateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().String("private-key", "", "hex private key of the pool account")
	cmd.Flags().Uint64("gas-limit", 0, "gas limit for transfers, 0 estimates")
}

func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "file", "ledger store (file, postgres)")
	cmd.Flags().String("state-file", "./data/pool.json", "ledger file for the file store")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN for the postgres store")
	cmd.Flags().String("pool-id", "", "ledger row key, defaults to the pool address")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
