package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"liquidityPool/internal/chain"
	"liquidityPool/internal/config"
	"liquidityPool/internal/pool"
)

func runInfo(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInfo(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var self common.Address
	if cfg.Pool != "" {
		self, err = chain.ParseAddress(cfg.Pool)
		if err != nil {
			return fmt.Errorf("parse pool address: %w", err)
		}
	}

	store, release, err := openStore(ctx, cfg.Store, self)
	if err != nil {
		return err
	}
	defer release()

	rec, ok, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return printJSON(cmd.OutOrStdout(), nil)
	}
	return printJSON(cmd.OutOrStdout(), pool.InfoFromRecord(rec))
}
