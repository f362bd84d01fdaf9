package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityPool/internal/chain"
	"liquidityPool/internal/config"
	"liquidityPool/internal/erc20"
	"liquidityPool/internal/pool"
)

func runBootstrap(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadBootstrap(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Chain.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	owner, err := chain.ParseAddress(cfg.Owner)
	if err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	tokenA, err := chain.ParseAddress(cfg.TokenA)
	if err != nil {
		return fmt.Errorf("token-a: %w", err)
	}
	tokenB, err := chain.ParseAddress(cfg.TokenB)
	if err != nil {
		return fmt.Errorf("token-b: %w", err)
	}
	key, err := loadKey(cfg.Chain.PrivateKey)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	gateway, err := erc20.NewGateway(chainClient, erc20.GatewayConfig{ChainID: chainID, Key: key, GasLimit: cfg.Chain.GasLimit}, logger)
	if err != nil {
		return err
	}
	self := gateway.Address()

	store, release, err := openStore(ctx, cfg.Store, self)
	if err != nil {
		return err
	}
	defer release()

	p := pool.New(pool.Config{Self: self, Owner: owner}, gateway, store, logger)
	if err := p.Open(ctx); err != nil {
		return err
	}

	logger.Info("bootstrap",
		zap.String("pool", self.Hex()),
		zap.String("owner", owner.Hex()),
		zap.String("token_a", tokenA.Hex()),
		zap.String("token_b", tokenB.Hex()),
		zap.String("store", cfg.Store.Backend),
	)

	bootstrapCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := p.Bootstrap(bootstrapCtx, self, tokenA, tokenB); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return printJSON(cmd.OutOrStdout(), p.Info())
}
