package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityPool/internal/api"
	"liquidityPool/internal/chain"
	"liquidityPool/internal/config"
	"liquidityPool/internal/erc20"
	"liquidityPool/internal/pool"
	"liquidityPool/internal/storage"
	"liquidityPool/internal/watcher"
)

func runPool(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRun(cfgFile, cmd.Flags())
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
	tokens, err := chain.ParseAddresses(cfg.Tokens)
	if err != nil {
		return err
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p := pool.New(pool.Config{Self: self, Owner: owner, Registerer: registry}, gateway, store, logger)
	if err := p.Open(ctx); err != nil {
		return err
	}
	if p.Info() == nil {
		logger.Warn("pool is not bootstrapped, incoming transfers will be refunded")
	}

	runner := watcher.NewRunner(watcher.RunConfig{
		Pool:              self,
		Tokens:            tokens,
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Confirmations:     cfg.Confirmations,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		Follow:            cfg.Follow,
		PollInterval:      cfg.PollInterval,
	}, chainClient, p, gateway, journalFor(cfg.Journal), logger)

	logger.Info("pool start",
		zap.String("pool", self.Hex()),
		zap.String("owner", owner.Hex()),
		zap.Uint64("chain_id", chainID.Uint64()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("tokens", len(tokens)),
		zap.Bool("follow", cfg.Follow),
		zap.String("journal", cfg.Journal),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	g.Go(func() error {
		defer cancel()
		return runner.Run(runCtx)
	})
	if cfg.HTTPAddr != "" {
		handler := api.NewHandler(p, registry, logger)
		g.Go(func() error {
			return api.Serve(runCtx, cfg.HTTPAddr, handler, logger)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func journalFor(path string) storage.Journal {
	if path == "" {
		return nil
	}
	return storage.NewJsonlJournal(path)
}
