package watcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityPool/internal/chain"
	"liquidityPool/internal/erc20"
	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
	"liquidityPool/internal/storage"
)

// LogSource reads Transfer logs from the chain. *chain.Client satisfies it.
type LogSource interface {
	ChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error)
}

// Target receives incoming transfer notifications. *pool.Pool satisfies it.
type Target interface {
	OnIncomingTransfer(ctx context.Context, sender, asset common.Address, amount *uint256.Int) (pool.Receipt, error)
}

// Refunder returns declined amounts to their senders.
type Refunder interface {
	Transfer(ctx context.Context, asset, to common.Address, amount *uint256.Int) error
}

// RunConfig holds runtime settings for the watcher.
type RunConfig struct {
	// Pool is the account whose incoming transfers are routed to the target.
	Pool common.Address
	// Tokens restricts the watched token contracts. Empty watches every token,
	// so that foreign assets can be refunded.
	Tokens            []common.Address
	FromBlock         uint64
	ToBlock           uint64
	Confirmations     uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	// Follow keeps polling for new blocks after catching up.
	Follow       bool
	PollInterval time.Duration
}

// Runner turns ERC20 Transfer logs into pool notifications, refunds what the
// pool declines and journals every outcome.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	target     Target
	refunder   Refunder
	journal    storage.Journal
	logger     *zap.Logger
	checkpoint *CheckpointStore
	now        func() time.Time
}

func NewRunner(cfg RunConfig, source LogSource, target Target, refunder Refunder, journal storage.Journal, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		target:     target,
		refunder:   refunder,
		journal:    journal,
		logger:     logger,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
		now:        time.Now,
	}
}

// Run processes logs up to ToBlock (or the confirmed head) and, in follow mode,
// keeps polling until ctx ends.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("log source is nil")
	}
	if r.target == nil {
		return fmt.Errorf("transfer target is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.Pool == (common.Address{}) {
		return fmt.Errorf("pool address is required")
	}

	chainID, err := r.source.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	cursor := Cursor{Block: r.cfg.FromBlock}
	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok && cp.Before(cursor.Block, cursor.LogIndex) {
		cursor = cp
		r.logger.Info("resume from checkpoint", zap.Uint64("block", cp.Block), zap.Uint64("log_index", cp.LogIndex))
	}

	for {
		next, err := r.catchUp(ctx, chainID.Uint64(), cursor)
		if err != nil {
			return err
		}
		cursor = next

		if !r.cfg.Follow || r.cfg.ToBlock != 0 {
			return nil
		}
		interval := r.cfg.PollInterval
		if interval <= 0 {
			interval = 3 * time.Second
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func (r *Runner) catchUp(ctx context.Context, chainID uint64, cursor Cursor) (Cursor, error) {
	to := r.cfg.ToBlock
	if to == 0 {
		var latest uint64
		err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			latest, err = r.source.LatestBlockNumber(ctx)
			return err
		})
		if err != nil {
			return cursor, fmt.Errorf("get latest block: %w", err)
		}
		if latest < r.cfg.Confirmations {
			return cursor, nil
		}
		to = latest - r.cfg.Confirmations
	}

	if cursor.Block > to {
		r.logger.Debug("nothing to sync", zap.Uint64("from", cursor.Block), zap.Uint64("to", to))
		return cursor, nil
	}

	ranges, err := SplitRange(cursor.Block, to, r.cfg.BatchSize)
	if err != nil {
		return cursor, err
	}

	for _, blockRange := range ranges {
		if err := ctx.Err(); err != nil {
			return cursor, err
		}

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return cursor, fmt.Errorf("filter logs: %w", err)
		}

		handled := 0
		for _, log := range logs {
			if cursor.Before(log.BlockNumber, uint64(log.Index)) {
				continue
			}
			if err := r.handleLog(ctx, chainID, log); err != nil {
				return cursor, err
			}
			cursor = Cursor{Block: log.BlockNumber, LogIndex: uint64(log.Index) + 1}
			if err := r.checkpoint.Save(cursor); err != nil {
				return cursor, err
			}
			handled++
		}

		cursor = Cursor{Block: blockRange.To + 1}
		if err := r.checkpoint.Save(cursor); err != nil {
			return cursor, err
		}
		r.logger.Info("batch complete", zap.Int("transfers", handled), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}
	return cursor, nil
}

func (r *Runner) handleLog(ctx context.Context, chainID uint64, log types.Log) error {
	if log.Removed {
		r.logger.Warn("skip removed log", zap.String("tx", log.TxHash.Hex()), zap.Uint("log_index", log.Index))
		return nil
	}
	transfer, err := erc20.DecodeTransfer(log)
	if err != nil {
		// ERC721 transfers share topic0 but carry a fourth topic.
		r.logger.Debug("skip undecodable transfer log", zap.String("tx", log.TxHash.Hex()), zap.Error(err))
		return nil
	}
	if transfer.To != r.cfg.Pool {
		return nil
	}
	if transfer.From == (common.Address{}) {
		r.logger.Warn("skip mint to pool", zap.String("token", transfer.Token.Hex()), zap.String("amount", transfer.Amount.Dec()))
		return nil
	}

	ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
	if err != nil {
		return fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
	}

	entry := model.JournalEntry{
		Event:       transfer.Event(chainID, log, ts),
		ProcessedAt: r.now().UTC().Format(time.RFC3339Nano),
	}

	receipt, err := r.target.OnIncomingTransfer(ctx, transfer.From, transfer.Token, transfer.Amount)
	refund := pool.RefundDue(receipt, err, transfer.Amount)
	switch {
	case err == nil:
		rec := receipt.Record()
		entry.Receipt = &rec
	case errors.Is(err, pool.ErrCommitAfterPayout):
		entry.Error = err.Error()
		rec := receipt.Record()
		entry.Receipt = &rec
		r.logger.Error("payout settled without a persisted ledger",
			zap.String("tx", log.TxHash.Hex()),
			zap.String("token", transfer.Token.Hex()),
			zap.String("from", transfer.From.Hex()),
			zap.Error(err),
		)
	default:
		entry.Error = err.Error()
	}

	if refund != nil && !refund.IsZero() {
		if rerr := r.refund(ctx, transfer.Token, transfer.From, refund); rerr != nil {
			entry.RefundError = rerr.Error()
			r.logger.Error("refund failed",
				zap.String("token", transfer.Token.Hex()),
				zap.String("to", transfer.From.Hex()),
				zap.String("amount", refund.Dec()),
				zap.Error(rerr),
			)
		} else {
			entry.Refunded = refund.Dec()
		}
	}

	// The transfer has settled at this point; a journal failure must not
	// stop the cursor from advancing past it.
	if r.journal != nil {
		if err := r.journal.Append(entry); err != nil {
			r.logger.Error("journal transfer failed",
				zap.String("tx", log.TxHash.Hex()),
				zap.Uint("log_index", log.Index),
				zap.Any("entry", entry),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (r *Runner) refund(ctx context.Context, token, to common.Address, amount *uint256.Int) error {
	if r.refunder == nil {
		return fmt.Errorf("no refunder configured")
	}
	return withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		return r.refunder.Transfer(ctx, token, to, amount)
	})
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	topics := [][]common.Hash{{erc20.TransferTopic}, nil, {chain.AddressTopic(r.cfg.Pool)}}
	var logs []types.Log
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, fromBlock, toBlock, r.cfg.Tokens, topics)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.source.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}
