package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"liquidityPool/internal/model"
	"liquidityPool/internal/storage"
)

// AssetGateway reaches the asset ledgers the pool trades.
type AssetGateway interface {
	// FetchMetadata asks the ledger at asset for its descriptor.
	FetchMetadata(ctx context.Context, asset common.Address) (model.TokenMeta, error)
	// Transfer moves amount of asset from the pool to the to account, as a unit.
	Transfer(ctx context.Context, asset common.Address, to common.Address, amount *uint256.Int) error
}

// Config identifies the pool's principals.
type Config struct {
	// Self is the pool's own account; only it may bootstrap.
	Self common.Address
	// Owner may contribute liquidity without triggering an exchange.
	Owner common.Address
	// Registerer receives the pool metrics. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

// Pool is a two-asset constant-product pool.
// Entry points are serialized; the ledger is only replaced after a successful commit.
type Pool struct {
	cfg     Config
	gateway AssetGateway
	store   storage.LedgerStore
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time

	mu     sync.Mutex
	ledger *ledger
}

func New(cfg Config, gateway AssetGateway, store storage.LedgerStore, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:     cfg,
		gateway: gateway,
		store:   store,
		logger:  logger,
		metrics: NewMetrics(cfg.Registerer),
		now:     time.Now,
	}
}

// Open restores a previously committed ledger from the store.
func (p *Pool) Open(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("ledger store is nil")
	}
	rec, ok, err := p.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load pool ledger: %w", err)
	}
	if !ok {
		p.logger.Info("pool ledger absent, bootstrap required", zap.Stringer("owner", p.cfg.Owner))
		return nil
	}

	l, err := ledgerFromRecord(rec)
	if err != nil {
		return fmt.Errorf("restore pool ledger: %w", err)
	}
	if l.owner != p.cfg.Owner {
		return fmt.Errorf("stored owner %s does not match configured owner %s", l.owner.Hex(), p.cfg.Owner.Hex())
	}

	p.mu.Lock()
	p.ledger = l
	p.metrics.observeSupplies(l)
	p.mu.Unlock()

	p.logger.Info("pool ledger restored",
		zap.String("ticker", l.ticker),
		zap.String("supply_a", l.a.supply.Dec()),
		zap.String("supply_b", l.b.supply.Dec()),
	)
	return nil
}

// commit persists staged and, if given, runs dispatch before the commit point.
// The in-memory ledger is swapped only after the store commit succeeds, or
// after dispatch succeeded, in which case ErrCommitAfterPayout is returned.
func (p *Pool) commit(ctx context.Context, staged *ledger, dispatch func(context.Context) error) error {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	if err := tx.Save(ctx, staged.record(p.now())); err != nil {
		p.rollback(ctx, tx)
		return fmt.Errorf("save pool ledger: %w", err)
	}
	if dispatch != nil {
		if err := dispatch(ctx); err != nil {
			p.rollback(ctx, tx)
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		if dispatch == nil {
			return fmt.Errorf("commit pool ledger: %w", err)
		}
		// Assets already left the pool; track them even though the store lags.
		p.ledger = staged
		p.metrics.observeSupplies(staged)
		return fmt.Errorf("%w: %w", ErrCommitAfterPayout, err)
	}

	p.ledger = staged
	p.metrics.observeSupplies(staged)
	return nil
}

func (p *Pool) rollback(ctx context.Context, tx storage.LedgerTx) {
	if err := tx.Rollback(ctx); err != nil {
		p.logger.Error("rollback pool ledger", zap.Error(err))
	}
}
