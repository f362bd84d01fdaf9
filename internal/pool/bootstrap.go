package pool

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityPool/internal/model"
)

// PendingBootstrap is an in-flight bootstrap handshake.
// It is never persisted; it resolves once both metadata fetches have returned.
type PendingBootstrap struct {
	TokenA common.Address
	TokenB common.Address

	done chan struct{}
	err  error
}

// Done is closed when the join has resolved.
func (b *PendingBootstrap) Done() <-chan struct{} {
	return b.done
}

// Err returns the join result. It is only meaningful after Done is closed.
func (b *PendingBootstrap) Err() error {
	select {
	case <-b.done:
		return b.err
	default:
		return nil
	}
}

// Wait blocks until the join resolves or ctx ends.
func (b *PendingBootstrap) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return b.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BeginBootstrap starts the handshake binding the pool to tokenA and tokenB.
// Both descriptors are fetched concurrently; nothing is written until both arrive.
func (p *Pool) BeginBootstrap(ctx context.Context, caller, tokenA, tokenB common.Address) (*PendingBootstrap, error) {
	if caller != p.cfg.Self {
		return nil, fmt.Errorf("bootstrap by %s: %w", caller.Hex(), ErrUnauthorized)
	}
	if tokenA == tokenB {
		return nil, fmt.Errorf("bootstrap %s: %w", tokenA.Hex(), ErrSameAsset)
	}

	p.mu.Lock()
	exists := p.ledger != nil
	p.mu.Unlock()
	if exists {
		p.metrics.bootstrapTotal.WithLabelValues("already_bootstrapped").Inc()
		return nil, ErrAlreadyBootstrapped
	}

	p.logger.Info("bootstrap start", zap.Stringer("token_a", tokenA), zap.Stringer("token_b", tokenB))

	pending := &PendingBootstrap{
		TokenA: tokenA,
		TokenB: tokenB,
		done:   make(chan struct{}),
	}
	go p.join(ctx, pending)
	return pending, nil
}

// Bootstrap runs BeginBootstrap and waits for the join.
func (p *Pool) Bootstrap(ctx context.Context, caller, tokenA, tokenB common.Address) error {
	pending, err := p.BeginBootstrap(ctx, caller, tokenA, tokenB)
	if err != nil {
		return err
	}
	return pending.Wait(ctx)
}

func (p *Pool) join(ctx context.Context, pending *PendingBootstrap) {
	defer close(pending.done)

	var metaA, metaB model.TokenMeta
	var g errgroup.Group
	g.Go(func() error {
		meta, err := p.gateway.FetchMetadata(ctx, pending.TokenA)
		if err != nil {
			return fmt.Errorf("metadata %s: %w", pending.TokenA.Hex(), err)
		}
		metaA = meta
		return nil
	})
	g.Go(func() error {
		meta, err := p.gateway.FetchMetadata(ctx, pending.TokenB)
		if err != nil {
			return fmt.Errorf("metadata %s: %w", pending.TokenB.Hex(), err)
		}
		metaB = meta
		return nil
	})

	if err := g.Wait(); err != nil {
		pending.err = fmt.Errorf("%w: %w", ErrBootstrapJoin, err)
		p.metrics.bootstrapTotal.WithLabelValues("join_failed").Inc()
		p.logger.Warn("bootstrap join failed", zap.Error(err))
		return
	}

	pending.err = p.completeBootstrap(ctx, pending.TokenA, pending.TokenB, metaA, metaB)
}

// completeBootstrap is the only place a ledger is created.
func (p *Pool) completeBootstrap(ctx context.Context, tokenA, tokenB common.Address, metaA, metaB model.TokenMeta) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ledger != nil {
		p.metrics.bootstrapTotal.WithLabelValues("already_bootstrapped").Inc()
		return ErrAlreadyBootstrapped
	}

	staged := newLedger(p.cfg.Owner, tokenA, tokenB, metaA, metaB)
	if err := p.commit(ctx, staged, nil); err != nil {
		p.metrics.bootstrapTotal.WithLabelValues("store_failed").Inc()
		return err
	}

	p.metrics.bootstrapTotal.WithLabelValues("ok").Inc()
	p.logger.Info("bootstrap complete",
		zap.String("ticker", staged.ticker),
		zap.String("symbol_a", staged.a.token.Symbol),
		zap.String("symbol_b", staged.b.token.Symbol),
		zap.Uint16("decimals", staged.decimals),
	)
	return nil
}
