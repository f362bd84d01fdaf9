package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"liquidityPool/internal/model"
)

// Outcome classifies an incoming transfer.
type Outcome string

const (
	OutcomeContribution Outcome = "contribution"
	OutcomeExchange     Outcome = "exchange"
	OutcomeForeignAsset Outcome = "foreign_asset"
)

// Receipt describes what the pool did with an incoming transfer.
// Refund is the part of Amount the pool declines to keep.
type Receipt struct {
	Outcome     Outcome
	Sender      common.Address
	Asset       common.Address
	Amount      *uint256.Int
	Refund      *uint256.Int
	PayoutAsset common.Address
	Payout      *uint256.Int
	// Post-transfer supplies of the input and output sides.
	SupplyIn  *uint256.Int
	SupplyOut *uint256.Int
	// Residual is the part of the pre-trade product lost to floor division.
	Residual *uint256.Int
}

// Record converts the receipt for journaling.
func (r Receipt) Record() model.ReceiptRecord {
	rec := model.ReceiptRecord{
		Outcome:   string(r.Outcome),
		Sender:    r.Sender.Hex(),
		Asset:     r.Asset.Hex(),
		Amount:    dec(r.Amount),
		Refund:    dec(r.Refund),
		SupplyIn:  optionalDec(r.SupplyIn),
		SupplyOut: optionalDec(r.SupplyOut),
	}
	if r.Outcome == OutcomeExchange {
		rec.PayoutAsset = r.PayoutAsset.Hex()
		rec.Payout = dec(r.Payout)
		rec.Residual = dec(r.Residual)
	}
	return rec
}

// RefundDue is how much of amount goes back to the sender after an incoming
// transfer returned receipt and err. Failed invocations refund everything,
// except when the payout already settled.
func RefundDue(receipt Receipt, err error, amount *uint256.Int) *uint256.Int {
	if err != nil && !errors.Is(err, ErrCommitAfterPayout) {
		return amount
	}
	if receipt.Refund == nil {
		return new(uint256.Int)
	}
	return receipt.Refund
}

func dec(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func optionalDec(v *uint256.Int) string {
	if v == nil {
		return ""
	}
	return v.Dec()
}

// Quote is the result of a constant-product exchange against pre-trade supplies.
type Quote struct {
	SupplyIn  *uint256.Int
	SupplyOut *uint256.Int
	Payout    *uint256.Int
	Residual  *uint256.Int
}

// QuoteExchange computes the exchange of amount against supplies supplyIn and supplyOut:
// out' = floor(in*out / (in+amount)) and payout = out - out'.
func QuoteExchange(supplyIn, supplyOut, amount *uint256.Int) (Quote, error) {
	if amount == nil || amount.IsZero() {
		return Quote{}, ErrZeroAmount
	}
	// Both factors are below 2^128, so the product fits in 256 bits.
	product := new(uint256.Int).Mul(supplyIn, supplyOut)
	in, err := credit(supplyIn, amount)
	if err != nil {
		return Quote{}, err
	}
	out := new(uint256.Int).Div(product, in)
	payout := new(uint256.Int).Sub(supplyOut, out)
	residual := new(uint256.Int).Sub(product, new(uint256.Int).Mul(in, out))
	return Quote{SupplyIn: in, SupplyOut: out, Payout: payout, Residual: residual}, nil
}

// OnIncomingTransfer handles a report that sender moved amount of asset into the pool.
// On error nothing is applied and the whole amount is to be refunded; the returned
// receipt carries Refund == amount in that case.
func (p *Pool) OnIncomingTransfer(ctx context.Context, sender, asset common.Address, amount *uint256.Int) (Receipt, error) {
	timer := prometheus.NewTimer(p.metrics.invocationDuration)
	defer timer.ObserveDuration()

	failed := Receipt{Sender: sender, Asset: asset, Amount: amount, Refund: amount}
	if amount == nil || amount.IsZero() {
		p.metrics.transfersTotal.WithLabelValues("zero_amount").Inc()
		return Receipt{Sender: sender, Asset: asset, Amount: new(uint256.Int), Refund: new(uint256.Int)}, ErrZeroAmount
	}
	amount = amount.Clone()
	failed.Amount, failed.Refund = amount, amount

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ledger == nil {
		p.metrics.transfersTotal.WithLabelValues("uninitialized").Inc()
		return failed, ErrUninitialized
	}

	staged := p.ledger.clone()
	in, out, ok := staged.sides(asset)
	if !ok {
		p.metrics.transfersTotal.WithLabelValues(string(OutcomeForeignAsset)).Inc()
		p.logger.Info("deposited asset does not belong to pool",
			zap.Stringer("asset", asset),
			zap.Stringer("sender", sender),
			zap.Stringer("amount", amount),
		)
		return Receipt{
			Outcome: OutcomeForeignAsset,
			Sender:  sender,
			Asset:   asset,
			Amount:  amount,
			Refund:  amount,
			Payout:  new(uint256.Int),
		}, nil
	}

	if sender == staged.owner {
		return p.contribute(ctx, staged, in, out, sender, amount, failed)
	}
	return p.exchange(ctx, staged, in, out, sender, amount, failed)
}

func (p *Pool) contribute(ctx context.Context, staged *ledger, in, out *side, sender common.Address, amount *uint256.Int, failed Receipt) (Receipt, error) {
	supply, err := credit(in.supply, amount)
	if err != nil {
		p.metrics.transfersTotal.WithLabelValues("overflow").Inc()
		return failed, err
	}
	in.supply = supply

	if err := p.commit(ctx, staged, nil); err != nil {
		p.metrics.transfersTotal.WithLabelValues("store_failed").Inc()
		return failed, err
	}

	p.metrics.transfersTotal.WithLabelValues(string(OutcomeContribution)).Inc()
	p.logger.Info("owner contribution",
		zap.String("symbol", in.token.Symbol),
		zap.Stringer("amount", amount),
		zap.Stringer("supply", in.supply),
	)
	return Receipt{
		Outcome:     OutcomeContribution,
		Sender:      sender,
		Asset:       in.asset,
		Amount:      amount,
		Refund:      new(uint256.Int),
		PayoutAsset: out.asset,
		Payout:      new(uint256.Int),
		SupplyIn:    in.supply.Clone(),
		SupplyOut:   out.supply.Clone(),
	}, nil
}

func (p *Pool) exchange(ctx context.Context, staged *ledger, in, out *side, sender common.Address, amount *uint256.Int, failed Receipt) (Receipt, error) {
	quote, err := QuoteExchange(in.supply, out.supply, amount)
	if err != nil {
		p.metrics.transfersTotal.WithLabelValues("overflow").Inc()
		return failed, err
	}
	in.supply = quote.SupplyIn
	out.supply = quote.SupplyOut

	// Downstream ledgers refuse zero-unit transfers, so a zero payout can never settle.
	if quote.Payout.IsZero() {
		p.metrics.payoutRejections.Inc()
		p.metrics.transfersTotal.WithLabelValues("rejected_payout").Inc()
		p.logger.Warn("exchange rolled back",
			zap.Stringer("sender", sender),
			zap.String("symbol_in", in.token.Symbol),
			zap.Stringer("amount", amount),
			zap.String("reason", "zero payout"),
		)
		return failed, fmt.Errorf("%w: zero payout of %s", ErrRejectedPayout, out.token.Symbol)
	}

	receipt := Receipt{
		Outcome:     OutcomeExchange,
		Sender:      sender,
		Asset:       in.asset,
		Amount:      amount,
		Refund:      new(uint256.Int),
		PayoutAsset: out.asset,
		Payout:      quote.Payout,
		SupplyIn:    quote.SupplyIn.Clone(),
		SupplyOut:   quote.SupplyOut.Clone(),
		Residual:    quote.Residual,
	}

	err = p.commit(ctx, staged, func(ctx context.Context) error {
		if err := p.gateway.Transfer(ctx, out.asset, sender, quote.Payout); err != nil {
			return fmt.Errorf("%w: %w", ErrRejectedPayout, err)
		}
		return nil
	})
	if errors.Is(err, ErrCommitAfterPayout) {
		p.metrics.transfersTotal.WithLabelValues("commit_failed").Inc()
		p.logger.Error("exchange settled but ledger not persisted",
			zap.Stringer("sender", sender),
			zap.String("symbol_in", in.token.Symbol),
			zap.Stringer("amount_in", amount),
			zap.String("symbol_out", out.token.Symbol),
			zap.Stringer("payout", quote.Payout),
			zap.Error(err),
		)
		return receipt, err
	}
	if err != nil {
		p.metrics.payoutRejections.Inc()
		p.metrics.transfersTotal.WithLabelValues("rejected_payout").Inc()
		p.logger.Warn("exchange rolled back",
			zap.Stringer("sender", sender),
			zap.String("symbol_in", in.token.Symbol),
			zap.Stringer("amount", amount),
			zap.Error(err),
		)
		return failed, err
	}

	p.metrics.transfersTotal.WithLabelValues(string(OutcomeExchange)).Inc()
	p.logger.Info("exchange",
		zap.Stringer("sender", sender),
		zap.String("symbol_in", in.token.Symbol),
		zap.Stringer("amount_in", amount),
		zap.String("symbol_out", out.token.Symbol),
		zap.Stringer("payout", quote.Payout),
		zap.Stringer("residual", quote.Residual),
	)
	return receipt, nil
}
