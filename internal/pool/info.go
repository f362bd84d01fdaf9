package pool

import (
	"github.com/shopspring/decimal"

	"liquidityPool/internal/model"
)

// Info returns a snapshot of the pool, or nil while no ledger exists.
func (p *Pool) Info() *model.PoolInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ledger == nil {
		return nil
	}
	info := InfoFromRecord(p.ledger.record(p.now()))
	return &info
}

// InfoFromRecord projects a persisted pool record.
func InfoFromRecord(rec model.PoolRecord) model.PoolInfo {
	return model.PoolInfo{
		Owner:    rec.Owner,
		Ticker:   rec.Ticker,
		Decimals: rec.Decimals,

		TokenAID:            rec.SideA.Token.Address,
		TokenAName:          rec.SideA.Token.Name,
		TokenASymbol:        rec.SideA.Token.Symbol,
		TokenASupply:        rec.SideA.Supply,
		TokenASupplyDisplay: displayAmount(rec.SideA.Supply, rec.SideA.Token.Decimals),
		TokenADecimals:      rec.SideA.Token.Decimals,

		TokenBID:            rec.SideB.Token.Address,
		TokenBName:          rec.SideB.Token.Name,
		TokenBSymbol:        rec.SideB.Token.Symbol,
		TokenBSupply:        rec.SideB.Supply,
		TokenBSupplyDisplay: displayAmount(rec.SideB.Supply, rec.SideB.Token.Decimals),
		TokenBDecimals:      rec.SideB.Token.Decimals,
	}
}

func displayAmount(raw string, decimals uint8) string {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return raw
	}
	return amount.Shift(-int32(decimals)).String()
}
