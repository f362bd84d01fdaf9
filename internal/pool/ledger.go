package pool

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityPool/internal/model"
)

// MaxSupply is the largest tracked supply a side may hold (2^128 - 1).
var MaxSupply = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)

type side struct {
	asset  common.Address
	token  model.TokenMeta
	supply *uint256.Int
}

type ledger struct {
	owner    common.Address
	ticker   string
	decimals uint16
	a        side
	b        side
}

func newLedger(owner, tokenA, tokenB common.Address, metaA, metaB model.TokenMeta) *ledger {
	metaA.Address = tokenA.Hex()
	metaB.Address = tokenB.Hex()
	return &ledger{
		owner:    owner,
		ticker:   fmt.Sprintf("%s-%s-LP", strings.ToLower(tokenA.Hex()), strings.ToLower(tokenB.Hex())),
		decimals: uint16(metaA.Decimals) + uint16(metaB.Decimals),
		a:        side{asset: tokenA, token: metaA, supply: new(uint256.Int)},
		b:        side{asset: tokenB, token: metaB, supply: new(uint256.Int)},
	}
}

func (l *ledger) clone() *ledger {
	c := *l
	c.a.supply = l.a.supply.Clone()
	c.b.supply = l.b.supply.Clone()
	return &c
}

// sides returns the side receiving asset and its counterpart.
func (l *ledger) sides(asset common.Address) (in *side, out *side, ok bool) {
	switch asset {
	case l.a.asset:
		return &l.a, &l.b, true
	case l.b.asset:
		return &l.b, &l.a, true
	default:
		return nil, nil, false
	}
}

func (l *ledger) record(now time.Time) model.PoolRecord {
	return model.PoolRecord{
		Owner:     l.owner.Hex(),
		Ticker:    l.ticker,
		Decimals:  l.decimals,
		SideA:     model.PoolSide{Token: l.a.token, Supply: l.a.supply.Dec()},
		SideB:     model.PoolSide{Token: l.b.token, Supply: l.b.supply.Dec()},
		UpdatedAt: now.UTC().Format(time.RFC3339Nano),
	}
}

func ledgerFromRecord(rec model.PoolRecord) (*ledger, error) {
	if !common.IsHexAddress(rec.Owner) {
		return nil, fmt.Errorf("invalid owner: %q", rec.Owner)
	}
	a, err := sideFromRecord(rec.SideA)
	if err != nil {
		return nil, fmt.Errorf("side a: %w", err)
	}
	b, err := sideFromRecord(rec.SideB)
	if err != nil {
		return nil, fmt.Errorf("side b: %w", err)
	}
	if a.asset == b.asset {
		return nil, ErrSameAsset
	}
	return &ledger{
		owner:    common.HexToAddress(rec.Owner),
		ticker:   rec.Ticker,
		decimals: rec.Decimals,
		a:        a,
		b:        b,
	}, nil
}

func sideFromRecord(rec model.PoolSide) (side, error) {
	if !common.IsHexAddress(rec.Token.Address) {
		return side{}, fmt.Errorf("invalid asset address: %q", rec.Token.Address)
	}
	supply, err := uint256.FromDecimal(rec.Supply)
	if err != nil {
		return side{}, fmt.Errorf("parse supply %q: %w", rec.Supply, err)
	}
	if supply.Gt(MaxSupply) {
		return side{}, fmt.Errorf("supply %s: %w", rec.Supply, ErrArithmeticOverflow)
	}
	return side{
		asset:  common.HexToAddress(rec.Token.Address),
		token:  rec.Token,
		supply: supply,
	}, nil
}

// credit returns supply+amount, failing when the result exceeds MaxSupply.
func credit(supply, amount *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow || sum.Gt(MaxSupply) {
		return nil, fmt.Errorf("%s + %s: %w", supply.Dec(), amount.Dec(), ErrArithmeticOverflow)
	}
	return sum, nil
}
