package pool

import (
	"math/rand"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteExchange(t *testing.T) {
	cases := []struct {
		name                 string
		in, out, amount      uint64
		wantIn, wantOut, pay uint64
	}{
		{name: "basic", in: 1000, out: 1000, amount: 100, wantIn: 1100, wantOut: 909, pay: 91},
		{name: "small", in: 1000, out: 1000, amount: 50, wantIn: 1050, wantOut: 952, pay: 48},
		{name: "reverse leg", in: 952, out: 1050, amount: 150, wantIn: 1102, wantOut: 907, pay: 143},
		{name: "third leg", in: 907, out: 1102, amount: 200, wantIn: 1107, wantOut: 902, pay: 200},
		{name: "drain", in: 1000, out: 1000, amount: 1_000_000, wantIn: 1_001_000, wantOut: 0, pay: 1000},
		{name: "empty out side", in: 1000, out: 0, amount: 10, wantIn: 1010, wantOut: 0, pay: 0},
		{name: "empty in side", in: 0, out: 1000, amount: 10, wantIn: 10, wantOut: 0, pay: 1000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quote, err := QuoteExchange(uint256.NewInt(tc.in), uint256.NewInt(tc.out), uint256.NewInt(tc.amount))
			require.NoError(t, err)
			assert.Equal(t, tc.wantIn, quote.SupplyIn.Uint64())
			assert.Equal(t, tc.wantOut, quote.SupplyOut.Uint64())
			assert.Equal(t, tc.pay, quote.Payout.Uint64())
		})
	}
}

func TestQuoteExchangeRejectsZeroAmount(t *testing.T) {
	_, err := QuoteExchange(uint256.NewInt(1), uint256.NewInt(1), new(uint256.Int))
	assert.ErrorIs(t, err, ErrZeroAmount)
}

func TestQuoteExchangeOverflow(t *testing.T) {
	_, err := QuoteExchange(MaxSupply, uint256.NewInt(10), uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestQuoteExchangeWideSupplies(t *testing.T) {
	quote, err := QuoteExchange(new(uint256.Int).SubUint64(MaxSupply, 1), MaxSupply, uint256.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, MaxSupply, quote.SupplyIn)
	assert.False(t, quote.Payout.IsZero())
	assert.False(t, quote.SupplyOut.Gt(MaxSupply))
}

func TestQuoteExchangeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		in := uint256.NewInt(rng.Uint64() >> uint(rng.Intn(64)))
		out := uint256.NewInt(rng.Uint64() >> uint(rng.Intn(64)))
		amount := uint256.NewInt(rng.Uint64()>>uint(rng.Intn(64)) + 1)

		quote, err := QuoteExchange(in, out, amount)
		require.NoError(t, err)

		before := new(uint256.Int).Mul(in, out)
		after := new(uint256.Int).Mul(quote.SupplyIn, quote.SupplyOut)
		assert.False(t, after.Gt(before), "product must not grow")
		assert.False(t, quote.Payout.Gt(out), "payout bounded by pre-trade supply")
		assert.Equal(t, new(uint256.Int).Add(quote.SupplyOut, quote.Payout), out)
		assert.Equal(t, new(uint256.Int).Add(after, quote.Residual), before)
		assert.True(t, quote.Residual.Lt(quote.SupplyIn), "residual is a division remainder")
	}
}
