package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityPool/internal/model"
	"liquidityPool/internal/storage"
)

var (
	selfAddr  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	ownerAddr = common.HexToAddress("0x2000000000000000000000000000000000000002")
	userAddr  = common.HexToAddress("0x3000000000000000000000000000000000000003")
	tokenA    = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB    = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	tokenC    = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
)

type payout struct {
	asset  common.Address
	to     common.Address
	amount string
}

type fakeGateway struct {
	mu          sync.Mutex
	meta        map[common.Address]model.TokenMeta
	metaErr     map[common.Address]error
	hold        map[common.Address]chan struct{}
	fetched     chan common.Address
	transferErr error
	payouts     []payout
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		meta: map[common.Address]model.TokenMeta{
			tokenA: {Name: "TokenA", Symbol: "TKNA", Decimals: 12},
			tokenB: {Name: "TokenB", Symbol: "TKNB", Decimals: 12},
		},
		metaErr: map[common.Address]error{},
		hold:    map[common.Address]chan struct{}{},
	}
}

func (g *fakeGateway) FetchMetadata(ctx context.Context, asset common.Address) (model.TokenMeta, error) {
	g.mu.Lock()
	hold := g.hold[asset]
	g.mu.Unlock()
	if hold != nil {
		<-hold
	}

	g.mu.Lock()
	defer func() {
		g.mu.Unlock()
		if g.fetched != nil {
			g.fetched <- asset
		}
	}()
	if err := g.metaErr[asset]; err != nil {
		return model.TokenMeta{}, err
	}
	meta, ok := g.meta[asset]
	if !ok {
		return model.TokenMeta{}, errors.New("no metadata method")
	}
	return meta, nil
}

func (g *fakeGateway) Transfer(ctx context.Context, asset, to common.Address, amount *uint256.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.transferErr != nil {
		return g.transferErr
	}
	g.payouts = append(g.payouts, payout{asset: asset, to: to, amount: amount.Dec()})
	return nil
}

func (g *fakeGateway) recorded() []payout {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payout(nil), g.payouts...)
}

func newTestPool(t *testing.T) (*Pool, *fakeGateway, *storage.MemoryStore) {
	t.Helper()
	gateway := newFakeGateway()
	store := storage.NewMemoryStore()
	p := New(Config{Self: selfAddr, Owner: ownerAddr}, gateway, store, nil)
	require.NoError(t, p.Open(context.Background()))
	return p, gateway, store
}

func bootstrapped(t *testing.T) (*Pool, *fakeGateway, *storage.MemoryStore) {
	t.Helper()
	p, gateway, store := newTestPool(t)
	require.NoError(t, p.Bootstrap(context.Background(), selfAddr, tokenA, tokenB))
	return p, gateway, store
}

func deposit(t *testing.T, p *Pool, sender, asset common.Address, amount uint64) (Receipt, error) {
	t.Helper()
	return p.OnIncomingTransfer(context.Background(), sender, asset, uint256.NewInt(amount))
}

func supplies(t *testing.T, p *Pool) (string, string) {
	t.Helper()
	info := p.Info()
	require.NotNil(t, info)
	return info.TokenASupply, info.TokenBSupply
}

func TestBootstrapCreatesEmptyLedger(t *testing.T) {
	p, _, store := bootstrapped(t)

	info := p.Info()
	require.NotNil(t, info)
	assert.Equal(t, tokenA.Hex(), info.TokenAID)
	assert.Equal(t, "TokenA", info.TokenAName)
	assert.Equal(t, "TKNA", info.TokenASymbol)
	assert.Equal(t, uint8(12), info.TokenADecimals)
	assert.Equal(t, tokenB.Hex(), info.TokenBID)
	assert.Equal(t, "TKNB", info.TokenBSymbol)
	assert.Equal(t, "0", info.TokenASupply)
	assert.Equal(t, "0", info.TokenBSupply)
	assert.Equal(t, uint16(24), info.Decimals)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa-0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb-LP", info.Ticker)
	assert.Equal(t, ownerAddr.Hex(), info.Owner)

	rec, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "0", rec.SideA.Supply)
	assert.Equal(t, tokenA.Hex(), rec.SideA.Token.Address)
}

func TestBootstrapTwiceFails(t *testing.T) {
	p, _, _ := bootstrapped(t)

	_, err := p.BeginBootstrap(context.Background(), selfAddr, tokenA, tokenB)
	assert.ErrorIs(t, err, ErrAlreadyBootstrapped)
}

func TestBootstrapGuards(t *testing.T) {
	p, _, store := newTestPool(t)
	ctx := context.Background()

	_, err := p.BeginBootstrap(ctx, ownerAddr, tokenA, tokenB)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = p.BeginBootstrap(ctx, selfAddr, tokenA, tokenA)
	assert.ErrorIs(t, err, ErrSameAsset)

	assert.Nil(t, p.Info())
	assert.Equal(t, 0, store.Commits())
}

func TestBootstrapJoinFailureAllowsRetry(t *testing.T) {
	p, gateway, store := newTestPool(t)
	ctx := context.Background()

	gateway.metaErr[tokenB] = errors.New("method ft_metadata not found")
	pending, err := p.BeginBootstrap(ctx, selfAddr, tokenA, tokenB)
	require.NoError(t, err)
	<-pending.Done()
	require.ErrorIs(t, pending.Err(), ErrBootstrapJoin)
	require.ErrorIs(t, pending.Wait(ctx), ErrBootstrapJoin)
	assert.Nil(t, p.Info())
	assert.Equal(t, 0, store.Commits())

	err = p.Bootstrap(ctx, selfAddr, tokenA, tokenC)
	require.ErrorIs(t, err, ErrBootstrapJoin, "unknown asset has no metadata")
	assert.Nil(t, p.Info())

	delete(gateway.metaErr, tokenB)
	require.NoError(t, p.Bootstrap(ctx, selfAddr, tokenA, tokenB))
	a, b := supplies(t, p)
	assert.Equal(t, "0", a)
	assert.Equal(t, "0", b)
	assert.Equal(t, 1, store.Commits())
}

func TestBootstrapWaitsForBothFetches(t *testing.T) {
	p, gateway, store := newTestPool(t)
	holdA := make(chan struct{})
	holdB := make(chan struct{})
	gateway.hold[tokenA] = holdA
	gateway.hold[tokenB] = holdB
	gateway.fetched = make(chan common.Address, 2)

	pending, err := p.BeginBootstrap(context.Background(), selfAddr, tokenA, tokenB)
	require.NoError(t, err)

	close(holdA)
	require.Equal(t, tokenA, <-gateway.fetched)

	select {
	case <-pending.Done():
		t.Fatalf("join resolved before second fetch returned")
	case <-time.After(20 * time.Millisecond):
	}
	assert.Nil(t, p.Info())
	assert.Equal(t, 0, store.Commits())
	assert.NoError(t, pending.Err())

	_, err = deposit(t, p, ownerAddr, tokenA, 1000)
	assert.ErrorIs(t, err, ErrUninitialized, "ledger must stay absent while the join is pending")

	close(holdB)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pending.Wait(ctx))
	assert.NotNil(t, p.Info())
}

func TestConcurrentBootstrapsCommitOnce(t *testing.T) {
	p, gateway, store := newTestPool(t)
	hold := make(chan struct{})
	gateway.hold[tokenB] = hold

	first, err := p.BeginBootstrap(context.Background(), selfAddr, tokenA, tokenB)
	require.NoError(t, err)
	second, err := p.BeginBootstrap(context.Background(), selfAddr, tokenA, tokenB)
	require.NoError(t, err)
	close(hold)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	errs := []error{first.Wait(ctx), second.Wait(ctx)}

	var ok, already int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyBootstrapped):
			already++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, already)
	assert.Equal(t, 1, store.Commits())
}

func TestTransferBeforeBootstrap(t *testing.T) {
	p, _, _ := newTestPool(t)

	receipt, err := deposit(t, p, ownerAddr, tokenA, 1000)
	require.ErrorIs(t, err, ErrUninitialized)
	assert.Equal(t, "1000", receipt.Refund.Dec())
	assert.Nil(t, p.Info())
}

func TestZeroAmountRejected(t *testing.T) {
	p, _, _ := bootstrapped(t)

	_, err := deposit(t, p, ownerAddr, tokenA, 0)
	assert.ErrorIs(t, err, ErrZeroAmount)
	_, err = p.OnIncomingTransfer(context.Background(), ownerAddr, tokenA, nil)
	assert.ErrorIs(t, err, ErrZeroAmount)
}

func TestForeignAssetRefundsEverything(t *testing.T) {
	p, gateway, store := bootstrapped(t)
	commits := store.Commits()

	receipt, err := deposit(t, p, userAddr, tokenC, 500)
	require.NoError(t, err)
	assert.Equal(t, OutcomeForeignAsset, receipt.Outcome)
	assert.Equal(t, "500", receipt.Refund.Dec())

	a, b := supplies(t, p)
	assert.Equal(t, "0", a)
	assert.Equal(t, "0", b)
	assert.Empty(t, gateway.recorded())
	assert.Equal(t, commits, store.Commits())
}

func TestOwnerContribution(t *testing.T) {
	p, gateway, _ := bootstrapped(t)

	receipt, err := deposit(t, p, ownerAddr, tokenA, 1000)
	require.NoError(t, err)
	assert.Equal(t, OutcomeContribution, receipt.Outcome)
	assert.True(t, receipt.Refund.IsZero())
	assert.True(t, receipt.Payout.IsZero())

	_, err = deposit(t, p, ownerAddr, tokenB, 69_000)
	require.NoError(t, err)
	_, err = deposit(t, p, ownerAddr, tokenB, 42)
	require.NoError(t, err)

	a, b := supplies(t, p)
	assert.Equal(t, "1000", a)
	assert.Equal(t, "69042", b)
	assert.Empty(t, gateway.recorded())
}

func TestExchange(t *testing.T) {
	p, gateway, store := bootstrapped(t)
	_, err := deposit(t, p, ownerAddr, tokenA, 1000)
	require.NoError(t, err)
	_, err = deposit(t, p, ownerAddr, tokenB, 1000)
	require.NoError(t, err)

	receipt, err := deposit(t, p, userAddr, tokenA, 100)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExchange, receipt.Outcome)
	assert.Equal(t, "91", receipt.Payout.Dec())
	assert.Equal(t, tokenB, receipt.PayoutAsset)
	assert.True(t, receipt.Refund.IsZero())
	assert.Equal(t, "100", receipt.Residual.Dec())

	a, b := supplies(t, p)
	assert.Equal(t, "1100", a)
	assert.Equal(t, "909", b)
	assert.Equal(t, []payout{{asset: tokenB, to: userAddr, amount: "91"}}, gateway.recorded())

	rec, _, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1100", rec.SideA.Supply)
	assert.Equal(t, "909", rec.SideB.Supply)

	record := receipt.Record()
	assert.Equal(t, "exchange", record.Outcome)
	assert.Equal(t, "91", record.Payout)
	assert.Equal(t, tokenB.Hex(), record.PayoutAsset)
}

func TestExchangeAgainstEmptySideRollsBack(t *testing.T) {
	p, gateway, store := bootstrapped(t)
	_, err := deposit(t, p, ownerAddr, tokenA, 1000)
	require.NoError(t, err)
	commits := store.Commits()

	receipt, err := deposit(t, p, userAddr, tokenA, 10)
	require.ErrorIs(t, err, ErrRejectedPayout)
	assert.Equal(t, "10", receipt.Refund.Dec())

	a, b := supplies(t, p)
	assert.Equal(t, "1000", a)
	assert.Equal(t, "0", b)
	assert.Empty(t, gateway.recorded())
	assert.Equal(t, commits, store.Commits())
}

func TestRejectedPayoutRollsBack(t *testing.T) {
	p, gateway, store := bootstrapped(t)
	_, err := deposit(t, p, ownerAddr, tokenA, 1000)
	require.NoError(t, err)
	_, err = deposit(t, p, ownerAddr, tokenB, 1000)
	require.NoError(t, err)

	gateway.transferErr = errors.New("receiver not registered")
	_, err = deposit(t, p, userAddr, tokenA, 100)
	require.ErrorIs(t, err, ErrRejectedPayout)

	a, b := supplies(t, p)
	assert.Equal(t, "1000", a)
	assert.Equal(t, "1000", b)
	rec, _, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1000", rec.SideA.Supply)
	assert.Equal(t, "1000", rec.SideB.Supply)

	gateway.transferErr = nil
	_, err = deposit(t, p, userAddr, tokenA, 100)
	require.NoError(t, err)
	a, b = supplies(t, p)
	assert.Equal(t, "1100", a)
	assert.Equal(t, "909", b)
}

type flakyStore struct {
	*storage.MemoryStore
	failCommit bool
}

func (s *flakyStore) Begin(ctx context.Context) (storage.LedgerTx, error) {
	tx, err := s.MemoryStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &flakyTx{LedgerTx: tx, store: s}, nil
}

type flakyTx struct {
	storage.LedgerTx
	store *flakyStore
}

func (tx *flakyTx) Commit(ctx context.Context) error {
	if tx.store.failCommit {
		_ = tx.LedgerTx.Rollback(ctx)
		return errors.New("connection reset by peer")
	}
	return tx.LedgerTx.Commit(ctx)
}

func TestCommitFailureAfterPayoutKeepsDeposit(t *testing.T) {
	gateway := newFakeGateway()
	store := &flakyStore{MemoryStore: storage.NewMemoryStore()}
	p := New(Config{Self: selfAddr, Owner: ownerAddr}, gateway, store, nil)
	ctx := context.Background()
	require.NoError(t, p.Open(ctx))
	require.NoError(t, p.Bootstrap(ctx, selfAddr, tokenA, tokenB))
	_, err := deposit(t, p, ownerAddr, tokenA, 1000)
	require.NoError(t, err)
	_, err = deposit(t, p, ownerAddr, tokenB, 1000)
	require.NoError(t, err)

	store.failCommit = true
	receipt, err := deposit(t, p, userAddr, tokenA, 100)
	require.ErrorIs(t, err, ErrCommitAfterPayout)
	assert.NotErrorIs(t, err, ErrRejectedPayout)
	assert.Equal(t, OutcomeExchange, receipt.Outcome)
	assert.Equal(t, "0", receipt.Refund.Dec())
	assert.Equal(t, "91", receipt.Payout.Dec())
	assert.True(t, RefundDue(receipt, err, uint256.NewInt(100)).IsZero())
	assert.Equal(t, []payout{{asset: tokenB, to: userAddr, amount: "91"}}, gateway.recorded())

	a, b := supplies(t, p)
	assert.Equal(t, "1100", a)
	assert.Equal(t, "909", b)
	rec, _, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1000", rec.SideA.Supply, "store lags until the next commit")

	// Without a payout nothing left the pool, so the deposit is refundable.
	receipt, err = deposit(t, p, ownerAddr, tokenB, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCommitAfterPayout)
	assert.Equal(t, "1", RefundDue(receipt, err, uint256.NewInt(1)).Dec())
	_, b = supplies(t, p)
	assert.Equal(t, "909", b)

	store.failCommit = false
	_, err = deposit(t, p, ownerAddr, tokenB, 1)
	require.NoError(t, err)
	rec, _, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1100", rec.SideA.Supply)
	assert.Equal(t, "910", rec.SideB.Supply)
}

func TestRefundDue(t *testing.T) {
	amount := uint256.NewInt(100)
	assert.Equal(t, "100", RefundDue(Receipt{Refund: new(uint256.Int)}, ErrRejectedPayout, amount).Dec())
	assert.Equal(t, "100", RefundDue(Receipt{}, ErrUninitialized, amount).Dec())
	assert.Equal(t, "7", RefundDue(Receipt{Refund: uint256.NewInt(7)}, nil, amount).Dec())
	assert.Equal(t, "0", RefundDue(Receipt{}, nil, amount).Dec())
}

func TestContributionOverflow(t *testing.T) {
	p, _, _ := bootstrapped(t)
	ctx := context.Background()

	_, err := p.OnIncomingTransfer(ctx, ownerAddr, tokenA, MaxSupply)
	require.NoError(t, err)

	_, err = deposit(t, p, ownerAddr, tokenA, 1)
	require.ErrorIs(t, err, ErrArithmeticOverflow)
	_, err = deposit(t, p, userAddr, tokenA, 1)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	a, _ := supplies(t, p)
	assert.Equal(t, MaxSupply.Dec(), a)
}

func TestInfoIsIdempotent(t *testing.T) {
	p, _, _ := bootstrapped(t)
	_, err := deposit(t, p, ownerAddr, tokenA, 1_500_000_000_000)
	require.NoError(t, err)

	first := p.Info()
	second := p.Info()
	assert.Equal(t, first, second)
	assert.Equal(t, "1.5", first.TokenASupplyDisplay)
	assert.Equal(t, "0", first.TokenBSupplyDisplay)
}

func TestOpenRestoresLedger(t *testing.T) {
	p, gateway, store := bootstrapped(t)
	_, err := deposit(t, p, ownerAddr, tokenA, 1000)
	require.NoError(t, err)
	_, err = deposit(t, p, ownerAddr, tokenB, 1000)
	require.NoError(t, err)

	restored := New(Config{Self: selfAddr, Owner: ownerAddr}, gateway, store, nil)
	require.NoError(t, restored.Open(context.Background()))
	assert.Equal(t, p.Info(), restored.Info())

	_, err = restored.BeginBootstrap(context.Background(), selfAddr, tokenA, tokenB)
	assert.ErrorIs(t, err, ErrAlreadyBootstrapped)

	other := New(Config{Self: selfAddr, Owner: userAddr}, gateway, store, nil)
	assert.Error(t, other.Open(context.Background()))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	gateway := newFakeGateway()
	p := New(Config{Self: selfAddr, Owner: ownerAddr, Registerer: reg}, gateway, storage.NewMemoryStore(), nil)
	ctx := context.Background()

	_, err := deposit(t, p, ownerAddr, tokenA, 1)
	require.ErrorIs(t, err, ErrUninitialized)
	require.NoError(t, p.Bootstrap(ctx, selfAddr, tokenA, tokenB))
	_, err = deposit(t, p, ownerAddr, tokenA, 1000)
	require.NoError(t, err)
	_, err = deposit(t, p, userAddr, tokenA, 10)
	require.ErrorIs(t, err, ErrRejectedPayout)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.bootstrapTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.transfersTotal.WithLabelValues("uninitialized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.transfersTotal.WithLabelValues("contribution")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.payoutRejections))
	assert.Equal(t, 1000.0, testutil.ToFloat64(p.metrics.trackedSupply.WithLabelValues("a", "TKNA")))
}
