package erc20

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeBackend struct {
	mu        sync.Mutex
	responses map[string][]byte
	callErr   map[string]error
	nonce     uint64
	status    uint64
	calls     []ethereum.CallMsg
	sent      []*types.Transaction
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		responses: map[string][]byte{},
		callErr:   map[string]error{},
		status:    types.ReceiptStatusSuccessful,
	}
}

func (b *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, msg)

	parsed, err := ABI()
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	if err := b.callErr[method.Name]; err != nil {
		return nil, err
	}
	resp, ok := b.responses[method.Name]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func (b *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonce, nil
}

func (b *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 52_000, nil
}

func (b *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	b.nonce++
	return nil
}

func (b *fakeBackend) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &types.Receipt{Status: b.status, TxHash: tx.Hash(), BlockNumber: big.NewInt(100)}, nil
}

func mustPackOutput(method string, values ...interface{}) []byte {
	parsed, err := ABI()
	if err != nil {
		panic(err)
	}
	data, err := parsed.Methods[method].Outputs.Pack(values...)
	if err != nil {
		panic(err)
	}
	return data
}
