package erc20

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityPool/internal/model"
)

var (
	// ErrZeroTransfer is returned for transfers of zero units, which ledgers refuse.
	ErrZeroTransfer = errors.New("transfer amount must be positive")
	// ErrTransferDeclined is returned when the token reports false for a transfer.
	ErrTransferDeclined = errors.New("token declined transfer")
	// ErrTransferReverted is returned when the transfer transaction fails on chain.
	ErrTransferReverted = errors.New("transfer transaction reverted")
)

// Backend is the chain surface the gateway needs. *chain.Client satisfies it.
type Backend interface {
	Caller
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// GatewayConfig configures the signing account.
type GatewayConfig struct {
	ChainID *big.Int
	Key     *ecdsa.PrivateKey
	// GasLimit overrides gas estimation when non-zero.
	GasLimit uint64
}

// Gateway reaches ERC20 token contracts on behalf of the pool account.
type Gateway struct {
	backend  Backend
	key      *ecdsa.PrivateKey
	from     common.Address
	signer   types.Signer
	gasLimit uint64
	logger   *zap.Logger

	mu sync.Mutex
}

func NewGateway(backend Backend, cfg GatewayConfig, logger *zap.Logger) (*Gateway, error) {
	if backend == nil {
		return nil, fmt.Errorf("chain backend is nil")
	}
	if cfg.Key == nil {
		return nil, fmt.Errorf("signing key is required")
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		backend:  backend,
		key:      cfg.Key,
		from:     crypto.PubkeyToAddress(cfg.Key.PublicKey),
		signer:   types.LatestSignerForChainID(cfg.ChainID),
		gasLimit: cfg.GasLimit,
		logger:   logger,
	}, nil
}

// Address is the account the gateway signs for.
func (g *Gateway) Address() common.Address {
	return g.from
}

func (g *Gateway) FetchMetadata(ctx context.Context, asset common.Address) (model.TokenMeta, error) {
	return FetchTokenMeta(ctx, g.backend, asset, g.logger)
}

// Transfer sends amount of asset to the to account and waits until the
// transaction is mined. The transfer is simulated first so that a declining
// token fails without spending gas.
func (g *Gateway) Transfer(ctx context.Context, asset, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroTransfer
	}
	parsed, err := ABI()
	if err != nil {
		return fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack("transfer", to, amount.ToBig())
	if err != nil {
		return fmt.Errorf("pack transfer: %w", err)
	}
	msg := ethereum.CallMsg{From: g.from, To: &asset, Data: data}

	resp, err := g.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return fmt.Errorf("simulate transfer: %w", err)
	}
	// Non-standard tokens return nothing on success.
	if len(resp) > 0 {
		values, err := parsed.Unpack("transfer", resp)
		if err != nil {
			return fmt.Errorf("unpack transfer: %w", err)
		}
		if ok, _ := values[0].(bool); !ok {
			return ErrTransferDeclined
		}
	}

	signed, err := g.send(ctx, msg)
	if err != nil {
		return err
	}

	receipt, err := g.backend.WaitMined(ctx, signed)
	if err != nil {
		return fmt.Errorf("wait transfer %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: tx %s", ErrTransferReverted, signed.Hash().Hex())
	}

	g.logger.Info("token transfer mined",
		zap.String("token", asset.Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", amount.Dec()),
		zap.String("tx", signed.Hash().Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
	)
	return nil
}

func (g *Gateway) send(ctx context.Context, msg ethereum.CallMsg) (*types.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	nonce, err := g.backend.PendingNonceAt(ctx, g.from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	gas := g.gasLimit
	if gas == 0 {
		gas, err = g.backend.EstimateGas(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("estimate gas: %w", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       msg.To,
		Value:    new(big.Int),
		Data:     msg.Data,
	})
	signed, err := types.SignTx(tx, g.signer, g.key)
	if err != nil {
		return nil, fmt.Errorf("sign transfer: %w", err)
	}
	if err := g.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send transfer: %w", err)
	}
	return signed, nil
}
