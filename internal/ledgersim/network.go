package ledgersim

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityPool/internal/model"
	"liquidityPool/internal/pool"
)

// Receiver is notified when tokens are sent to it with TransferCall.
type Receiver interface {
	OnIncomingTransfer(ctx context.Context, sender, asset common.Address, amount *uint256.Int) (pool.Receipt, error)
}

// Network is a set of token ledgers sharing one account namespace.
type Network struct {
	logger *zap.Logger

	mu     sync.RWMutex
	tokens map[common.Address]*Token
}

func NewNetwork(logger *zap.Logger) *Network {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Network{logger: logger, tokens: make(map[common.Address]*Token)}
}

// Deploy creates a token whose address is derived from its name.
func (n *Network) Deploy(name, symbol string, decimals uint8) *Token {
	address := Address(name)
	token := newToken(model.TokenMeta{Address: address.Hex(), Name: name, Symbol: symbol, Decimals: decimals})

	n.mu.Lock()
	n.tokens[address] = token
	n.mu.Unlock()
	return token
}

// Token looks up a deployed token.
func (n *Network) Token(address common.Address) (*Token, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	token, ok := n.tokens[address]
	if !ok {
		return nil, fmt.Errorf("%s: %w", address.Hex(), ErrUnknownToken)
	}
	return token, nil
}

// TransferResult reports how a TransferCall settled.
type TransferResult struct {
	// Used is the part of the amount the receiver kept.
	Used     *uint256.Int
	Refunded *uint256.Int
	Receipt  pool.Receipt
	// Err is the receiver's error. The full amount is refunded unless the
	// receiver reports that its payout already settled.
	Err error
}

// TransferCall moves amount from sender to the receiver account, notifies
// receiver and then returns whatever the receiver declined to keep. The
// returned error covers the initial debit only.
func (n *Network) TransferCall(ctx context.Context, asset, sender, account common.Address, receiver Receiver, amount *uint256.Int) (TransferResult, error) {
	token, err := n.Token(asset)
	if err != nil {
		return TransferResult{}, err
	}
	if err := token.Transfer(sender, account, amount); err != nil {
		return TransferResult{}, err
	}

	receipt, callErr := receiver.OnIncomingTransfer(ctx, sender, asset, amount)
	refund := pool.RefundDue(receipt, callErr, amount)
	if refund.Gt(amount) {
		refund = amount
	}

	refunded := new(uint256.Int)
	if !refund.IsZero() {
		// The receiver may already have spent part of the deposit.
		available := token.BalanceOf(account)
		if available.Lt(refund) {
			refund = available
		}
		if !refund.IsZero() {
			if err := token.Transfer(account, sender, refund); err != nil {
				n.logger.Error("refund failed", zap.String("token", token.meta.Symbol), zap.Error(err))
			} else {
				refunded = refund.Clone()
			}
		}
	}

	return TransferResult{
		Used:     new(uint256.Int).Sub(amount, refunded),
		Refunded: refunded,
		Receipt:  receipt,
		Err:      callErr,
	}, nil
}

// Gateway returns the pool-facing view of the network for account.
func (n *Network) Gateway(account common.Address) *Gateway {
	return &Gateway{network: n, account: account}
}

// Gateway lets one account read token metadata and send tokens.
type Gateway struct {
	network *Network
	account common.Address
}

func (g *Gateway) FetchMetadata(ctx context.Context, asset common.Address) (model.TokenMeta, error) {
	if err := ctx.Err(); err != nil {
		return model.TokenMeta{}, err
	}
	token, err := g.network.Token(asset)
	if err != nil {
		return model.TokenMeta{}, err
	}
	return token.Meta(), nil
}

func (g *Gateway) Transfer(ctx context.Context, asset, to common.Address, amount *uint256.Int) error {
	token, err := g.network.Token(asset)
	if err != nil {
		return err
	}
	return token.Transfer(g.account, to, amount)
}
