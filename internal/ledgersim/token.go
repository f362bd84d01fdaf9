package ledgersim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"liquidityPool/internal/model"
)

var (
	ErrZeroTransfer        = errors.New("transfer amount must be positive")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountFrozen       = errors.New("account is frozen")
	ErrUnknownToken        = errors.New("unknown token")
)

// Address derives a stable account address from a human readable name.
func Address(name string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(name))[12:])
}

// Token is an in-process fungible asset ledger.
type Token struct {
	meta model.TokenMeta

	mu       sync.Mutex
	balances map[common.Address]*uint256.Int
	frozen   map[common.Address]bool
}

func newToken(meta model.TokenMeta) *Token {
	return &Token{
		meta:     meta,
		balances: make(map[common.Address]*uint256.Int),
		frozen:   make(map[common.Address]bool),
	}
}

func (t *Token) Address() common.Address {
	return common.HexToAddress(t.meta.Address)
}

func (t *Token) Meta() model.TokenMeta {
	return t.meta
}

// Mint credits amount to account.
func (t *Token) Mint(account common.Address, amount *uint256.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	balance := t.balance(account)
	sum, overflow := new(uint256.Int).AddOverflow(balance, amount)
	if overflow {
		return fmt.Errorf("mint %s: balance overflow", t.meta.Symbol)
	}
	t.balances[account] = sum
	return nil
}

// Freeze makes every transfer to or from account fail.
func (t *Token) Freeze(account common.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frozen[account] = true
}

func (t *Token) BalanceOf(account common.Address) *uint256.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balance(account).Clone()
}

// Transfer moves amount from one account to another as a unit.
func (t *Token) Transfer(from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrZeroTransfer
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.frozen[from] || t.frozen[to] {
		return fmt.Errorf("%s transfer: %w", t.meta.Symbol, ErrAccountFrozen)
	}
	fromBalance := t.balance(from)
	if fromBalance.Lt(amount) {
		return fmt.Errorf("%s transfer of %s: %w", t.meta.Symbol, amount.Dec(), ErrInsufficientBalance)
	}
	if from == to {
		return nil
	}
	toBalance, overflow := new(uint256.Int).AddOverflow(t.balance(to), amount)
	if overflow {
		return fmt.Errorf("%s transfer: balance overflow", t.meta.Symbol)
	}
	t.balances[from] = new(uint256.Int).Sub(fromBalance, amount)
	t.balances[to] = toBalance
	return nil
}

func (t *Token) balance(account common.Address) *uint256.Int {
	if balance, ok := t.balances[account]; ok {
		return balance
	}
	return new(uint256.Int)
}
