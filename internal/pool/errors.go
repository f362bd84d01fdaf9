package pool

import "errors"

var (
	// ErrAlreadyBootstrapped is returned when bootstrap is attempted on a pool that already has a ledger.
	ErrAlreadyBootstrapped = errors.New("pool already bootstrapped")
	// ErrUninitialized is returned when an operation needs the ledger before bootstrap completed.
	ErrUninitialized = errors.New("pool uninitialized")
	// ErrArithmeticOverflow is returned when a tracked supply would exceed MaxSupply.
	ErrArithmeticOverflow = errors.New("tracked supply overflow")
	// ErrRejectedPayout is returned when the exchange payout was refused downstream.
	ErrRejectedPayout = errors.New("payout rejected")
	// ErrBootstrapJoin is returned when one or both metadata fetches failed.
	ErrBootstrapJoin = errors.New("bootstrap metadata join failed")
	// ErrCommitAfterPayout is returned when the payout settled but the ledger
	// could not be persisted. The deposit is consumed and must not be refunded.
	ErrCommitAfterPayout = errors.New("pool ledger not persisted after payout")

	ErrUnauthorized = errors.New("caller is not the pool controller")
	ErrSameAsset    = errors.New("pool assets must be distinct")
	ErrZeroAmount   = errors.New("transfer amount must be positive")
)
