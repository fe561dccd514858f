package domain

import "errors"

// Error taxonomy for exchange operations. Callers distinguish cases
// with errors.Is; services add context with wrapping.
var (
	// ErrInvalidInput marks a caller bug: non-positive amount or a token
	// that is not part of the pool's pair. Fail fast, never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPoolUninitialized is returned when quoting against a pool
	// whose reserves have not been seeded yet.
	ErrPoolUninitialized = errors.New("pool uninitialized")

	// ErrPoolNotFound means no pool exists for the pair; the caller
	// must provide liquidity first.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrInsufficientBalance is an expected user-facing condition.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientShares is returned when a burn exceeds the
	// account's (or pool's) recorded LP shares.
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrImbalancedDeposit means the deposit ratio deviates from the
	// pool's reserve ratio beyond tolerance; resubmit with a corrected ratio.
	ErrImbalancedDeposit = errors.New("imbalanced deposit")

	// ErrSecurityBlocked means the risk gate refused the pool. It is
	// intentionally distinct from balance errors so callers can alert.
	ErrSecurityBlocked = errors.New("security blocked")

	// ErrNegativeBalance marks a debit that would drive a balance below
	// zero. Inside an exchange transaction it indicates a bug, since
	// balances are checked before any mutation.
	ErrNegativeBalance = errors.New("negative balance")

	// ErrReserveExhausted marks a constant-product violation: the swap
	// output reached or exceeded the outgoing reserve, or k decreased.
	// Fatal for the operation, never caught-and-continued.
	ErrReserveExhausted = errors.New("reserve exhausted")
)
