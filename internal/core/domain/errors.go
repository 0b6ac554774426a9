package domain

import "errors"

// Store-level outcomes the engine translates into user-facing errors.
var (
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrBalanceOverflow        = errors.New("balance overflow")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidDirection       = errors.New("invalid balance direction")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrIdempotencyKeyExists   = errors.New("idempotency key already recorded")
	ErrLockTimeout            = errors.New("lock wait timeout")
)
