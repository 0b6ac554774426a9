package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of ledger entry.
type TransactionType string

const (
	TransactionTypeDeposit        TransactionType = "deposit"
	TransactionTypeWithdraw       TransactionType = "withdraw"
	TransactionTypeTransferDebit  TransactionType = "transfer_debit"
	TransactionTypeTransferCredit TransactionType = "transfer_credit"
)

// Valid reports whether t is one of the known entry types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdraw,
		TransactionTypeTransferDebit, TransactionTypeTransferCredit:
		return true
	}
	return false
}

// Direction returns the balance effect of an entry of type t.
func (t TransactionType) Direction() BalanceDirection {
	switch t {
	case TransactionTypeDeposit, TransactionTypeTransferCredit:
		return Credit
	case TransactionTypeWithdraw, TransactionTypeTransferDebit:
		return Debit
	}
	return ""
}

// Transaction represents an immutable ledger entry for one wallet.
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	WalletID        uuid.UUID       `json:"wallet_id"`
	Type            TransactionType `json:"type"`
	Amount          int64           `json:"amount"`        // In smallest currency unit
	BalanceAfter    int64           `json:"balance_after"` // Owning wallet balance after this entry
	RelatedWalletID *uuid.UUID      `json:"related_wallet_id"`
	ReferenceID     string          `json:"reference_id"` // Idempotency key that produced the entry
	Description     string          `json:"description"`
	CreatedAt       time.Time       `json:"created_at"`
}

// IsTransferLeg returns true for both sides of a transfer.
func (t *Transaction) IsTransferLeg() bool {
	return t.Type == TransactionTypeTransferDebit || t.Type == TransactionTypeTransferCredit
}
