package domain

import (
	"bytes"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Wallet holds a balance in the smallest unit of its currency.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	OwnerName string    `json:"owner_name"`
	Currency  string    `json:"currency"` // ISO-4217, stored uppercase
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BalanceDirection is the sign of a balance mutation.
type BalanceDirection string

const (
	Credit BalanceDirection = "credit"
	Debit  BalanceDirection = "debit"
)

// Apply returns the balance after moving amount in direction d.
func (d BalanceDirection) Apply(balance, amount int64) (int64, error) {
	if amount <= 0 {
		return balance, ErrInvalidAmount
	}
	switch d {
	case Credit:
		if balance > math.MaxInt64-amount {
			return balance, ErrBalanceOverflow
		}
		return balance + amount, nil
	case Debit:
		if balance < amount {
			return balance, ErrInsufficientFunds
		}
		return balance - amount, nil
	}
	return balance, ErrInvalidDirection
}

// NormalizeCurrency returns the stored form of a currency code.
func NormalizeCurrency(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// SameCurrency compares currency codes case-insensitively.
func SameCurrency(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// LockOrder returns ids deduplicated and sorted ascending. Every transaction
// that locks more than one wallet acquires the locks in this order.
func LockOrder(ids ...uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return slices.Compact(out)
}
