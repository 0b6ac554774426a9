package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEvent announces the entries committed by one operation.
type LedgerEvent struct {
	EventID     uuid.UUID     `json:"event_id"`
	Operation   Operation     `json:"operation"`
	ReferenceID string        `json:"reference_id"`
	Entries     []Transaction `json:"entries"`
	OccurredAt  time.Time     `json:"occurred_at"`
}

// NewLedgerEvent builds the event for committed entries.
func NewLedgerEvent(op Operation, referenceID string, entries []Transaction, at time.Time) *LedgerEvent {
	return &LedgerEvent{
		EventID:     uuid.New(),
		Operation:   op,
		ReferenceID: referenceID,
		Entries:     entries,
		OccurredAt:  at.UTC(),
	}
}
