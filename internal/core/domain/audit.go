package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreateWallet AuditAction = "CREATE_WALLET"
	AuditActionDeposit      AuditAction = "DEPOSIT"
	AuditActionWithdraw     AuditAction = "WITHDRAW"
	AuditActionTransfer     AuditAction = "TRANSFER"
)

// AuditLog records a single state-changing request.
type AuditLog struct {
	ID             uuid.UUID   `json:"id"`
	Action         AuditAction `json:"action"`
	ResourceType   string      `json:"resource_type"`
	ResourceID     string      `json:"resource_id,omitempty"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
	StatusCode     int         `json:"status_code"`
	Details        string      `json:"details,omitempty"` // JSON string
	IPAddress      string      `json:"ip_address"`
	UserAgent      string      `json:"user_agent,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}
