package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/pagination"
)

//go:generate mockgen -destination=mocks/mock_services.go -package=mocks wallet-ledger/internal/core/ports IdempotencyCache,EventPublisher,WalletService,ReportingService,AuditService

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) // Returns nil on miss
	Set(ctx context.Context, rec *domain.IdempotencyRecord, ttl time.Duration) error
}

// EventPublisher announces committed ledger operations.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.LedgerEvent) error
	Close() error
}

// EngineMetrics receives per-operation measurements.
type EngineMetrics interface {
	ObserveOperation(op domain.Operation, statusCode int, replayed bool, elapsed time.Duration)
	IdempotencyConflict(op domain.Operation)
	PublishFailed()
}

// --- Service Ports (Business Logic) ---

// WalletService is the wallet operation engine.
type WalletService interface {
	CreateWallet(ctx context.Context, req CreateWalletRequest) (*domain.Wallet, error)
	Deposit(ctx context.Context, req MovementRequest) (*OperationResult, error)
	Withdraw(ctx context.Context, req MovementRequest) (*OperationResult, error)
	Transfer(ctx context.Context, req TransferRequest) (*OperationResult, error)
}

// CreateWalletRequest holds input for wallet creation.
type CreateWalletRequest struct {
	OwnerName string
	Currency  string
}

// MovementRequest holds input for a deposit or a withdrawal. Amount is the
// decimal string received from the client; it is validated by the engine so
// validation failures are recorded against the idempotency key.
type MovementRequest struct {
	WalletID       string
	IdempotencyKey string
	Amount         string
	Description    string
	// Payload is the raw request body used for the request hash. When empty
	// the hash covers the fields above.
	Payload []byte
}

// TransferRequest holds input for a wallet-to-wallet transfer.
type TransferRequest struct {
	FromWalletID   string
	ToWalletID     string
	IdempotencyKey string
	Amount         string
	Description    string
	Payload        []byte
}

// OperationResult is the outcome of an idempotent operation. Body is the
// serialized response envelope; a replay returns the stored bytes unchanged.
// Err is set when the outcome is a rejection.
type OperationResult struct {
	StatusCode int
	Body       []byte
	Replayed   bool
	Err        *apperror.AppError
}

// Failed reports whether the result is a rejection.
func (r *OperationResult) Failed() bool {
	return r.StatusCode >= 400
}

// MovementResult is the data of a committed deposit or withdrawal.
type MovementResult struct {
	Wallet      *domain.Wallet      `json:"wallet"`
	Transaction *domain.Transaction `json:"transaction"`
}

// TransferResult is the data of a committed transfer.
type TransferResult struct {
	ReferenceID string              `json:"reference_id"`
	FromWallet  *domain.Wallet      `json:"from_wallet"`
	ToWallet    *domain.Wallet      `json:"to_wallet"`
	Debit       *domain.Transaction `json:"debit"`
	Credit      *domain.Transaction `json:"credit"`
}

// Balance is the balance view of a wallet.
type Balance struct {
	WalletID string `json:"wallet_id"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// Transfer is a transfer reconstructed from its two ledger legs.
type Transfer struct {
	ReferenceID string              `json:"reference_id"`
	Debit       *domain.Transaction `json:"debit"`
	Credit      *domain.Transaction `json:"credit"`
}

// ReportingService defines the read side of the ledger.
type ReportingService interface {
	GetWallet(ctx context.Context, id string) (*domain.Wallet, error)
	ListWallets(ctx context.Context, params WalletListParams) (*pagination.Page[domain.Wallet], error)
	GetBalance(ctx context.Context, id string) (*Balance, error)
	ListTransactions(ctx context.Context, params TransactionListParams) (*pagination.Page[domain.Transaction], error)
	GetTransfer(ctx context.Context, referenceID string) (*Transfer, error)
}

// AuditService records audit entries asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
