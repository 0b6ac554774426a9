package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/pkg/pagination"
	"wallet-ledger/pkg/sqlfilter"

	"github.com/google/uuid"
)

//go:generate mockgen -destination=mocks/mock_repositories.go -package=mocks wallet-ledger/internal/core/ports WalletRepository,TransactionRepository,IdempotencyRepository,AuditRepository,DBTransactor,Tx

// Tx is an open unit of work on the backing store. pgx.Tx satisfies it.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (Tx, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting a Tx run inside the caller's transaction and hold the
// wallet's row lock until that transaction ends.
type WalletRepository interface {
	// Create inserts the wallet with a zero balance and assigns its ID.
	Create(ctx context.Context, wallet *domain.Wallet) error
	// GetByID returns nil, nil when the wallet does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx Tx, id uuid.UUID) (*domain.Wallet, error)
	// UpdateBalance locks the wallet, applies amount in direction and
	// persists the result. A debit below zero fails with
	// domain.ErrInsufficientFunds and leaves the balance untouched.
	UpdateBalance(ctx context.Context, tx Tx, id uuid.UUID, amount int64, direction domain.BalanceDirection) (*domain.Wallet, error)
	List(ctx context.Context, params WalletListParams) (*WalletPage, error)
}

// WalletFilterFields are the wallet fields a client filter tree may name.
var WalletFilterFields = sqlfilter.Fields{
	"owner_name": "",
	"currency":   "",
	"balance":    int64(0),
	"created_at": time.Time{},
}

// TransactionFilterFields are the entry fields a client filter tree may name.
var TransactionFilterFields = sqlfilter.Fields{
	"type":          "",
	"reference_id":  "",
	"description":   "",
	"amount":        int64(0),
	"balance_after": int64(0),
	"created_at":    time.Time{},
}

// WalletListParams holds filter + pagination for listing wallets.
// Pagination.FilterLogic joins the filters, Pagination.ExactMatch switches
// the owner name search from substring to equality. Filter, when set, is a
// client expression tree ANDed with the rest.
type WalletListParams struct {
	OwnerName  string
	Currency   string
	Filter     *sqlfilter.Group
	Pagination pagination.Params
}

// WalletPage is one page of wallets.
type WalletPage struct {
	Items        []domain.Wallet
	TotalRecords int64
	TotalFound   int64
}

// TransactionRepository defines persistence operations for ledger entries.
type TransactionRepository interface {
	// Create appends an entry inside tx and assigns its ID.
	Create(ctx context.Context, tx Tx, transaction *domain.Transaction) error
	List(ctx context.Context, params TransactionListParams) (*TransactionPage, error)
	// ListByReference returns every entry produced by one idempotency key,
	// oldest first.
	ListByReference(ctx context.Context, referenceID string) ([]domain.Transaction, error)
}

// TransactionListParams holds filter + pagination for listing a wallet's entries.
type TransactionListParams struct {
	WalletID    uuid.UUID
	Type        *domain.TransactionType
	ReferenceID string
	Description string
	MinAmount   *int64
	MaxAmount   *int64
	From        *time.Time
	To          *time.Time
	Filter      *sqlfilter.Group
	Pagination  pagination.Params
}

// TransactionPage is one page of entries. TotalRecords counts every entry of
// the wallet; TotalFound counts those matching the filters.
type TransactionPage struct {
	Items        []domain.Transaction
	TotalRecords int64
	TotalFound   int64
}

// IdempotencyRepository persists idempotency records.
type IdempotencyRepository interface {
	// Get looks a key up case-insensitively. Returns nil, nil on a miss.
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	// Create inserts rec inside tx, or on its own when tx is nil. A key that
	// already exists yields domain.ErrIdempotencyKeyExists.
	Create(ctx context.Context, tx Tx, rec *domain.IdempotencyRecord) error
	// DeleteExpired removes records that expired before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRepository persists audit trail entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// Store is the capability set every storage backend provides. The backend
// is selected by configuration at startup.
type Store interface {
	HealthChecker
	Wallets() WalletRepository
	Transactions() TransactionRepository
	Idempotency() IdempotencyRepository
	Audit() AuditRepository
	Transactor() DBTransactor
	Close()
}
