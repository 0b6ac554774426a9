package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/sqlfilter"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = "id, wallet_id, type, amount, balance_after, related_wallet_id, reference_id, description, created_at"

var transactionFilters = sqlfilter.Compiler{Columns: map[string]string{
	"wallet_id":     "wallet_id",
	"type":          "type",
	"reference_id":  "reference_id",
	"description":   "description",
	"amount":        "amount",
	"balance_after": "balance_after",
	"created_at":    "created_at",
}}

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create appends a ledger entry within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx ports.Tx, t *domain.Transaction) error {
	if !t.Type.Valid() {
		return fmt.Errorf("insert transaction: %w: %q", domain.ErrInvalidTransactionType, t.Type)
	}
	pt, err := pgxTx(tx)
	if err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}

	_, err = pt.Exec(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.WalletID, string(t.Type), t.Amount, t.BalanceAfter,
		t.RelatedWalletID, t.ReferenceID, t.Description, t.CreatedAt,
	)
	if err != nil {
		return wrap("insert transaction", err)
	}
	return nil
}

// List returns one page of a wallet's entries. Amount and date bounds always
// narrow the result; type, reference and description are joined with the
// requested filter logic. The optional filter tree narrows the result too.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) (*ports.TransactionPage, error) {
	if params.Filter != nil {
		if err := ports.TransactionFilterFields.Check(*params.Filter); err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
	}

	var typ any
	if params.Type != nil {
		typ = string(*params.Type)
	}
	descOp := "%LIKE%"
	if params.Pagination.ExactMatch {
		descOp = "="
	}

	search := sqlfilter.Group{
		Logic: params.Pagination.FilterLogic,
		Nodes: []sqlfilter.Node{
			sqlfilter.Condition{Field: "type", Operator: "=", Value: typ},
			sqlfilter.Condition{
				Field:     "reference_id",
				Operator:  "=",
				Value:     strings.TrimSpace(params.ReferenceID),
				Transform: sqlfilter.TransformLower,
			},
			sqlfilter.Condition{
				Field:     "description",
				Operator:  descOp,
				Value:     strings.TrimSpace(params.Description),
				Transform: sqlfilter.TransformLower,
			},
		},
	}
	filters := sqlfilter.And(
		sqlfilter.Condition{Field: "wallet_id", Operator: "=", Value: params.WalletID},
		sqlfilter.Condition{Field: "amount", Operator: ">=", Value: deref(params.MinAmount)},
		sqlfilter.Condition{Field: "amount", Operator: "<=", Value: deref(params.MaxAmount)},
		sqlfilter.Condition{Field: "created_at", Operator: ">=", Value: deref(params.From)},
		sqlfilter.Condition{Field: "created_at", Operator: "<=", Value: deref(params.To)},
		search,
	)
	if params.Filter != nil {
		filters.Nodes = append(filters.Nodes, *params.Filter)
	}

	where, err := transactionFilters.Compile(filters, 0)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	page := &ports.TransactionPage{Items: []domain.Transaction{}}
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE wallet_id = $1`, params.WalletID,
	).Scan(&page.TotalRecords); err != nil {
		return nil, wrap("count transactions", err)
	}
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE `+where.SQL, where.Args...,
	).Scan(&page.TotalFound); err != nil {
		return nil, wrap("count transactions", err)
	}

	argIdx := len(where.Args) + 1
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		transactionColumns, where.SQL, orderClause(params.Pagination.Ascending()), argIdx, argIdx+1)
	args := append(where.Args, params.Pagination.RecordsPerPage, params.Pagination.Offset())

	items, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, wrap("list transactions", err)
	}
	page.Items = items
	return page, nil
}

// ListByReference returns all entries written under one idempotency key.
// The reference is matched case-insensitively, like the key itself.
func (r *TransactionRepo) ListByReference(ctx context.Context, referenceID string) ([]domain.Transaction, error) {
	items, err := r.query(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE LOWER(reference_id) = LOWER($1) ORDER BY created_at ASC, id ASC`,
		referenceID,
	)
	if err != nil {
		return nil, wrap("list transactions by reference", err)
	}
	return items, nil
}

func (r *TransactionRepo) query(ctx context.Context, sql string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *t)
	}
	return items, rows.Err()
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var typ string
	err := row.Scan(&t.ID, &t.WalletID, &typ, &t.Amount, &t.BalanceAfter,
		&t.RelatedWalletID, &t.ReferenceID, &t.Description, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Type = domain.TransactionType(typ)
	return &t, nil
}

// deref turns an optional bound into a filter value; nil is skipped by the
// compiler.
func deref[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
