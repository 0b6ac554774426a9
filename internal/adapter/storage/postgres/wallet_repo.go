package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/sqlfilter"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = "id, owner_name, currency, balance, created_at, updated_at"

var walletFilters = sqlfilter.Compiler{Columns: map[string]string{
	"owner_name": "owner_name",
	"currency":   "currency",
	"balance":    "balance",
	"created_at": "created_at",
}}

// WalletRepo implements ports.WalletRepository using PostgreSQL.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet with a zero balance.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	w.Currency = domain.NormalizeCurrency(w.Currency)
	w.Balance = 0
	w.CreatedAt, w.UpdatedAt = now, now

	_, err := r.pool.Exec(ctx,
		`INSERT INTO wallets (id, owner_name, currency, balance, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		w.ID, w.OwnerName, w.Currency, w.Balance, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return wrap("insert wallet", err)
	}
	return nil
}

// GetByID retrieves a wallet by its ID.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
	w, err := scanWallet(row)
	if err != nil {
		return nil, wrap("get wallet", err)
	}
	return w, nil
}

// GetByIDForUpdate retrieves a wallet with a row-level lock (SELECT ... FOR UPDATE).
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx ports.Tx, id uuid.UUID) (*domain.Wallet, error) {
	t, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	row := t.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
	w, err := scanWallet(row)
	if err != nil {
		return nil, wrap("lock wallet", err)
	}
	return w, nil
}

// UpdateBalance locks the wallet row, applies the movement and writes the
// new balance. The row lock is held until tx ends.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx ports.Tx, id uuid.UUID, amount int64, dir domain.BalanceDirection) (*domain.Wallet, error) {
	w, err := r.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("update balance %s: %w", id, domain.ErrWalletNotFound)
	}

	balance, err := dir.Apply(w.Balance, amount)
	if err != nil {
		return nil, fmt.Errorf("update balance %s: %w", id, err)
	}

	t, _ := pgxTx(tx)
	err = t.QueryRow(ctx,
		`UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at`,
		balance, id,
	).Scan(&w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update balance %s: %w", id, domain.ErrWalletNotFound)
	}
	if err != nil {
		return nil, wrap("update balance", err)
	}
	w.Balance = balance
	return w, nil
}

// List returns one page of wallets matching the owner and currency filters
// and the optional filter tree.
func (r *WalletRepo) List(ctx context.Context, params ports.WalletListParams) (*ports.WalletPage, error) {
	if params.Filter != nil {
		if err := ports.WalletFilterFields.Check(*params.Filter); err != nil {
			return nil, fmt.Errorf("list wallets: %w", err)
		}
	}

	owner := sqlfilter.Condition{
		Field:     "owner_name",
		Operator:  "%LIKE%",
		Value:     strings.TrimSpace(params.OwnerName),
		Transform: sqlfilter.TransformLower,
	}
	if params.Pagination.ExactMatch {
		owner.Operator = "="
	}
	filters := sqlfilter.Group{
		Logic: params.Pagination.FilterLogic,
		Nodes: []sqlfilter.Node{
			owner,
			sqlfilter.Condition{Field: "currency", Operator: "=", Value: domain.NormalizeCurrency(params.Currency)},
		},
	}
	if params.Filter != nil {
		filters = sqlfilter.And(filters, *params.Filter)
	}

	where, err := walletFilters.Compile(filters, 0)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}

	page := &ports.WalletPage{Items: []domain.Wallet{}}
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallets`).Scan(&page.TotalRecords); err != nil {
		return nil, wrap("count wallets", err)
	}

	whereSQL := ""
	page.TotalFound = page.TotalRecords
	if !where.Empty() {
		whereSQL = " WHERE " + where.SQL
		if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallets`+whereSQL, where.Args...).Scan(&page.TotalFound); err != nil {
			return nil, wrap("count wallets", err)
		}
	}

	argIdx := len(where.Args) + 1
	query := fmt.Sprintf(`SELECT %s FROM wallets%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		walletColumns, whereSQL, orderClause(params.Pagination.Ascending()), argIdx, argIdx+1)
	args := append(where.Args, params.Pagination.RecordsPerPage, params.Pagination.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrap("list wallets", err)
	}
	defer rows.Close()

	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.ID, &w.OwnerName, &w.Currency, &w.Balance, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, wrap("scan wallet", err)
		}
		page.Items = append(page.Items, w)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list wallets", err)
	}
	return page, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.ID, &w.OwnerName, &w.Currency, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func orderClause(asc bool) string {
	if asc {
		return "created_at ASC, id ASC"
	}
	return "created_at DESC, id DESC"
}
