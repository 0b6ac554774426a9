package postgres

import (
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories translate.
const (
	codeUniqueViolation  = "23505"
	codeLockNotAvailable = "55P03"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// wrap annotates err with op and maps lock timeouts to domain.ErrLockTimeout.
func wrap(op string, err error) error {
	if pgCode(err) == codeLockNotAvailable {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrLockTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// pgxTx unwraps a ports.Tx opened by Transactor.
func pgxTx(tx ports.Tx) (pgx.Tx, error) {
	t, ok := tx.(pgx.Tx)
	if !ok || t == nil {
		return nil, fmt.Errorf("postgres: unsupported transaction %T", tx)
	}
	return t, nil
}
