package postgres

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/ports"
)

// Transactor implements ports.DBTransactor. Each transaction bounds its lock
// waits with SET LOCAL lock_timeout so a stuck row lock surfaces as
// domain.ErrLockTimeout instead of blocking the request.
type Transactor struct {
	pool        Pool
	lockTimeout time.Duration
}

// NewTransactor creates a new PostgreSQL Transactor.
func NewTransactor(pool Pool, lockTimeout time.Duration) *Transactor {
	return &Transactor{pool: pool, lockTimeout: lockTimeout}
}

// Begin starts a new database transaction.
func (t *Transactor) Begin(ctx context.Context) (ports.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, wrap("begin transaction", err)
	}
	if t.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			return nil, wrap("set lock timeout", err)
		}
	}
	return tx, nil
}
