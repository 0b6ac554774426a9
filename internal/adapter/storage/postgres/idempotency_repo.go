package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Get retrieves a record by key, ignoring case. Returns nil if not found.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	var rec domain.IdempotencyRecord
	err := r.pool.QueryRow(ctx,
		`SELECT key, endpoint, request_hash, response_code, response_body, created_at, expires_at
		 FROM idempotency_keys WHERE LOWER(key) = LOWER($1)`,
		key,
	).Scan(&rec.Key, &rec.Endpoint, &rec.RequestHash, &rec.ResponseCode, &rec.ResponseBody, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get idempotency record", err)
	}
	return &rec, nil
}

// Create stores a record. When tx is set the insert joins it, so the record
// commits or rolls back together with the ledger writes. A concurrent insert
// of the same key waits on the unique index and then reports
// domain.ErrIdempotencyKeyExists.
func (r *IdempotencyRepo) Create(ctx context.Context, tx ports.Tx, rec *domain.IdempotencyRecord) error {
	var q querier = r.pool
	if tx != nil {
		t, err := pgxTx(tx)
		if err != nil {
			return err
		}
		q = t
	}

	tag, err := q.Exec(ctx,
		`INSERT INTO idempotency_keys (key, endpoint, request_hash, response_code, response_body, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT DO NOTHING`,
		rec.Key, rec.Endpoint, rec.RequestHash, rec.ResponseCode, rec.ResponseBody, rec.CreatedAt, rec.ExpiresAt,
	)
	if pgCode(err) == codeUniqueViolation {
		return fmt.Errorf("insert idempotency record: %w", domain.ErrIdempotencyKeyExists)
	}
	if err != nil {
		return wrap("insert idempotency record", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insert idempotency record: %w", domain.ErrIdempotencyKeyExists)
	}
	return nil
}

// DeleteExpired removes records whose expiry is before cutoff.
func (r *IdempotencyRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, wrap("delete expired idempotency records", err)
	}
	return tag.RowsAffected(), nil
}
