package memory

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
)

type idempotencyRepo struct{ s *Store }

func (r idempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	start := time.Now()
	r.s.mu.RLock()
	rec, ok := r.s.idempotency[keyOf(key)]
	r.s.mu.RUnlock()
	trace(ctx, start, "SELECT idempotency_key", nil, key)
	if !ok {
		return nil, nil
	}
	rec.ResponseBody = append([]byte(nil), rec.ResponseBody...)
	return &rec, nil
}

// Create inserts immediately when t is nil. Inside a transaction the record
// is staged and the key is checked again at commit.
func (r idempotencyRepo) Create(ctx context.Context, t ports.Tx, rec *domain.IdempotencyRecord) error {
	start := time.Now()
	stored := *rec
	stored.ResponseBody = append([]byte(nil), rec.ResponseBody...)

	if t == nil {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		if _, exists := r.s.idempotency[keyOf(rec.Key)]; exists {
			err := fmt.Errorf("insert idempotency record: %w", domain.ErrIdempotencyKeyExists)
			trace(ctx, start, "INSERT idempotency_key", err, rec.Key)
			return err
		}
		r.s.idempotency[keyOf(rec.Key)] = stored
		trace(ctx, start, "INSERT idempotency_key", nil, rec.Key)
		return nil
	}

	mt, err := asTx(t)
	if err != nil {
		return err
	}
	r.s.mu.RLock()
	_, exists := r.s.idempotency[keyOf(rec.Key)]
	r.s.mu.RUnlock()
	if exists {
		err := fmt.Errorf("insert idempotency record: %w", domain.ErrIdempotencyKeyExists)
		trace(ctx, start, "INSERT idempotency_key", err, rec.Key)
		return err
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.done {
		return fmt.Errorf("memory: transaction already closed")
	}
	for _, staged := range mt.records {
		if keyOf(staged.Key) == keyOf(rec.Key) {
			return fmt.Errorf("insert idempotency record: %w", domain.ErrIdempotencyKeyExists)
		}
	}
	mt.records = append(mt.records, stored)
	trace(ctx, start, "INSERT idempotency_key", nil, rec.Key)
	return nil
}

func (r idempotencyRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for k, rec := range r.s.idempotency {
		if rec.ExpiresAt.Before(cutoff) {
			delete(r.s.idempotency, k)
			n++
		}
	}
	trace(ctx, start, "DELETE expired idempotency_keys", nil, cutoff)
	return n, nil
}
