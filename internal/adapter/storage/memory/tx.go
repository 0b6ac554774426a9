package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
)

type transactor struct{ s *Store }

func (t transactor) Begin(ctx context.Context) (ports.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	trace(ctx, time.Now(), "BEGIN", nil)
	return &tx{
		s:       t.s,
		held:    make(map[uuid.UUID]struct{}),
		wallets: make(map[uuid.UUID]domain.Wallet),
	}, nil
}

// tx stages writes until Commit. Wallet locks taken through it are held
// until Commit or Rollback.
type tx struct {
	s *Store

	mu      sync.Mutex
	done    bool
	held    map[uuid.UUID]struct{}
	wallets map[uuid.UUID]domain.Wallet
	entries []domain.Transaction
	records []domain.IdempotencyRecord
}

func asTx(t ports.Tx) (*tx, error) {
	mt, ok := t.(*tx)
	if !ok || mt == nil {
		return nil, fmt.Errorf("memory: unsupported transaction %T", t)
	}
	return mt, nil
}

func (t *tx) lock(ctx context.Context, id uuid.UUID) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return fmt.Errorf("memory: transaction already closed")
	}
	if _, ok := t.held[id]; ok {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.s.acquire(ctx, id); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		t.s.release(id)
		return fmt.Errorf("memory: transaction already closed")
	}
	t.held[id] = struct{}{}
	return nil
}

// wallet returns the staged version of a locked wallet, falling back to the
// committed one.
func (t *tx) wallet(id uuid.UUID) (domain.Wallet, bool) {
	t.mu.Lock()
	w, ok := t.wallets[id]
	t.mu.Unlock()
	if ok {
		return w, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	w, ok = t.s.wallets[id]
	return w, ok
}

func (t *tx) Commit(ctx context.Context) error {
	start := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return fmt.Errorf("memory: transaction already closed")
	}
	defer t.finish()

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, rec := range t.records {
		if _, exists := t.s.idempotency[keyOf(rec.Key)]; exists {
			err := fmt.Errorf("commit: %w", domain.ErrIdempotencyKeyExists)
			trace(ctx, start, "COMMIT", err)
			return err
		}
	}
	for id, w := range t.wallets {
		t.s.wallets[id] = w
	}
	t.s.transactions = append(t.s.transactions, t.entries...)
	for _, rec := range t.records {
		t.s.idempotency[keyOf(rec.Key)] = rec
	}
	trace(ctx, start, "COMMIT", nil)
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.finish()
	trace(ctx, time.Now(), "ROLLBACK", nil)
	return nil
}

// finish releases every held lock. t.mu must be held.
func (t *tx) finish() {
	t.done = true
	for id := range t.held {
		t.s.release(id)
	}
	t.held = nil
	t.wallets = nil
	t.entries = nil
	t.records = nil
}
