// Package memory is an in-process storage backend. Wallet row locks are
// emulated with one single-slot channel per wallet, so concurrent
// transactions serialize exactly as they do on postgres FOR UPDATE.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/querylog"

	"github.com/google/uuid"
)

// Store implements ports.Store in memory. Reads observe committed state only.
type Store struct {
	mu           sync.RWMutex
	wallets      map[uuid.UUID]domain.Wallet
	walletOrder  []uuid.UUID
	transactions []domain.Transaction
	idempotency  map[string]domain.IdempotencyRecord
	audit        []domain.AuditLog

	locksMu sync.Mutex
	locks   map[uuid.UUID]chan struct{}

	lockTimeout time.Duration
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long a transaction waits for a wallet lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		wallets:     make(map[uuid.UUID]domain.Wallet),
		idempotency: make(map[string]domain.IdempotencyRecord),
		locks:       make(map[uuid.UUID]chan struct{}),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Wallets() ports.WalletRepository           { return walletRepo{s} }
func (s *Store) Transactions() ports.TransactionRepository { return transactionRepo{s} }
func (s *Store) Idempotency() ports.IdempotencyRepository  { return idempotencyRepo{s} }
func (s *Store) Audit() ports.AuditRepository              { return auditRepo{s} }
func (s *Store) Transactor() ports.DBTransactor            { return transactor{s} }

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Name() string               { return "memory" }
func (s *Store) Close()                     {}

// AuditLogs returns a copy of the recorded audit entries.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditLog, len(s.audit))
	copy(out, s.audit)
	return out
}

func (s *Store) lockFor(id uuid.UUID) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

func (s *Store) acquire(ctx context.Context, id uuid.UUID) error {
	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		t := time.NewTimer(s.lockTimeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case s.lockFor(id) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("lock wallet %s: %w", id, ctx.Err())
	case <-timeout:
		return fmt.Errorf("lock wallet %s: %w", id, domain.ErrLockTimeout)
	}
}

func (s *Store) release(id uuid.UUID) {
	<-s.lockFor(id)
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// trace records a logical statement into the request's query collector.
func trace(ctx context.Context, start time.Time, stmt string, err error, args ...any) {
	querylog.Record(ctx, stmt, args, time.Since(start), err)
}

func keyOf(key string) string {
	return strings.ToLower(key)
}
