package postgres

import (
	"context"
	"time"

	"wallet-ledger/internal/core/ports"
)

// Store implements ports.Store on a pgx pool.
type Store struct {
	pool         Pool
	wallets      *WalletRepo
	transactions *TransactionRepo
	idempotency  *IdempotencyRepo
	audit        *AuditRepo
	transactor   *Transactor
}

// NewStore wires every repository onto pool.
func NewStore(pool Pool, lockTimeout time.Duration) *Store {
	return &Store{
		pool:         pool,
		wallets:      NewWalletRepo(pool),
		transactions: NewTransactionRepo(pool),
		idempotency:  NewIdempotencyRepo(pool),
		audit:        NewAuditRepo(pool),
		transactor:   NewTransactor(pool, lockTimeout),
	}
}

func (s *Store) Wallets() ports.WalletRepository           { return s.wallets }
func (s *Store) Transactions() ports.TransactionRepository { return s.transactions }
func (s *Store) Idempotency() ports.IdempotencyRepository  { return s.idempotency }
func (s *Store) Audit() ports.AuditRepository              { return s.audit }
func (s *Store) Transactor() ports.DBTransactor            { return s.transactor }

// Ping checks PostgreSQL connectivity.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return err
}

// Name returns the dependency name.
func (s *Store) Name() string {
	return "postgresql"
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
