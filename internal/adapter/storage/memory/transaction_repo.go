package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
)

type transactionRepo struct{ s *Store }

func (r transactionRepo) Create(ctx context.Context, t ports.Tx, txn *domain.Transaction) error {
	start := time.Now()
	if !txn.Type.Valid() {
		return fmt.Errorf("insert transaction: %w: %q", domain.ErrInvalidTransactionType, txn.Type)
	}
	mt, err := asTx(t)
	if err != nil {
		return err
	}
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = r.s.timestamp()
	}

	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.done {
		return fmt.Errorf("memory: transaction already closed")
	}
	mt.entries = append(mt.entries, *txn)
	trace(ctx, start, "INSERT transaction", nil, txn.WalletID, string(txn.Type), txn.Amount, txn.ReferenceID)
	return nil
}

func (r transactionRepo) List(ctx context.Context, params ports.TransactionListParams) (*ports.TransactionPage, error) {
	start := time.Now()
	ref := strings.TrimSpace(params.ReferenceID)
	desc := strings.ToLower(strings.TrimSpace(params.Description))
	logic := params.Pagination.FilterLogic
	tree, err := newTreeMatcher(ports.TransactionFilterFields, params.Filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	page := &ports.TransactionPage{}
	found := make([]domain.Transaction, 0)
	for _, t := range r.s.transactions {
		if t.WalletID != params.WalletID {
			continue
		}
		page.TotalRecords++

		if params.MinAmount != nil && t.Amount < *params.MinAmount ||
			params.MaxAmount != nil && t.Amount > *params.MaxAmount ||
			params.From != nil && t.CreatedAt.Before(*params.From) ||
			params.To != nil && t.CreatedAt.After(*params.To) {
			continue
		}
		ok := combine(logic,
			check{params.Type != nil, params.Type != nil && t.Type == *params.Type},
			check{ref != "", strings.EqualFold(t.ReferenceID, ref)},
			check{desc != "", textMatch(t.Description, desc, params.Pagination.ExactMatch)},
		)
		if !ok {
			continue
		}
		if ok, err = tree.match(transactionField(t)); err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		if ok {
			found = append(found, t)
		}
	}

	page.TotalFound = int64(len(found))
	page.Items = window(found, params.Pagination)
	trace(ctx, start, "SELECT transactions", nil, params.WalletID)
	return page, nil
}

func (r transactionRepo) ListByReference(ctx context.Context, referenceID string) ([]domain.Transaction, error) {
	start := time.Now()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []domain.Transaction{}
	for _, t := range r.s.transactions {
		if strings.EqualFold(t.ReferenceID, referenceID) {
			out = append(out, t)
		}
	}
	trace(ctx, start, "SELECT transactions BY reference", nil, referenceID)
	return out, nil
}

func transactionField(t domain.Transaction) func(string) any {
	return func(field string) any {
		switch field {
		case "type":
			return string(t.Type)
		case "reference_id":
			return t.ReferenceID
		case "description":
			return t.Description
		case "amount":
			return t.Amount
		case "balance_after":
			return t.BalanceAfter
		case "created_at":
			return t.CreatedAt
		}
		return nil
	}
}
