package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/pagination"
	"wallet-ledger/pkg/sqlfilter"

	"github.com/google/uuid"
)

type walletRepo struct{ s *Store }

func (r walletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	start := time.Now()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	now := r.s.timestamp()
	w.Currency = domain.NormalizeCurrency(w.Currency)
	w.Balance = 0
	w.CreatedAt, w.UpdatedAt = now, now

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.wallets[w.ID]; exists {
		err := fmt.Errorf("insert wallet: duplicate id %s", w.ID)
		trace(ctx, start, "INSERT wallet", err, w.ID)
		return err
	}
	r.s.wallets[w.ID] = *w
	r.s.walletOrder = append(r.s.walletOrder, w.ID)
	trace(ctx, start, "INSERT wallet", nil, w.ID, w.OwnerName, w.Currency)
	return nil
}

func (r walletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	start := time.Now()
	r.s.mu.RLock()
	w, ok := r.s.wallets[id]
	r.s.mu.RUnlock()
	trace(ctx, start, "SELECT wallet", nil, id)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r walletRepo) GetByIDForUpdate(ctx context.Context, t ports.Tx, id uuid.UUID) (*domain.Wallet, error) {
	start := time.Now()
	mt, err := asTx(t)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, id); err != nil {
		trace(ctx, start, "SELECT wallet FOR UPDATE", err, id)
		return nil, err
	}
	w, ok := mt.wallet(id)
	trace(ctx, start, "SELECT wallet FOR UPDATE", nil, id)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r walletRepo) UpdateBalance(ctx context.Context, t ports.Tx, id uuid.UUID, amount int64, dir domain.BalanceDirection) (*domain.Wallet, error) {
	w, err := r.GetByIDForUpdate(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, fmt.Errorf("update balance %s: %w", id, domain.ErrWalletNotFound)
	}

	start := time.Now()
	balance, err := dir.Apply(w.Balance, amount)
	if err != nil {
		return nil, fmt.Errorf("update balance %s: %w", id, err)
	}
	w.Balance = balance
	w.UpdatedAt = r.s.timestamp()

	mt, _ := asTx(t)
	mt.mu.Lock()
	mt.wallets[id] = *w
	mt.mu.Unlock()
	trace(ctx, start, "UPDATE wallet balance", nil, balance, id)
	return w, nil
}

func (r walletRepo) List(ctx context.Context, params ports.WalletListParams) (*ports.WalletPage, error) {
	start := time.Now()
	owner := strings.ToLower(strings.TrimSpace(params.OwnerName))
	currency := domain.NormalizeCurrency(params.Currency)
	tree, err := newTreeMatcher(ports.WalletFilterFields, params.Filter)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}

	r.s.mu.RLock()
	all := make([]domain.Wallet, 0, len(r.s.walletOrder))
	for _, id := range r.s.walletOrder {
		all = append(all, r.s.wallets[id])
	}
	r.s.mu.RUnlock()

	found := make([]domain.Wallet, 0, len(all))
	for _, w := range all {
		ok := combine(params.Pagination.FilterLogic,
			check{owner != "", textMatch(w.OwnerName, owner, params.Pagination.ExactMatch)},
			check{currency != "", w.Currency == currency},
		)
		if !ok {
			continue
		}
		if ok, err = tree.match(walletField(w)); err != nil {
			return nil, fmt.Errorf("list wallets: %w", err)
		}
		if ok {
			found = append(found, w)
		}
	}

	trace(ctx, start, "SELECT wallets", nil, owner, currency)
	return &ports.WalletPage{
		Items:        window(found, params.Pagination),
		TotalRecords: int64(len(all)),
		TotalFound:   int64(len(found)),
	}, nil
}

// check is one optional filter: active filters take part in the AND/OR.
type check struct {
	active bool
	ok     bool
}

func combine(logic string, checks ...check) bool {
	anyActive := false
	for _, c := range checks {
		if !c.active {
			continue
		}
		anyActive = true
		if logic == pagination.LogicOr && c.ok {
			return true
		}
		if logic != pagination.LogicOr && !c.ok {
			return false
		}
	}
	return !anyActive || logic != pagination.LogicOr
}

// treeMatcher applies an optional client filter tree to rows.
type treeMatcher struct {
	compiler sqlfilter.Compiler
	filter   *sqlfilter.Group
}

func newTreeMatcher(fields sqlfilter.Fields, filter *sqlfilter.Group) (treeMatcher, error) {
	if filter != nil {
		if err := fields.Check(*filter); err != nil {
			return treeMatcher{}, err
		}
	}
	return treeMatcher{compiler: fields.Compiler(), filter: filter}, nil
}

func (m treeMatcher) match(value func(field string) any) (bool, error) {
	if m.filter == nil {
		return true, nil
	}
	return m.compiler.Match(*m.filter, value)
}

func walletField(w domain.Wallet) func(string) any {
	return func(field string) any {
		switch field {
		case "owner_name":
			return w.OwnerName
		case "currency":
			return w.Currency
		case "balance":
			return w.Balance
		case "created_at":
			return w.CreatedAt
		}
		return nil
	}
}

func textMatch(value, query string, exact bool) bool {
	value = strings.ToLower(value)
	if exact {
		return value == query
	}
	return strings.Contains(value, query)
}

// window returns the requested page of items, which are in creation order.
func window[T any](items []T, p pagination.Params) []T {
	ordered := items
	if !p.Ascending() {
		ordered = make([]T, len(items))
		for i, it := range items {
			ordered[len(items)-1-i] = it
		}
	}
	offset := p.Offset()
	if offset >= len(ordered) {
		return []T{}
	}
	end := min(offset+p.RecordsPerPage, len(ordered))
	out := make([]T, end-offset)
	copy(out, ordered[offset:end])
	return out
}
