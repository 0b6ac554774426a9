package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/pagination"
	"wallet-ledger/pkg/querylog"
	"wallet-ledger/pkg/sqlfilter"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWallet(t *testing.T, s *Store, owner, currency string, balance int64) *domain.Wallet {
	t.Helper()
	ctx := context.Background()
	w := &domain.Wallet{OwnerName: owner, Currency: currency}
	require.NoError(t, s.Wallets().Create(ctx, w))
	if balance > 0 {
		tx, err := s.Transactor().Begin(ctx)
		require.NoError(t, err)
		_, err = s.Wallets().UpdateBalance(ctx, tx, w.ID, balance, domain.Credit)
		require.NoError(t, err)
		require.NoError(t, tx.Commit(ctx))
		w.Balance = balance
	}
	return w
}

func balanceOf(t *testing.T, s *Store, id uuid.UUID) int64 {
	t.Helper()
	w, err := s.Wallets().GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, w)
	return w.Balance
}

func TestWalletRepo_CreateAndGet(t *testing.T) {
	s := NewStore()
	w := newWallet(t, s, "Alice", "usd", 0)

	assert.NotEqual(t, uuid.Nil, w.ID)
	assert.Equal(t, "USD", w.Currency)

	got, err := s.Wallets().GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, *w, *got)

	missing, err := s.Wallets().GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTx_StagedUntilCommit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	w := newWallet(t, s, "Alice", "USD", 100)

	tx, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	updated, err := s.Wallets().UpdateBalance(ctx, tx, w.ID, 30, domain.Debit)
	require.NoError(t, err)
	assert.Equal(t, int64(70), updated.Balance)
	require.NoError(t, s.Transactions().Create(ctx, tx, &domain.Transaction{
		WalletID: w.ID, Type: domain.TransactionTypeWithdraw, Amount: 30, BalanceAfter: 70, ReferenceID: "k1",
	}))

	// Reads outside the transaction see committed state only.
	assert.Equal(t, int64(100), balanceOf(t, s, w.ID))
	entries, err := s.Transactions().ListByReference(ctx, "k1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, int64(70), balanceOf(t, s, w.ID))
	entries, err = s.Transactions().ListByReference(ctx, "k1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	entries, err = s.Transactions().ListByReference(ctx, "K1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	// Rollback after commit is a no-op.
	assert.NoError(t, tx.Rollback(ctx))
	assert.Error(t, tx.Commit(ctx))
}

func TestTx_RollbackDiscards(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	w := newWallet(t, s, "Alice", "USD", 100)

	tx, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	_, err = s.Wallets().UpdateBalance(ctx, tx, w.ID, 100, domain.Debit)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	assert.Equal(t, int64(100), balanceOf(t, s, w.ID))

	// The lock was released.
	tx2, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	_, err = s.Wallets().GetByIDForUpdate(ctx, tx2, w.ID)
	require.NoError(t, err)
	require.NoError(t, tx2.Rollback(ctx))
}

func TestTx_InsufficientFundsLeavesBalance(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	w := newWallet(t, s, "Alice", "USD", 50)

	tx, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	_, err = s.Wallets().UpdateBalance(ctx, tx, w.ID, 51, domain.Debit)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	require.NoError(t, tx.Rollback(ctx))
	assert.Equal(t, int64(50), balanceOf(t, s, w.ID))
}

func TestTx_UpdateBalanceMissingWallet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	tx, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	_, err = s.Wallets().UpdateBalance(ctx, tx, uuid.New(), 1, domain.Credit)
	assert.ErrorIs(t, err, domain.ErrWalletNotFound)
}

func TestTx_LockIsReentrant(t *testing.T) {
	s := NewStore(WithLockTimeout(50 * time.Millisecond))
	ctx := context.Background()
	w := newWallet(t, s, "Alice", "USD", 10)

	tx, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	_, err = s.Wallets().GetByIDForUpdate(ctx, tx, w.ID)
	require.NoError(t, err)
	_, err = s.Wallets().UpdateBalance(ctx, tx, w.ID, 5, domain.Credit)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, int64(15), balanceOf(t, s, w.ID))
}

func TestTx_LockTimeout(t *testing.T) {
	s := NewStore(WithLockTimeout(20 * time.Millisecond))
	ctx := context.Background()
	w := newWallet(t, s, "Alice", "USD", 10)

	holder, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	_, err = s.Wallets().GetByIDForUpdate(ctx, holder, w.ID)
	require.NoError(t, err)

	waiter, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	_, err = s.Wallets().GetByIDForUpdate(ctx, waiter, w.ID)
	assert.ErrorIs(t, err, domain.ErrLockTimeout)

	require.NoError(t, waiter.Rollback(ctx))
	require.NoError(t, holder.Rollback(ctx))
}

func TestTx_LockWaitHonoursContext(t *testing.T) {
	s := NewStore()
	w := newWallet(t, s, "Alice", "USD", 10)

	holder, err := s.Transactor().Begin(context.Background())
	require.NoError(t, err)
	_, err = s.Wallets().GetByIDForUpdate(context.Background(), holder, w.ID)
	require.NoError(t, err)
	defer holder.Rollback(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	waiter, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	_, err = s.Wallets().GetByIDForUpdate(ctx, waiter, w.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTx_ConcurrentCreditsSerialize(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	w := newWallet(t, s, "Alice", "USD", 0)

	const workers = 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := s.Transactor().Begin(ctx)
			if !assert.NoError(t, err) {
				return
			}
			if _, err := s.Wallets().UpdateBalance(ctx, tx, w.ID, 10, domain.Credit); !assert.NoError(t, err) {
				_ = tx.Rollback(ctx)
				return
			}
			assert.NoError(t, tx.Commit(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers*10), balanceOf(t, s, w.ID))
}

func TestIdempotencyRepo_CaseInsensitive(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	rec := &domain.IdempotencyRecord{Key: "Key-ABC", Endpoint: "deposit:w", ResponseCode: 200, ResponseBody: []byte("{}")}

	require.NoError(t, s.Idempotency().Create(ctx, nil, rec))
	got, err := s.Idempotency().Get(ctx, "key-abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Key-ABC", got.Key)

	err = s.Idempotency().Create(ctx, nil, &domain.IdempotencyRecord{Key: "KEY-abc"})
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyExists)
}

func TestIdempotencyRepo_ConflictAtCommit(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	w := newWallet(t, s, "Alice", "USD", 0)

	first, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Idempotency().Create(ctx, first, &domain.IdempotencyRecord{Key: "k"}))

	second, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Idempotency().Create(ctx, second, &domain.IdempotencyRecord{Key: "K"}))

	require.NoError(t, first.Commit(ctx))

	_, err = s.Wallets().UpdateBalance(ctx, second, w.ID, 10, domain.Credit)
	require.NoError(t, err)
	err = second.Commit(ctx)
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyExists)
	assert.NoError(t, second.Rollback(ctx))

	// Nothing from the losing transaction was applied.
	assert.Equal(t, int64(0), balanceOf(t, s, w.ID))
}

func TestIdempotencyRepo_DeleteExpired(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Idempotency().Create(ctx, nil, &domain.IdempotencyRecord{Key: "old", ExpiresAt: now.Add(-72 * time.Hour)}))
	require.NoError(t, s.Idempotency().Create(ctx, nil, &domain.IdempotencyRecord{Key: "recent", ExpiresAt: now.Add(-time.Hour)}))

	n, err := s.Idempotency().DeleteExpired(ctx, now.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	old, _ := s.Idempotency().Get(ctx, "old")
	assert.Nil(t, old)
	recent, _ := s.Idempotency().Get(ctx, "recent")
	assert.NotNil(t, recent)
}

func TestWalletRepo_List(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	alice := newWallet(t, s, "Alice", "USD", 0)
	newWallet(t, s, "Bob", "EUR", 0)
	alina := newWallet(t, s, "Alina", "EUR", 0)

	params := func(raw pagination.RawParams) pagination.Params {
		return pagination.Validate(raw, pagination.DefaultOptions())
	}

	page, err := s.Wallets().List(ctx, ports.WalletListParams{OwnerName: "ali", Pagination: params(pagination.RawParams{})})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalRecords)
	assert.Equal(t, int64(2), page.TotalFound)
	require.Len(t, page.Items, 2)
	assert.Equal(t, alina.ID, page.Items[0].ID, "newest first")
	assert.Equal(t, alice.ID, page.Items[1].ID)

	page, err = s.Wallets().List(ctx, ports.WalletListParams{
		OwnerName: "ali", Currency: "eur", Pagination: params(pagination.RawParams{}),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.TotalFound)

	page, err = s.Wallets().List(ctx, ports.WalletListParams{
		OwnerName: "bob", Currency: "usd", Pagination: params(pagination.RawParams{FilterLogic: "OR"}),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalFound)

	page, err = s.Wallets().List(ctx, ports.WalletListParams{
		OwnerName: "ali", Pagination: params(pagination.RawParams{ExactMatch: "1"}),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.TotalFound)
	assert.NotNil(t, page.Items)
}

func TestTransactionRepo_ListPaginates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	w := newWallet(t, s, "Alice", "USD", 0)

	for i := range 30 {
		tx, err := s.Transactor().Begin(ctx)
		require.NoError(t, err)
		desc := "salary"
		if i%2 == 1 {
			desc = "rent"
		}
		require.NoError(t, s.Transactions().Create(ctx, tx, &domain.Transaction{
			WalletID: w.ID, Type: domain.TransactionTypeDeposit, Amount: int64(i + 1), ReferenceID: "k", Description: desc,
		}))
		require.NoError(t, tx.Commit(ctx))
	}

	p := pagination.Validate(pagination.RawParams{PageNumber: "2", OrderBy: pagination.OrderCreatedAtAsc}, pagination.DefaultOptions())
	page, err := s.Transactions().List(ctx, ports.TransactionListParams{WalletID: w.ID, Pagination: p})
	require.NoError(t, err)
	assert.Equal(t, int64(30), page.TotalRecords)
	require.Len(t, page.Items, 5)
	assert.Equal(t, int64(26), page.Items[0].Amount)

	minAmount := int64(21)
	page, err = s.Transactions().List(ctx, ports.TransactionListParams{
		WalletID: w.ID, Description: "RENT", MinAmount: &minAmount,
		Pagination: pagination.Validate(pagination.RawParams{}, pagination.DefaultOptions()),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.TotalFound)
	assert.Equal(t, int64(30), page.Items[0].Amount)
}

func TestWalletRepo_ListFilterTree(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	newWallet(t, s, "Alice", "USD", 500)
	bob := newWallet(t, s, "Bob", "EUR", 0)
	alina := newWallet(t, s, "Alina", "EUR", 200)
	newWallet(t, s, "Carl", "EUR", 10)

	filter := sqlfilter.Or(
		sqlfilter.Condition{Field: "balance", Operator: ">=", Value: int64(100)},
		sqlfilter.Condition{Field: "owner_name", Value: "BOB", Transform: sqlfilter.TransformUpper},
	)
	page, err := s.Wallets().List(ctx, ports.WalletListParams{
		Currency:   "eur",
		Filter:     &filter,
		Pagination: pagination.Validate(pagination.RawParams{}, pagination.DefaultOptions()),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.TotalRecords)
	assert.Equal(t, int64(2), page.TotalFound)
	require.Len(t, page.Items, 2)
	assert.Equal(t, alina.ID, page.Items[0].ID)
	assert.Equal(t, bob.ID, page.Items[1].ID)

	bad := sqlfilter.And(sqlfilter.Condition{Field: "id", Value: bob.ID.String()})
	_, err = s.Wallets().List(ctx, ports.WalletListParams{
		Filter:     &bad,
		Pagination: pagination.Validate(pagination.RawParams{}, pagination.DefaultOptions()),
	})
	assert.ErrorIs(t, err, sqlfilter.ErrUnknownField)
}

func TestTransactionRepo_ListFilterTree(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	w := newWallet(t, s, "Alice", "USD", 0)

	for i := range 30 {
		tx, err := s.Transactor().Begin(ctx)
		require.NoError(t, err)
		desc := "salary"
		if i%2 == 1 {
			desc = "rent"
		}
		require.NoError(t, s.Transactions().Create(ctx, tx, &domain.Transaction{
			WalletID: w.ID, Type: domain.TransactionTypeDeposit, Amount: int64(i + 1), ReferenceID: "k", Description: desc,
		}))
		require.NoError(t, tx.Commit(ctx))
	}

	filter, err := sqlfilter.Parse([]byte(`{
		"0": {"field": "amount", "operator": ">", "value": 28},
		"AND": {
			"0": {"field": "description", "value": "rent"},
			"1": {"field": "amount", "operator": "<", "value": 4}
		}
	}`), sqlfilter.LogicOr)
	require.NoError(t, err)

	page, err := s.Transactions().List(ctx, ports.TransactionListParams{
		WalletID:   w.ID,
		Filter:     &filter,
		Pagination: pagination.Validate(pagination.RawParams{OrderBy: pagination.OrderCreatedAtAsc}, pagination.DefaultOptions()),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(30), page.TotalRecords)
	require.Len(t, page.Items, 3)
	assert.Equal(t, []int64{2, 29, 30}, []int64{page.Items[0].Amount, page.Items[1].Amount, page.Items[2].Amount})

	bad := sqlfilter.And(sqlfilter.Condition{Field: "created_at", Operator: ">", Value: "last week"})
	_, err = s.Transactions().List(ctx, ports.TransactionListParams{
		WalletID:   w.ID,
		Filter:     &bad,
		Pagination: pagination.Validate(pagination.RawParams{}, pagination.DefaultOptions()),
	})
	assert.ErrorIs(t, err, sqlfilter.ErrInvalidValue)
}

func TestTransactionRepo_RejectsUnknownType(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	tx, err := s.Transactor().Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	err = s.Transactions().Create(ctx, tx, &domain.Transaction{Type: "refund"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransactionType)
}

func TestStore_RecordsQueries(t *testing.T) {
	s := NewStore()
	c := querylog.New()
	ctx := querylog.WithCollector(context.Background(), c)

	w := &domain.Wallet{OwnerName: "Alice", Currency: "USD"}
	require.NoError(t, s.Wallets().Create(ctx, w))
	_, err := s.Wallets().GetByID(ctx, w.ID)
	require.NoError(t, err)

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "INSERT wallet", entries[0].Query)
	assert.Equal(t, "SELECT wallet", entries[1].Query)
	assert.Equal(t, "memory", s.Name())
	assert.NoError(t, s.Ping(ctx))
}

func TestStore_RejectsForeignTx(t *testing.T) {
	s := NewStore()
	_, err := s.Wallets().GetByIDForUpdate(context.Background(), nil, uuid.New())
	assert.Error(t, err)
}
