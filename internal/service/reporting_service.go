package service

import (
	"context"
	"strings"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/pagination"

	"github.com/google/uuid"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
}

// NewReportingService creates a new reporting service.
func NewReportingService(walletRepo ports.WalletRepository, txRepo ports.TransactionRepository) ports.ReportingService {
	return &reportingService{walletRepo: walletRepo, txRepo: txRepo}
}

// GetWallet returns a wallet by id. An id that is not a uuid cannot name a
// wallet and is reported as not found.
func (s *reportingService) GetWallet(ctx context.Context, id string) (*domain.Wallet, error) {
	walletID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, apperror.ErrNotFound("Wallet").WithID(id)
	}
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet").WithID(id)
	}
	return wallet, nil
}

// ListWallets returns a page of wallets.
func (s *reportingService) ListWallets(ctx context.Context, params ports.WalletListParams) (*pagination.Page[domain.Wallet], error) {
	res, err := s.walletRepo.List(ctx, params)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	page := pagination.Build(params.Pagination, res.TotalRecords, res.TotalFound, res.Items)
	return &page, nil
}

// GetBalance returns the balance view of a wallet.
func (s *reportingService) GetBalance(ctx context.Context, id string) (*ports.Balance, error) {
	wallet, err := s.GetWallet(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ports.Balance{
		WalletID: wallet.ID.String(),
		Balance:  wallet.Balance,
		Currency: wallet.Currency,
	}, nil
}

// ListTransactions returns a page of one wallet's ledger entries.
func (s *reportingService) ListTransactions(ctx context.Context, params ports.TransactionListParams) (*pagination.Page[domain.Transaction], error) {
	wallet, err := s.walletRepo.GetByID(ctx, params.WalletID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet").WithID(params.WalletID.String())
	}

	res, err := s.txRepo.List(ctx, params)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	page := pagination.Build(params.Pagination, res.TotalRecords, res.TotalFound, res.Items)
	return &page, nil
}

// GetTransfer reassembles a transfer from the two legs sharing its
// reference id.
func (s *reportingService) GetTransfer(ctx context.Context, referenceID string) (*ports.Transfer, error) {
	entries, err := s.txRepo.ListByReference(ctx, referenceID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	t := &ports.Transfer{ReferenceID: referenceID}
	for i := range entries {
		switch entries[i].Type {
		case domain.TransactionTypeTransferDebit:
			t.Debit = &entries[i]
		case domain.TransactionTypeTransferCredit:
			t.Credit = &entries[i]
		}
	}
	if t.Debit == nil || t.Credit == nil {
		return nil, apperror.ErrNotFound("Transfer").WithID(referenceID)
	}
	t.ReferenceID = t.Debit.ReferenceID
	return t, nil
}
