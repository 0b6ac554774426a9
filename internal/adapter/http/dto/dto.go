package dto

import (
	"encoding/json"
	"strconv"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/pagination"

	"github.com/google/uuid"
)

// CreateWalletRequest is the request body for wallet creation.
type CreateWalletRequest struct {
	OwnerName string `json:"owner_name"`
	Currency  string `json:"currency"`
}

// MovementRequest is the request body for deposits and withdrawals.
// Amount keeps the literal JSON number so the engine can reject fractions
// and overflow with a field error.
type MovementRequest struct {
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
}

// TransferRequest is the request body for wallet-to-wallet transfers.
type TransferRequest struct {
	FromWalletID string      `json:"from_wallet_id"`
	ToWalletID   string      `json:"to_wallet_id"`
	Amount       json.Number `json:"amount"`
	Description  string      `json:"description"`
}

// PageQuery holds the raw pagination parameters shared by list endpoints.
type PageQuery struct {
	PageNumber     string `form:"page_number"`
	RecordsPerPage string `form:"records_per_page"`
	OrderBy        string `form:"order_by"`
	FilterLogic    string `form:"filter_logic"`
	ExactMatch     string `form:"exact_match"`
	Filter         string `form:"filter" binding:"max=4096"`
}

// Params validates the raw values against the default options.
func (q PageQuery) Params() pagination.Params {
	return pagination.Validate(pagination.RawParams{
		PageNumber:     q.PageNumber,
		RecordsPerPage: q.RecordsPerPage,
		OrderBy:        q.OrderBy,
		FilterLogic:    q.FilterLogic,
		ExactMatch:     q.ExactMatch,
	}, pagination.DefaultOptions())
}

// WalletListQuery is the query string of GET /api/v1/wallets.
type WalletListQuery struct {
	PageQuery
	OwnerName string `form:"owner_name" binding:"max=255"`
	Currency  string `form:"currency" binding:"omitempty,len=3,alpha"`
}

// ToParams converts the query into repository parameters.
func (q WalletListQuery) ToParams() ports.WalletListParams {
	return ports.WalletListParams{
		OwnerName:  q.OwnerName,
		Currency:   q.Currency,
		Pagination: q.Params(),
	}
}

// TransactionListQuery is the query string of
// GET /api/v1/wallets/:id/transactions.
type TransactionListQuery struct {
	PageQuery
	Type        string `form:"type" binding:"omitempty,ledger_type"`
	ReferenceID string `form:"reference_id" binding:"max=255"`
	Description string `form:"description" binding:"max=255"`
	MinAmount   string `form:"min_amount" binding:"omitempty,number"`
	MaxAmount   string `form:"max_amount" binding:"omitempty,number"`
	From        string `form:"from" binding:"omitempty,rfc3339"`
	To          string `form:"to" binding:"omitempty,rfc3339"`
}

// ToParams converts a bound query into repository parameters. Binding has
// already validated every value, so parse failures leave the filter unset.
func (q TransactionListQuery) ToParams(walletID uuid.UUID) ports.TransactionListParams {
	p := ports.TransactionListParams{
		WalletID:    walletID,
		ReferenceID: q.ReferenceID,
		Description: q.Description,
		Pagination:  q.Params(),
	}
	if q.Type != "" {
		t := domain.TransactionType(q.Type)
		p.Type = &t
	}
	p.MinAmount = parseInt(q.MinAmount)
	p.MaxAmount = parseInt(q.MaxAmount)
	p.From = parseTime(q.From)
	p.To = parseTime(q.To)
	return p
}

func parseInt(s string) *int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseTime(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
