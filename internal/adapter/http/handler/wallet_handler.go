package handler

import (
	"context"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet-related endpoints.
type WalletHandler struct {
	walletSvc    ports.WalletService
	reportingSvc ports.ReportingService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, reportingSvc ports.ReportingService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc, reportingSvc: reportingSvc}
}

// Create handles POST /api/v1/wallets.
func (h *WalletHandler) Create(c *gin.Context) {
	var req dto.CreateWalletRequest
	if _, appErr := bindBody(c, &req); appErr != nil {
		response.Error(c, appErr)
		return
	}
	dto.SanitizeStruct(&req)

	wallet, err := h.walletSvc.CreateWallet(c.Request.Context(), ports.CreateWalletRequest{
		OwnerName: req.OwnerName,
		Currency:  req.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, wallet.ID.String())
	response.OK(c, wallet)
}

// List handles GET /api/v1/wallets.
func (h *WalletHandler) List(c *gin.Context) {
	var q dto.WalletListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, dto.ValidationError(err))
		return
	}

	params := q.ToParams()
	var appErr *apperror.AppError
	if params.Filter, appErr = dto.ParseFilter(q.Filter, ports.WalletFilterFields); appErr != nil {
		response.Error(c, appErr)
		return
	}

	page, err := h.reportingSvc.ListWallets(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// Get handles GET /api/v1/wallets/:id.
func (h *WalletHandler) Get(c *gin.Context) {
	wallet, err := h.reportingSvc.GetWallet(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, wallet)
}

// GetBalance handles GET /api/v1/wallets/:id/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	balance, err := h.reportingSvc.GetBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, balance)
}

// ListTransactions handles GET /api/v1/wallets/:id/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("Wallet").WithID(c.Param("id")))
		return
	}

	var q dto.TransactionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, dto.ValidationError(err))
		return
	}

	params := q.ToParams(walletID)
	var appErr *apperror.AppError
	if params.Filter, appErr = dto.ParseFilter(q.Filter, ports.TransactionFilterFields); appErr != nil {
		response.Error(c, appErr)
		return
	}

	page, err := h.reportingSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, page)
}

// Deposit handles POST /api/v1/wallets/:id/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	h.movement(c, h.walletSvc.Deposit)
}

// Withdraw handles POST /api/v1/wallets/:id/withdraw.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	h.movement(c, h.walletSvc.Withdraw)
}

type movementFunc func(ctx context.Context, req ports.MovementRequest) (*ports.OperationResult, error)

func (h *WalletHandler) movement(c *gin.Context, op movementFunc) {
	var req dto.MovementRequest
	raw, appErr := bindBody(c, &req)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	dto.SanitizeStruct(&req)

	result, err := op(c.Request.Context(), ports.MovementRequest{
		WalletID:       c.Param("id"),
		IdempotencyKey: c.GetHeader(middleware.HeaderIdempotencyKey),
		Amount:         req.Amount.String(),
		Description:    req.Description,
		Payload:        raw,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, result.StatusCode, result.Body, result.Replayed)
}
