package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransferHandler handles transfer endpoints.
type TransferHandler struct {
	walletSvc    ports.WalletService
	reportingSvc ports.ReportingService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(walletSvc ports.WalletService, reportingSvc ports.ReportingService) *TransferHandler {
	return &TransferHandler{walletSvc: walletSvc, reportingSvc: reportingSvc}
}

// Create handles POST /api/v1/transfers.
func (h *TransferHandler) Create(c *gin.Context) {
	var req dto.TransferRequest
	raw, appErr := bindBody(c, &req)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.walletSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		FromWalletID:   req.FromWalletID,
		ToWalletID:     req.ToWalletID,
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

// Get handles GET /api/v1/transfers/:reference_id.
func (h *TransferHandler) Get(c *gin.Context) {
	transfer, err := h.reportingSvc.GetTransfer(c.Request.Context(), c.Param("reference_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, transfer)
}
