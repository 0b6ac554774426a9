package middleware

import (
	"encoding/json"
	"net/http"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client's idempotency key.
const HeaderIdempotencyKey = "Idempotency-Key"

// AuditLog creates an audit middleware that records every state-changing
// wallet request with its outcome. Routes are matched on their registered
// pattern, so it must run on the engine that owns them.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodPost {
			return
		}
		action, resourceType := mapRouteToAction(c.FullPath())
		if action == "" {
			return
		}

		resourceID := c.Param("id")
		if id := c.GetString(CtxResourceID); id != "" {
			resourceID = id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(CtxRequestID),
			"replayed":   c.Writer.Header().Get(response.HeaderReplay) == "true",
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			Action:         action,
			ResourceType:   resourceType,
			ResourceID:     resourceID,
			IdempotencyKey: c.GetHeader(HeaderIdempotencyKey),
			StatusCode:     c.Writer.Status(),
			Details:        string(details),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
		})
	}
}

func mapRouteToAction(route string) (domain.AuditAction, string) {
	switch route {
	case "/api/v1/wallets":
		return domain.AuditActionCreateWallet, "wallet"
	case "/api/v1/wallets/:id/deposit":
		return domain.AuditActionDeposit, "wallet"
	case "/api/v1/wallets/:id/withdraw":
		return domain.AuditActionWithdraw, "wallet"
	case "/api/v1/transfers":
		return domain.AuditActionTransfer, "transfer"
	}
	return "", ""
}
