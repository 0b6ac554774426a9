package handler

import (
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/adapter/metrics"
	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	ReportingSvc   ports.ReportingService
	AuditSvc       ports.AuditService         // nil = audit logging disabled
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	RateLimits     map[string]middleware.RateLimitRule
	HealthCheckers []ports.HealthChecker
	Metrics        *metrics.Metrics // nil = /metrics disabled
	MetricsPath    string
	Mode           string // gin mode: debug, release, test
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	mode := deps.Mode
	switch mode {
	case gin.DebugMode, gin.TestMode:
	default:
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	r.Use(middleware.QueryCollector(mode, deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep: pings every configured store)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(deps.Metrics.Handler()))
	}

	docs := r.Group("/docs")
	{
		docs.GET("", DocsUI)
		docs.GET("/openapi.yaml", OpenAPISpec)
	}

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := deps.RateLimits[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}
	read, write := rl(middleware.GroupRead), rl(middleware.GroupWrite)

	// API v1 routes
	v1 := r.Group("/api/v1")

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.ReportingSvc)
	wallets := v1.Group("/wallets")
	{
		wallets.POST("", write, walletHandler.Create)
		wallets.GET("", read, walletHandler.List)
		wallets.GET("/:id", read, walletHandler.Get)
		wallets.GET("/:id/balance", read, walletHandler.GetBalance)
		wallets.GET("/:id/transactions", read, walletHandler.ListTransactions)
		wallets.POST("/:id/deposit", write, walletHandler.Deposit)
		wallets.POST("/:id/withdraw", write, walletHandler.Withdraw)
	}

	transferHandler := NewTransferHandler(deps.WalletSvc, deps.ReportingSvc)
	transfers := v1.Group("/transfers")
	{
		transfers.POST("", write, transferHandler.Create)
		transfers.GET("/:reference_id", read, transferHandler.Get)
	}

	return r
}
