package middleware

import (
	"net/http"
	"time"

	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/querylog"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderRequestID    = "X-Request-ID"
	HeaderDebugQueries = "X-Debug-Queries"

	// Context keys
	CtxRequestID  = "request_id"
	CtxResourceID = "resource_id"
)

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(CtxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// RequestLogger creates a middleware that logs every HTTP request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("request_id", c.GetString(CtxRequestID)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery creates a panic recovery middleware.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("panic", r).
					Str("request_id", c.GetString(CtxRequestID)).
					Str("path", c.Request.URL.Path).
					Msg("panic recovered")
				env := response.Failure(apperror.New("SYS_000", "Internal server error", http.StatusInternalServerError))
				c.AbortWithStatusJSON(env.Code, env)
			}
		}()
		c.Next()
	}
}

// QueryCollector attaches a querylog.Collector to requests carrying
// X-Debug-Queries: 1 and logs the statements they ran. It is a no-op in
// release mode.
func QueryCollector(mode string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if mode == gin.ReleaseMode || c.GetHeader(HeaderDebugQueries) != "1" {
			c.Next()
			return
		}

		col := querylog.New()
		c.Request = c.Request.WithContext(querylog.WithCollector(c.Request.Context(), col))
		c.Next()

		entries := col.Entries()
		log.Debug().
			Str("request_id", c.GetString(CtxRequestID)).
			Str("path", c.Request.URL.Path).
			Int("count", len(entries)).
			Dur("total", col.Total()).
			Interface("queries", entries).
			Msg("request queries")
	}
}
