package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-ledger/pkg/logger"
	"wallet-ledger/pkg/querylog"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxRequestID))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	generated := w.Header().Get(HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter("info", &buf)

	r := gin.New()
	r.Use(RequestID(), RequestLogger(log))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, float64(http.StatusNotFound), entry["status"])
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zerolog.Nop()))
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"error_code":"SYS_000"`)
}

func TestQueryCollector(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		header  string
		enabled bool
	}{
		{"debug mode with header", gin.DebugMode, "1", true},
		{"debug mode without header", gin.DebugMode, "", false},
		{"release mode ignores header", gin.ReleaseMode, "1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := logger.NewWithWriter("debug", &buf)

			r := gin.New()
			r.Use(QueryCollector(tt.mode, log))
			r.GET("/q", func(c *gin.Context) {
				ctx := c.Request.Context()
				querylog.Record(ctx, "SELECT  1", nil, time.Millisecond, nil)
				if querylog.FromContext(ctx) != nil {
					c.Status(http.StatusOK)
					return
				}
				c.Status(http.StatusNoContent)
			})

			req := httptest.NewRequest(http.MethodGet, "/q", nil).WithContext(context.Background())
			if tt.header != "" {
				req.Header.Set(HeaderDebugQueries, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if tt.enabled {
				assert.Equal(t, http.StatusOK, w.Code)
				assert.Contains(t, buf.String(), `"message":"request queries"`)
				assert.Contains(t, buf.String(), "SELECT 1")
			} else {
				assert.Equal(t, http.StatusNoContent, w.Code)
				assert.Empty(t, buf.String())
			}
		})
	}
}
