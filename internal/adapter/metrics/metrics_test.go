package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

func TestMetrics_EngineCounters(t *testing.T) {
	m := newTestMetrics()

	m.ObserveOperation(domain.OperationDeposit, 200, false, 15*time.Millisecond)
	m.ObserveOperation(domain.OperationDeposit, 200, true, time.Millisecond)
	m.IdempotencyConflict(domain.OperationTransfer)
	m.PublishFailed()

	out := scrape(t, m)
	assert.Contains(t, out, `wallet_ledger_operations_total{operation="deposit",replayed="false",status="200"} 1`)
	assert.Contains(t, out, `wallet_ledger_operations_total{operation="deposit",replayed="true",status="200"} 1`)
	assert.Contains(t, out, `wallet_ledger_operation_duration_seconds_count{operation="deposit"} 2`)
	assert.Contains(t, out, `wallet_ledger_idempotency_conflicts_total{operation="transfer"} 1`)
	assert.Contains(t, out, `wallet_ledger_event_publish_failures_total 1`)
}

func TestMetrics_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newTestMetrics()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/v1/wallets/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/api/v1/wallets/a", "/api/v1/wallets/b", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, m)
	assert.Contains(t, out, `wallet_ledger_http_requests_total{method="GET",route="/api/v1/wallets/:id",status="404"} 2`)
	assert.Contains(t, out, `wallet_ledger_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
}

func TestNew_IncludesRuntimeCollectors(t *testing.T) {
	out := scrape(t, New())
	assert.Contains(t, out, "go_goroutines")
}
