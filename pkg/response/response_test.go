package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestOK(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	OK(c, map[string]string{"status": "healthy"})

	assert.Equal(t, http.StatusOK, w.Code)

	var resp Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, 200, resp.Code)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "healthy", data["status"])
}

func TestError_AppError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, apperror.ErrInsufficientFunds())

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, 400, resp.Code)
	assert.Equal(t, "WAL_001", resp.ErrorCode)
	assert.Equal(t, "Insufficient balance.", resp.Message)
}

func TestError_WrappedAppError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	wrappedErr := fmt.Errorf("outer: %w", apperror.ErrNotFound("Wallet").WithID("abc"))
	Error(c, wrappedErr)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "WAL_002", resp.ErrorCode)
	assert.Equal(t, "abc", resp.ID)
}

func TestError_UnknownError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, fmt.Errorf("something unexpected"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SYS_000", resp.ErrorCode)
	assert.Equal(t, "Internal server error.", resp.Message)
}

func TestFailure_ValidationFields(t *testing.T) {
	fields := apperror.FieldErrors{}
	fields.Add("amount", "gt", "amount must be greater than 0")

	body, err := Marshal(Failure(apperror.Validation(fields)))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"status": "error",
		"code": 422,
		"message": "Please correct highlighted errors.",
		"error_code": "VAL_001",
		"errors": {"amount": {"gt": "amount must be greater than 0"}}
	}`, string(body))
}

func TestMarshal_Deterministic(t *testing.T) {
	env := Success(200, map[string]interface{}{"b": 2, "a": 1})
	first, err := Marshal(env)
	require.NoError(t, err)
	second, err := Marshal(env)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, `{"status":"success","code":200,"data":{"a":1,"b":2}}`, string(first))
}

func TestRaw_Replay(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body := []byte(`{"status":"error","code":400}`)
	Raw(c, http.StatusBadRequest, body, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "true", w.Header().Get(HeaderReplay))
	assert.Equal(t, body, w.Body.Bytes())
}

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	assert.NotEmpty(t, RequestID(c))

	c.Set("request_id", "req-1")
	assert.Equal(t, "req-1", RequestID(c))
}
