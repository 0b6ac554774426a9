package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	// HeaderReplay marks a response that was served from the idempotency store.
	HeaderReplay = "X-Idempotent-Replay"
)

// Envelope is the result shape shared by every endpoint.
type Envelope struct {
	Status    string               `json:"status"`
	Code      int                  `json:"code"`
	Message   string               `json:"message,omitempty"`
	ErrorCode string               `json:"error_code,omitempty"`
	Data      interface{}          `json:"data,omitempty"`
	Errors    apperror.FieldErrors `json:"errors,omitempty"`
	ID        string               `json:"id,omitempty"`
}

// Success builds a success envelope.
func Success(code int, data interface{}) Envelope {
	return Envelope{Status: StatusSuccess, Code: code, Data: data}
}

// Failure builds an error envelope. Errors that are not AppErrors are
// reported as a generic 500.
func Failure(err error) Envelope {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return Envelope{
			Status:    StatusError,
			Code:      appErr.HTTPStatus,
			Message:   appErr.Message,
			ErrorCode: appErr.Code,
			Errors:    appErr.Fields,
			ID:        appErr.ID,
		}
	}
	return Envelope{
		Status:    StatusError,
		Code:      http.StatusInternalServerError,
		Message:   "Internal server error.",
		ErrorCode: "SYS_000",
	}
}

// Marshal serializes an envelope. The output is the exact body written to
// the client and stored for idempotent replay.
func Marshal(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Success(http.StatusOK, data))
}

// Error sends an error response. It checks if err is an *apperror.AppError
// and maps it accordingly, otherwise returns 500.
func Error(c *gin.Context, err error) {
	env := Failure(err)
	c.JSON(env.Code, env)
}

// Raw writes a pre-serialized envelope verbatim.
func Raw(c *gin.Context, status int, body []byte, replayed bool) {
	if replayed {
		c.Header(HeaderReplay, "true")
	}
	c.Data(status, "application/json; charset=utf-8", body)
}

// RequestID retrieves request ID from context, or generates one.
func RequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
