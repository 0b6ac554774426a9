package apperror

import (
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an AppError for idempotency and transport decisions.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindBusiness   Kind = "business"
	KindFatal      Kind = "fatal"
)

// FieldErrors maps a field name to its failed rules and their messages.
type FieldErrors map[string]map[string]string

// Add records a failed rule for field.
func (f FieldErrors) Add(field, rule, message string) {
	if f[field] == nil {
		f[field] = make(map[string]string)
	}
	f[field][rule] = message
}

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Kind       Kind        `json:"-"`
	Code       string      `json:"error_code"`
	Message    string      `json:"message"`
	HTTPStatus int         `json:"-"`
	Fields     FieldErrors `json:"errors,omitempty"`
	ID         string      `json:"id,omitempty"`
	Err        error       `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error is an infrastructure failure rather than a
// deterministic business outcome.
func (e *AppError) Fatal() bool {
	return e.Kind == KindFatal
}

// WithID returns a copy of e carrying the identifier of the offending resource.
func (e *AppError) WithID(id string) *AppError {
	cp := *e
	cp.ID = id
	return &cp
}

// New creates a new AppError. The kind is derived from the HTTP status.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Kind:       kindFor(httpStatus),
		Code:       code,
		Message:    NormalizeMessage(httpStatus, message),
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	e := New(code, message, httpStatus)
	e.Err = err
	return e
}

// NormalizeMessage trims message and terminates it with exactly one period.
// An empty 422 message becomes the generic form-error text.
func NormalizeMessage(httpStatus int, message string) string {
	if httpStatus == http.StatusUnprocessableEntity && strings.TrimSpace(message) == "" {
		message = "Please correct highlighted errors."
	}
	message = strings.TrimSpace(message)
	return strings.TrimRight(message, ".") + "."
}

func kindFor(status int) Kind {
	switch {
	case status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= http.StatusInternalServerError:
		return KindFatal
	default:
		return KindBusiness
	}
}

// ---- Idempotency (IDEM) ----

func ErrIdempotencyKeyRequired() *AppError {
	return New("IDEM_001", "Idempotency-Key header is required", http.StatusBadRequest)
}

func ErrIdempotencyEndpointConflict() *AppError {
	return New("IDEM_002", "Idempotency key already used with different endpoint operation", http.StatusBadRequest)
}

func ErrIdempotencyPayloadConflict() *AppError {
	return New("IDEM_003", "Idempotency key already used with different request body", http.StatusBadRequest)
}

func ErrIdempotencyExpired() *AppError {
	return New("IDEM_004", "Idempotency key has expired", http.StatusBadRequest)
}

func ErrIdempotencyKeyTooLong(max int) *AppError {
	return New("IDEM_005", fmt.Sprintf("Idempotency key may not be longer than %d characters", max), http.StatusBadRequest)
}

// ---- Wallet Business Logic (WAL) ----

func ErrInsufficientFunds() *AppError {
	return New("WAL_001", "Insufficient balance", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("WAL_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrCurrencyMismatch() *AppError {
	return New("WAL_003", "Wallet currencies do not match", http.StatusBadRequest)
}

func ErrSameWalletTransfer() *AppError {
	return New("WAL_004", "Cannot transfer to the same wallet", http.StatusBadRequest)
}

func ErrBalanceOverflow() *AppError {
	return New("WAL_005", "Resulting balance exceeds the supported maximum", http.StatusBadRequest)
}

// ---- Validation (VAL) ----

// Validation returns an aggregated field-validation error.
func Validation(fields FieldErrors) *AppError {
	e := New("VAL_001", "", http.StatusUnprocessableEntity)
	e.Fields = fields
	return e
}

// BadRequest is a malformed request that never reached the engine.
func BadRequest(message string) *AppError {
	return New("VAL_002", message, http.StatusBadRequest)
}

// ErrPayloadTooLarge is a request body over the configured limit.
func ErrPayloadTooLarge() *AppError {
	return New("VAL_003", "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
