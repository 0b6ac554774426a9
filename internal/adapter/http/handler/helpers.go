package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// bindBody reads the request body into v and returns the raw bytes, which
// the engine hashes for idempotency. A malformed body never reaches the
// engine and is therefore not recorded against the idempotency key.
func bindBody(c *gin.Context, v any) ([]byte, *apperror.AppError) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperror.ErrPayloadTooLarge()
		}
		return nil, apperror.BadRequest("Cannot read request body")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, apperror.BadRequest("Malformed JSON body")
	}
	return raw, nil
}
