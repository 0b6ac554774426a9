package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// DefaultIdempotencyTTL is how long a recorded response stays replayable.
const DefaultIdempotencyTTL = 24 * time.Hour

// MaxIdempotencyKeyLength is the longest key, in characters, that can be
// stored as a record key and as a ledger reference id.
const MaxIdempotencyKeyLength = 255

// IdempotencyRecord binds a client key to the first outcome produced for it.
type IdempotencyRecord struct {
	Key          string    `json:"key"`
	Endpoint     string    `json:"endpoint"`     // e.g. "transfer:<from>:<to>"
	RequestHash  string    `json:"request_hash"` // sha256 of the canonical request payload
	ResponseCode int       `json:"response_code"`
	ResponseBody []byte    `json:"response_body"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the record can no longer be replayed at now.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Operation names a mutating engine operation.
type Operation string

const (
	OperationDeposit  Operation = "deposit"
	OperationWithdraw Operation = "withdraw"
	OperationTransfer Operation = "transfer"
)

// DepositEndpoint builds the endpoint fingerprint of a deposit.
func DepositEndpoint(walletID string) string {
	return string(OperationDeposit) + ":" + walletID
}

// WithdrawEndpoint builds the endpoint fingerprint of a withdrawal.
func WithdrawEndpoint(walletID string) string {
	return string(OperationWithdraw) + ":" + walletID
}

// TransferEndpoint builds the endpoint fingerprint of a transfer.
func TransferEndpoint(from, to string) string {
	return string(OperationTransfer) + ":" + from + ":" + to
}

// HashPayload returns the hex sha256 of payload. JSON payloads are hashed in
// canonical form (sorted keys, no insignificant whitespace) so formatting
// differences between retries do not count as a different request.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(canonicalJSON(payload))
	return hex.EncodeToString(sum[:])
}

func canonicalJSON(payload []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return payload
	}
	out, err := json.Marshal(v)
	if err != nil {
		return payload
	}
	return out
}
