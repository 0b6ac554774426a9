package postgres

import (
	"context"

	"wallet-ledger/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a PostgreSQL-backed audit repository.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (id, action, resource_type, resource_id, idempotency_key, status_code, details, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		log.ID, string(log.Action), log.ResourceType, log.ResourceID, log.IdempotencyKey,
		log.StatusCode, log.Details, log.IPAddress, log.UserAgent, log.CreatedAt,
	)
	if err != nil {
		return wrap("insert audit log", err)
	}
	return nil
}
