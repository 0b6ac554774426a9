package memory

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"
)

type auditRepo struct{ s *Store }

func (r auditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	start := time.Now()
	r.s.mu.Lock()
	r.s.audit = append(r.s.audit, *log)
	r.s.mu.Unlock()
	trace(ctx, start, "INSERT audit_log", nil, string(log.Action))
	return nil
}
