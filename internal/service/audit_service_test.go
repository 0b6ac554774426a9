package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, log *domain.AuditLog) error {
			if log.Action != domain.AuditActionDeposit {
				t.Errorf("expected DEPOSIT, got %s", log.Action)
			}
			close(done)
			return nil
		},
	)

	svc.Log(context.Background(), &domain.AuditLog{
		Action:         domain.AuditActionDeposit,
		ResourceType:   "wallet",
		ResourceID:     uuid.NewString(),
		IdempotencyKey: "dep-1",
		StatusCode:     http.StatusOK,
		IPAddress:      "127.0.0.1",
	})

	select {
	case <-done:
		// OK
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, newTestLogger())

	// Should not panic
	svc.Log(context.Background(), &domain.AuditLog{
		Action:    domain.AuditActionCreateWallet,
		IPAddress: "127.0.0.1",
	})
	svc.Wait()
}

func TestAuditService_Log_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionWithdraw})
	svc.Wait()
}

func TestAuditService_Log_FillsIdentity(t *testing.T) {
	store := memory.NewStore()
	svc := NewAuditService(store.Audit(), newTestLogger())

	// A cancelled request context must not drop the write.
	ctx, cancel := context.WithCancel(context.Background())
	svc.Log(ctx, &domain.AuditLog{Action: domain.AuditActionTransfer, StatusCode: http.StatusOK})
	cancel()
	svc.Wait()

	logs := store.AuditLogs()
	require.Len(t, logs, 1)
	assert.NotEqual(t, uuid.Nil, logs[0].ID)
	assert.False(t, logs[0].CreatedAt.IsZero())
	assert.Equal(t, domain.AuditActionTransfer, logs[0].Action)
}
