package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emmanuel-nwafor/foremade-backend-sub000/internal/models"
)

// AuditService writes immutable audit trail entries. Writes are best-effort:
// a failed audit append never rolls back the money movement it describes,
// but it is always logged.
type AuditService struct {
	store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Write stores a single immutable audit record.
func (s *AuditService) Write(ctx context.Context, entityType string, entityID uuid.UUID, actorID *uuid.UUID, action, prevState, nextState string, metadata []byte) {
	rec := &models.AuditRecord{
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Action:     action,
		PrevState:  prevState,
		NextState:  nextState,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.AppendAudit(ctx, rec); err != nil {
		zap.L().Error("audit write failed",
			zap.Error(err),
			zap.String("entity_id", entityID.String()),
			zap.String("action", action),
		)
	}
}
