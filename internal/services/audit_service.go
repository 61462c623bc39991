package services

import (
	"context"
	"encoding/json"

	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/juridico/conciliacao-api/internal/repository"
	"github.com/juridico/conciliacao-api/pkg/logger"
)

// Actor identifies who triggered an operation. Background jobs use SystemActor.
type Actor struct {
	OperatorID uint
	IP         string
	UserAgent  string
}

// SystemActor is the actor recorded for scheduled jobs
var SystemActor = Actor{OperatorID: 0, IP: "", UserAgent: "scheduler"}

type AuditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Record writes an audit entry. Failures are logged and never surface to the caller.
func (s *AuditService) Record(ctx context.Context, actor Actor, action, entity string, entityID uint, details any) {
	if s == nil || s.repo == nil {
		return
	}

	var text string
	switch d := details.(type) {
	case nil:
	case string:
		text = d
	default:
		if b, err := json.Marshal(d); err == nil {
			text = string(b)
		}
	}

	entry := &models.AuditLog{
		OperatorID: actor.OperatorID,
		Action:     action,
		Entity:     entity,
		EntityID:   entityID,
		Details:    text,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		logger.FromContext(ctx).Error("Failed to record audit log", "action", action, "entity", entity, "entity_id", entityID, "error", err)
	}
}

// List retrieves audit logs with filters
func (s *AuditService) List(ctx context.Context, query *repository.ListQuery) ([]models.AuditLog, int64, error) {
	logs, total, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, 0, translate(err, "auditoria")
	}
	return logs, total, nil
}
