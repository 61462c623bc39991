package repository

import (
	"context"

	"github.com/juridico/conciliacao-api/internal/models"
	"gorm.io/gorm"
)

// AuditRepository persists the audit trail
type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	List(ctx context.Context, query *ListQuery) ([]models.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, query *ListQuery) ([]models.AuditLog, int64, error) {
	var logs []models.AuditLog
	var total int64

	db := r.db.WithContext(ctx).Model(&models.AuditLog{})
	if val := query.Filters["entity"]; val != "" {
		db = db.Where("entity = ?", val)
	}
	if val := query.Filters["entity_id"]; val != "" {
		db = db.Where("entity_id = ?", val)
	}
	if val := query.Filters["operator_id"]; val != "" {
		db = db.Where("operator_id = ?", val)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(db, query, "created_at DESC", nil).Find(&logs).Error
	return logs, total, err
}
