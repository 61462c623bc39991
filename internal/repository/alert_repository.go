package repository

import (
	"context"
	"time"

	"github.com/juridico/conciliacao-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AlertRepository persists the finance alert feed
type AlertRepository interface {
	CreateIfAbsent(ctx context.Context, alert *models.Alert) (bool, error)
	FindByID(ctx context.Context, id uint) (*models.Alert, error)
	List(ctx context.Context, unreadOnly bool, query *ListQuery) ([]models.Alert, int64, error)
	MarkAsRead(ctx context.Context, id uint) error
	CountUnread(ctx context.Context) (int64, error)
}

type alertRepository struct {
	db *gorm.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

// CreateIfAbsent inserts the alert unless one with the same fingerprint exists
func (r *alertRepository) CreateIfAbsent(ctx context.Context, alert *models.Alert) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fingerprint"}},
			DoNothing: true,
		}).
		Create(alert)
	if result.Error != nil {
		return false, wrapErr(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *alertRepository) FindByID(ctx context.Context, id uint) (*models.Alert, error) {
	var alert models.Alert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) List(ctx context.Context, unreadOnly bool, query *ListQuery) ([]models.Alert, int64, error) {
	var alerts []models.Alert
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Alert{})
	if unreadOnly {
		db = db.Where("read_at IS NULL")
	}
	if val := query.Filters["alert_type"]; val != "" {
		db = db.Where("alert_type = ?", val)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := paginate(db, query, "created_at DESC", nil).Find(&alerts).Error
	return alerts, total, err
}

func (r *alertRepository) MarkAsRead(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Alert{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", time.Now())
	return result.Error
}

func (r *alertRepository) CountUnread(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Alert{}).Where("read_at IS NULL").Count(&count).Error
	return count, err
}
