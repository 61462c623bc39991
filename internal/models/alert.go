package models

import (
	"time"
)

// Alert is a persisted notice raised by background checks for the finance team
type Alert struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	AlertType   string     `gorm:"size:40;not null;index" json:"alert_type"`
	Severity    string     `gorm:"size:10;not null" json:"severity"`
	Title       string     `gorm:"not null" json:"title"`
	Message     string     `gorm:"type:text;not null" json:"message"`
	Fingerprint string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ReadAt      *time.Time `gorm:"index" json:"read_at"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Alert
func (Alert) TableName() string {
	return "alertas_financeiros"
}

// Alert type constants
const (
	AlertTypeInconsistency  = "inconsistencia"
	AlertTypeSyncFailure    = "falha_sincronizacao"
	AlertTypeOverdue        = "parcela_atrasada"
	AlertTypePendingRepasse = "repasse_pendente"
)

// IsRead returns true if the alert has been read
func (a *Alert) IsRead() bool {
	return a.ReadAt != nil
}

// MarkAsRead marks the alert as read
func (a *Alert) MarkAsRead() {
	now := time.Now()
	a.ReadAt = &now
}

// AlertResponse is the JSON response format
type AlertResponse struct {
	ID        uint       `json:"id"`
	AlertType string     `json:"alert_type"`
	Severity  string     `json:"severity"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// ToResponse converts Alert to AlertResponse
func (a *Alert) ToResponse() AlertResponse {
	return AlertResponse{
		ID:        a.ID,
		AlertType: a.AlertType,
		Severity:  a.Severity,
		Title:     a.Title,
		Message:   a.Message,
		Read:      a.IsRead(),
		ReadAt:    a.ReadAt,
		CreatedAt: a.CreatedAt,
	}
}
