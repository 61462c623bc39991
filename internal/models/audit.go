package models

import (
	"time"
)

// AuditLog represents an audit trail entry for a financial mutation
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OperatorID uint      `gorm:"not null;index" json:"operator_id"`
	Action     string    `gorm:"size:50;not null" json:"action"` // CREATE, UPDATE, CONFIRM, CANCEL, REVERSE, SYNC, RECONCILE
	Entity     string    `gorm:"size:50;not null;index:idx_audit_entity" json:"entity"`
	EntityID   uint      `gorm:"index:idx_audit_entity" json:"entity_id"`
	Details    string    `gorm:"type:text" json:"details"`
	IPAddress  string    `gorm:"size:45" json:"ip_address"`
	UserAgent  string    `gorm:"size:255" json:"user_agent"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}

// Audit actions
const (
	AuditActionCreate     = "CREATE"
	AuditActionUpdate     = "UPDATE"
	AuditActionConfirm    = "CONFIRM"
	AuditActionCancel     = "CANCEL"
	AuditActionReverse    = "REVERSE"
	AuditActionSync       = "SYNC"
	AuditActionReconcile  = "RECONCILE"
	AuditActionUnlink     = "UNRECONCILE"
	AuditActionImport     = "IMPORT"
	AuditActionRepasse    = "REPASSE"
	AuditActionAttachment = "ATTACH"
)

// Audited entities
const (
	AuditEntityLedgerEntry    = "Lancamento"
	AuditEntityInstallment    = "Parcela"
	AuditEntityObligation     = "Obrigacao"
	AuditEntityTransaction    = "TransacaoImportada"
	AuditEntityReconciliation = "Conciliacao"
)
