package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry represents a general-ledger posting (lançamento), receivable or payable
type LedgerEntry struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Kind          string          `json:"kind" gorm:"size:10;not null;index"` // receita, despesa
	Description   string          `json:"description" gorm:"not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`
	EntryDate     time.Time       `json:"entry_date" gorm:"type:date;not null"`
	DueDate       time.Time       `json:"due_date" gorm:"type:date;not null;index"`
	EffectiveDate *time.Time      `json:"effective_date" gorm:"type:date;index"`
	AccrualDate   *time.Time      `json:"accrual_date" gorm:"type:date"`
	Status        string          `json:"status" gorm:"size:20;not null;default:pendente;index"`
	Origin        string          `json:"origin" gorm:"size:30;not null;default:manual"`
	PaymentMethod *string         `json:"payment_method" gorm:"size:30"`

	BankAccountID  *uint   `json:"bank_account_id" gorm:"index"`
	CostCenterID   *uint   `json:"cost_center_id"`
	ChartAccountID *uint   `json:"chart_account_id"`
	DocumentRef    *string `json:"document_ref"`
	Notes          *string `json:"notes" gorm:"type:text"`

	ClientID      *uint `json:"client_id" gorm:"index"`
	SupplierID    *uint `json:"supplier_id"`
	CaseID        *uint `json:"case_id" gorm:"index"`
	ContractID    *uint `json:"contract_id"`
	InstallmentID *uint `json:"installment_id" gorm:"index"`
	ObligationID  *uint `json:"obligation_id" gorm:"index"`

	Recurring           bool    `json:"recurring" gorm:"not null;default:false"`
	RecurrenceFrequency *string `json:"recurrence_frequency" gorm:"size:20"` // mensal, trimestral, anual
	TemplateID          *uint   `json:"template_id" gorm:"index"`
	ReversalOfID        *uint   `json:"reversal_of_id" gorm:"index"`

	Attachments []Attachment `json:"attachments" gorm:"serializer:json;type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Attachment is a file attached to a ledger entry
type Attachment struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Mime       string    `json:"mime"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TableName specifies the table name for GORM
func (LedgerEntry) TableName() string {
	return "lancamentos"
}

// Entry kinds
const (
	EntryKindRevenue = "receita"
	EntryKindExpense = "despesa"
)

// Entry status constants
const (
	EntryStatusPending   = "pendente"
	EntryStatusConfirmed = "confirmado"
	EntryStatusCancelled = "cancelado"
	EntryStatusReversed  = "estornado"
)

// Entry origins
const (
	EntryOriginManual     = "manual"
	EntryOriginSync       = "sincronizacao_automatica"
	EntryOriginReversal   = "estorno"
	EntryOriginRecurrence = "recorrencia"
)

// Recurrence frequencies
const (
	FrequencyMonthly   = "mensal"
	FrequencyQuarterly = "trimestral"
	FrequencyYearly    = "anual"
)

// IsValidEntryKind reports whether kind is receita or despesa
func IsValidEntryKind(kind string) bool {
	return kind == EntryKindRevenue || kind == EntryKindExpense
}

// OppositeKind returns the kind used by a compensating entry
func OppositeKind(kind string) string {
	if kind == EntryKindRevenue {
		return EntryKindExpense
	}
	return EntryKindRevenue
}

// IsActive returns true while the entry still counts in the ledger as an open or effective posting
func (e *LedgerEntry) IsActive() bool {
	return e.Status == EntryStatusPending || e.Status == EntryStatusConfirmed
}

// MayConfirm returns true if the entry can be effectuated
func (e *LedgerEntry) MayConfirm() bool {
	return e.Status == EntryStatusPending
}

// MayCancel returns true if the entry can be cancelled
func (e *LedgerEntry) MayCancel() bool {
	return e.Status == EntryStatusPending
}

// MayReverse returns true if the entry can be reversed
func (e *LedgerEntry) MayReverse() bool {
	return e.Status == EntryStatusConfirmed
}

// MayEditFinancials returns true while amount and dates may still be changed
func (e *LedgerEntry) MayEditFinancials() bool {
	return e.Status == EntryStatusPending
}

// ReferenceDate is the date used when matching against bank transactions
func (e *LedgerEntry) ReferenceDate() time.Time {
	if e.EffectiveDate != nil {
		return *e.EffectiveDate
	}
	return e.DueDate
}

// IsRecurringTemplate returns true for the entry that originates a recurrence series
func (e *LedgerEntry) IsRecurringTemplate() bool {
	return e.Recurring && e.TemplateID == nil && e.RecurrenceFrequency != nil
}
