package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Installment represents one scheduled payment of an obligation (parcela)
type Installment struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ObligationID   uint            `gorm:"not null;uniqueIndex:idx_parcela_obrigacao_numero" json:"obligation_id"`
	Number         int             `gorm:"not null;uniqueIndex:idx_parcela_obrigacao_numero" json:"number"`
	GrossAmount    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"gross_amount"`
	ContractualFee decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"contractual_fee"`
	StatutoryFee   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"statutory_fee"`
	ClientPayout   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"client_payout"`
	DueDate        time.Time       `gorm:"type:date;not null;index" json:"due_date"`
	PaymentDate    *time.Time      `gorm:"type:date" json:"payment_date"`
	Status         string          `gorm:"size:15;not null;default:pendente;index" json:"status"`
	RepasseStatus  string          `gorm:"size:25;not null;default:nao_aplicavel;index" json:"repasse_status"`
	LedgerEntryID  *uint           `gorm:"index" json:"ledger_entry_id"`

	DeclarationURL   *string    `json:"declaration_url"`
	TransferProofURL *string    `json:"transfer_proof_url"`
	RepasseDate      *time.Time `gorm:"type:date" json:"repasse_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	Obligation *Obligation `gorm:"foreignKey:ObligationID" json:"-"`
}

// TableName specifies the table name for Installment
func (Installment) TableName() string {
	return "parcelas_obrigacao"
}

// Installment status constants
const (
	InstallmentStatusPending   = "pendente"
	InstallmentStatusReceived  = "recebida"
	InstallmentStatusPaid      = "paga"
	InstallmentStatusOverdue   = "atrasada"
	InstallmentStatusCancelled = "cancelada"
)

// Repasse status constants
const (
	RepasseNotApplicable      = "nao_aplicavel"
	RepassePendingDeclaration = "pendente_declaracao"
	RepassePendingTransfer    = "pendente_transferencia"
	RepasseTransferred        = "repassado"
)

// Value is the amount that actually flows through the bank for this installment:
// gross principal plus the statutory fee charged to the counterparty
func (p *Installment) Value() decimal.Decimal {
	return p.GrossAmount.Add(p.StatutoryFee)
}

// IsOpen returns true while the installment still awaits payment
func (p *Installment) IsOpen() bool {
	return p.Status == InstallmentStatusPending || p.Status == InstallmentStatusOverdue
}

// IsSettled returns true once the installment was received or paid
func (p *Installment) IsSettled() bool {
	return p.Status == InstallmentStatusReceived || p.Status == InstallmentStatusPaid
}

// MaySettle returns true if a payment event may be registered
func (p *Installment) MaySettle() bool {
	return p.IsOpen()
}

// MayCancel returns true if the installment can be cancelled
func (p *Installment) MayCancel() bool {
	return p.IsOpen()
}

// MayDeclare returns true if the declaration of accounts can be registered
func (p *Installment) MayDeclare() bool {
	return p.Status == InstallmentStatusReceived && p.RepasseStatus == RepassePendingDeclaration
}

// MayRegisterTransfer returns true if the transfer proof can be registered
func (p *Installment) MayRegisterTransfer() bool {
	return p.RepasseStatus == RepassePendingTransfer && p.DeclarationURL != nil
}

// ImpliedEntryStatus is the ledger entry status mirrored from the installment status
func (p *Installment) ImpliedEntryStatus() string {
	switch p.Status {
	case InstallmentStatusReceived, InstallmentStatusPaid:
		return EntryStatusConfirmed
	case InstallmentStatusCancelled:
		return EntryStatusCancelled
	default:
		return EntryStatusPending
	}
}

// IsOverdueAt returns true if the installment is still open after its due date
func (p *Installment) IsOverdueAt(asOf time.Time) bool {
	return p.Status == InstallmentStatusPending && p.DueDate.Before(truncateDay(asOf))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
