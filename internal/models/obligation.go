package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Obligation represents a settlement or judgment debt paid in installments (obrigação jurídica)
type Obligation struct {
	ID                    uint            `gorm:"primaryKey" json:"id"`
	Direction             string          `gorm:"size:15;not null;index" json:"direction"` // recebimento, pagamento
	Description           string          `gorm:"not null" json:"description"`
	CaseID                *uint           `gorm:"index" json:"case_id"`
	ClientID              *uint           `gorm:"index" json:"client_id"`
	CounterpartyName      string          `json:"counterparty_name"`
	TotalValue            decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total_value"`
	ContractualFeePercent decimal.Decimal `gorm:"type:decimal(7,4);not null;default:0" json:"contractual_fee_percent"`
	BankAccountID         *uint           `json:"bank_account_id"`
	PaymentMethod         *string         `gorm:"size:30" json:"payment_method"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`

	// Associations
	Installments []Installment `gorm:"foreignKey:ObligationID;constraint:OnDelete:CASCADE" json:"installments,omitempty"`
}

// TableName specifies the table name for Obligation
func (Obligation) TableName() string {
	return "obrigacoes_juridicas"
}

// Obligation direction constants
const (
	DirectionReceivable = "recebimento"
	DirectionPayable    = "pagamento"
)

// IsValidDirection reports whether direction is recebimento or pagamento
func IsValidDirection(direction string) bool {
	return direction == DirectionReceivable || direction == DirectionPayable
}

// EntryKind maps the obligation direction onto the ledger entry kind
func (o *Obligation) EntryKind() string {
	if o.Direction == DirectionPayable {
		return EntryKindExpense
	}
	return EntryKindRevenue
}

// HasClient returns true when a client is linked to the obligation
func (o *Obligation) HasClient() bool {
	return o.ClientID != nil && *o.ClientID != 0
}

// OwesClientPayout returns true when received installments must be passed on to the client
func (o *Obligation) OwesClientPayout() bool {
	return o.Direction == DirectionReceivable && o.HasClient()
}

// OutstandingBalance sums the gross principal of installments still open
func (o *Obligation) OutstandingBalance() decimal.Decimal {
	total := decimal.Zero
	for i := range o.Installments {
		if o.Installments[i].IsOpen() {
			total = total.Add(o.Installments[i].GrossAmount)
		}
	}
	return total
}

// ObligationResponse is the JSON response format for obligations
type ObligationResponse struct {
	Obligation
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
}

// ToResponse converts Obligation to ObligationResponse
func (o *Obligation) ToResponse() ObligationResponse {
	return ObligationResponse{
		Obligation:         *o,
		OutstandingBalance: o.OutstandingBalance(),
	}
}
