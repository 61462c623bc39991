package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ImportedTransaction is a bank statement line imported from an OFX/CSV file
type ImportedTransaction struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	BankAccountID   uint            `gorm:"not null;index" json:"bank_account_id"`
	BatchID         string          `gorm:"size:36;not null;index" json:"batch_id"`
	TransactionDate time.Time       `gorm:"type:date;not null;index" json:"transaction_date"`
	Description     string          `gorm:"not null" json:"description"`
	Amount          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"` // always positive
	Kind            string          `gorm:"size:10;not null;index" json:"kind"`        // credito, debito
	Document        *string         `gorm:"size:100" json:"document"`
	DedupHash       string          `gorm:"size:64;not null;uniqueIndex" json:"-"`
	RawPayload      *string         `gorm:"type:text" json:"raw_payload,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`

	// Associations
	Reconciliation *BankReconciliation `gorm:"foreignKey:TransactionID" json:"reconciliation,omitempty"`
}

// TableName specifies the table name for ImportedTransaction
func (ImportedTransaction) TableName() string {
	return "transacoes_importadas"
}

// Transaction kinds
const (
	TransactionKindCredit = "credito"
	TransactionKindDebit  = "debito"
)

// IsValidTransactionKind reports whether kind is credito or debito
func IsValidTransactionKind(kind string) bool {
	return kind == TransactionKindCredit || kind == TransactionKindDebit
}

// EntryKindForTransaction maps a bank movement onto the ledger entry kind it may settle
func EntryKindForTransaction(kind string) string {
	if kind == TransactionKindDebit {
		return EntryKindExpense
	}
	return EntryKindRevenue
}

// BankReconciliation links one imported transaction to at most one ledger entry (conciliação bancária)
type BankReconciliation struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	TransactionID uint             `gorm:"not null;uniqueIndex" json:"transaction_id"`
	LedgerEntryID *uint            `gorm:"index" json:"ledger_entry_id"`
	Status        string           `gorm:"size:15;not null;default:pendente;index" json:"status"`
	Difference    *decimal.Decimal `gorm:"type:decimal(15,2)" json:"difference"`
	ReconciledAt  *time.Time       `json:"reconciled_at"`
	ReconciledBy  *uint            `json:"reconciled_by"`
	Notes         *string          `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// TableName specifies the table name for BankReconciliation
func (BankReconciliation) TableName() string {
	return "conciliacoes_bancarias"
}

// Reconciliation status constants
const (
	ReconciliationPending   = "pendente"
	ReconciliationMatched   = "conciliado"
	ReconciliationDivergent = "divergente"
	ReconciliationIgnored   = "ignorado"
)

// IsLinked returns true when the record points at a ledger entry
func (r *BankReconciliation) IsLinked() bool {
	return r.LedgerEntryID != nil
}

// Reset clears the link and returns the record to pendente
func (r *BankReconciliation) Reset() {
	r.Status = ReconciliationPending
	r.LedgerEntryID = nil
	r.Difference = nil
	r.ReconciledAt = nil
	r.ReconciledBy = nil
}
