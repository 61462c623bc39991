package models

import (
	"github.com/shopspring/decimal"
)

// Inconsistency is one finding of the consistency checker. Never persisted.
type Inconsistency struct {
	Type          string           `json:"type"`
	Severity      string           `json:"severity"`
	InstallmentID *uint            `json:"installment_id,omitempty"`
	LedgerEntryID *uint            `json:"ledger_entry_id,omitempty"`
	ObligationID  *uint            `json:"obligation_id,omitempty"`
	Expected      *decimal.Decimal `json:"expected,omitempty"`
	Actual        *decimal.Decimal `json:"actual,omitempty"`
	Description   string           `json:"description"`
	Repairable    bool             `json:"repairable"`
}

// Inconsistency types
const (
	InconsistencyMissingEntry   = "parcela_sem_lancamento"
	InconsistencyValueMismatch  = "valor_divergente"
	InconsistencyStatusMismatch = "status_incompativel"
	InconsistencyOrphanEntry    = "lancamento_orfao"
	InconsistencyBrokenLink     = "vinculo_quebrado"
	InconsistencyDuplicateEntry = "lancamento_duplicado"
	InconsistencyPayoutMismatch = "repasse_divergente"
)

// Severities
const (
	SeverityLow    = "baixa"
	SeverityMedium = "media"
	SeverityHigh   = "alta"
)

// ConsistencyReport aggregates the findings of one run
type ConsistencyReport struct {
	CheckedInstallments int             `json:"checked_installments"`
	CheckedEntries      int             `json:"checked_entries"`
	Inconsistencies     []Inconsistency `json:"inconsistencies"`
	CountByType         map[string]int  `json:"count_by_type"`
	CountBySeverity     map[string]int  `json:"count_by_severity"`
}

// Add appends a finding and updates the counters
func (r *ConsistencyReport) Add(inc Inconsistency) {
	if r.CountByType == nil {
		r.CountByType = make(map[string]int)
	}
	if r.CountBySeverity == nil {
		r.CountBySeverity = make(map[string]int)
	}
	r.Inconsistencies = append(r.Inconsistencies, inc)
	r.CountByType[inc.Type]++
	r.CountBySeverity[inc.Severity]++
}

// IsConsistent returns true when no finding was recorded
func (r *ConsistencyReport) IsConsistent() bool {
	return len(r.Inconsistencies) == 0
}
