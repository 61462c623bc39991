package handlers

import (
	"github.com/juridico/conciliacao-api/internal/services"
)

// Handlers holds all handler instances
type Handlers struct {
	Health         *HealthHandler
	Split          *SplitHandler
	Obligation     *ObligationHandler
	Installment    *InstallmentHandler
	Ledger         *LedgerHandler
	Consistency    *ConsistencyHandler
	Reconciliation *ReconciliationHandler
	Document       *DocumentHandler
	Alert          *AlertHandler
	Audit          *AuditHandler
	Job            *JobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services) *Handlers {
	return &Handlers{
		Health:         NewHealthHandler(),
		Split:          NewSplitHandler(),
		Obligation:     NewObligationHandler(svcs.Obligation, svcs.Sync),
		Installment:    NewInstallmentHandler(svcs.Obligation, svcs.Sync, svcs.Repasse),
		Ledger:         NewLedgerHandler(svcs.Ledger),
		Consistency:    NewConsistencyHandler(svcs.Consistency, svcs.Alert),
		Reconciliation: NewReconciliationHandler(svcs.Reconciliation),
		Document:       NewDocumentHandler(svcs.Repasse),
		Alert:          NewAlertHandler(svcs.Alert),
		Audit:          NewAuditHandler(svcs.Audit),
		Job:            NewJobHandler(svcs.Job),
	}
}
