package services

import (
	"github.com/juridico/conciliacao-api/internal/config"
	"github.com/juridico/conciliacao-api/internal/jobs"
	"github.com/juridico/conciliacao-api/internal/lock"
	"github.com/juridico/conciliacao-api/internal/matching"
	"github.com/juridico/conciliacao-api/internal/repository"
	"github.com/juridico/conciliacao-api/internal/storage"
)

// Services holds all service instances
type Services struct {
	Ledger         *LedgerService
	Obligation     *ObligationService
	Sync           *SyncService
	Consistency    *ConsistencyService
	Repasse        *RepasseService
	Reconciliation *ReconciliationService
	Alert          *AlertService
	Audit          *AuditService
	Job            *JobService
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, tx repository.Transactor, locker lock.Locker, store storage.Storage, worker *jobs.Worker, cfg *config.Config) *Services {
	auditSvc := NewAuditService(repos.Audit)
	alertSvc := NewAlertService(repos.Alert)

	syncSvc := NewSyncService(repos, tx, locker, auditSvc, cfg.BatchWorkers)
	ledgerSvc := NewLedgerService(repos, tx, locker, auditSvc)
	obligationSvc := NewObligationService(repos, tx, locker, syncSvc, auditSvc)
	consistencySvc := NewConsistencyService(repos, syncSvc, cfg.ConsistencyTolerance)
	repasseSvc := NewRepasseService(repos, tx, locker, store, auditSvc)
	reconciliationSvc := NewReconciliationService(repos, tx, locker, matching.NewScorer(cfg.Matcher), auditSvc, ReconciliationOptions{
		Tolerance: cfg.ReconcileTolerance,
		Threshold: cfg.AutoReconcileThreshold,
		Workers:   cfg.BatchWorkers,
	})

	return &Services{
		Ledger:         ledgerSvc,
		Obligation:     obligationSvc,
		Sync:           syncSvc,
		Consistency:    consistencySvc,
		Repasse:        repasseSvc,
		Reconciliation: reconciliationSvc,
		Alert:          alertSvc,
		Audit:          auditSvc,
		Job:            NewJobService(worker, obligationSvc, ledgerSvc, syncSvc, consistencySvc, repasseSvc, alertSvc),
	}
}
