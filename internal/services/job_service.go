package services

import (
	"context"
	"time"

	"github.com/juridico/conciliacao-api/internal/jobs"
	"github.com/juridico/conciliacao-api/pkg/logger"
)

// Scheduled job names
const (
	JobMarkOverdue      = "marcar_atrasadas"
	JobRecurrences      = "gerar_recorrencias"
	JobSyncInstallments = "sincronizar_parcelas"
	JobConsistencyCheck = "verificar_consistencia"
	JobPendingRepasse   = "lembrar_repasses"
)

// JobService wires the idempotent service operations into the background worker
type JobService struct {
	worker      *jobs.Worker
	obligations *ObligationService
	ledger      *LedgerService
	sync        *SyncService
	consistency *ConsistencyService
	repasse     *RepasseService
	alerts      *AlertService
}

func NewJobService(worker *jobs.Worker, obligations *ObligationService, ledger *LedgerService, sync *SyncService, consistency *ConsistencyService, repasse *RepasseService, alerts *AlertService) *JobService {
	s := &JobService{
		worker:      worker,
		obligations: obligations,
		ledger:      ledger,
		sync:        sync,
		consistency: consistency,
		repasse:     repasse,
		alerts:      alerts,
	}

	worker.Register(JobMarkOverdue, s.markOverdue)
	worker.Register(JobRecurrences, s.generateRecurrences)
	worker.Register(JobSyncInstallments, s.syncInstallments)
	worker.Register(JobConsistencyCheck, s.checkConsistency)
	worker.Register(JobPendingRepasse, s.remindRepasse)
	return s
}

// Schedule starts the periodic jobs
func (s *JobService) Schedule(syncInterval, consistencyInterval time.Duration) error {
	schedules := []struct {
		name      string
		interval  time.Duration
		immediate bool
	}{
		{JobMarkOverdue, 6 * time.Hour, true},
		{JobRecurrences, 12 * time.Hour, true},
		{JobSyncInstallments, syncInterval, false},
		{JobConsistencyCheck, consistencyInterval, false},
		{JobPendingRepasse, 24 * time.Hour, false},
	}
	for _, sc := range schedules {
		if err := s.worker.ScheduleEvery(sc.name, sc.interval, sc.immediate); err != nil {
			return err
		}
	}
	return nil
}

// Trigger queues a job for immediate execution
func (s *JobService) Trigger(name string) error {
	return s.worker.Enqueue(name)
}

// GetStatus returns the worker statistics
func (s *JobService) GetStatus() jobs.WorkerStats {
	return s.worker.GetStats()
}

func (s *JobService) markOverdue(ctx context.Context) error {
	summary, err := s.obligations.MarkOverdue(ctx, time.Now())
	if err != nil {
		return err
	}
	s.alerts.RaiseOverdue(ctx, summary)
	return nil
}

func (s *JobService) generateRecurrences(ctx context.Context) error {
	_, err := s.ledger.GenerateRecurrences(ctx, time.Now())
	return err
}

func (s *JobService) syncInstallments(ctx context.Context) error {
	batch, err := s.sync.SyncPending(ctx)
	if err != nil {
		return err
	}
	s.alerts.RaiseSyncFailures(ctx, batch)
	return nil
}

func (s *JobService) checkConsistency(ctx context.Context) error {
	report, err := s.consistency.CheckConsistency(ctx, nil)
	if err != nil {
		return err
	}
	if created := s.alerts.RaiseInconsistencies(ctx, report); created > 0 {
		logger.FromContext(ctx).Warn("New inconsistencies detected", "new_alerts", created, "by_type", report.CountByType)
	}
	return nil
}

func (s *JobService) remindRepasse(ctx context.Context) error {
	pending, err := s.repasse.ListPendingRepasse(ctx)
	if err != nil {
		return err
	}
	s.alerts.RaisePendingRepasse(ctx, pending)
	return nil
}
