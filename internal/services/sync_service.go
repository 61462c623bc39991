package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/juridico/conciliacao-api/internal/lock"
	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/juridico/conciliacao-api/internal/repository"
	"github.com/juridico/conciliacao-api/internal/statemachine"
	"github.com/juridico/conciliacao-api/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Sync outcomes
const (
	SyncCreated   = "criado"
	SyncUpdated   = "atualizado"
	SyncUnchanged = "sem_alteracao"
	SyncLinked    = "vinculado"
	SyncRecreated = "recriado"
	SyncSkipped   = "ignorado"
	SyncFailed    = "erro"
)

// SyncResult is the outcome of synchronizing one installment
type SyncResult struct {
	InstallmentID uint     `json:"installment_id"`
	LedgerEntryID *uint    `json:"ledger_entry_id"`
	Status        string   `json:"status"`
	Changes       []string `json:"changes,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	Error         string   `json:"error,omitempty"`
	Code          string   `json:"code,omitempty"`
}

// BatchResult enumerates per-installment outcomes of a batch synchronization
type BatchResult struct {
	Results   []SyncResult `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// SyncService projects installment state into ledger entries
type SyncService struct {
	repos   *repository.Repositories
	tx      repository.Transactor
	locker  lock.Locker
	audit   *AuditService
	workers int
}

// NewSyncService creates a new synchronization service
func NewSyncService(repos *repository.Repositories, tx repository.Transactor, locker lock.Locker, audit *AuditService, workers int) *SyncService {
	if workers < 1 {
		workers = 1
	}
	return &SyncService{repos: repos, tx: tx, locker: locker, audit: audit, workers: workers}
}

// SyncInstallment creates or refreshes the ledger entry mirroring an installment.
// Safe to retry: a second call observes the entry created by the first.
func (s *SyncService) SyncInstallment(ctx context.Context, actor Actor, installmentID uint, force bool) (*SyncResult, error) {
	var result *SyncResult
	var err error

	// a concurrent creator may win the unique index; the retry then links its entry
	for attempt := 0; attempt < 2; attempt++ {
		result, err = s.syncOnce(ctx, installmentID, force)
		if err == nil || !errors.Is(err, ErrConflict) {
			break
		}
		logger.FromContext(ctx).Warn("Sync conflict, retrying", "parcela_id", installmentID, "attempt", attempt+1)
	}
	if err != nil {
		return nil, err
	}

	if result.Status != SyncUnchanged && result.Status != SyncSkipped {
		var entityID uint
		if result.LedgerEntryID != nil {
			entityID = *result.LedgerEntryID
		}
		s.audit.Record(ctx, actor, models.AuditActionSync, models.AuditEntityInstallment, installmentID, map[string]any{
			"status": result.Status, "lancamento_id": entityID, "changes": result.Changes, "force": force,
		})
	}
	return result, nil
}

func (s *SyncService) syncOnce(ctx context.Context, installmentID uint, force bool) (*SyncResult, error) {
	var result *SyncResult
	err := s.locker.WithLock(ctx, lock.Key("sync:parcela", installmentID), func(ctx context.Context) error {
		return s.tx.Transaction(ctx, func(repos *repository.Repositories) error {
			installment, err := repos.Obligation.FindInstallmentForUpdate(ctx, installmentID)
			if err != nil {
				return err
			}
			result, err = syncInTx(ctx, repos, installment, force)
			return err
		})
	})
	if err != nil {
		return nil, translate(err, "parcela")
	}
	return result, nil
}

// syncInTx runs inside the caller's transaction with the installment row locked
func syncInTx(ctx context.Context, repos *repository.Repositories, installment *models.Installment, force bool) (*SyncResult, error) {
	result := &SyncResult{InstallmentID: installment.ID}

	active, err := repos.Ledger.FindActiveByInstallment(ctx, installment.ID)
	if err != nil {
		return nil, err
	}

	var linked *models.LedgerEntry
	if installment.LedgerEntryID != nil {
		linked, err = repos.Ledger.FindByID(ctx, *installment.LedgerEntryID)
		if err != nil && !errors.Is(err, repository.ErrRecordNotFound) {
			return nil, err
		}
		if linked == nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("lançamento %d vinculado não existe mais", *installment.LedgerEntryID))
		}
	}

	// an active entry carrying the installment id but not linked back
	if (linked == nil || !linked.IsActive()) && len(active) > 0 {
		linked = &active[0]
		if err := repos.Obligation.SetInstallmentLedgerEntry(ctx, installment.ID, &linked.ID); err != nil {
			return nil, err
		}
		installment.LedgerEntryID = &linked.ID
		result.Status = SyncLinked
		result.Changes = append(result.Changes, "ledger_entry_id")
	}

	if len(active) > 1 {
		if err := resolveDuplicates(ctx, repos, linked, active, force, result); err != nil {
			return nil, err
		}
	}

	if linked == nil {
		if installment.Status == models.InstallmentStatusCancelled {
			result.Status = SyncSkipped
			result.Warnings = append(result.Warnings, "parcela cancelada sem lançamento")
			return result, nil
		}
		previous := installment.LedgerEntryID
		entry, err := createMirrorEntry(ctx, repos, installment, result)
		if err != nil {
			return nil, err
		}
		result.LedgerEntryID = &entry.ID
		result.Status = SyncCreated
		if previous != nil {
			result.Status = SyncRecreated
		}
		return result, nil
	}

	if !linked.IsActive() {
		return refreshTerminal(ctx, repos, installment, linked, force, result)
	}

	entry, recreated, err := mirrorInto(ctx, repos, installment, linked, force, result)
	if err != nil {
		return nil, err
	}
	result.LedgerEntryID = &entry.ID
	switch {
	case recreated:
		result.Status = SyncRecreated
	case result.Status == SyncLinked:
	case len(result.Changes) > 0:
		result.Status = SyncUpdated
	default:
		result.Status = SyncUnchanged
	}
	return result, nil
}

// createMirrorEntry creates the sync-owned entry and links both records
func createMirrorEntry(ctx context.Context, repos *repository.Repositories, installment *models.Installment, result *SyncResult) (*models.LedgerEntry, error) {
	obligation := installment.Obligation
	accrual := installment.DueDate

	entry := &models.LedgerEntry{
		Kind:          obligation.EntryKind(),
		Description:   mirrorDescription(installment),
		Amount:        installment.Value(),
		EntryDate:     today(),
		DueDate:       installment.DueDate,
		AccrualDate:   &accrual,
		Status:        models.EntryStatusPending,
		Origin:        models.EntryOriginSync,
		PaymentMethod: obligation.PaymentMethod,
		BankAccountID: obligation.BankAccountID,
		ClientID:      obligation.ClientID,
		CaseID:        obligation.CaseID,
		InstallmentID: &installment.ID,
		ObligationID:  &obligation.ID,
	}

	if installment.ImpliedEntryStatus() == models.EntryStatusConfirmed {
		entry.EffectiveDate = installment.PaymentDate
		if err := statemachine.NewLedgerEntryFSM(entry).Confirm(ctx); err != nil {
			if !errors.Is(err, statemachine.ErrMissingRequirement) {
				return nil, err
			}
			result.Warnings = append(result.Warnings, "lançamento mantido pendente: "+err.Error())
		}
	}

	if err := repos.Ledger.Create(ctx, entry); err != nil {
		return nil, err
	}
	if err := repos.Obligation.SetInstallmentLedgerEntry(ctx, installment.ID, &entry.ID); err != nil {
		return nil, err
	}
	installment.LedgerEntryID = &entry.ID
	return entry, nil
}

// mirrorInto brings an active entry in line with the installment.
// Entries created by hand are only reported on unless force is set.
func mirrorInto(ctx context.Context, repos *repository.Repositories, installment *models.Installment, entry *models.LedgerEntry, force bool, result *SyncResult) (*models.LedgerEntry, bool, error) {
	owned := entry.Origin == models.EntryOriginSync || force
	changed := false

	if !entry.Amount.Equal(installment.Value()) {
		switch {
		case !owned:
			result.Warnings = append(result.Warnings, "valor do lançamento manual difere da parcela")
		case entry.MayEditFinancials():
			entry.Amount = installment.Value()
			result.Changes = append(result.Changes, "amount")
			changed = true
		case force:
			// confirmed amounts are history; correct through a reversal
			replacement, err := replaceEntry(ctx, repos, installment, entry, result)
			return replacement, true, err
		default:
			result.Warnings = append(result.Warnings, "valor de lançamento confirmado difere da parcela")
		}
	}

	if !entry.DueDate.Equal(installment.DueDate) {
		switch {
		case owned && entry.MayEditFinancials():
			entry.DueDate = installment.DueDate
			result.Changes = append(result.Changes, "due_date")
			changed = true
		case !owned:
			result.Warnings = append(result.Warnings, "vencimento do lançamento manual difere da parcela")
		}
	}

	implied := installment.ImpliedEntryStatus()
	if entry.Status != implied {
		switch {
		case implied == models.EntryStatusConfirmed && entry.Status == models.EntryStatusPending:
			if entry.EffectiveDate == nil {
				entry.EffectiveDate = installment.PaymentDate
			}
			// only fill what the user left blank
			if entry.PaymentMethod == nil {
				entry.PaymentMethod = installment.Obligation.PaymentMethod
			}
			if entry.BankAccountID == nil {
				entry.BankAccountID = installment.Obligation.BankAccountID
			}
			if err := statemachine.NewLedgerEntryFSM(entry).Confirm(ctx); err != nil {
				if !errors.Is(err, statemachine.ErrMissingRequirement) {
					return nil, false, err
				}
				result.Warnings = append(result.Warnings, "lançamento mantido pendente: "+err.Error())
			} else {
				result.Changes = append(result.Changes, "status")
			}
			changed = true

		case implied == models.EntryStatusCancelled && entry.Status == models.EntryStatusPending:
			if err := statemachine.NewLedgerEntryFSM(entry).Cancel(ctx); err != nil {
				return nil, false, err
			}
			result.Changes = append(result.Changes, "status")
			changed = true

		case implied == models.EntryStatusCancelled && entry.Status == models.EntryStatusConfirmed:
			if !force {
				result.Warnings = append(result.Warnings, "parcela cancelada com lançamento confirmado; use sincronização forçada para estornar")
				break
			}
			if _, err := reverseInTx(ctx, repos, entry, "parcela cancelada"); err != nil {
				return nil, false, err
			}
			result.Changes = append(result.Changes, "status")
			return entry, false, nil

		case implied == models.EntryStatusPending && entry.Status == models.EntryStatusConfirmed:
			if !force {
				result.Warnings = append(result.Warnings, "lançamento confirmado para parcela em aberto")
				break
			}
			replacement, err := replaceEntry(ctx, repos, installment, entry, result)
			return replacement, true, err
		}
	}

	if changed {
		if err := repos.Ledger.Update(ctx, entry); err != nil {
			return nil, false, err
		}
	}
	return entry, false, nil
}

// refreshTerminal handles an installment linked to a cancelled or reversed entry
func refreshTerminal(ctx context.Context, repos *repository.Repositories, installment *models.Installment, entry *models.LedgerEntry, force bool, result *SyncResult) (*SyncResult, error) {
	result.LedgerEntryID = &entry.ID

	expectsEntry := installment.Status != models.InstallmentStatusCancelled
	if !expectsEntry {
		result.Status = SyncUnchanged
		return result, nil
	}
	if !force {
		result.Status = SyncSkipped
		result.Warnings = append(result.Warnings, fmt.Sprintf("lançamento vinculado está %s; use sincronização forçada para recriar", entry.Status))
		return result, nil
	}

	replacement, err := createMirrorEntry(ctx, repos, installment, result)
	if err != nil {
		return nil, err
	}
	result.LedgerEntryID = &replacement.ID
	result.Status = SyncRecreated
	return result, nil
}

// replaceEntry retires a confirmed entry through a reversal and links a fresh mirror
func replaceEntry(ctx context.Context, repos *repository.Repositories, installment *models.Installment, entry *models.LedgerEntry, result *SyncResult) (*models.LedgerEntry, error) {
	if _, err := reverseInTx(ctx, repos, entry, "ressincronização da parcela"); err != nil {
		return nil, err
	}
	replacement, err := createMirrorEntry(ctx, repos, installment, result)
	if err != nil {
		return nil, err
	}
	result.Changes = append(result.Changes, "ledger_entry_id")
	return replacement, nil
}

// resolveDuplicates retires every active entry but the linked one when forced
func resolveDuplicates(ctx context.Context, repos *repository.Repositories, keep *models.LedgerEntry, active []models.LedgerEntry, force bool, result *SyncResult) error {
	if !force {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d lançamentos ativos para a mesma parcela", len(active)))
		return nil
	}

	for i := range active {
		extra := &active[i]
		if keep != nil && extra.ID == keep.ID {
			continue
		}
		switch extra.Status {
		case models.EntryStatusPending:
			if err := statemachine.NewLedgerEntryFSM(extra).Cancel(ctx); err != nil {
				return err
			}
			if err := repos.Ledger.Update(ctx, extra); err != nil {
				return err
			}
		case models.EntryStatusConfirmed:
			if _, err := reverseInTx(ctx, repos, extra, "lançamento duplicado"); err != nil {
				return err
			}
		}
		result.Changes = append(result.Changes, fmt.Sprintf("duplicado_%d", extra.ID))
	}
	return nil
}

func mirrorDescription(installment *models.Installment) string {
	desc := strings.TrimSpace(installment.Obligation.Description)
	if desc == "" {
		desc = "Obrigação " + fmt.Sprint(installment.ObligationID)
	}
	return fmt.Sprintf("Parcela %d - %s", installment.Number, desc)
}

// SyncObligation synchronizes every installment of an obligation.
// One failing installment never aborts the others.
func (s *SyncService) SyncObligation(ctx context.Context, actor Actor, obligationID uint, force bool) (*BatchResult, error) {
	if _, err := s.repos.Obligation.FindByID(ctx, obligationID); err != nil {
		return nil, translate(err, "obrigação")
	}

	installments, err := s.repos.Obligation.FindInstallments(ctx, &obligationID)
	if err != nil {
		return nil, translate(err, "parcelas")
	}

	ids := make([]uint, len(installments))
	for i := range installments {
		ids[i] = installments[i].ID
	}
	return s.SyncInstallments(ctx, actor, ids, force), nil
}

// SyncInstallments runs SyncInstallment over ids with bounded parallelism
func (s *SyncService) SyncInstallments(ctx context.Context, actor Actor, ids []uint, force bool) *BatchResult {
	results := make([]SyncResult, len(ids))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, id := range ids {
		g.Go(func() error {
			res, err := s.SyncInstallment(ctx, actor, id, force)
			if err != nil {
				results[i] = SyncResult{InstallmentID: id, Status: SyncFailed, Error: err.Error(), Code: Code(err)}
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{Results: results}
	for _, r := range results {
		if r.Status == SyncFailed {
			batch.Failed++
		} else {
			batch.Succeeded++
		}
	}

	logger.FromContext(ctx).Info("Batch sync finished", "installments", len(ids), "succeeded", batch.Succeeded, "failed", batch.Failed, "force", force)
	return batch
}

// SyncPending re-runs the non-forced sync over installments that have no entry yet
// or whose status implies an entry transition. Used by the scheduled job.
func (s *SyncService) SyncPending(ctx context.Context) (*BatchResult, error) {
	installments, err := s.repos.Obligation.FindInstallments(ctx, nil)
	if err != nil {
		return nil, translate(err, "parcelas")
	}

	var ids []uint
	for i := range installments {
		p := &installments[i]
		if p.LedgerEntryID == nil && p.Status != models.InstallmentStatusCancelled {
			ids = append(ids, p.ID)
			continue
		}
		if p.IsSettled() || p.Status == models.InstallmentStatusCancelled {
			ids = append(ids, p.ID)
		}
	}
	return s.SyncInstallments(ctx, SystemActor, ids, false), nil
}
