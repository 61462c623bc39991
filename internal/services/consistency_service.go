package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/juridico/conciliacao-api/internal/repository"
	"github.com/juridico/conciliacao-api/internal/statemachine"
	"github.com/juridico/conciliacao-api/pkg/logger"
	"github.com/shopspring/decimal"
)

// ConsistencyService compares installments against their mirrored ledger entries.
// It never writes; repairs go through the SyncService.
type ConsistencyService struct {
	repos     *repository.Repositories
	sync      *SyncService
	tolerance decimal.Decimal
}

// NewConsistencyService creates a new consistency checker. tolerance is the largest
// value difference still considered consistent.
func NewConsistencyService(repos *repository.Repositories, sync *SyncService, tolerance decimal.Decimal) *ConsistencyService {
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}
	return &ConsistencyService{repos: repos, sync: sync, tolerance: tolerance}
}

// RepairResult pairs the findings with the forced re-sync that addressed them
type RepairResult struct {
	Report       *models.ConsistencyReport `json:"report"`
	Sync         *BatchResult              `json:"sync"`
	Unrepairable int                       `json:"unrepairable"`
}

// CheckConsistency scans installments and ledger entries, optionally for one obligation
func (s *ConsistencyService) CheckConsistency(ctx context.Context, obligationID *uint) (*models.ConsistencyReport, error) {
	if obligationID != nil {
		if _, err := s.repos.Obligation.FindByID(ctx, *obligationID); err != nil {
			return nil, translate(err, "obrigação")
		}
	}

	installments, err := s.repos.Obligation.FindInstallments(ctx, obligationID)
	if err != nil {
		return nil, translate(err, "parcelas")
	}
	entries, err := s.repos.Ledger.FindLinkedToInstallments(ctx, obligationID)
	if err != nil {
		return nil, translate(err, "lançamentos")
	}

	entryByID := make(map[uint]*models.LedgerEntry, len(entries))
	activeByInstallment := make(map[uint][]*models.LedgerEntry)
	for i := range entries {
		e := &entries[i]
		entryByID[e.ID] = e
		if e.IsActive() {
			activeByInstallment[*e.InstallmentID] = append(activeByInstallment[*e.InstallmentID], e)
		}
	}

	// entries linked from an installment without carrying its id (manual links)
	var extraIDs []uint
	for i := range installments {
		if id := installments[i].LedgerEntryID; id != nil && entryByID[*id] == nil {
			extraIDs = append(extraIDs, *id)
		}
	}
	if len(extraIDs) > 0 {
		extra, err := s.repos.Ledger.FindByIDs(ctx, extraIDs)
		if err != nil {
			return nil, translate(err, "lançamentos")
		}
		for i := range extra {
			entryByID[extra[i].ID] = &extra[i]
		}
	}

	installmentByID := make(map[uint]*models.Installment, len(installments))
	for i := range installments {
		installmentByID[installments[i].ID] = &installments[i]
	}

	// entries pointing at installments outside the scanned set
	var missing []uint
	for i := range entries {
		if id := *entries[i].InstallmentID; installmentByID[id] == nil {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		found, err := s.repos.Obligation.FindInstallmentsByIDs(ctx, missing)
		if err != nil {
			return nil, translate(err, "parcelas")
		}
		for i := range found {
			installmentByID[found[i].ID] = &found[i]
		}
	}

	report := &models.ConsistencyReport{
		CheckedInstallments: len(installments),
		CheckedEntries:      len(entryByID),
		Inconsistencies:     []models.Inconsistency{},
		CountByType:         map[string]int{},
		CountBySeverity:     map[string]int{},
	}

	for i := range installments {
		p := &installments[i]
		s.checkInstallment(report, p, entryByID, activeByInstallment[p.ID])
	}

	for i := range entries {
		e := &entries[i]
		p := installmentByID[*e.InstallmentID]
		checkOrphan(report, e, p)
	}

	logger.FromContext(ctx).Info("Consistency check finished",
		"installments", report.CheckedInstallments,
		"entries", report.CheckedEntries,
		"inconsistencies", len(report.Inconsistencies))
	return report, nil
}

func (s *ConsistencyService) checkInstallment(report *models.ConsistencyReport, p *models.Installment, entryByID map[uint]*models.LedgerEntry, active []*models.LedgerEntry) {
	obligationID := p.ObligationID

	if p.Obligation != nil {
		if split, err := splitForInstallment(p.Obligation, p); err == nil && !split.ClientPayout.Equal(p.ClientPayout) {
			expected, actual := split.ClientPayout, p.ClientPayout
			report.Add(models.Inconsistency{
				Type:          models.InconsistencyPayoutMismatch,
				Severity:      models.SeverityMedium,
				InstallmentID: &p.ID,
				ObligationID:  &obligationID,
				Expected:      &expected,
				Actual:        &actual,
				Description:   fmt.Sprintf("parcela %d: repasse registrado R$ %s difere do calculado R$ %s", p.Number, actual.StringFixed(2), expected.StringFixed(2)),
			})
		}
	}

	if len(active) > 1 {
		report.Add(models.Inconsistency{
			Type:          models.InconsistencyDuplicateEntry,
			Severity:      models.SeverityHigh,
			InstallmentID: &p.ID,
			ObligationID:  &obligationID,
			Description:   fmt.Sprintf("parcela %d possui %d lançamentos ativos", p.Number, len(active)),
			Repairable:    true,
		})
	}

	if p.LedgerEntryID == nil {
		switch {
		case len(active) > 0:
			entryID := active[0].ID
			report.Add(models.Inconsistency{
				Type:          models.InconsistencyBrokenLink,
				Severity:      models.SeverityLow,
				InstallmentID: &p.ID,
				LedgerEntryID: &entryID,
				ObligationID:  &obligationID,
				Description:   fmt.Sprintf("parcela %d não aponta para o lançamento %d que a referencia", p.Number, entryID),
				Repairable:    true,
			})
		case p.IsSettled():
			report.Add(models.Inconsistency{
				Type:          models.InconsistencyMissingEntry,
				Severity:      models.SeverityHigh,
				InstallmentID: &p.ID,
				ObligationID:  &obligationID,
				Description:   fmt.Sprintf("parcela %d está %s sem lançamento", p.Number, p.Status),
				Repairable:    true,
			})
		}
		return
	}

	entry := entryByID[*p.LedgerEntryID]
	if entry == nil {
		entryID := *p.LedgerEntryID
		report.Add(models.Inconsistency{
			Type:          models.InconsistencyBrokenLink,
			Severity:      models.SeverityHigh,
			InstallmentID: &p.ID,
			LedgerEntryID: &entryID,
			ObligationID:  &obligationID,
			Description:   fmt.Sprintf("parcela %d aponta para o lançamento %d, que não existe", p.Number, entryID),
			Repairable:    true,
		})
		return
	}

	if entry.IsActive() && p.Status != models.InstallmentStatusCancelled {
		expected, actual := p.Value().RoundBank(2), entry.Amount.RoundBank(2)
		if expected.Sub(actual).Abs().GreaterThan(s.tolerance) {
			severity := models.SeverityMedium
			if entry.Status == models.EntryStatusConfirmed {
				severity = models.SeverityHigh
			}
			report.Add(models.Inconsistency{
				Type:          models.InconsistencyValueMismatch,
				Severity:      severity,
				InstallmentID: &p.ID,
				LedgerEntryID: &entry.ID,
				ObligationID:  &obligationID,
				Expected:      &expected,
				Actual:        &actual,
				Description:   fmt.Sprintf("parcela %d: valor R$ %s, lançamento R$ %s", p.Number, expected.StringFixed(2), actual.StringFixed(2)),
				Repairable:    true,
			})
		}
	}

	if severity, ok := statusMismatch(p, entry); ok {
		description := fmt.Sprintf("parcela %d está %s e o lançamento %d está %s", p.Number, p.Status, entry.ID, entry.Status)
		repairable := true
		if p.IsSettled() && entry.Status == models.EntryStatusPending {
			if missing := missingForConfirmation(p, entry); len(missing) > 0 {
				// a forced sync would keep the entry pending
				repairable = false
				description += "; faltam " + strings.Join(missing, ", ")
			}
		}
		report.Add(models.Inconsistency{
			Type:          models.InconsistencyStatusMismatch,
			Severity:      severity,
			InstallmentID: &p.ID,
			LedgerEntryID: &entry.ID,
			ObligationID:  &obligationID,
			Description:   description,
			Repairable:    repairable,
		})
	}
}

// missingForConfirmation lists what the entry would still lack after sync fills its
// blank fields from the installment and the obligation
func missingForConfirmation(p *models.Installment, entry *models.LedgerEntry) []string {
	filled := *entry
	if filled.EffectiveDate == nil {
		filled.EffectiveDate = p.PaymentDate
	}
	if p.Obligation != nil {
		if filled.PaymentMethod == nil {
			filled.PaymentMethod = p.Obligation.PaymentMethod
		}
		if filled.BankAccountID == nil {
			filled.BankAccountID = p.Obligation.BankAccountID
		}
	}
	return statemachine.ConfirmationRequirements(&filled)
}

// statusMismatch reports whether the pair of statuses cannot coexist, and how serious it is
func statusMismatch(p *models.Installment, e *models.LedgerEntry) (string, bool) {
	switch {
	case p.Status == models.InstallmentStatusCancelled:
		if e.Status == models.EntryStatusConfirmed {
			return models.SeverityHigh, true
		}
		if e.Status == models.EntryStatusPending {
			return models.SeverityMedium, true
		}
	case p.IsSettled():
		if !e.IsActive() {
			return models.SeverityHigh, true
		}
		if e.Status == models.EntryStatusPending {
			return models.SeverityMedium, true
		}
	default:
		if e.Status == models.EntryStatusConfirmed {
			return models.SeverityMedium, true
		}
		if !e.IsActive() {
			return models.SeverityLow, true
		}
	}
	return "", false
}

// checkOrphan flags active entries whose installment is gone or cancelled.
// The installment's own linked entry is covered by the status check.
func checkOrphan(report *models.ConsistencyReport, e *models.LedgerEntry, p *models.Installment) {
	if !e.IsActive() {
		return
	}
	if p == nil {
		report.Add(models.Inconsistency{
			Type:          models.InconsistencyOrphanEntry,
			Severity:      models.SeverityHigh,
			LedgerEntryID: &e.ID,
			ObligationID:  e.ObligationID,
			Description:   fmt.Sprintf("lançamento %d referencia a parcela %d, que não existe", e.ID, *e.InstallmentID),
		})
		return
	}
	if p.Status != models.InstallmentStatusCancelled {
		return
	}
	if p.LedgerEntryID != nil && *p.LedgerEntryID == e.ID {
		return
	}
	report.Add(models.Inconsistency{
		Type:          models.InconsistencyOrphanEntry,
		Severity:      models.SeverityMedium,
		InstallmentID: &p.ID,
		LedgerEntryID: &e.ID,
		ObligationID:  e.ObligationID,
		Description:   fmt.Sprintf("lançamento %d referencia a parcela cancelada %d", e.ID, p.Number),
		Repairable:    true,
	})
}

// RepairInconsistencies re-syncs with force every installment involved in a repairable finding
func (s *ConsistencyService) RepairInconsistencies(ctx context.Context, actor Actor, obligationID *uint) (*RepairResult, error) {
	report, err := s.CheckConsistency(ctx, obligationID)
	if err != nil {
		return nil, err
	}

	result := &RepairResult{Report: report}
	seen := make(map[uint]bool)
	var ids []uint
	for _, inc := range report.Inconsistencies {
		if !inc.Repairable || inc.InstallmentID == nil {
			result.Unrepairable++
			continue
		}
		if !seen[*inc.InstallmentID] {
			seen[*inc.InstallmentID] = true
			ids = append(ids, *inc.InstallmentID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result.Sync = s.sync.SyncInstallments(ctx, actor, ids, true)
	return result, nil
}
