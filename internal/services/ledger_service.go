package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/juridico/conciliacao-api/internal/lock"
	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/juridico/conciliacao-api/internal/repository"
	"github.com/juridico/conciliacao-api/internal/statemachine"
	"github.com/juridico/conciliacao-api/pkg/logger"
	"github.com/shopspring/decimal"
)

// LedgerService handles ledger entry business logic
type LedgerService struct {
	repos  *repository.Repositories
	tx     repository.Transactor
	locker lock.Locker
	audit  *AuditService
}

// NewLedgerService creates a new ledger service
func NewLedgerService(repos *repository.Repositories, tx repository.Transactor, locker lock.Locker, audit *AuditService) *LedgerService {
	return &LedgerService{repos: repos, tx: tx, locker: locker, audit: audit}
}

// CreateEntryInput holds the fields of a manual ledger entry
type CreateEntryInput struct {
	Kind                string
	Description         string
	Amount              decimal.Decimal
	EntryDate           *time.Time
	DueDate             time.Time
	EffectiveDate       *time.Time
	AccrualDate         *time.Time
	Confirmed           bool
	PaymentMethod       *string
	BankAccountID       *uint
	CostCenterID        *uint
	ChartAccountID      *uint
	DocumentRef         *string
	Notes               *string
	ClientID            *uint
	SupplierID          *uint
	CaseID              *uint
	ContractID          *uint
	Recurring           bool
	RecurrenceFrequency *string
}

// UpdateEntryInput holds a partial update. Nil fields are left untouched.
type UpdateEntryInput struct {
	Description    *string
	PaymentMethod  *string
	BankAccountID  *uint
	CostCenterID   *uint
	ChartAccountID *uint
	DocumentRef    *string
	Notes          *string

	// Financial fields, only while pendente
	Amount        *decimal.Decimal
	DueDate       *time.Time
	EffectiveDate *time.Time
	AccrualDate   *time.Time
}

// ConfirmEntryInput supplies the data required to effectuate an entry
type ConfirmEntryInput struct {
	EffectiveDate *time.Time
	PaymentMethod *string
	BankAccountID *uint
}

// ReversalResult pairs a reversed entry with its compensating entry
type ReversalResult struct {
	Original     *models.LedgerEntry `json:"original"`
	Compensating *models.LedgerEntry `json:"compensating"`
}

// RecurrenceResult reports what GenerateRecurrences did
type RecurrenceResult struct {
	Created []uint `json:"created"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

func validateEntryFields(kind, description string, amount decimal.Decimal, dueDate time.Time) error {
	if !models.IsValidEntryKind(kind) {
		return ruleError("tipo_lancamento", "tipo de lançamento inválido: %s", kind)
	}
	if strings.TrimSpace(description) == "" {
		return ruleError("descricao_obrigatoria", "a descrição é obrigatória")
	}
	if amount.IsNegative() {
		return ruleError("valor_nao_negativo", "o valor do lançamento não pode ser negativo")
	}
	if dueDate.IsZero() {
		return ruleError("vencimento_obrigatorio", "a data de vencimento é obrigatória")
	}
	return nil
}

func validFrequency(freq *string) bool {
	if freq == nil {
		return false
	}
	switch *freq {
	case models.FrequencyMonthly, models.FrequencyQuarterly, models.FrequencyYearly:
		return true
	}
	return false
}

// CreateEntry creates a manual ledger entry, optionally already confirmed
func (s *LedgerService) CreateEntry(ctx context.Context, actor Actor, input CreateEntryInput) (*models.LedgerEntry, error) {
	if err := validateEntryFields(input.Kind, input.Description, input.Amount, input.DueDate); err != nil {
		return nil, err
	}
	if input.Recurring && !validFrequency(input.RecurrenceFrequency) {
		return nil, ruleError("frequencia_recorrencia", "lançamento recorrente exige frequência mensal, trimestral ou anual")
	}

	entryDate := today()
	if input.EntryDate != nil {
		entryDate = *input.EntryDate
	}

	entry := &models.LedgerEntry{
		Kind:           input.Kind,
		Description:    strings.TrimSpace(input.Description),
		Amount:         input.Amount.RoundBank(2),
		EntryDate:      entryDate,
		DueDate:        input.DueDate,
		EffectiveDate:  input.EffectiveDate,
		AccrualDate:    input.AccrualDate,
		Status:         models.EntryStatusPending,
		Origin:         models.EntryOriginManual,
		PaymentMethod:  input.PaymentMethod,
		BankAccountID:  input.BankAccountID,
		CostCenterID:   input.CostCenterID,
		ChartAccountID: input.ChartAccountID,
		DocumentRef:    input.DocumentRef,
		Notes:          input.Notes,
		ClientID:       input.ClientID,
		SupplierID:     input.SupplierID,
		CaseID:         input.CaseID,
		ContractID:     input.ContractID,
		Recurring:      input.Recurring,
	}
	if input.Recurring {
		entry.RecurrenceFrequency = input.RecurrenceFrequency
	}

	// creation validates through the same rule set as the transition
	if input.Confirmed {
		if err := statemachine.NewLedgerEntryFSM(entry).Confirm(ctx); err != nil {
			return nil, translate(err, "lançamento")
		}
	}

	if err := s.repos.Ledger.Create(ctx, entry); err != nil {
		return nil, translate(err, "lançamento")
	}

	s.audit.Record(ctx, actor, models.AuditActionCreate, models.AuditEntityLedgerEntry, entry.ID, map[string]any{
		"kind": entry.Kind, "amount": entry.Amount, "status": entry.Status,
	})
	return entry, nil
}

// GetEntry retrieves a ledger entry
func (s *LedgerService) GetEntry(ctx context.Context, id uint) (*models.LedgerEntry, error) {
	entry, err := s.repos.Ledger.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, "lançamento")
	}
	return entry, nil
}

// ListEntries lists ledger entries with filters
func (s *LedgerService) ListEntries(ctx context.Context, query *repository.ListQuery) ([]models.LedgerEntry, int64, error) {
	entries, total, err := s.repos.Ledger.List(ctx, query)
	if err != nil {
		return nil, 0, translate(err, "lançamentos")
	}
	return entries, total, nil
}

// mutate loads the entry under its lock and inside a transaction, applies fn and saves it
func (s *LedgerService) mutate(ctx context.Context, id uint, fn func(ctx context.Context, repos *repository.Repositories, entry *models.LedgerEntry) (bool, error)) (*models.LedgerEntry, error) {
	var result *models.LedgerEntry
	err := s.locker.WithLock(ctx, lock.Key("lancamento", id), func(ctx context.Context) error {
		return s.tx.Transaction(ctx, func(repos *repository.Repositories) error {
			entry, err := repos.Ledger.FindByID(ctx, id)
			if err != nil {
				return err
			}
			changed, err := fn(ctx, repos, entry)
			if err != nil {
				return err
			}
			if changed {
				if err := repos.Ledger.Update(ctx, entry); err != nil {
					return err
				}
			}
			result = entry
			return nil
		})
	})
	if err != nil {
		return nil, translate(err, "lançamento")
	}
	return result, nil
}

// UpdateEntry changes user-owned fields. Amount and dates may only change while pendente.
func (s *LedgerService) UpdateEntry(ctx context.Context, actor Actor, id uint, input UpdateEntryInput) (*models.LedgerEntry, error) {
	entry, err := s.mutate(ctx, id, func(ctx context.Context, _ *repository.Repositories, entry *models.LedgerEntry) (bool, error) {
		if !entry.IsActive() {
			return false, stateError("lancamento_encerrado", "lançamento %s não pode ser alterado", entry.Status)
		}

		financial := input.Amount != nil || input.DueDate != nil || input.EffectiveDate != nil || input.AccrualDate != nil
		if financial && !entry.MayEditFinancials() {
			return false, stateError("valores_somente_pendente", "valor e datas só podem ser alterados em lançamentos pendentes")
		}

		if input.Description != nil {
			if strings.TrimSpace(*input.Description) == "" {
				return false, ruleError("descricao_obrigatoria", "a descrição é obrigatória")
			}
			entry.Description = strings.TrimSpace(*input.Description)
		}
		if input.PaymentMethod != nil {
			entry.PaymentMethod = input.PaymentMethod
		}
		if input.BankAccountID != nil {
			entry.BankAccountID = input.BankAccountID
		}
		if input.CostCenterID != nil {
			entry.CostCenterID = input.CostCenterID
		}
		if input.ChartAccountID != nil {
			entry.ChartAccountID = input.ChartAccountID
		}
		if input.DocumentRef != nil {
			entry.DocumentRef = input.DocumentRef
		}
		if input.Notes != nil {
			entry.Notes = input.Notes
		}
		if input.Amount != nil {
			if input.Amount.IsNegative() {
				return false, ruleError("valor_nao_negativo", "o valor do lançamento não pode ser negativo")
			}
			amount := input.Amount.RoundBank(2)
			entry.Amount = amount
		}
		if input.DueDate != nil {
			entry.DueDate = *input.DueDate
		}
		if input.EffectiveDate != nil {
			entry.EffectiveDate = input.EffectiveDate
		}
		if input.AccrualDate != nil {
			entry.AccrualDate = input.AccrualDate
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, models.AuditActionUpdate, models.AuditEntityLedgerEntry, entry.ID, input)
	return entry, nil
}

// ConfirmEntry effectuates a pendente entry. Confirming an already confirmed entry returns it unchanged.
func (s *LedgerService) ConfirmEntry(ctx context.Context, actor Actor, id uint, input ConfirmEntryInput) (*models.LedgerEntry, error) {
	applied := false
	entry, err := s.mutate(ctx, id, func(ctx context.Context, _ *repository.Repositories, entry *models.LedgerEntry) (bool, error) {
		if entry.Status == models.EntryStatusConfirmed {
			return false, nil
		}
		if input.EffectiveDate != nil {
			entry.EffectiveDate = input.EffectiveDate
		}
		if input.PaymentMethod != nil {
			entry.PaymentMethod = input.PaymentMethod
		}
		if input.BankAccountID != nil {
			entry.BankAccountID = input.BankAccountID
		}
		if err := statemachine.NewLedgerEntryFSM(entry).Confirm(ctx); err != nil {
			return false, err
		}
		applied = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		s.audit.Record(ctx, actor, models.AuditActionConfirm, models.AuditEntityLedgerEntry, entry.ID, nil)
	}
	return entry, nil
}

// CancelEntry cancels a pendente entry. Cancelling an already cancelled entry returns it unchanged.
func (s *LedgerService) CancelEntry(ctx context.Context, actor Actor, id uint) (*models.LedgerEntry, error) {
	applied := false
	entry, err := s.mutate(ctx, id, func(ctx context.Context, _ *repository.Repositories, entry *models.LedgerEntry) (bool, error) {
		if entry.Status == models.EntryStatusCancelled {
			return false, nil
		}
		if err := statemachine.NewLedgerEntryFSM(entry).Cancel(ctx); err != nil {
			return false, err
		}
		applied = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		s.audit.Record(ctx, actor, models.AuditActionCancel, models.AuditEntityLedgerEntry, entry.ID, nil)
	}
	return entry, nil
}

// ReverseEntry reverses a confirmado entry by creating a compensating entry of the opposite kind.
// Reversing an already reversed entry returns the existing pair.
func (s *LedgerService) ReverseEntry(ctx context.Context, actor Actor, id uint, reason string) (*ReversalResult, error) {
	result := &ReversalResult{}
	applied := false

	err := s.locker.WithLock(ctx, lock.Key("lancamento", id), func(ctx context.Context) error {
		return s.tx.Transaction(ctx, func(repos *repository.Repositories) error {
			entry, err := repos.Ledger.FindByID(ctx, id)
			if err != nil {
				return err
			}

			if entry.Status == models.EntryStatusReversed {
				compensating, err := repos.Ledger.FindReversalOf(ctx, entry.ID)
				if err != nil && !errors.Is(err, repository.ErrRecordNotFound) {
					return err
				}
				result.Original, result.Compensating = entry, compensating
				return nil
			}

			compensating, err := reverseInTx(ctx, repos, entry, reason)
			if err != nil {
				return err
			}
			result.Original, result.Compensating = entry, compensating
			applied = true
			return nil
		})
	})
	if err != nil {
		return nil, translate(err, "lançamento")
	}

	if applied {
		s.audit.Record(ctx, actor, models.AuditActionReverse, models.AuditEntityLedgerEntry, id, map[string]any{
			"compensating_id": result.Compensating.ID, "reason": reason,
		})
	}
	return result, nil
}

// reverseInTx marks entry estornado and creates its compensating entry.
// Historical amounts are never changed.
func reverseInTx(ctx context.Context, repos *repository.Repositories, entry *models.LedgerEntry, reason string) (*models.LedgerEntry, error) {
	if err := statemachine.NewLedgerEntryFSM(entry).Reverse(ctx); err != nil {
		return nil, err
	}
	if err := repos.Ledger.Update(ctx, entry); err != nil {
		return nil, err
	}

	now := today()
	description := "Estorno: " + entry.Description
	if reason != "" {
		description = fmt.Sprintf("%s (%s)", description, reason)
	}

	compensating := &models.LedgerEntry{
		Kind:           models.OppositeKind(entry.Kind),
		Description:    description,
		Amount:         entry.Amount,
		EntryDate:      now,
		DueDate:        now,
		EffectiveDate:  &now,
		AccrualDate:    entry.AccrualDate,
		Status:         models.EntryStatusConfirmed,
		Origin:         models.EntryOriginReversal,
		PaymentMethod:  entry.PaymentMethod,
		BankAccountID:  entry.BankAccountID,
		CostCenterID:   entry.CostCenterID,
		ChartAccountID: entry.ChartAccountID,
		DocumentRef:    entry.DocumentRef,
		ClientID:       entry.ClientID,
		SupplierID:     entry.SupplierID,
		CaseID:         entry.CaseID,
		ContractID:     entry.ContractID,
		ObligationID:   entry.ObligationID,
		ReversalOfID:   &entry.ID,
	}
	if err := repos.Ledger.Create(ctx, compensating); err != nil {
		return nil, err
	}
	return compensating, nil
}

// AddAttachment appends a file reference to an entry
func (s *LedgerService) AddAttachment(ctx context.Context, actor Actor, id uint, attachment models.Attachment) (*models.LedgerEntry, error) {
	if strings.TrimSpace(attachment.URL) == "" || strings.TrimSpace(attachment.Name) == "" {
		return nil, ruleError("anexo_incompleto", "anexo exige nome e URL")
	}
	if attachment.UploadedAt.IsZero() {
		attachment.UploadedAt = time.Now()
	}

	entry, err := s.mutate(ctx, id, func(ctx context.Context, _ *repository.Repositories, entry *models.LedgerEntry) (bool, error) {
		for _, a := range entry.Attachments {
			if a.URL == attachment.URL {
				return false, nil
			}
		}
		entry.Attachments = append(entry.Attachments, attachment)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, models.AuditActionAttachment, models.AuditEntityLedgerEntry, entry.ID, attachment)
	return entry, nil
}

// GenerateRecurrences ensures each recurring template has its occurrence for the period of asOf.
// Safe to re-run: an existing occurrence is skipped.
func (s *LedgerService) GenerateRecurrences(ctx context.Context, asOf time.Time) (*RecurrenceResult, error) {
	templates, err := s.repos.Ledger.FindRecurringTemplates(ctx)
	if err != nil {
		return nil, translate(err, "lançamentos recorrentes")
	}

	result := &RecurrenceResult{Created: []uint{}}
	for i := range templates {
		tpl := &templates[i]
		due, ok := occurrenceFor(tpl.DueDate, *tpl.RecurrenceFrequency, asOf)
		if !ok {
			result.Skipped++
			continue
		}

		exists, err := s.repos.Ledger.ExistsOccurrence(ctx, tpl.ID, due)
		if err != nil {
			logger.FromContext(ctx).Error("Failed to check recurrence", "lancamento_id", tpl.ID, "error", err)
			result.Failed++
			continue
		}
		if exists {
			result.Skipped++
			continue
		}

		occurrence := &models.LedgerEntry{
			Kind:           tpl.Kind,
			Description:    tpl.Description,
			Amount:         tpl.Amount,
			EntryDate:      today(),
			DueDate:        due,
			Status:         models.EntryStatusPending,
			Origin:         models.EntryOriginRecurrence,
			PaymentMethod:  tpl.PaymentMethod,
			BankAccountID:  tpl.BankAccountID,
			CostCenterID:   tpl.CostCenterID,
			ChartAccountID: tpl.ChartAccountID,
			ClientID:       tpl.ClientID,
			SupplierID:     tpl.SupplierID,
			CaseID:         tpl.CaseID,
			ContractID:     tpl.ContractID,
			TemplateID:     &tpl.ID,
		}
		if err := s.repos.Ledger.Create(ctx, occurrence); err != nil {
			if repository.IsDuplicate(err) {
				result.Skipped++
				continue
			}
			logger.FromContext(ctx).Error("Failed to create recurrence", "lancamento_id", tpl.ID, "error", err)
			result.Failed++
			continue
		}
		result.Created = append(result.Created, occurrence.ID)
	}

	logger.FromContext(ctx).Info("Recurring entries generated", "created", len(result.Created), "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

// occurrenceFor returns the due date of the template's occurrence falling in the month of asOf,
// if the frequency has one there
func occurrenceFor(templateDue time.Time, frequency string, asOf time.Time) (time.Time, bool) {
	step := 1
	switch frequency {
	case models.FrequencyQuarterly:
		step = 3
	case models.FrequencyYearly:
		step = 12
	}

	months := (asOf.Year()-templateDue.Year())*12 + int(asOf.Month()) - int(templateDue.Month())
	if months <= 0 || months%step != 0 {
		return time.Time{}, false
	}
	return addMonthsClamped(templateDue, months), true
}

// addMonthsClamped adds months keeping the day inside the target month (Jan 31 + 1 = Feb 28/29)
func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	lastDay := first.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, t.Location())
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
