package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/juridico/conciliacao-api/internal/lock"
	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/juridico/conciliacao-api/internal/repository"
	"github.com/juridico/conciliacao-api/internal/statemachine"
	"github.com/juridico/conciliacao-api/pkg/logger"
	"github.com/shopspring/decimal"
)

// ObligationService handles settlements, their installments and payment events
type ObligationService struct {
	repos  *repository.Repositories
	tx     repository.Transactor
	locker lock.Locker
	sync   *SyncService
	audit  *AuditService
}

// NewObligationService creates a new obligation service
func NewObligationService(repos *repository.Repositories, tx repository.Transactor, locker lock.Locker, sync *SyncService, audit *AuditService) *ObligationService {
	return &ObligationService{repos: repos, tx: tx, locker: locker, sync: sync, audit: audit}
}

// InstallmentInput describes one scheduled installment
type InstallmentInput struct {
	Number       int
	GrossAmount  decimal.Decimal
	StatutoryFee decimal.Decimal
	DueDate      time.Time
}

// RegisterObligationInput describes a settlement or judgment to register
type RegisterObligationInput struct {
	Direction             string
	Description           string
	CaseID                *uint
	ClientID              *uint
	CounterpartyName      string
	ContractualFeePercent decimal.Decimal
	BankAccountID         *uint
	PaymentMethod         *string
	Installments          []InstallmentInput
}

// PaymentResult is the outcome of a payment event. Sync is the post-condition:
// when SyncError is set the installment was settled but its ledger entry still lags.
type PaymentResult struct {
	Installment *models.Installment `json:"installment"`
	Split       *Split              `json:"split"`
	Sync        *SyncResult         `json:"sync,omitempty"`
	SyncError   string              `json:"sync_error,omitempty"`
}

// OverdueSummary lists the installments moved to atrasada by one run
type OverdueSummary struct {
	InstallmentIDs []uint          `json:"installment_ids"`
	Count          int             `json:"count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Failed         int             `json:"failed"`
}

// RegisterObligation creates an obligation and its installments, each with its computed split
func (s *ObligationService) RegisterObligation(ctx context.Context, actor Actor, input RegisterObligationInput) (*models.Obligation, error) {
	if !models.IsValidDirection(input.Direction) {
		return nil, ruleError("direcao_valida", "direção inválida: %s", input.Direction)
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, ruleError("descricao_obrigatoria", "a descrição é obrigatória")
	}
	if len(input.Installments) == 0 {
		return nil, ruleError("parcelas_obrigatorias", "a obrigação exige ao menos uma parcela")
	}

	obligation := &models.Obligation{
		Direction:             input.Direction,
		Description:           strings.TrimSpace(input.Description),
		CaseID:                input.CaseID,
		ClientID:              input.ClientID,
		CounterpartyName:      input.CounterpartyName,
		ContractualFeePercent: input.ContractualFeePercent,
		BankAccountID:         input.BankAccountID,
		PaymentMethod:         input.PaymentMethod,
	}

	seen := make(map[int]bool, len(input.Installments))
	total := decimal.Zero
	for _, in := range input.Installments {
		if in.Number < 1 {
			return nil, ruleError("numero_parcela", "número de parcela inválido: %d", in.Number)
		}
		if seen[in.Number] {
			return nil, ruleError("numero_parcela_unico", "parcela %d informada mais de uma vez", in.Number)
		}
		seen[in.Number] = true
		if in.DueDate.IsZero() {
			return nil, ruleError("vencimento_obrigatorio", "a parcela %d exige data de vencimento", in.Number)
		}

		split, err := ComputeSplit(SplitInput{
			Principal:             in.GrossAmount,
			Direction:             input.Direction,
			ContractualFeePercent: input.ContractualFeePercent,
			StatutoryFee:          in.StatutoryFee,
			HasClient:             obligation.HasClient(),
		})
		if err != nil {
			return nil, err
		}

		obligation.Installments = append(obligation.Installments, models.Installment{
			Number:         in.Number,
			GrossAmount:    split.Principal,
			ContractualFee: split.ContractualFee,
			StatutoryFee:   split.StatutoryFee,
			ClientPayout:   split.ClientPayout,
			DueDate:        in.DueDate,
			Status:         models.InstallmentStatusPending,
			RepasseStatus:  models.RepasseNotApplicable,
		})
		total = total.Add(split.TotalValue)
	}
	sort.Slice(obligation.Installments, func(i, j int) bool {
		return obligation.Installments[i].Number < obligation.Installments[j].Number
	})
	obligation.TotalValue = total

	if err := s.repos.Obligation.Create(ctx, obligation); err != nil {
		return nil, translate(err, "obrigação")
	}

	s.audit.Record(ctx, actor, models.AuditActionCreate, models.AuditEntityObligation, obligation.ID, map[string]any{
		"direction": obligation.Direction, "total_value": obligation.TotalValue, "installments": len(obligation.Installments),
	})
	return obligation, nil
}

// GetObligation retrieves an obligation with its installments
func (s *ObligationService) GetObligation(ctx context.Context, id uint) (*models.Obligation, error) {
	obligation, err := s.repos.Obligation.FindByIDWithInstallments(ctx, id)
	if err != nil {
		return nil, translate(err, "obrigação")
	}
	return obligation, nil
}

// ListObligations lists obligations with filters
func (s *ObligationService) ListObligations(ctx context.Context, query *repository.ListQuery) ([]models.Obligation, int64, error) {
	obligations, total, err := s.repos.Obligation.List(ctx, query)
	if err != nil {
		return nil, 0, translate(err, "obrigações")
	}
	return obligations, total, nil
}

// GetInstallment retrieves an installment with its obligation
func (s *ObligationService) GetInstallment(ctx context.Context, id uint) (*models.Installment, error) {
	installment, err := s.repos.Obligation.FindInstallment(ctx, id)
	if err != nil {
		return nil, translate(err, "parcela")
	}
	return installment, nil
}

// InstallmentSplit returns the authoritative split of an installment
func (s *ObligationService) InstallmentSplit(ctx context.Context, id uint) (*Split, error) {
	installment, err := s.GetInstallment(ctx, id)
	if err != nil {
		return nil, err
	}
	return splitForInstallment(installment.Obligation, installment)
}

// RegisterInstallmentPayment marks the installment recebida or paga, fixes its split,
// opens the repasse when a payout is owed and then synchronizes the ledger entry.
// Re-registering the same payment returns the settled installment.
func (s *ObligationService) RegisterInstallmentPayment(ctx context.Context, actor Actor, id uint, paymentDate time.Time) (*PaymentResult, error) {
	if paymentDate.IsZero() {
		return nil, ruleError("data_pagamento_obrigatoria", "a data de pagamento é obrigatória")
	}

	result := &PaymentResult{}
	applied := false

	err := s.locker.WithLock(ctx, lock.Key("parcela", id), func(ctx context.Context) error {
		return s.tx.Transaction(ctx, func(repos *repository.Repositories) error {
			installment, err := repos.Obligation.FindInstallmentForUpdate(ctx, id)
			if err != nil {
				return err
			}
			obligation := installment.Obligation

			split, err := splitForInstallment(obligation, installment)
			if err != nil {
				return err
			}
			result.Installment, result.Split = installment, split

			if installment.IsSettled() {
				if installment.PaymentDate != nil && installment.PaymentDate.Equal(paymentDate) {
					return nil
				}
				return stateError("parcela_ja_quitada", "parcela %d já está %s", installment.Number, installment.Status)
			}

			if err := statemachine.NewInstallmentFSM(installment).Settle(ctx, obligation.Direction, paymentDate); err != nil {
				return err
			}

			installment.ContractualFee = split.ContractualFee
			installment.ClientPayout = split.ClientPayout

			if obligation.OwesClientPayout() && split.ClientPayout.IsPositive() {
				if err := statemachine.NewRepasseFSM(installment).Open(ctx); err != nil {
					return err
				}
			}

			applied = true
			return repos.Obligation.UpdateInstallment(ctx, installment)
		})
	})
	if err != nil {
		return nil, translate(err, "parcela")
	}

	if applied {
		s.audit.Record(ctx, actor, models.AuditActionUpdate, models.AuditEntityInstallment, id, map[string]any{
			"status": result.Installment.Status, "payment_date": paymentDate, "repasse_status": result.Installment.RepasseStatus,
		})
	}

	s.syncAfter(ctx, actor, result)
	return result, nil
}

// CancelInstallment cancels an open installment and synchronizes its ledger entry
func (s *ObligationService) CancelInstallment(ctx context.Context, actor Actor, id uint) (*PaymentResult, error) {
	result := &PaymentResult{}
	applied := false

	err := s.locker.WithLock(ctx, lock.Key("parcela", id), func(ctx context.Context) error {
		return s.tx.Transaction(ctx, func(repos *repository.Repositories) error {
			installment, err := repos.Obligation.FindInstallmentForUpdate(ctx, id)
			if err != nil {
				return err
			}
			result.Installment = installment

			if installment.Status == models.InstallmentStatusCancelled {
				return nil
			}
			if err := statemachine.NewInstallmentFSM(installment).Cancel(ctx); err != nil {
				return err
			}
			applied = true
			return repos.Obligation.UpdateInstallment(ctx, installment)
		})
	})
	if err != nil {
		return nil, translate(err, "parcela")
	}

	if applied {
		s.audit.Record(ctx, actor, models.AuditActionCancel, models.AuditEntityInstallment, id, nil)
	}

	s.syncAfter(ctx, actor, result)
	return result, nil
}

// syncAfter runs the sync post-condition and records its outcome on the result
func (s *ObligationService) syncAfter(ctx context.Context, actor Actor, result *PaymentResult) {
	if s.sync == nil {
		return
	}
	res, err := s.sync.SyncInstallment(ctx, actor, result.Installment.ID, false)
	if err != nil {
		logger.FromContext(ctx).Error("Sync after payment event failed", "parcela_id", result.Installment.ID, "error", err)
		result.SyncError = err.Error()
		return
	}
	result.Sync = res
	if res.LedgerEntryID != nil {
		result.Installment.LedgerEntryID = res.LedgerEntryID
	}
}

// MarkOverdue moves pendente installments due before asOf to atrasada
func (s *ObligationService) MarkOverdue(ctx context.Context, asOf time.Time) (*OverdueSummary, error) {
	candidates, err := s.repos.Obligation.FindOverdueCandidates(ctx, truncateToDay(asOf))
	if err != nil {
		return nil, translate(err, "parcelas")
	}

	summary := &OverdueSummary{InstallmentIDs: []uint{}, TotalAmount: decimal.Zero}
	for i := range candidates {
		id := candidates[i].ID
		var marked *models.Installment

		err := s.tx.Transaction(ctx, func(repos *repository.Repositories) error {
			installment, err := repos.Obligation.FindInstallmentForUpdate(ctx, id)
			if err != nil {
				return err
			}
			// paid or cancelled meanwhile
			if !installment.IsOverdueAt(asOf) {
				return nil
			}
			if err := statemachine.NewInstallmentFSM(installment).MarkOverdue(ctx); err != nil {
				return err
			}
			marked = installment
			return repos.Obligation.UpdateInstallment(ctx, installment)
		})
		if err != nil {
			logger.FromContext(ctx).Error("Failed to mark installment overdue", "parcela_id", id, "error", err)
			summary.Failed++
			continue
		}
		if marked != nil {
			summary.InstallmentIDs = append(summary.InstallmentIDs, id)
			summary.TotalAmount = summary.TotalAmount.Add(marked.Value())
		}
	}
	summary.Count = len(summary.InstallmentIDs)

	logger.FromContext(ctx).Info("Overdue installments marked", "count", summary.Count, "failed", summary.Failed)
	return summary, nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
