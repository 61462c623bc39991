package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juridico/conciliacao-api/internal/lock"
	"github.com/juridico/conciliacao-api/internal/matching"
	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/juridico/conciliacao-api/internal/repository"
	"github.com/juridico/conciliacao-api/pkg/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Auto-reconciliation outcomes, besides conciliado and divergente
const (
	AutoAmbiguous      = "ignorado_ambiguo"
	AutoBelowThreshold = "abaixo_do_limiar"
	AutoNoCandidates   = "sem_candidatos"
	AutoEntryTaken     = "lancamento_ja_conciliado"
	AutoFailed         = "erro"
)

// StatementLine is one normalized line produced by the statement parser
type StatementLine struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal // signed when Kind is empty
	Kind        string
	Document    *string
	RawPayload  *string
}

// ImportResult reports what an import did
type ImportResult struct {
	BatchID        string `json:"batch_id"`
	Imported       int    `json:"imported"`
	Duplicates     int    `json:"duplicates"`
	TransactionIDs []uint `json:"transaction_ids"`
}

// AutoOutcome is the result of auto-reconciling one transaction
type AutoOutcome struct {
	TransactionID uint    `json:"transaction_id"`
	Outcome       string  `json:"outcome"`
	LedgerEntryID *uint   `json:"ledger_entry_id,omitempty"`
	Score         float64 `json:"score,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// AutoReconcileResult enumerates per-transaction outcomes
type AutoReconcileResult struct {
	Results []AutoOutcome  `json:"results"`
	Counts  map[string]int `json:"counts"`
}

// ReconciliationService matches imported bank transactions against ledger entries
type ReconciliationService struct {
	repos     *repository.Repositories
	tx        repository.Transactor
	locker    lock.Locker
	scorer    *matching.Scorer
	audit     *AuditService
	tolerance decimal.Decimal
	threshold float64
	workers   int
}

// ReconciliationOptions carries the tunables of the reconciliation service
type ReconciliationOptions struct {
	Tolerance decimal.Decimal
	Threshold float64
	Workers   int
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(repos *repository.Repositories, tx repository.Transactor, locker lock.Locker, scorer *matching.Scorer, audit *AuditService, opts ReconciliationOptions) *ReconciliationService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Tolerance.IsNegative() {
		opts.Tolerance = decimal.Zero
	}
	return &ReconciliationService{
		repos:     repos,
		tx:        tx,
		locker:    locker,
		scorer:    scorer,
		audit:     audit,
		tolerance: opts.Tolerance,
		threshold: opts.Threshold,
		workers:   opts.Workers,
	}
}

// DedupHash identifies a statement line across re-imports
func DedupHash(bankAccountID uint, date time.Time, signedAmount decimal.Decimal, description string) string {
	desc := strings.Join(strings.Fields(matching.Normalize(description)), " ")
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%s", bankAccountID, date.Format("2006-01-02"), signedAmount.StringFixed(2), desc)))
	return hex.EncodeToString(sum[:])
}

// ImportTransactions stores new statement lines for a bank account and opens a pendente
// reconciliation for each. Lines seen before are counted as duplicates.
func (s *ReconciliationService) ImportTransactions(ctx context.Context, actor Actor, bankAccountID uint, lines []StatementLine) (*ImportResult, error) {
	if bankAccountID == 0 {
		return nil, ruleError("conta_bancaria_obrigatoria", "a conta bancária é obrigatória")
	}
	if len(lines) == 0 {
		return nil, ruleError("extrato_vazio", "nenhuma transação para importar")
	}

	txs := make([]*models.ImportedTransaction, 0, len(lines))
	batchID := uuid.NewString()
	for i, line := range lines {
		if line.Date.IsZero() {
			return nil, ruleError("data_transacao_obrigatoria", "linha %d sem data", i+1)
		}
		kind := line.Kind
		if kind == "" {
			kind = models.TransactionKindCredit
			if line.Amount.IsNegative() {
				kind = models.TransactionKindDebit
			}
		}
		if !models.IsValidTransactionKind(kind) {
			return nil, ruleError("tipo_transacao", "linha %d: tipo de transação inválido: %s", i+1, kind)
		}
		if line.Amount.IsZero() {
			return nil, ruleError("valor_transacao", "linha %d: valor zerado", i+1)
		}

		amount := line.Amount.Abs().RoundBank(2)
		signed := amount
		if kind == models.TransactionKindDebit {
			signed = amount.Neg()
		}

		txs = append(txs, &models.ImportedTransaction{
			BankAccountID:   bankAccountID,
			BatchID:         batchID,
			TransactionDate: line.Date,
			Description:     strings.TrimSpace(line.Description),
			Amount:          amount,
			Kind:            kind,
			Document:        line.Document,
			DedupHash:       DedupHash(bankAccountID, line.Date, signed, line.Description),
			RawPayload:      line.RawPayload,
		})
	}

	result := &ImportResult{BatchID: batchID, TransactionIDs: []uint{}}
	err := s.tx.Transaction(ctx, func(repos *repository.Repositories) error {
		for _, t := range txs {
			inserted, err := repos.Reconciliation.InsertTransaction(ctx, t)
			if err != nil {
				return err
			}
			if !inserted {
				result.Duplicates++
				continue
			}
			rec := &models.BankReconciliation{TransactionID: t.ID, Status: models.ReconciliationPending}
			if err := repos.Reconciliation.Create(ctx, rec); err != nil {
				return err
			}
			result.Imported++
			result.TransactionIDs = append(result.TransactionIDs, t.ID)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err, "extrato")
	}

	s.audit.Record(ctx, actor, models.AuditActionImport, models.AuditEntityTransaction, bankAccountID, result)
	logger.FromContext(ctx).Info("Statement imported", "batch_id", batchID, "imported", result.Imported, "duplicates", result.Duplicates)
	return result, nil
}

// GetTransaction retrieves an imported transaction with its reconciliation
func (s *ReconciliationService) GetTransaction(ctx context.Context, id uint) (*models.ImportedTransaction, error) {
	t, err := s.repos.Reconciliation.FindTransaction(ctx, id)
	if err != nil {
		return nil, translate(err, "transação")
	}
	return t, nil
}

// ListPendingTransactions lists transactions still awaiting reconciliation
func (s *ReconciliationService) ListPendingTransactions(ctx context.Context, bankAccountID *uint) ([]models.ImportedTransaction, error) {
	txs, err := s.repos.Reconciliation.ListPendingTransactions(ctx, bankAccountID)
	if err != nil {
		return nil, translate(err, "transações")
	}
	return txs, nil
}

// SuggestMatches ranks the ledger entries that may settle a transaction
func (s *ReconciliationService) SuggestMatches(ctx context.Context, transactionID uint) ([]matching.Suggestion, error) {
	t, err := s.repos.Reconciliation.FindTransaction(ctx, transactionID)
	if err != nil {
		return nil, translate(err, "transação")
	}
	return s.suggest(ctx, t)
}

func (s *ReconciliationService) suggest(ctx context.Context, t *models.ImportedTransaction) ([]matching.Suggestion, error) {
	window := s.scorer.Window()
	candidates, err := s.repos.Ledger.FindCandidates(ctx, &repository.CandidateQuery{
		Kind:          models.EntryKindForTransaction(t.Kind),
		From:          t.TransactionDate.AddDate(0, 0, -window),
		To:            t.TransactionDate.AddDate(0, 0, window),
		TransactionID: t.ID,
	})
	if err != nil {
		return nil, translate(err, "lançamentos")
	}
	return s.scorer.Rank(t, candidates), nil
}

// ReconcileManual links a transaction to a ledger entry, or marks it ignorado when
// ledgerEntryID is nil. The record is updated in place. Linking an entry already
// conciliado with another transaction is a conflict.
func (s *ReconciliationService) ReconcileManual(ctx context.Context, actor Actor, transactionID uint, ledgerEntryID *uint, notes *string) (*models.BankReconciliation, error) {
	var rec *models.BankReconciliation
	applied := false

	err := s.locker.WithLock(ctx, lock.Key("conciliacao:transacao", transactionID), func(ctx context.Context) error {
		return s.tx.Transaction(ctx, func(repos *repository.Repositories) error {
			t, err := repos.Reconciliation.FindTransaction(ctx, transactionID)
			if err != nil {
				return err
			}

			rec, err = repos.Reconciliation.FindByTransaction(ctx, transactionID)
			isNew := false
			if errors.Is(err, repository.ErrRecordNotFound) {
				rec = &models.BankReconciliation{TransactionID: transactionID, Status: models.ReconciliationPending}
				isNew = true
			} else if err != nil {
				return err
			}

			if ledgerEntryID == nil {
				if rec.Status == models.ReconciliationIgnored {
					return nil
				}
				rec.Reset()
				rec.Status = models.ReconciliationIgnored
			} else {
				done, err := linkEntry(ctx, repos, t, rec, *ledgerEntryID, s.tolerance)
				if err != nil || done {
					return err
				}
			}

			now := time.Now()
			rec.ReconciledAt = &now
			if actor.OperatorID != 0 {
				rec.ReconciledBy = &actor.OperatorID
			}
			if notes != nil {
				rec.Notes = notes
			}

			applied = true
			if isNew {
				return repos.Reconciliation.Create(ctx, rec)
			}
			return repos.Reconciliation.Save(ctx, rec)
		})
	})
	if err != nil {
		return nil, translate(err, "conciliação")
	}

	if applied {
		s.audit.Record(ctx, actor, models.AuditActionReconcile, models.AuditEntityReconciliation, rec.ID, map[string]any{
			"transaction_id": transactionID, "ledger_entry_id": rec.LedgerEntryID, "status": rec.Status, "difference": rec.Difference,
		})
	}
	return rec, nil
}

// linkEntry validates the target and points rec at it. done is true when rec already
// holds this exact link.
func linkEntry(ctx context.Context, repos *repository.Repositories, t *models.ImportedTransaction, rec *models.BankReconciliation, entryID uint, tolerance decimal.Decimal) (bool, error) {
	if rec.IsLinked() && *rec.LedgerEntryID == entryID &&
		(rec.Status == models.ReconciliationMatched || rec.Status == models.ReconciliationDivergent) {
		return true, nil
	}
	if rec.IsLinked() {
		return false, fmt.Errorf("%w: transação já vinculada ao lançamento %d; desfaça a conciliação antes", ErrConflict, *rec.LedgerEntryID)
	}

	entry, err := repos.Ledger.FindByID(ctx, entryID)
	if err != nil {
		return false, err
	}
	if entry.Kind != models.EntryKindForTransaction(t.Kind) {
		return false, ruleError("tipo_incompativel", "transação de %s não pode conciliar lançamento de %s", t.Kind, entry.Kind)
	}
	if !entry.IsActive() {
		return false, ruleError("lancamento_inativo", "lançamento %d está %s", entry.ID, entry.Status)
	}

	other, err := repos.Reconciliation.FindMatchedByEntry(ctx, entryID)
	if err != nil && !errors.Is(err, repository.ErrRecordNotFound) {
		return false, err
	}
	if other != nil && other.TransactionID != t.ID {
		return false, fmt.Errorf("%w: lançamento %d já conciliado com a transação %d", ErrConflict, entryID, other.TransactionID)
	}

	diff := t.Amount.Sub(entry.Amount).Abs()
	rec.LedgerEntryID = &entry.ID
	rec.Difference = &diff
	rec.Status = models.ReconciliationMatched
	if diff.GreaterThan(tolerance) {
		rec.Status = models.ReconciliationDivergent
	}
	return false, nil
}

// IgnoreTransaction marks a transaction ignorado
func (s *ReconciliationService) IgnoreTransaction(ctx context.Context, actor Actor, transactionID uint, notes *string) (*models.BankReconciliation, error) {
	return s.ReconcileManual(ctx, actor, transactionID, nil, notes)
}

// Unreconcile returns the reconciliation to pendente and clears its link.
// The ledger entry is left untouched.
func (s *ReconciliationService) Unreconcile(ctx context.Context, actor Actor, transactionID uint) error {
	var rec *models.BankReconciliation
	var previous *uint
	applied := false

	err := s.locker.WithLock(ctx, lock.Key("conciliacao:transacao", transactionID), func(ctx context.Context) error {
		return s.tx.Transaction(ctx, func(repos *repository.Repositories) error {
			var err error
			rec, err = repos.Reconciliation.FindByTransaction(ctx, transactionID)
			if err != nil {
				return err
			}
			if rec.Status == models.ReconciliationPending {
				return nil
			}
			previous = rec.LedgerEntryID
			rec.Reset()
			applied = true
			return repos.Reconciliation.Save(ctx, rec)
		})
	})
	if err != nil {
		return translate(err, "conciliação")
	}

	if applied {
		s.audit.Record(ctx, actor, models.AuditActionUnlink, models.AuditEntityReconciliation, rec.ID, map[string]any{
			"transaction_id": transactionID, "previous_ledger_entry_id": previous,
		})
	}
	return nil
}

// AutoReconcile links pending transactions whose best suggestion is unambiguous and
// scores at least the configured threshold. Everything else is left for review.
// Suggestions are scored in parallel; links are written one at a time in transaction
// date order so the outcome never depends on scheduling.
func (s *ReconciliationService) AutoReconcile(ctx context.Context, actor Actor, bankAccountID *uint) (*AutoReconcileResult, error) {
	pending, err := s.repos.Reconciliation.ListPendingTransactions(ctx, bankAccountID)
	if err != nil {
		return nil, translate(err, "transações")
	}

	outcomes := make([]AutoOutcome, len(pending))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range pending {
		t := &pending[i]
		g.Go(func() error {
			outcomes[i] = s.planAuto(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	resolveContention(outcomes)

	order := make([]int, 0, len(pending))
	for i := range outcomes {
		if outcomes[i].Outcome == autoPlanned {
			order = append(order, i)
		}
	}
	sort.Slice(order, func(a, b int) bool {
		ta, tb := pending[order[a]], pending[order[b]]
		if !ta.TransactionDate.Equal(tb.TransactionDate) {
			return ta.TransactionDate.Before(tb.TransactionDate)
		}
		return ta.ID < tb.ID
	})
	for _, i := range order {
		s.applyAuto(ctx, actor, &outcomes[i])
	}

	result := &AutoReconcileResult{Results: outcomes, Counts: map[string]int{}}
	for _, o := range outcomes {
		result.Counts[o.Outcome]++
	}

	logger.FromContext(ctx).Info("Auto reconciliation finished",
		"transactions", len(pending),
		"matched", result.Counts[models.ReconciliationMatched],
		"divergent", result.Counts[models.ReconciliationDivergent],
		"ambiguous", result.Counts[AutoAmbiguous],
		"failed", result.Counts[AutoFailed])
	return result, nil
}

// autoPlanned marks an outcome whose link is still to be written
const autoPlanned = "planejado"

// planAuto scores one transaction without writing anything
func (s *ReconciliationService) planAuto(ctx context.Context, t *models.ImportedTransaction) AutoOutcome {
	out := AutoOutcome{TransactionID: t.ID}

	suggestions, err := s.suggest(ctx, t)
	if err != nil {
		out.Outcome, out.Error = AutoFailed, err.Error()
		return out
	}
	if len(suggestions) == 0 {
		out.Outcome = AutoNoCandidates
		return out
	}

	top := suggestions[0]
	out.Score = top.Score
	switch {
	case top.Score < s.threshold:
		out.Outcome = AutoBelowThreshold
	case len(suggestions) > 1 && suggestions[1].Score == top.Score:
		out.Outcome = AutoAmbiguous
	default:
		out.Outcome = autoPlanned
		out.LedgerEntryID = &top.LedgerEntryID
	}
	return out
}

// resolveContention handles planned outcomes that target the same ledger entry.
// A tie at the best score makes every contender ambiguous; otherwise only the best
// scoring transaction keeps its plan and the others are told the entry is taken.
func resolveContention(outcomes []AutoOutcome) {
	byEntry := make(map[uint][]int)
	for i, o := range outcomes {
		if o.Outcome == autoPlanned {
			byEntry[*o.LedgerEntryID] = append(byEntry[*o.LedgerEntryID], i)
		}
	}

	for _, group := range byEntry {
		if len(group) < 2 {
			continue
		}
		best := outcomes[group[0]].Score
		for _, i := range group[1:] {
			if outcomes[i].Score > best {
				best = outcomes[i].Score
			}
		}
		atBest := 0
		for _, i := range group {
			if outcomes[i].Score == best {
				atBest++
			}
		}
		for _, i := range group {
			switch {
			case atBest > 1:
				outcomes[i].Outcome = AutoAmbiguous
				outcomes[i].LedgerEntryID = nil
			case outcomes[i].Score < best:
				outcomes[i].Outcome = AutoEntryTaken
			}
		}
	}
}

// applyAuto writes a planned link. Losing the entry to a concurrent reconciliation
// is reported as taken, not as a failure.
func (s *ReconciliationService) applyAuto(ctx context.Context, actor Actor, out *AutoOutcome) {
	rec, err := s.ReconcileManual(ctx, actor, out.TransactionID, out.LedgerEntryID, nil)
	switch {
	case errors.Is(err, ErrConflict):
		out.Outcome = AutoEntryTaken
	case err != nil:
		out.Outcome, out.Error = AutoFailed, err.Error()
		out.LedgerEntryID = nil
	default:
		out.Outcome = rec.Status
		out.LedgerEntryID = rec.LedgerEntryID
	}
}
