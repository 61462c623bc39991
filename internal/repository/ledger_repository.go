package repository

import (
	"context"
	"time"

	"github.com/juridico/conciliacao-api/internal/models"
	"gorm.io/gorm"
)

// LedgerRepository defines the interface for ledger entry data access
type LedgerRepository interface {
	FindByID(ctx context.Context, id uint) (*models.LedgerEntry, error)
	FindByIDs(ctx context.Context, ids []uint) ([]models.LedgerEntry, error)
	Create(ctx context.Context, entry *models.LedgerEntry) error
	Update(ctx context.Context, entry *models.LedgerEntry) error
	FindReversalOf(ctx context.Context, originalID uint) (*models.LedgerEntry, error)
	FindActiveByInstallment(ctx context.Context, installmentID uint) ([]models.LedgerEntry, error)
	FindLinkedToInstallments(ctx context.Context, obligationID *uint) ([]models.LedgerEntry, error)
	FindCandidates(ctx context.Context, query *CandidateQuery) ([]models.LedgerEntry, error)
	FindRecurringTemplates(ctx context.Context) ([]models.LedgerEntry, error)
	ExistsOccurrence(ctx context.Context, templateID uint, dueDate time.Time) (bool, error)
	List(ctx context.Context, query *ListQuery) ([]models.LedgerEntry, int64, error)
}

// CandidateQuery selects ledger entries that may settle a bank transaction
type CandidateQuery struct {
	Kind          string
	From          time.Time
	To            time.Time
	TransactionID uint // entries matched to this transaction stay eligible
}

// ledgerRepository handles database operations for ledger entries
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) FindByID(ctx context.Context, id uint) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).First(&entry, id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *ledgerRepository) FindByIDs(ctx context.Context, ids []uint) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	if len(ids) == 0 {
		return entries, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&entries).Error
	return entries, err
}

// Create creates a new ledger entry. A second active entry for the same
// installment violates idx_lancamento_parcela_ativa and yields ErrDuplicate.
func (r *ledgerRepository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	return wrapErr(r.db.WithContext(ctx).Create(entry).Error)
}

func (r *ledgerRepository) Update(ctx context.Context, entry *models.LedgerEntry) error {
	return wrapErr(r.db.WithContext(ctx).Save(entry).Error)
}

// FindReversalOf retrieves the compensating entry created when originalID was reversed
func (r *ledgerRepository) FindReversalOf(ctx context.Context, originalID uint) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.WithContext(ctx).Where("reversal_of_id = ?", originalID).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindActiveByInstallment retrieves the pendente/confirmado entries that reference an installment
func (r *ledgerRepository) FindActiveByInstallment(ctx context.Context, installmentID uint) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("installment_id = ? AND status IN ?", installmentID, []string{models.EntryStatusPending, models.EntryStatusConfirmed}).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// FindLinkedToInstallments retrieves every entry carrying an installment id, optionally for one obligation
func (r *ledgerRepository) FindLinkedToInstallments(ctx context.Context, obligationID *uint) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	db := r.db.WithContext(ctx).Where("installment_id IS NOT NULL")
	if obligationID != nil {
		db = db.Where("obligation_id = ?", *obligationID)
	}
	err := db.Order("id ASC").Find(&entries).Error
	return entries, err
}

// FindCandidates retrieves active entries of a kind within a reference-date range
// that are not already matched to another transaction
func (r *ledgerRepository) FindCandidates(ctx context.Context, query *CandidateQuery) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("kind = ? AND status IN ?", query.Kind, []string{models.EntryStatusPending, models.EntryStatusConfirmed}).
		Where("COALESCE(effective_date, due_date) BETWEEN ? AND ?", query.From, query.To).
		Where(`NOT EXISTS (
			SELECT 1 FROM conciliacoes_bancarias c
			WHERE c.ledger_entry_id = lancamentos.id AND c.status = ? AND c.transaction_id <> ?
		)`, models.ReconciliationMatched, query.TransactionID).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// FindRecurringTemplates retrieves active entries that originate a recurrence series
func (r *ledgerRepository) FindRecurringTemplates(ctx context.Context) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("recurring = ? AND template_id IS NULL AND recurrence_frequency IS NOT NULL", true).
		Where("status IN ?", []string{models.EntryStatusPending, models.EntryStatusConfirmed}).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *ledgerRepository) ExistsOccurrence(ctx context.Context, templateID uint, dueDate time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("template_id = ? AND due_date = ?", templateID, dueDate).
		Count(&count).Error
	return count > 0, err
}

func (r *ledgerRepository) List(ctx context.Context, query *ListQuery) ([]models.LedgerEntry, int64, error) {
	var entries []models.LedgerEntry
	var total int64

	db := r.db.WithContext(ctx).Model(&models.LedgerEntry{})

	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Where("description ILIKE ? OR document_ref ILIKE ?", search, search)
	}

	for _, column := range []string{"kind", "status", "origin", "installment_id", "obligation_id", "bank_account_id", "case_id", "client_id"} {
		if val := query.Filters[column]; val != "" {
			db = db.Where(column+" = ?", val)
		}
	}

	if val := query.Filters["due_from"]; val != "" {
		db = db.Where("due_date >= ?", val)
	}
	if val := query.Filters["due_to"]; val != "" {
		db = db.Where("due_date <= ?", val)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = paginate(db, query, "due_date DESC, id DESC", map[string]bool{
		"due_date": true, "amount": true, "created_at": true, "status": true,
	})

	err := db.Find(&entries).Error
	return entries, total, err
}
