package repository

import (
	"context"

	"github.com/juridico/conciliacao-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReconciliationRepository defines data access for imported transactions and their reconciliation records
type ReconciliationRepository interface {
	InsertTransaction(ctx context.Context, tx *models.ImportedTransaction) (bool, error)
	FindTransaction(ctx context.Context, id uint) (*models.ImportedTransaction, error)
	ListPendingTransactions(ctx context.Context, bankAccountID *uint) ([]models.ImportedTransaction, error)

	FindByTransaction(ctx context.Context, transactionID uint) (*models.BankReconciliation, error)
	FindMatchedByEntry(ctx context.Context, ledgerEntryID uint) (*models.BankReconciliation, error)
	Create(ctx context.Context, rec *models.BankReconciliation) error
	Save(ctx context.Context, rec *models.BankReconciliation) error
}

type reconciliationRepository struct {
	db *gorm.DB
}

// NewReconciliationRepository creates a new reconciliation repository
func NewReconciliationRepository(db *gorm.DB) ReconciliationRepository {
	return &reconciliationRepository{db: db}
}

// InsertTransaction inserts the transaction unless its dedup hash already exists.
// Returns false for a re-imported line.
func (r *reconciliationRepository) InsertTransaction(ctx context.Context, tx *models.ImportedTransaction) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "dedup_hash"}},
			DoNothing: true,
		}).
		Omit("Reconciliation").
		Create(tx)
	if result.Error != nil {
		return false, wrapErr(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *reconciliationRepository) FindTransaction(ctx context.Context, id uint) (*models.ImportedTransaction, error) {
	var tx models.ImportedTransaction
	err := r.db.WithContext(ctx).Preload("Reconciliation").First(&tx, id).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// ListPendingTransactions retrieves transactions whose reconciliation is still pendente
func (r *reconciliationRepository) ListPendingTransactions(ctx context.Context, bankAccountID *uint) ([]models.ImportedTransaction, error) {
	var txs []models.ImportedTransaction
	db := r.db.WithContext(ctx).
		Joins("JOIN conciliacoes_bancarias c ON c.transaction_id = transacoes_importadas.id").
		Where("c.status = ?", models.ReconciliationPending)
	if bankAccountID != nil {
		db = db.Where("transacoes_importadas.bank_account_id = ?", *bankAccountID)
	}
	err := db.Order("transacoes_importadas.transaction_date ASC, transacoes_importadas.id ASC").Find(&txs).Error
	return txs, err
}

func (r *reconciliationRepository) FindByTransaction(ctx context.Context, transactionID uint) (*models.BankReconciliation, error) {
	var rec models.BankReconciliation
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindMatchedByEntry retrieves the conciliado record that targets a ledger entry
func (r *reconciliationRepository) FindMatchedByEntry(ctx context.Context, ledgerEntryID uint) (*models.BankReconciliation, error) {
	var rec models.BankReconciliation
	err := r.db.WithContext(ctx).
		Where("ledger_entry_id = ? AND status = ?", ledgerEntryID, models.ReconciliationMatched).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *reconciliationRepository) Create(ctx context.Context, rec *models.BankReconciliation) error {
	return wrapErr(r.db.WithContext(ctx).Create(rec).Error)
}

// Save updates the record in place. A second conciliado record for the same
// entry violates idx_conciliacao_lancamento_ativo and yields ErrDuplicate.
func (r *reconciliationRepository) Save(ctx context.Context, rec *models.BankReconciliation) error {
	return wrapErr(r.db.WithContext(ctx).Save(rec).Error)
}
