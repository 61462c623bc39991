package repository

import (
	"context"
	"time"

	"github.com/juridico/conciliacao-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ObligationRepository defines the interface for obligation and installment data access
type ObligationRepository interface {
	Create(ctx context.Context, obligation *models.Obligation) error
	FindByID(ctx context.Context, id uint) (*models.Obligation, error)
	FindByIDWithInstallments(ctx context.Context, id uint) (*models.Obligation, error)
	List(ctx context.Context, query *ListQuery) ([]models.Obligation, int64, error)

	FindInstallment(ctx context.Context, id uint) (*models.Installment, error)
	FindInstallmentForUpdate(ctx context.Context, id uint) (*models.Installment, error)
	FindInstallments(ctx context.Context, obligationID *uint) ([]models.Installment, error)
	FindInstallmentsByIDs(ctx context.Context, ids []uint) ([]models.Installment, error)
	FindOverdueCandidates(ctx context.Context, asOf time.Time) ([]models.Installment, error)
	FindPendingRepasse(ctx context.Context) ([]models.Installment, error)
	UpdateInstallment(ctx context.Context, installment *models.Installment) error
	SetInstallmentLedgerEntry(ctx context.Context, installmentID uint, ledgerEntryID *uint) error
}

type obligationRepository struct {
	db *gorm.DB
}

// NewObligationRepository creates a new obligation repository
func NewObligationRepository(db *gorm.DB) ObligationRepository {
	return &obligationRepository{db: db}
}

// Create inserts the obligation together with its installments
func (r *obligationRepository) Create(ctx context.Context, obligation *models.Obligation) error {
	return wrapErr(r.db.WithContext(ctx).Create(obligation).Error)
}

func (r *obligationRepository) FindByID(ctx context.Context, id uint) (*models.Obligation, error) {
	var obligation models.Obligation
	err := r.db.WithContext(ctx).First(&obligation, id).Error
	if err != nil {
		return nil, err
	}
	return &obligation, nil
}

func (r *obligationRepository) FindByIDWithInstallments(ctx context.Context, id uint) (*models.Obligation, error) {
	var obligation models.Obligation
	err := r.db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("number ASC")
		}).
		First(&obligation, id).Error
	if err != nil {
		return nil, err
	}
	return &obligation, nil
}

func (r *obligationRepository) List(ctx context.Context, query *ListQuery) ([]models.Obligation, int64, error) {
	var obligations []models.Obligation
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Obligation{})

	if query.Search != "" {
		search := "%" + query.Search + "%"
		db = db.Where("description ILIKE ? OR counterparty_name ILIKE ?", search, search)
	}

	for _, column := range []string{"direction", "case_id", "client_id"} {
		if val := query.Filters[column]; val != "" {
			db = db.Where(column+" = ?", val)
		}
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = paginate(db, query, "created_at DESC", map[string]bool{"created_at": true, "total_value": true})

	err := db.Preload("Installments", func(db *gorm.DB) *gorm.DB {
		return db.Order("number ASC")
	}).Find(&obligations).Error
	return obligations, total, err
}

// FindInstallment retrieves an installment with its obligation
func (r *obligationRepository) FindInstallment(ctx context.Context, id uint) (*models.Installment, error) {
	var installment models.Installment
	err := r.db.WithContext(ctx).Preload("Obligation").First(&installment, id).Error
	if err != nil {
		return nil, err
	}
	return &installment, nil
}

// FindInstallmentForUpdate row-locks the installment for the current transaction.
// The obligation is read in a second statement since FOR UPDATE cannot cover an outer join.
func (r *obligationRepository) FindInstallmentForUpdate(ctx context.Context, id uint) (*models.Installment, error) {
	var installment models.Installment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&installment, id).Error
	if err != nil {
		return nil, err
	}

	var obligation models.Obligation
	if err := r.db.WithContext(ctx).First(&obligation, installment.ObligationID).Error; err != nil {
		return nil, err
	}
	installment.Obligation = &obligation
	return &installment, nil
}

// FindInstallments retrieves installments with their obligation, optionally for one obligation
func (r *obligationRepository) FindInstallments(ctx context.Context, obligationID *uint) ([]models.Installment, error) {
	var installments []models.Installment
	db := r.db.WithContext(ctx).Preload("Obligation")
	if obligationID != nil {
		db = db.Where("obligation_id = ?", *obligationID)
	}
	err := db.Order("obligation_id ASC, number ASC").Find(&installments).Error
	return installments, err
}

func (r *obligationRepository) FindInstallmentsByIDs(ctx context.Context, ids []uint) ([]models.Installment, error) {
	var installments []models.Installment
	if len(ids) == 0 {
		return installments, nil
	}
	err := r.db.WithContext(ctx).Preload("Obligation").Where("id IN ?", ids).Find(&installments).Error
	return installments, err
}

// FindOverdueCandidates retrieves pendente installments due before asOf
func (r *obligationRepository) FindOverdueCandidates(ctx context.Context, asOf time.Time) ([]models.Installment, error) {
	var installments []models.Installment
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_date < ?", models.InstallmentStatusPending, asOf).
		Order("due_date ASC").
		Find(&installments).Error
	return installments, err
}

// FindPendingRepasse retrieves received installments whose payout was not yet transferred
func (r *obligationRepository) FindPendingRepasse(ctx context.Context) ([]models.Installment, error) {
	var installments []models.Installment
	err := r.db.WithContext(ctx).
		Where("repasse_status IN ?", []string{models.RepassePendingDeclaration, models.RepassePendingTransfer}).
		Order("payment_date ASC").
		Find(&installments).Error
	return installments, err
}

func (r *obligationRepository) UpdateInstallment(ctx context.Context, installment *models.Installment) error {
	return wrapErr(r.db.WithContext(ctx).Omit("Obligation").Save(installment).Error)
}

// SetInstallmentLedgerEntry updates only the link column
func (r *obligationRepository) SetInstallmentLedgerEntry(ctx context.Context, installmentID uint, ledgerEntryID *uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Installment{}).
		Where("id = ?", installmentID).
		Update("ledger_entry_id", ledgerEntryID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
