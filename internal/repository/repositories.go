package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Ledger         LedgerRepository
	Obligation     ObligationRepository
	Reconciliation ReconciliationRepository
	Audit          AuditRepository
	Alert          AlertRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Ledger:         NewLedgerRepository(db),
		Obligation:     NewObligationRepository(db),
		Reconciliation: NewReconciliationRepository(db),
		Audit:          NewAuditRepository(db),
		Alert:          NewAlertRepository(db),
	}
}

// Transactor runs fn inside one database transaction. The repositories passed
// to fn are bound to that transaction; returning an error rolls everything back.
type Transactor interface {
	Transaction(ctx context.Context, fn func(repos *Repositories) error) error
}

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor creates a Transactor backed by GORM
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

func (t *gormTransactor) Transaction(ctx context.Context, fn func(repos *Repositories) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// ListQuery represents common query parameters
type ListQuery struct {
	Page    int
	PerPage int
	Search  string
	SortBy  string
	SortDir string
	Filters map[string]string
}

// NewListQuery creates a ListQuery with defaults
func NewListQuery() *ListQuery {
	return &ListQuery{
		Page:    1,
		PerPage: 20,
		Filters: make(map[string]string),
	}
}

// paginate applies sorting and pagination; allowedSorts guards against arbitrary ORDER BY input
func paginate(db *gorm.DB, query *ListQuery, defaultOrder string, allowedSorts map[string]bool) *gorm.DB {
	if query.SortBy != "" && allowedSorts[query.SortBy] {
		order := query.SortBy
		if query.SortDir == "desc" {
			order += " DESC"
		}
		db = db.Order(order)
	} else {
		db = db.Order(defaultOrder)
	}

	if query.PerPage > 0 {
		page := query.Page
		if page < 1 {
			page = 1
		}
		db = db.Offset((page - 1) * query.PerPage).Limit(query.PerPage)
	}
	return db
}
