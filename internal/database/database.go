package database

import (
	"fmt"
	"time"

	"github.com/juridico/conciliacao-api/internal/models"
	pkgLogger "github.com/juridico/conciliacao-api/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect establishes a connection to the PostgreSQL database
func Connect(databaseURL, environment string) (*gorm.DB, error) {
	// Configure GORM logger
	logLevel := logger.Warn
	if environment == "development" {
		logLevel = logger.Info
	}

	gormLogger := pkgLogger.NewGormLogger(
		logLevel,
		200*time.Millisecond,
	)

	// Open database connection
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying SQL database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	// Verify connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// uniqueIndexes back the pairing invariants: one active ledger entry per
// installment, one conciliado record per ledger entry
var uniqueIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_lancamento_parcela_ativa
		ON lancamentos (installment_id)
		WHERE installment_id IS NOT NULL AND status IN ('pendente', 'confirmado')`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_conciliacao_lancamento_ativo
		ON conciliacoes_bancarias (ledger_entry_id)
		WHERE status = 'conciliado'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_lancamento_recorrencia
		ON lancamentos (template_id, due_date)
		WHERE template_id IS NOT NULL`,
}

// Migrate creates or updates the schema
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Obligation{},
		&models.Installment{},
		&models.LedgerEntry{},
		&models.ImportedTransaction{},
		&models.BankReconciliation{},
		&models.AuditLog{},
		&models.Alert{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	for _, stmt := range uniqueIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
