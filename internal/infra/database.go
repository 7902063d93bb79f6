package infra

import (
	"fmt"
	"time"

	"stockledger/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies idempotent SQL patches that GORM
// cannot express (partial indexes, CHECK constraints on the balance columns).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto`).Error; err != nil {
		return nil, fmt.Errorf("pgcrypto extension: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// RunMigrations creates the schema and applies the patches AutoMigrate cannot.
// Also used by integration tests against throwaway containers.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Warehouse{},
		&model.Location{},
		&model.CatalogItem{},
		&model.StockBalance{},
		&model.Movement{},
		&model.Reservation{},
		&model.StockAdjustment{},
		&model.Sequence{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that backs up the in-code invariants
// at the database level. Each statement is guarded so re-running is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// Non-negativity of every balance column, enforced even if a future
		// code path bypasses the guarded-delta update.
		{"stock_balances non-negative check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_balance_non_negative') THEN
    ALTER TABLE stock_balances ADD CONSTRAINT chk_balance_non_negative
      CHECK (quantity >= 0 AND available_quantity >= 0 AND reserved_quantity >= 0
             AND quarantine_quantity >= 0 AND damaged_quantity >= 0);
  END IF;
END $$`},
		// Accounting identity: total = available + reserved + quarantine + damaged.
		{"stock_balances accounting identity check", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_balance_identity') THEN
    ALTER TABLE stock_balances ADD CONSTRAINT chk_balance_identity
      CHECK (quantity = available_quantity + reserved_quantity + quarantine_quantity + damaged_quantity);
  END IF;
END $$`},
		// Partial index for the expiry sweep: only ACTIVE reservations are
		// candidates, so the index stays small.
		{"reservations active-expiry partial index", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_reservations_active_expiry') THEN
    CREATE INDEX idx_reservations_active_expiry
        ON reservations (expiry_date)
        WHERE status = 'ACTIVE';
  END IF;
END $$`},
		// Keyset pagination order for the history stream.
		{"movements history keyset index", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_movements_history_keyset') THEN
    CREATE INDEX idx_movements_history_keyset
        ON movements (movement_date, id)
        WHERE status = 'COMPLETED';
  END IF;
END $$`},
	}

	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
