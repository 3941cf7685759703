package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS storage_contracts (
		id TEXT PRIMARY KEY,
		class TEXT NOT NULL CHECK (class IN ('apple', 'potato')),
		truck_number TEXT,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		cnic TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		original_quantity INTEGER NOT NULL CHECK (original_quantity > 0),
		start_date DATE NOT NULL,
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'completed')),
		end_date DATE,
		final_amount NUMERIC,
		final_breakdown TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_storage_contracts_status ON storage_contracts (status);`,
	`CREATE INDEX IF NOT EXISTS idx_storage_contracts_class ON storage_contracts (class);`,
	`CREATE TABLE IF NOT EXISTS withdrawal_records (
		id TEXT PRIMARY KEY,
		sequence BIGINT NOT NULL,
		contract_id TEXT NOT NULL REFERENCES storage_contracts(id) ON DELETE CASCADE,
		class TEXT NOT NULL,
		quantity INTEGER NOT NULL CHECK (quantity > 0),
		withdrawal_date TIMESTAMPTZ NOT NULL,
		bill_amount NUMERIC NOT NULL,
		breakdown TEXT NOT NULL DEFAULT '',
		is_paid BOOLEAN NOT NULL DEFAULT FALSE
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_withdrawal_records_sequence ON withdrawal_records (sequence);`,
	`CREATE INDEX IF NOT EXISTS idx_withdrawal_records_contract_id ON withdrawal_records (contract_id);`,
	`CREATE TABLE IF NOT EXISTS rate_settings (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		apple_rate NUMERIC NOT NULL CHECK (apple_rate >= 0),
		potato_rate NUMERIC NOT NULL CHECK (potato_rate >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS ledger_state (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		next_sequence BIGINT NOT NULL DEFAULT 0
	);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
