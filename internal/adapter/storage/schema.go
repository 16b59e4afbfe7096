package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// name_active mirrors name while the row is non-terminal and goes NULL
// once it is approved or denied: the unique key then enforces one live
// product per (owner, name) while terminal rows keep their name for
// audit and free it for resubmission.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
		user_id    VARCHAR(64)   NOT NULL,
		balance    DECIMAL(18,2) NOT NULL DEFAULT 0,
		created_at DATETIME(3)   NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		updated_at DATETIME(3)   NOT NULL DEFAULT CURRENT_TIMESTAMP(3) ON UPDATE CURRENT_TIMESTAMP(3),
		PRIMARY KEY (user_id),
		CONSTRAINT chk_balance_non_negative CHECK (balance >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          CHAR(36)      NOT NULL,
		user_id     VARCHAR(64)   NOT NULL,
		name        VARCHAR(128)  NOT NULL,
		price       DECIMAL(18,2) NOT NULL,
		listing_fee DECIMAL(18,2) NOT NULL,
		status      VARCHAR(32)   NOT NULL,
		name_active VARCHAR(128) GENERATED ALWAYS AS
			(CASE WHEN status IN ('approved', 'denied') THEN NULL ELSE name END) STORED,
		created_at  DATETIME(3)   NOT NULL,
		updated_at  DATETIME(3)   NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_owner_active_name (user_id, name_active),
		KEY idx_name_status (name, status)
	)`,
}

// EnsureSchema applies the idempotent DDL at startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
