package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaLockID int64 = 2026101601

const schemaDDL = `
CREATE TABLE IF NOT EXISTS horses (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	owner TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	retired_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_horses_status ON horses(status);
CREATE INDEX IF NOT EXISTS idx_horses_lower_name ON horses(lower(name));

CREATE TABLE IF NOT EXISTS source_documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	invoice_id TEXT,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_source_documents_status ON source_documents(status);

CREATE TABLE IF NOT EXISTS invoices (
	id TEXT PRIMARY KEY,
	category_id TEXT NOT NULL,
	provider_id TEXT NOT NULL DEFAULT '',
	provider_name TEXT NOT NULL DEFAULT '',
	document_id TEXT,
	split_from_id TEXT REFERENCES invoices(id),
	invoice_number TEXT NOT NULL DEFAULT '',
	invoice_date DATE,
	total NUMERIC(14,2),
	currency TEXT NOT NULL DEFAULT '',
	attribution JSONB NOT NULL DEFAULT '{}'::jsonb,
	state TEXT NOT NULL,
	rejection_reason TEXT NOT NULL DEFAULT '',
	version BIGINT NOT NULL,
	decided_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_invoices_source_document
	ON invoices(document_id) WHERE document_id IS NOT NULL AND split_from_id IS NULL;
CREATE INDEX IF NOT EXISTS idx_invoices_state ON invoices(state);
CREATE INDEX IF NOT EXISTS idx_invoices_category ON invoices(category_id);

CREATE TABLE IF NOT EXISTS line_items (
	invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
	id TEXT NOT NULL,
	position INT NOT NULL,
	description TEXT NOT NULL,
	amount NUMERIC(14,2) NOT NULL,
	current_category_id TEXT NOT NULL,
	suggested_category_id TEXT NOT NULL DEFAULT '',
	confirmation_kind TEXT NOT NULL DEFAULT '',
	confirmation_category_id TEXT NOT NULL DEFAULT '',
	entity JSONB NOT NULL DEFAULT '{}'::jsonb,
	PRIMARY KEY (invoice_id, id)
);

CREATE TABLE IF NOT EXISTS unmatched_names (
	invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
	raw_name TEXT NOT NULL,
	position INT NOT NULL,
	outcome TEXT NOT NULL,
	horse_id TEXT NOT NULL DEFAULT '',
	resolved_at TIMESTAMPTZ,
	PRIMARY KEY (invoice_id, raw_name)
);
`

// EnsureSchema creates every table the repositories use. DDL runs under a
// transaction-scoped advisory lock so api and worker can start together.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
