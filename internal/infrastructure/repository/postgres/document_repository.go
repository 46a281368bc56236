package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.SourceDocument) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO source_documents (
	id, filename, mime_type, storage_path, status, invoice_id, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		doc.ID, doc.Filename, doc.MimeType, doc.StoragePath, string(doc.Status),
		nullString(doc.InvoiceID), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, "insert document", err)
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.SourceDocument, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, status, invoice_id, error_message, created_at, updated_at
FROM source_documents
WHERE id = $1
`, id)

	var doc domain.SourceDocument
	var status string
	var invoiceID sql.NullString
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &status,
		&invoiceID, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(domain.ErrNotFound, "get document", "document %s not found", id)
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	doc.InvoiceID = invoiceID.String
	return &doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `
UPDATE source_documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return expectOneRow(result, "update document status", "document", id)
}

func (r *DocumentRepository) LinkInvoice(ctx context.Context, id, invoiceID string) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `
UPDATE source_documents
SET invoice_id = $2, updated_at = $3
WHERE id = $1
`, id, invoiceID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("link document invoice: %w", err)
	}
	return expectOneRow(result, "link document invoice", "document", id)
}

func expectOneRow(result sql.Result, op, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return domain.NewError(domain.ErrNotFound, op, "%s %s not found", entity, id)
	}
	return nil
}
