package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

// InvoiceRepository stores an invoice across three tables: the header row,
// its line items and its unmatched names. Children are rewritten on save.
type InvoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `id, category_id, provider_id, provider_name, document_id, split_from_id,
	invoice_number, invoice_date, total, currency, attribution, state, rejection_reason,
	version, decided_at, created_at, updated_at`

func (r *InvoiceRepository) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	const op = "create invoice"
	attribution, err := json.Marshal(inv.Attribution)
	if err != nil {
		return fmt.Errorf("%s: marshal attribution: %w", op, err)
	}
	return withinTx(ctx, r.db, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		_, err := q.ExecContext(ctx, `
INSERT INTO invoices (`+invoiceColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
`,
			inv.ID, inv.CategoryID, inv.ProviderID, inv.ProviderName,
			nullString(inv.DocumentID), nullString(inv.SplitFromID),
			inv.InvoiceNumber, nullTime(inv.InvoiceDate), inv.Total, inv.Currency,
			attribution, string(inv.State), inv.RejectionReason,
			int64(1), nullTime(inv.DecidedAt), inv.CreatedAt, inv.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.WrapError(domain.ErrConflict, op, err)
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		if err := insertChildren(ctx, q, inv); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		inv.Version = 1
		return nil
	})
}

func (r *InvoiceRepository) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `
SELECT `+invoiceColumns+`
FROM invoices
WHERE id = $1
`, id)
	return r.loadOne(ctx, row, "get invoice", "invoice %s not found", id)
}

// GetInvoiceByDocument returns the invoice created from documentID, never a
// sibling split off it.
func (r *InvoiceRepository) GetInvoiceByDocument(ctx context.Context, documentID string) (*domain.Invoice, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `
SELECT `+invoiceColumns+`
FROM invoices
WHERE document_id = $1 AND split_from_id IS NULL
`, documentID)
	return r.loadOne(ctx, row, "get invoice by document", "no invoice for document %s", documentID)
}

func (r *InvoiceRepository) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	query := `
SELECT ` + invoiceColumns + `
FROM invoices
WHERE ($1 = '' OR state = $1) AND ($2 = '' OR category_id = $2)
ORDER BY created_at, id`

	q := conn(ctx, r.db)
	rows, err := q.QueryContext(ctx, query, string(filter.State), filter.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	out := make([]domain.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	rows.Close()

	for i := range out {
		if err := loadChildren(ctx, q, &out[i]); err != nil {
			return nil, fmt.Errorf("list invoices: %w", err)
		}
	}
	return out, nil
}

// SaveInvoice bumps the version only when the stored one still matches.
func (r *InvoiceRepository) SaveInvoice(ctx context.Context, inv *domain.Invoice) error {
	const op = "save invoice"
	attribution, err := json.Marshal(inv.Attribution)
	if err != nil {
		return fmt.Errorf("%s: marshal attribution: %w", op, err)
	}
	return withinTx(ctx, r.db, func(ctx context.Context) error {
		q := conn(ctx, r.db)
		result, err := q.ExecContext(ctx, `
UPDATE invoices
SET category_id = $3, provider_id = $4, provider_name = $5, invoice_number = $6,
	invoice_date = $7, total = $8, currency = $9, attribution = $10, state = $11,
	rejection_reason = $12, decided_at = $13, updated_at = $14, version = version + 1
WHERE id = $1 AND version = $2
`,
			inv.ID, inv.Version, inv.CategoryID, inv.ProviderID, inv.ProviderName, inv.InvoiceNumber,
			nullTime(inv.InvoiceDate), inv.Total, inv.Currency, attribution, string(inv.State),
			inv.RejectionReason, nullTime(inv.DecidedAt), inv.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("%s rows affected: %w", op, err)
		}
		if affected == 0 {
			return staleOrMissing(ctx, q, op, inv)
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM line_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return fmt.Errorf("%s: clear line items: %w", op, err)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM unmatched_names WHERE invoice_id = $1`, inv.ID); err != nil {
			return fmt.Errorf("%s: clear unmatched names: %w", op, err)
		}
		if err := insertChildren(ctx, q, inv); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		inv.Version++
		return nil
	})
}

func staleOrMissing(ctx context.Context, q queryer, op string, inv *domain.Invoice) error {
	var stored int64
	err := q.QueryRowContext(ctx, `SELECT version FROM invoices WHERE id = $1`, inv.ID).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.NewError(domain.ErrNotFound, op, "invoice %s not found", inv.ID)
	case err != nil:
		return fmt.Errorf("%s: read version: %w", op, err)
	}
	return domain.NewError(domain.ErrConflict, op, "invoice %s changed: have version %d, stored %d", inv.ID, inv.Version, stored)
}

func (r *InvoiceRepository) loadOne(ctx context.Context, row *sql.Row, op, notFound string, arg string) (*domain.Invoice, error) {
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(domain.ErrNotFound, op, notFound, arg)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := loadChildren(ctx, conn(ctx, r.db), &inv); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &inv, nil
}

func insertChildren(ctx context.Context, q queryer, inv *domain.Invoice) error {
	for pos, item := range inv.LineItems {
		entity, err := json.Marshal(item.Entity)
		if err != nil {
			return fmt.Errorf("marshal entity of %s: %w", item.ID, err)
		}
		_, err = q.ExecContext(ctx, `
INSERT INTO line_items (
	invoice_id, id, position, description, amount, current_category_id,
	suggested_category_id, confirmation_kind, confirmation_category_id, entity
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
			inv.ID, item.ID, pos, item.Description, item.Amount, item.CurrentCategoryID,
			item.SuggestedCategoryID, string(item.Confirmation.Kind), item.Confirmation.CategoryID, entity,
		)
		if err != nil {
			return fmt.Errorf("insert line item %s: %w", item.ID, err)
		}
	}
	for pos, name := range inv.UnmatchedNames {
		_, err := q.ExecContext(ctx, `
INSERT INTO unmatched_names (invoice_id, raw_name, position, outcome, horse_id, resolved_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, inv.ID, name.RawName, pos, string(name.Outcome), name.HorseID, nullTime(name.ResolvedAt))
		if err != nil {
			return fmt.Errorf("insert unmatched name %q: %w", name.RawName, err)
		}
	}
	return nil
}

func loadChildren(ctx context.Context, q queryer, inv *domain.Invoice) error {
	items, err := q.QueryContext(ctx, `
SELECT id, description, amount, current_category_id, suggested_category_id,
	confirmation_kind, confirmation_category_id, entity
FROM line_items
WHERE invoice_id = $1
ORDER BY position
`, inv.ID)
	if err != nil {
		return fmt.Errorf("query line items: %w", err)
	}
	inv.LineItems = make([]domain.LineItem, 0)
	for items.Next() {
		var item domain.LineItem
		var kind string
		var entity []byte
		if err := items.Scan(
			&item.ID, &item.Description, &item.Amount, &item.CurrentCategoryID, &item.SuggestedCategoryID,
			&kind, &item.Confirmation.CategoryID, &entity,
		); err != nil {
			items.Close()
			return fmt.Errorf("scan line item: %w", err)
		}
		item.Confirmation.Kind = domain.ConfirmationKind(kind)
		if err := json.Unmarshal(entity, &item.Entity); err != nil {
			items.Close()
			return fmt.Errorf("unmarshal entity of %s: %w", item.ID, err)
		}
		inv.LineItems = append(inv.LineItems, item)
	}
	if err := items.Err(); err != nil {
		items.Close()
		return fmt.Errorf("iterate line items: %w", err)
	}
	items.Close()

	names, err := q.QueryContext(ctx, `
SELECT raw_name, outcome, horse_id, resolved_at
FROM unmatched_names
WHERE invoice_id = $1
ORDER BY position
`, inv.ID)
	if err != nil {
		return fmt.Errorf("query unmatched names: %w", err)
	}
	defer names.Close()
	inv.UnmatchedNames = make([]domain.UnmatchedName, 0)
	for names.Next() {
		var name domain.UnmatchedName
		var outcome string
		var resolvedAt sql.NullTime
		if err := names.Scan(&name.RawName, &outcome, &name.HorseID, &resolvedAt); err != nil {
			return fmt.Errorf("scan unmatched name: %w", err)
		}
		name.Outcome = domain.ResolutionOutcome(outcome)
		name.ResolvedAt = timePtr(resolvedAt)
		inv.UnmatchedNames = append(inv.UnmatchedNames, name)
	}
	if err := names.Err(); err != nil {
		return fmt.Errorf("iterate unmatched names: %w", err)
	}
	return nil
}

func scanInvoice(row rowScanner) (domain.Invoice, error) {
	var inv domain.Invoice
	var documentID, splitFromID sql.NullString
	var invoiceDate, decidedAt sql.NullTime
	var total decimal.NullDecimal
	var attribution []byte
	var state string
	err := row.Scan(
		&inv.ID, &inv.CategoryID, &inv.ProviderID, &inv.ProviderName, &documentID, &splitFromID,
		&inv.InvoiceNumber, &invoiceDate, &total, &inv.Currency, &attribution, &state, &inv.RejectionReason,
		&inv.Version, &decidedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return domain.Invoice{}, err
	}
	if err := json.Unmarshal(attribution, &inv.Attribution); err != nil {
		return domain.Invoice{}, fmt.Errorf("unmarshal attribution: %w", err)
	}
	inv.DocumentID = documentID.String
	inv.SplitFromID = splitFromID.String
	inv.InvoiceDate = timePtr(invoiceDate)
	inv.DecidedAt = timePtr(decidedAt)
	inv.Total = total
	inv.State = domain.ApprovalState(state)
	return inv, nil
}
