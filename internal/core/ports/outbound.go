package ports

import (
	"context"
	"io"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

// Transactor runs fn inside one storage transaction. Repositories called with
// the ctx handed to fn join that transaction; any error rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// InvoiceRepository persists invoices together with their line items and
// unmatched-name records.
type InvoiceRepository interface {
	CreateInvoice(ctx context.Context, inv *domain.Invoice) error
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	GetInvoiceByDocument(ctx context.Context, documentID string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error)
	// SaveInvoice writes inv if the stored version still equals inv.Version,
	// then bumps inv.Version. A stale version fails with domain.ErrConflict.
	SaveInvoice(ctx context.Context, inv *domain.Invoice) error
}

// HorseRepository persists the roster.
type HorseRepository interface {
	CreateHorse(ctx context.Context, horse *domain.Horse) error
	GetHorse(ctx context.Context, id string) (*domain.Horse, error)
	ListHorses(ctx context.Context, filter domain.HorseFilter) ([]domain.Horse, error)
	UpdateHorse(ctx context.Context, horse *domain.Horse) error
}

// DocumentRepository persists and reads source document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.SourceDocument) error
	GetByID(ctx context.Context, id string) (*domain.SourceDocument, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	LinkInvoice(ctx context.Context, id, invoiceID string) error
}

// CategoryRegistry is the read-only list of spend categories.
type CategoryRegistry interface {
	Get(id string) (domain.Category, bool)
	GetBySlug(slug string) (domain.Category, bool)
	// Resolve looks ref up as an id first, then as a slug.
	Resolve(ref string) (domain.Category, bool)
	List() []domain.Category
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.SourceDocument) (string, error)
}

// InvoiceExtractor turns document text into structured invoice data.
type InvoiceExtractor interface {
	ExtractInvoice(ctx context.Context, text string, categories []domain.Category) (domain.ExtractedInvoice, error)
}

// RosterSheetParser reads roster rows from a spreadsheet.
type RosterSheetParser interface {
	ParseRoster(r io.Reader) ([]domain.RosterRow, error)
}

// ReconciliationObserver receives engine outcomes, typically for metrics.
type ReconciliationObserver interface {
	InvoiceDecided(state domain.ApprovalState, siblings int)
	NameResolved(outcome domain.ResolutionOutcome)
	ApprovalBlocked(reason string)
}
