package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.SourceDocument, error)
}

// DocumentReader is the inbound read model for document state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.SourceDocument, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// InvoiceReader is the read model for invoices.
type InvoiceReader interface {
	GetInvoice(ctx context.Context, id string) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error)
}

// EntityMatcher resolves extracted names against the roster.
type EntityMatcher interface {
	Candidates(ctx context.Context, invoiceID string) ([]domain.NameCandidate, error)
	ResolveToExisting(ctx context.Context, invoiceID, rawName, horseID string) (*domain.Invoice, error)
	ResolveByCreating(ctx context.Context, invoiceID, rawName, newName, owner string) (*domain.Invoice, *domain.Horse, error)
	AssignEntity(ctx context.Context, invoiceID, itemID, horseID string) (*domain.Invoice, error)
	AssignSplit(ctx context.Context, invoiceID, itemID string, shares []domain.Share) (*domain.Invoice, error)
}

// Reclassifier manages per-item category decisions.
type Reclassifier interface {
	Suggest(ctx context.Context, invoiceID, itemID, category string) (*domain.Invoice, error)
	// Confirm records a reviewer decision; a nil category means keep in the current category.
	Confirm(ctx context.Context, invoiceID, itemID string, category *string) (*domain.Invoice, error)
	Summarize(ctx context.Context, invoiceID string) (domain.ReclassificationSummary, error)
}

// ApprovalEngine drives the pending -> approved/rejected state machine.
type ApprovalEngine interface {
	Approve(ctx context.Context, invoiceID string) (*domain.ApprovalResult, error)
	Reject(ctx context.Context, invoiceID, reason string) (*domain.Invoice, error)
}

// RosterService manages roster entities.
type RosterService interface {
	Register(ctx context.Context, name, owner string) (*domain.Horse, error)
	Retire(ctx context.Context, id string, effective time.Time) (*domain.Horse, error)
	Reactivate(ctx context.Context, id string) (*domain.Horse, error)
	Get(ctx context.Context, id string) (*domain.Horse, error)
	List(ctx context.Context, filter domain.HorseFilter) ([]domain.Horse, error)
	FindByName(ctx context.Context, name string) ([]domain.Horse, error)
	ImportSpreadsheet(ctx context.Context, r io.Reader) (domain.RosterImportResult, error)
}

// InvoiceIntake is the entry point of the extraction pipeline.
type InvoiceIntake interface {
	CreateFromExtraction(ctx context.Context, documentID string, extracted domain.ExtractedInvoice) (*domain.Invoice, error)
	ReapplySuggestions(ctx context.Context, invoiceID string, suggestions map[string]string) (domain.ReapplyReport, error)
}
