package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	extractor  ports.TextExtractor
	invoiceLLM ports.InvoiceExtractor
	categories ports.CategoryRegistry
	intake     ports.InvoiceIntake
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	invoiceLLM ports.InvoiceExtractor,
	categories ports.CategoryRegistry,
	intake ports.InvoiceIntake,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:       repo,
		extractor:  extractor,
		invoiceLLM: invoiceLLM,
		categories: categories,
		intake:     intake,
	}
}

// ProcessByID runs one uploaded document through extraction and intake.
// Redelivered events for a document that already has an invoice are no-ops.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.InvoiceID != "" {
		slog.Info("document_already_processed", "document_id", documentID, "invoice_id", doc.InvoiceID)
		return nil
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	inv, err := uc.processPipeline(ctx, doc)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.LinkInvoice(ctx, documentID, inv.ID); err != nil {
		return fmt.Errorf("link invoice %s: %w", inv.ID, err)
	}
	if err := uc.markStatus(ctx, documentID, domain.StatusExtracted, ""); err != nil {
		return fmt.Errorf("set status=extracted: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, doc *domain.SourceDocument) (*domain.Invoice, error) {
	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return nil, err
	}

	extracted, err := uc.invoiceLLM.ExtractInvoice(ctx, text, uc.categories.List())
	if err != nil {
		return nil, fmt.Errorf("extract invoice fields: %w", err)
	}
	if len(extracted.Items) == 0 {
		return nil, domain.WrapError(domain.ErrValidation, "extract invoice fields", errors.New("no line items found"))
	}

	inv, err := uc.intake.CreateFromExtraction(ctx, doc.ID, extracted)
	if err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return inv, nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.SourceDocument, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc *domain.SourceDocument) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrValidation, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
