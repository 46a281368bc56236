package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/core/ports"
)

const invoiceDateLayout = "2006-01-02"

// IntakeUseCase turns extraction output into a pending invoice.
type IntakeUseCase struct {
	invoices     ports.InvoiceRepository
	horses       ports.HorseRepository
	categories   ports.CategoryRegistry
	reclassifier ports.Reclassifier
	now          func() time.Time
}

func NewIntakeUseCase(
	invoices ports.InvoiceRepository,
	horses ports.HorseRepository,
	categories ports.CategoryRegistry,
	reclassifier ports.Reclassifier,
) *IntakeUseCase {
	return &IntakeUseCase{
		invoices:     invoices,
		horses:       horses,
		categories:   categories,
		reclassifier: reclassifier,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// CreateFromExtraction builds the invoice for a document. It runs once per
// document; names are auto-bound against the active roster only here.
func (uc *IntakeUseCase) CreateFromExtraction(ctx context.Context, documentID string, extracted domain.ExtractedInvoice) (*domain.Invoice, error) {
	const op = "create invoice from extraction"
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.NewError(domain.ErrValidation, op, "document id is required")
	}
	existing, err := uc.invoices.GetInvoiceByDocument(ctx, documentID)
	switch {
	case err == nil:
		return nil, domain.NewError(domain.ErrInvalidState, op, "document %s already produced invoice %s", documentID, existing.ID)
	case !domain.IsKind(err, domain.ErrNotFound):
		return nil, fmt.Errorf("%s: lookup by document: %w", op, err)
	}

	inv, err := uc.buildInvoice(op, documentID, extracted)
	if err != nil {
		return nil, err
	}

	active, err := uc.horses.ListHorses(ctx, domain.HorseFilter{Status: domain.HorseActive})
	if err != nil {
		return nil, fmt.Errorf("%s: list roster: %w", op, err)
	}
	domain.AutoBind(inv, domain.NewRosterIndex(active))

	if err := uc.invoices.CreateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	slog.Info("invoice_created",
		"invoice_id", inv.ID,
		"document_id", documentID,
		"category_id", inv.CategoryID,
		"items", len(inv.LineItems),
		"unmatched_names", len(inv.UnmatchedNames),
	)
	return inv, nil
}

// ReapplySuggestions replays extraction suggestions keyed by line item id.
// Nothing already decided is overwritten; refusals are reported per item.
func (uc *IntakeUseCase) ReapplySuggestions(ctx context.Context, invoiceID string, suggestions map[string]string) (domain.ReapplyReport, error) {
	report := domain.ReapplyReport{Applied: []string{}, Rejected: map[string]string{}}
	if _, err := loadPending(ctx, uc.invoices, "reapply suggestions", invoiceID); err != nil {
		return report, err
	}

	itemIDs := make([]string, 0, len(suggestions))
	for id := range suggestions {
		itemIDs = append(itemIDs, id)
	}
	sort.Strings(itemIDs)

	for _, itemID := range itemIDs {
		_, err := uc.reclassifier.Suggest(ctx, invoiceID, itemID, suggestions[itemID])
		switch {
		case err == nil:
			report.Applied = append(report.Applied, itemID)
		case domain.IsKind(err, domain.ErrImmutableSuggestion),
			domain.IsKind(err, domain.ErrNotFound),
			domain.IsKind(err, domain.ErrValidation):
			report.Rejected[itemID] = err.Error()
			slog.Warn("suggestion_rejected", "invoice_id", invoiceID, "item_id", itemID, "kind", domain.KindName(err))
		default:
			return report, err
		}
	}
	return report, nil
}

func (uc *IntakeUseCase) buildInvoice(op, documentID string, extracted domain.ExtractedInvoice) (*domain.Invoice, error) {
	cat, ok := uc.categories.Resolve(strings.TrimSpace(extracted.Category))
	if !ok {
		return nil, domain.NewError(domain.ErrValidation, op, "unknown category %q", extracted.Category)
	}

	now := uc.now()
	inv := &domain.Invoice{
		ID:             uuid.NewString(),
		CategoryID:     cat.ID,
		ProviderID:     strings.TrimSpace(extracted.ProviderID),
		ProviderName:   strings.TrimSpace(extracted.ProviderName),
		DocumentID:     documentID,
		InvoiceNumber:  strings.TrimSpace(extracted.InvoiceNumber),
		Currency:       strings.ToUpper(strings.TrimSpace(extracted.Currency)),
		Attribution:    domain.UnresolvedEntity(extracted.HorseName),
		LineItems:      make([]domain.LineItem, 0, len(extracted.Items)),
		UnmatchedNames: []domain.UnmatchedName{},
		State:          domain.StatePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if raw := strings.TrimSpace(extracted.Total); raw != "" {
		total, err := domain.ParseAmount(raw)
		if err != nil {
			return nil, domain.WrapError(domain.ErrValidation, op, err)
		}
		inv.Total = decimal.NewNullDecimal(total)
	}
	if raw := strings.TrimSpace(extracted.InvoiceDate); raw != "" {
		date, err := time.Parse(invoiceDateLayout, raw)
		if err != nil {
			return nil, domain.NewError(domain.ErrValidation, op, "invoice date %q is not YYYY-MM-DD", raw)
		}
		inv.InvoiceDate = &date
	}

	for idx, extractedItem := range extracted.Items {
		amount, err := domain.ParseAmount(extractedItem.Amount)
		if err != nil {
			return nil, domain.WrapError(domain.ErrValidation, op, fmt.Errorf("item %d: %w", idx+1, err))
		}
		item := domain.LineItem{
			ID:                fmt.Sprintf("item-%d", idx+1),
			Description:       strings.TrimSpace(extractedItem.Description),
			Amount:            amount,
			CurrentCategoryID: cat.ID,
			Entity:            domain.UnresolvedEntity(extractedItem.HorseName),
		}
		if ref := strings.TrimSpace(extractedItem.SuggestedCategory); ref != "" {
			if suggested, ok := uc.categories.Resolve(ref); ok {
				item.SuggestedCategoryID = suggested.ID
			} else {
				slog.Warn("suggestion_rejected", "document_id", documentID, "item_id", item.ID, "category", ref, "kind", "unknown_category")
			}
		}
		inv.LineItems = append(inv.LineItems, item)
	}
	return inv, nil
}
