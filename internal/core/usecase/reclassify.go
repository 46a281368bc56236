package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/core/ports"
)

type ReclassifyUseCase struct {
	invoices       ports.InvoiceRepository
	categories     ports.CategoryRegistry
	locks          *InvoiceLocks
	totalTolerance decimal.Decimal
}

func NewReclassifyUseCase(
	invoices ports.InvoiceRepository,
	categories ports.CategoryRegistry,
	locks *InvoiceLocks,
	totalTolerance decimal.Decimal,
) *ReclassifyUseCase {
	if totalTolerance.IsZero() {
		totalTolerance = domain.DefaultTolerance
	}
	return &ReclassifyUseCase{
		invoices:       invoices,
		categories:     categories,
		locks:          locks,
		totalTolerance: totalTolerance,
	}
}

// Suggest records the extraction pipeline's category proposal. A suggestion is
// written at most once, and never after a reviewer chose to keep the item.
func (uc *ReclassifyUseCase) Suggest(ctx context.Context, invoiceID, itemID, category string) (*domain.Invoice, error) {
	const op = "suggest line item category"
	return mutatePending(ctx, uc.locks, uc.invoices, op, invoiceID, func(inv *domain.Invoice) error {
		item, err := findItem(inv, op, itemID)
		if err != nil {
			return err
		}
		if item.SuggestedCategoryID != "" {
			return domain.NewError(domain.ErrImmutableSuggestion, op, "line item %s already suggests %s", itemID, item.SuggestedCategoryID)
		}
		if item.Confirmation.Kind == domain.ConfirmationKeep {
			return domain.NewError(domain.ErrImmutableSuggestion, op, "line item %s was explicitly kept in its category", itemID)
		}
		cat, err := uc.resolveCategory(op, category)
		if err != nil {
			return err
		}
		item.SuggestedCategoryID = cat.ID
		return nil
	})
}

// Confirm stores the reviewer's decision. A nil category, or the item's own
// category, is an explicit keep.
func (uc *ReclassifyUseCase) Confirm(ctx context.Context, invoiceID, itemID string, category *string) (*domain.Invoice, error) {
	const op = "confirm line item category"
	return mutatePending(ctx, uc.locks, uc.invoices, op, invoiceID, func(inv *domain.Invoice) error {
		item, err := findItem(inv, op, itemID)
		if err != nil {
			return err
		}
		if category == nil {
			item.Confirmation = domain.KeepConfirmation()
			return nil
		}
		cat, err := uc.resolveCategory(op, *category)
		if err != nil {
			return err
		}
		if cat.ID == item.CurrentCategoryID {
			item.Confirmation = domain.KeepConfirmation()
			return nil
		}
		item.Confirmation = domain.MoveConfirmation(cat.ID)
		return nil
	})
}

// Summarize is a read-only preview of what approval would do.
func (uc *ReclassifyUseCase) Summarize(ctx context.Context, invoiceID string) (domain.ReclassificationSummary, error) {
	inv, err := uc.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.ReclassificationSummary{}, fmt.Errorf("summarize invoice: %w", err)
	}
	return domain.Summarize(inv, uc.totalTolerance), nil
}

func (uc *ReclassifyUseCase) resolveCategory(op, ref string) (domain.Category, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Category{}, domain.NewError(domain.ErrValidation, op, "category is required")
	}
	cat, ok := uc.categories.Resolve(ref)
	if !ok {
		return domain.Category{}, domain.NewError(domain.ErrNotFound, op, "category %q not found", ref)
	}
	return cat, nil
}
