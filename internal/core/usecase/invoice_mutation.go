package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/core/ports"
)

// loadPending fetches an invoice and rejects anything that already left the
// pending state.
func loadPending(ctx context.Context, repo ports.InvoiceRepository, op, invoiceID string) (*domain.Invoice, error) {
	inv, err := repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("%s: load invoice: %w", op, err)
	}
	if inv.State != domain.StatePending {
		return nil, domain.NewError(domain.ErrInvalidState, op, "invoice %s is %s", invoiceID, inv.State)
	}
	return inv, nil
}

// mutatePending applies fn to a pending invoice under its lock and saves the
// result. Nothing is written when fn fails.
func mutatePending(
	ctx context.Context,
	locks *InvoiceLocks,
	repo ports.InvoiceRepository,
	op, invoiceID string,
	fn func(inv *domain.Invoice) error,
) (*domain.Invoice, error) {
	unlock := locks.Lock(invoiceID)
	defer unlock()

	inv, err := loadPending(ctx, repo, op, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := fn(inv); err != nil {
		return nil, err
	}
	if err := repo.SaveInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("%s: save invoice: %w", op, err)
	}
	return inv, nil
}

func findItem(inv *domain.Invoice, op, itemID string) (*domain.LineItem, error) {
	item := inv.Item(itemID)
	if item == nil {
		return nil, domain.NewError(domain.ErrNotFound, op, "line item %s not found on invoice %s", itemID, inv.ID)
	}
	return item, nil
}
