package usecase

import (
	"context"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/core/ports"
)

type InvoiceQueryUseCase struct {
	invoices ports.InvoiceRepository
}

func NewInvoiceQueryUseCase(invoices ports.InvoiceRepository) *InvoiceQueryUseCase {
	return &InvoiceQueryUseCase{invoices: invoices}
}

func (uc *InvoiceQueryUseCase) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	return uc.invoices.GetInvoice(ctx, id)
}

func (uc *InvoiceQueryUseCase) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	return uc.invoices.ListInvoices(ctx, filter)
}
