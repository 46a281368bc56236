package memory

import (
	"context"
	"sort"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

func (s *Store) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	const op = "create invoice"
	defer s.lock(ctx)()

	if _, exists := s.invoices[inv.ID]; exists {
		return domain.NewError(domain.ErrConflict, op, "invoice %s already exists", inv.ID)
	}
	if inv.DocumentID != "" && inv.SplitFromID == "" {
		for _, stored := range s.invoices {
			if stored.DocumentID == inv.DocumentID && stored.SplitFromID == "" {
				return domain.NewError(domain.ErrConflict, op, "document %s already has invoice %s", inv.DocumentID, stored.ID)
			}
		}
	}
	inv.Version = 1
	s.invoices[inv.ID] = inv.Clone()
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	defer s.lock(ctx)()
	stored, ok := s.invoices[id]
	if !ok {
		return nil, domain.NewError(domain.ErrNotFound, "get invoice", "invoice %s not found", id)
	}
	return stored.Clone(), nil
}

// GetInvoiceByDocument returns the invoice created from documentID, never a
// sibling split off it.
func (s *Store) GetInvoiceByDocument(ctx context.Context, documentID string) (*domain.Invoice, error) {
	defer s.lock(ctx)()
	for _, stored := range s.invoices {
		if stored.DocumentID == documentID && stored.SplitFromID == "" {
			return stored.Clone(), nil
		}
	}
	return nil, domain.NewError(domain.ErrNotFound, "get invoice by document", "no invoice for document %s", documentID)
}

func (s *Store) ListInvoices(ctx context.Context, filter domain.InvoiceFilter) ([]domain.Invoice, error) {
	defer s.lock(ctx)()
	out := make([]domain.Invoice, 0, len(s.invoices))
	for _, stored := range s.invoices {
		if filter.State != "" && stored.State != filter.State {
			continue
		}
		if filter.CategoryID != "" && stored.CategoryID != filter.CategoryID {
			continue
		}
		out = append(out, *stored.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SaveInvoice(ctx context.Context, inv *domain.Invoice) error {
	const op = "save invoice"
	defer s.lock(ctx)()

	stored, ok := s.invoices[inv.ID]
	if !ok {
		return domain.NewError(domain.ErrNotFound, op, "invoice %s not found", inv.ID)
	}
	if stored.Version != inv.Version {
		return domain.NewError(domain.ErrConflict, op, "invoice %s changed: have version %d, stored %d", inv.ID, inv.Version, stored.Version)
	}
	inv.Version++
	s.invoices[inv.ID] = inv.Clone()
	return nil
}
