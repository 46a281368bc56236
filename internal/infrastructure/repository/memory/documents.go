package memory

import (
	"context"
	"time"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

func (s *Store) Create(ctx context.Context, doc *domain.SourceDocument) error {
	defer s.lock(ctx)()
	if _, exists := s.documents[doc.ID]; exists {
		return domain.NewError(domain.ErrConflict, "create document", "document %s already exists", doc.ID)
	}
	copyDoc := *doc
	s.documents[doc.ID] = &copyDoc
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.SourceDocument, error) {
	defer s.lock(ctx)()
	stored, ok := s.documents[id]
	if !ok {
		return nil, domain.NewError(domain.ErrNotFound, "get document", "document %s not found", id)
	}
	copyDoc := *stored
	return &copyDoc, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	return s.updateDocument(ctx, "update document status", id, func(doc *domain.SourceDocument) {
		doc.Status = status
		doc.Error = errMessage
	})
}

func (s *Store) LinkInvoice(ctx context.Context, id, invoiceID string) error {
	return s.updateDocument(ctx, "link document invoice", id, func(doc *domain.SourceDocument) {
		doc.InvoiceID = invoiceID
	})
}

func (s *Store) updateDocument(ctx context.Context, op, id string, fn func(doc *domain.SourceDocument)) error {
	defer s.lock(ctx)()
	stored, ok := s.documents[id]
	if !ok {
		return domain.NewError(domain.ErrNotFound, op, "document %s not found", id)
	}
	copyDoc := *stored
	fn(&copyDoc)
	copyDoc.UpdatedAt = time.Now().UTC()
	s.documents[id] = &copyDoc
	return nil
}
