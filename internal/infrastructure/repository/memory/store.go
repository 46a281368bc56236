// Package memory keeps repositories in process memory. It backs local runs
// and tests and honours the same transaction contract as postgres.
package memory

import (
	"context"
	"sync"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

type txKey struct{}

type Store struct {
	mu        sync.Mutex
	invoices  map[string]*domain.Invoice
	horses    map[string]*domain.Horse
	documents map[string]*domain.SourceDocument
}

func NewStore() *Store {
	return &Store{
		invoices:  make(map[string]*domain.Invoice),
		horses:    make(map[string]*domain.Horse),
		documents: make(map[string]*domain.SourceDocument),
	}
}

// WithinTx holds the store lock for the whole of fn and restores the previous
// state if fn fails. Calls made with the ctx passed to fn join the transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock acquires the store lock unless ctx already holds it through WithinTx.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	invoices  map[string]*domain.Invoice
	horses    map[string]*domain.Horse
	documents map[string]*domain.SourceDocument
}

// snapshot copies map headers only. Stored values are never mutated in
// place, every write replaces the pointer, so sharing them is safe.
func (s *Store) snapshot() snapshot {
	snap := snapshot{
		invoices:  make(map[string]*domain.Invoice, len(s.invoices)),
		horses:    make(map[string]*domain.Horse, len(s.horses)),
		documents: make(map[string]*domain.SourceDocument, len(s.documents)),
	}
	for k, v := range s.invoices {
		snap.invoices[k] = v
	}
	for k, v := range s.horses {
		snap.horses[k] = v
	}
	for k, v := range s.documents {
		snap.documents[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.invoices = snap.invoices
	s.horses = snap.horses
	s.documents = snap.documents
}
