package usecase

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/infrastructure/repository/memory"
)

type categoriesFake struct {
	items []domain.Category
}

func newCategoriesFake(slugs ...string) *categoriesFake {
	f := &categoriesFake{}
	for _, slug := range slugs {
		f.items = append(f.items, domain.Category{ID: slug, Slug: slug, Name: slug})
	}
	return f
}

func (f *categoriesFake) Get(id string) (domain.Category, bool) {
	for _, c := range f.items {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Category{}, false
}

func (f *categoriesFake) GetBySlug(slug string) (domain.Category, bool) {
	for _, c := range f.items {
		if c.Slug == slug {
			return c, true
		}
	}
	return domain.Category{}, false
}

func (f *categoriesFake) Resolve(ref string) (domain.Category, bool) {
	if c, ok := f.Get(ref); ok {
		return c, true
	}
	return f.GetBySlug(ref)
}

func (f *categoriesFake) List() []domain.Category { return f.items }

type observerFake struct {
	mu       sync.Mutex
	decided  []domain.ApprovalState
	resolved []domain.ResolutionOutcome
	blocked  []string
}

func (f *observerFake) InvoiceDecided(state domain.ApprovalState, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decided = append(f.decided, state)
}

func (f *observerFake) NameResolved(outcome domain.ResolutionOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolved = append(f.resolved, outcome)
}

func (f *observerFake) ApprovalBlocked(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocked = append(f.blocked, reason)
}

// failingInvoices wraps the memory store and fails SaveInvoice on demand.
type failingInvoices struct {
	*memory.Store
	saveErr error
	creates int
}

func (f *failingInvoices) CreateInvoice(ctx context.Context, inv *domain.Invoice) error {
	f.creates++
	return f.Store.CreateInvoice(ctx, inv)
}

func (f *failingInvoices) SaveInvoice(ctx context.Context, inv *domain.Invoice) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Store.SaveInvoice(ctx, inv)
}

type engine struct {
	store      *memory.Store
	categories *categoriesFake
	observer   *observerFake
	locks      *InvoiceLocks
	matcher    *EntityMatcherUseCase
	reclassify *ReclassifyUseCase
	approval   *ApprovalUseCase
	roster     *RosterUseCase
	intake     *IntakeUseCase
}

func newEngine() *engine {
	store := memory.NewStore()
	categories := newCategoriesFake("feed_bedding", "stabling", "vet", "farrier", "transport")
	observer := &observerFake{}
	locks := NewInvoiceLocks()
	reclassify := NewReclassifyUseCase(store, categories, locks, domain.DefaultTolerance)
	return &engine{
		store:      store,
		categories: categories,
		observer:   observer,
		locks:      locks,
		matcher: NewEntityMatcherUseCase(store, store, store, locks, MatcherOptions{
			ShareTolerance: domain.DefaultTolerance,
			Observer:       observer,
		}),
		reclassify: reclassify,
		approval:   NewApprovalUseCase(store, store, locks, domain.DefaultTolerance, observer),
		roster:     NewRosterUseCase(store, nil),
		intake:     NewIntakeUseCase(store, store, categories, reclassify),
	}
}

func amount(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func lineItem(id, value, category string) domain.LineItem {
	return domain.LineItem{ID: id, Description: "charge " + id, Amount: amount(value), CurrentCategoryID: category}
}

// seedInvoice stores a pending invoice in category with the given items.
func (e *engine) seedInvoice(ctx context.Context, id, category string, items ...domain.LineItem) *domain.Invoice {
	inv := &domain.Invoice{
		ID:             id,
		CategoryID:     category,
		ProviderName:   "Greenfield Feeds",
		DocumentID:     "doc-" + id,
		InvoiceNumber:  "INV-" + id,
		Currency:       "EUR",
		LineItems:      items,
		UnmatchedNames: []domain.UnmatchedName{},
		State:          domain.StatePending,
	}
	if err := e.store.CreateInvoice(ctx, inv); err != nil {
		panic(err)
	}
	return inv
}

func (e *engine) seedHorse(ctx context.Context, name string, status domain.HorseStatus) *domain.Horse {
	h, err := e.roster.Register(ctx, name, "")
	if err != nil {
		panic(err)
	}
	if status == domain.HorsePast {
		h, err = e.roster.Retire(ctx, h.ID, h.CreatedAt)
		if err != nil {
			panic(err)
		}
	}
	return h
}

func strPtr(s string) *string { return &s }
