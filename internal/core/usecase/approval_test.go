package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/infrastructure/repository/memory"
)

func TestApproveScenarioSplitsReclassifiedItems(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	e.seedInvoice(ctx, "inv-1", "feed_bedding",
		lineItem("item-1", "100", "feed_bedding"),
		lineItem("item-2", "50", "feed_bedding"),
		lineItem("item-3", "25", "feed_bedding"),
	)
	_, err := e.reclassify.Confirm(ctx, "inv-1", "item-2", strPtr("stabling"))
	require.NoError(t, err)

	result, err := e.approval.Approve(ctx, "inv-1")
	require.NoError(t, err)

	require.Len(t, result.Siblings, 1)
	sibling := result.Siblings[0]
	require.Equal(t, "stabling", sibling.CategoryID)
	require.Equal(t, domain.StatePending, sibling.State)
	require.Equal(t, "inv-1", sibling.SplitFromID)
	require.Equal(t, "Greenfield Feeds", sibling.ProviderName)
	require.Len(t, sibling.LineItems, 1)
	require.Equal(t, "item-2", sibling.LineItems[0].ID)
	require.Equal(t, "stabling", sibling.LineItems[0].CurrentCategoryID)
	require.False(t, sibling.LineItems[0].Confirmation.IsSet())
	require.Empty(t, sibling.LineItems[0].SuggestedCategoryID)
	require.True(t, sibling.EffectiveTotal().Equal(amount("50")))

	source := result.Invoice
	require.Equal(t, domain.StateApproved, source.State)
	require.NotNil(t, source.DecidedAt)
	require.Len(t, source.LineItems, 2)
	require.True(t, source.EffectiveTotal().Equal(amount("125")))

	storedSibling, err := e.store.GetInvoice(ctx, SiblingID("inv-1", "stabling"))
	require.NoError(t, err)
	require.Equal(t, domain.StatePending, storedSibling.State)

	storedSource, err := e.store.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	require.Equal(t, domain.StateApproved, storedSource.State)
	require.Len(t, storedSource.LineItems, 2)

	require.Equal(t, []domain.ApprovalState{domain.StateApproved}, e.observer.decided)
}

func TestSiblingNeedsItsOwnApproval(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	e.seedInvoice(ctx, "inv-1", "feed_bedding", lineItem("item-1", "10", "feed_bedding"), lineItem("item-2", "5", "feed_bedding"))
	_, err := e.reclassify.Confirm(ctx, "inv-1", "item-2", strPtr("vet"))
	require.NoError(t, err)
	result, err := e.approval.Approve(ctx, "inv-1")
	require.NoError(t, err)

	siblingID := result.Siblings[0].ID
	_, err = e.reclassify.Confirm(ctx, siblingID, "item-2", strPtr("farrier"))
	require.NoError(t, err)
	nested, err := e.approval.Approve(ctx, siblingID)
	require.NoError(t, err)
	require.Len(t, nested.Siblings, 1)
	require.Equal(t, "farrier", nested.Siblings[0].CategoryID)
	require.Empty(t, nested.Invoice.LineItems)
}

func TestApproveTwiceFailsWithoutNewSiblings(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	e.seedInvoice(ctx, "inv-1", "feed_bedding", lineItem("item-1", "10", "feed_bedding"), lineItem("item-2", "5", "feed_bedding"))
	_, err := e.reclassify.Confirm(ctx, "inv-1", "item-2", strPtr("vet"))
	require.NoError(t, err)

	_, err = e.approval.Approve(ctx, "inv-1")
	require.NoError(t, err)
	before, err := e.store.ListInvoices(ctx, domain.InvoiceFilter{})
	require.NoError(t, err)

	_, err = e.approval.Approve(ctx, "inv-1")
	require.True(t, domain.IsKind(err, domain.ErrAlreadyApproved), "got %v", err)

	after, err := e.store.ListInvoices(ctx, domain.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, after, len(before))
	require.Equal(t, []string{"already_approved"}, e.observer.blocked)
}

func TestApproveBlockedByUnresolvedNames(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	e.seedNamed(ctx, "inv-1", "", "Comet", "")
	_, err := e.reclassify.Confirm(ctx, "inv-1", "item-2", strPtr("vet"))
	require.NoError(t, err)

	_, err = e.approval.Approve(ctx, "inv-1")
	require.True(t, domain.IsKind(err, domain.ErrUnresolvedEntities), "got %v", err)

	stored, err := e.store.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatePending, stored.State)
	require.Len(t, stored.LineItems, 2)
	all, err := e.store.ListInvoices(ctx, domain.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, _, err = e.matcher.ResolveByCreating(ctx, "inv-1", "Comet", "Comet", "")
	require.NoError(t, err)
	result, err := e.approval.Approve(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, result.Siblings, 1)
}

func TestApproveIsAtomicWhenSourceSaveFails(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	e.seedInvoice(ctx, "inv-1", "feed_bedding",
		lineItem("item-1", "10", "feed_bedding"),
		lineItem("item-2", "5", "feed_bedding"),
		lineItem("item-3", "7", "feed_bedding"),
	)
	_, err := e.reclassify.Confirm(ctx, "inv-1", "item-2", strPtr("vet"))
	require.NoError(t, err)
	_, err = e.reclassify.Confirm(ctx, "inv-1", "item-3", strPtr("farrier"))
	require.NoError(t, err)

	invoices := &failingInvoices{Store: e.store, saveErr: errors.New("disk full")}
	approval := NewApprovalUseCase(invoices, e.store, e.locks, domain.DefaultTolerance, nil)

	_, err = approval.Approve(ctx, "inv-1")
	require.Error(t, err)
	require.Equal(t, 2, invoices.creates)

	all, err := e.store.ListInvoices(ctx, domain.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, domain.StatePending, all[0].State)
	require.Len(t, all[0].LineItems, 3)

	_, err = e.approval.Approve(ctx, "inv-1")
	require.NoError(t, err)
}

func TestApproveDetectsConcurrentModification(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	e.seedInvoice(ctx, "inv-1", "feed_bedding", lineItem("item-1", "10", "feed_bedding"), lineItem("item-2", "5", "feed_bedding"))
	_, err := e.reclassify.Confirm(ctx, "inv-1", "item-2", strPtr("vet"))
	require.NoError(t, err)

	// A second process does not share the in-memory locks.
	other := NewApprovalUseCase(&racingInvoices{Store: e.store, e: e}, e.store, NewInvoiceLocks(), domain.DefaultTolerance, nil)
	_, err = other.Approve(ctx, "inv-1")
	require.True(t, domain.IsKind(err, domain.ErrConflict), "got %v", err)

	all, err := e.store.ListInvoices(ctx, domain.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

// racingInvoices lets another reviewer change the invoice right after it was loaded.
type racingInvoices struct {
	*memory.Store
	e    *engine
	done bool
}

func (r *racingInvoices) GetInvoice(ctx context.Context, id string) (*domain.Invoice, error) {
	inv, err := r.Store.GetInvoice(ctx, id)
	if err == nil && !r.done {
		r.done = true
		if _, err := r.e.reclassify.Confirm(ctx, id, "item-1", strPtr("farrier")); err != nil {
			return nil, err
		}
	}
	return inv, err
}

func TestRejectTransitions(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	e.seedInvoice(ctx, "inv-1", "feed_bedding", lineItem("item-1", "10", "feed_bedding"))

	inv, err := e.approval.Reject(ctx, "inv-1", " duplicate bill ")
	require.NoError(t, err)
	require.Equal(t, domain.StateRejected, inv.State)
	require.Equal(t, "duplicate bill", inv.RejectionReason)
	require.Len(t, inv.LineItems, 1)

	_, err = e.approval.Reject(ctx, "inv-1", "again")
	require.True(t, domain.IsKind(err, domain.ErrInvalidState), "got %v", err)
	_, err = e.approval.Approve(ctx, "inv-1")
	require.True(t, domain.IsKind(err, domain.ErrInvalidState), "got %v", err)

	e.seedInvoice(ctx, "inv-2", "vet", lineItem("item-1", "10", "vet"))
	_, err = e.approval.Approve(ctx, "inv-2")
	require.NoError(t, err)
	_, err = e.approval.Reject(ctx, "inv-2", "late")
	require.True(t, domain.IsKind(err, domain.ErrInvalidState), "got %v", err)

	_, err = e.approval.Reject(ctx, "missing", "x")
	require.True(t, domain.IsKind(err, domain.ErrNotFound), "got %v", err)
}

func TestApprovePreservesOriginalTotal(t *testing.T) {
	cases := []struct {
		name    string
		total   string
		amounts []string
		moves   map[int]string
	}{
		{name: "itemised only", amounts: []string{"100", "50", "25"}, moves: map[int]string{1: "stabling"}},
		{name: "matching invoice total", total: "175", amounts: []string{"100", "50", "25"}, moves: map[int]string{0: "vet", 2: "vet"}},
		{name: "total disagrees with items", total: "180.00", amounts: []string{"33.33", "33.33", "33.33", "80"}, moves: map[int]string{0: "vet", 1: "farrier"}},
		{name: "everything moves", total: "12.34", amounts: []string{"10", "2.34"}, moves: map[int]string{0: "vet", 1: "transport"}},
		{name: "nothing moves", total: "9.99", amounts: []string{"9.99"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine()
			items := make([]domain.LineItem, 0, len(tc.amounts))
			for i, a := range tc.amounts {
				items = append(items, lineItem(fmt.Sprintf("item-%d", i+1), a, "feed_bedding"))
			}
			inv := e.seedInvoice(ctx, "inv-1", "feed_bedding", items...)
			if tc.total != "" {
				inv.Total = decimal.NewNullDecimal(amount(tc.total))
				require.NoError(t, e.store.SaveInvoice(ctx, inv))
			}
			for idx, cat := range tc.moves {
				_, err := e.reclassify.Confirm(ctx, "inv-1", fmt.Sprintf("item-%d", idx+1), strPtr(cat))
				require.NoError(t, err)
			}
			original, err := e.store.GetInvoice(ctx, "inv-1")
			require.NoError(t, err)
			want := original.EffectiveTotal()

			result, err := e.approval.Approve(ctx, "inv-1")
			require.NoError(t, err)

			got := result.Invoice.EffectiveTotal()
			for _, s := range result.Siblings {
				got = got.Add(s.EffectiveTotal())
			}
			require.True(t, domain.WithinTolerance(want, got, domain.DefaultTolerance), "want %s got %s", want, got)

			items = result.Invoice.LineItems
			for _, s := range result.Siblings {
				items = append(items, s.LineItems...)
			}
			require.Len(t, items, len(tc.amounts))
		})
	}
}

// Subtractive rule: the retained total is the extracted total minus what
// moved, not the sum of the retained items.
func TestApproveRetainedTotalUsesSubtractiveRule(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	inv := e.seedInvoice(ctx, "inv-1", "feed_bedding",
		lineItem("item-1", "33.33", "feed_bedding"),
		lineItem("item-2", "33.33", "feed_bedding"),
		lineItem("item-3", "33.33", "feed_bedding"),
	)
	inv.Total = decimal.NewNullDecimal(amount("100.05"))
	require.NoError(t, e.store.SaveInvoice(ctx, inv))
	_, err := e.reclassify.Confirm(ctx, "inv-1", "item-3", strPtr("vet"))
	require.NoError(t, err)

	summary, err := e.reclassify.Summarize(ctx, "inv-1")
	require.NoError(t, err)
	require.False(t, summary.Reconciled)
	require.True(t, summary.Discrepancy.Equal(amount("0.06")))

	result, err := e.approval.Approve(ctx, "inv-1")
	require.NoError(t, err)
	require.True(t, result.Invoice.Total.Valid)
	require.True(t, result.Invoice.Total.Decimal.Equal(amount("66.72")), "got %s", result.Invoice.Total.Decimal)
	require.True(t, domain.SumAmounts(result.Invoice.LineItems).Equal(amount("66.66")))
	require.True(t, result.Siblings[0].Total.Decimal.Equal(amount("33.33")))
}

func TestConcurrentReviewersOnOneInvoice(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	items := make([]domain.LineItem, 0, 20)
	for i := 0; i < 20; i++ {
		items = append(items, lineItem(fmt.Sprintf("item-%d", i+1), "1", "feed_bedding"))
	}
	e.seedInvoice(ctx, "inv-1", "feed_bedding", items...)

	var wg sync.WaitGroup
	errs := make(chan error, 21)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.reclassify.Confirm(ctx, "inv-1", fmt.Sprintf("item-%d", i+1), strPtr("vet"))
			if err != nil && !domain.IsKind(err, domain.ErrInvalidState) {
				errs <- err
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := e.approval.Approve(ctx, "inv-1"); err != nil {
			errs <- err
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("unexpected error: %v", err)
	}

	all, err := e.store.ListInvoices(ctx, domain.InvoiceFilter{})
	require.NoError(t, err)
	count := 0
	total := decimal.Zero
	for _, inv := range all {
		count += len(inv.LineItems)
		total = total.Add(inv.EffectiveTotal())
	}
	require.Equal(t, 20, count)
	require.True(t, total.Equal(amount("20")), "got %s", total)
	require.Zero(t, e.locks.size())
}

func TestSiblingsOwnTheirInvoiceDate(t *testing.T) {
	date := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	source := &domain.Invoice{
		ID:          "inv-1",
		CategoryID:  "feed_bedding",
		InvoiceDate: &date,
		Attribution: domain.NoEntity(),
		LineItems: []domain.LineItem{
			{ID: "item-1", Amount: amount("40"), CurrentCategoryID: "feed_bedding", Confirmation: domain.MoveConfirmation("vet")},
			{ID: "item-2", Amount: amount("60"), CurrentCategoryID: "feed_bedding"},
		},
	}
	summary := domain.Summarize(source, domain.DefaultTolerance)

	siblings := buildSiblings(source, summary, time.Now())
	require.Len(t, siblings, 1)
	require.NotNil(t, siblings[0].InvoiceDate)
	require.NotSame(t, source.InvoiceDate, siblings[0].InvoiceDate)
	require.True(t, siblings[0].InvoiceDate.Equal(date))

	*source.InvoiceDate = date.AddDate(0, 1, 0)
	require.True(t, siblings[0].InvoiceDate.Equal(date))
}
