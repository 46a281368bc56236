package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/core/ports"
)

// siblingNamespace seeds deterministic sibling invoice ids, so a replayed
// approval collides with the siblings it already created.
var siblingNamespace = uuid.MustParse("6f1c9a52-3d0e-4b8a-9a57-2f7e7c1d4b10")

type ApprovalUseCase struct {
	invoices       ports.InvoiceRepository
	tx             ports.Transactor
	locks          *InvoiceLocks
	totalTolerance decimal.Decimal
	observer       ports.ReconciliationObserver
	now            func() time.Time
}

func NewApprovalUseCase(
	invoices ports.InvoiceRepository,
	tx ports.Transactor,
	locks *InvoiceLocks,
	totalTolerance decimal.Decimal,
	observer ports.ReconciliationObserver,
) *ApprovalUseCase {
	if totalTolerance.IsZero() {
		totalTolerance = domain.DefaultTolerance
	}
	return &ApprovalUseCase{
		invoices:       invoices,
		tx:             tx,
		locks:          locks,
		totalTolerance: totalTolerance,
		observer:       observerOrNoop(observer),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Approve splits reclassified items off into pending sibling invoices and
// approves the source with what remains. Siblings and the source update
// commit in one transaction; the source save is version-checked, so a
// concurrent change between load and commit aborts everything.
func (uc *ApprovalUseCase) Approve(ctx context.Context, invoiceID string) (*domain.ApprovalResult, error) {
	const op = "approve invoice"
	unlock := uc.locks.Lock(invoiceID)
	defer unlock()

	inv, err := uc.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("%s: load invoice: %w", op, err)
	}
	switch inv.State {
	case domain.StateApproved:
		uc.observer.ApprovalBlocked("already_approved")
		return nil, domain.NewError(domain.ErrAlreadyApproved, op, "invoice %s was approved at %s", invoiceID, formatDecided(inv.DecidedAt))
	case domain.StateRejected:
		uc.observer.ApprovalBlocked("rejected")
		return nil, domain.NewError(domain.ErrInvalidState, op, "invoice %s is rejected", invoiceID)
	}
	if unresolved := inv.UnresolvedNames(); len(unresolved) > 0 {
		uc.observer.ApprovalBlocked("unresolved_entities")
		return nil, domain.NewError(domain.ErrUnresolvedEntities, op, "invoice %s has unresolved names: %s", invoiceID, strings.Join(unresolved, ", "))
	}

	summary := domain.Summarize(inv, uc.totalTolerance)
	now := uc.now()
	siblings := buildSiblings(inv, summary, now)
	retain(inv, summary, now)

	err = uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		for i := range siblings {
			if err := uc.invoices.CreateInvoice(ctx, &siblings[i]); err != nil {
				return fmt.Errorf("%s: create sibling in %s: %w", op, siblings[i].CategoryID, err)
			}
		}
		if err := uc.invoices.SaveInvoice(ctx, inv); err != nil {
			return fmt.Errorf("%s: save source: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.observer.InvoiceDecided(domain.StateApproved, len(siblings))
	slog.Info("invoice_approved",
		"invoice_id", inv.ID,
		"siblings", len(siblings),
		"retained_items", len(inv.LineItems),
		"retained_total", inv.EffectiveTotal().String(),
		"reconciled", summary.Reconciled,
	)
	return &domain.ApprovalResult{Invoice: inv, Siblings: siblings}, nil
}

func (uc *ApprovalUseCase) Reject(ctx context.Context, invoiceID, reason string) (*domain.Invoice, error) {
	const op = "reject invoice"
	inv, err := mutatePending(ctx, uc.locks, uc.invoices, op, invoiceID, func(inv *domain.Invoice) error {
		now := uc.now()
		inv.State = domain.StateRejected
		inv.RejectionReason = strings.TrimSpace(reason)
		inv.DecidedAt = &now
		inv.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.observer.InvoiceDecided(domain.StateRejected, 0)
	slog.Info("invoice_rejected", "invoice_id", inv.ID, "reason", inv.RejectionReason)
	return inv, nil
}

// buildSiblings creates one pending invoice per reclassification group. Item
// copies land in the target category with no pending reclassification left.
func buildSiblings(source *domain.Invoice, summary domain.ReclassificationSummary, now time.Time) []domain.Invoice {
	siblings := make([]domain.Invoice, 0, len(summary.Groups))
	for _, group := range summary.Groups {
		items := make([]domain.LineItem, 0, len(group.Items))
		for _, item := range group.Items {
			item.CurrentCategoryID = group.CategoryID
			item.SuggestedCategoryID = ""
			item.Confirmation = domain.Confirmation{}
			item.Entity.Shares = append([]domain.Share(nil), item.Entity.Shares...)
			items = append(items, item)
		}
		sibling := domain.Invoice{
			ID:             SiblingID(source.ID, group.CategoryID),
			CategoryID:     group.CategoryID,
			ProviderID:     source.ProviderID,
			ProviderName:   source.ProviderName,
			DocumentID:     source.DocumentID,
			SplitFromID:    source.ID,
			InvoiceNumber:  source.InvoiceNumber,
			Total:          decimal.NewNullDecimal(group.Subtotal),
			Currency:       source.Currency,
			Attribution:    source.Attribution,
			LineItems:      items,
			UnmatchedNames: []domain.UnmatchedName{},
			State:          domain.StatePending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		sibling.Attribution.Shares = append([]domain.Share(nil), source.Attribution.Shares...)
		if source.InvoiceDate != nil {
			date := *source.InvoiceDate
			sibling.InvoiceDate = &date
		}
		siblings = append(siblings, sibling)
	}
	return siblings
}

// retain keeps only the non-reclassified items on the source. An extracted
// invoice-level total is reduced by the moved subtotals rather than recomputed
// from the retained items, so the split never changes the overall amount.
func retain(inv *domain.Invoice, summary domain.ReclassificationSummary, now time.Time) {
	inv.LineItems = summary.Remaining.Items
	if inv.Total.Valid {
		inv.Total = decimal.NewNullDecimal(summary.Remaining.Subtotal)
	}
	inv.State = domain.StateApproved
	inv.DecidedAt = &now
	inv.UpdatedAt = now
}

// SiblingID derives the id of the invoice split off sourceID into categoryID.
func SiblingID(sourceID, categoryID string) string {
	return uuid.NewSHA1(siblingNamespace, []byte(sourceID+"/"+categoryID)).String()
}

func formatDecided(at *time.Time) string {
	if at == nil {
		return "unknown time"
	}
	return at.Format(time.RFC3339)
}
