package domain

import (
	"github.com/shopspring/decimal"
)

// EffectiveTarget returns the category an item will move to on approval.
// A confirmation, including an explicit keep, always wins over the suggestion,
// and a target equal to the current category means the item stays.
func EffectiveTarget(item LineItem) (string, bool) {
	var target string
	switch item.Confirmation.Kind {
	case ConfirmationKeep:
		return "", false
	case ConfirmationMove:
		target = item.Confirmation.CategoryID
	default:
		target = item.SuggestedCategoryID
	}
	if target == "" || target == item.CurrentCategoryID {
		return "", false
	}
	return target, true
}

// IsReclassified reports whether item has a non-empty effective target.
func IsReclassified(item LineItem) bool {
	_, ok := EffectiveTarget(item)
	return ok
}

// ReclassificationGroup is every item moving to one target category.
type ReclassificationGroup struct {
	CategoryID string          `json:"category_id"`
	ItemCount  int             `json:"item_count"`
	Items      []LineItem      `json:"items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// RemainingGroup is what stays in the invoice's current category.
type RemainingGroup struct {
	ItemCount int             `json:"item_count"`
	Items     []LineItem      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// ReclassificationSummary previews what approval will do to an invoice.
type ReclassificationSummary struct {
	InvoiceID         string                  `json:"invoice_id"`
	CurrentCategoryID string                  `json:"current_category_id"`
	Groups            []ReclassificationGroup `json:"groups"`
	Remaining         RemainingGroup          `json:"remaining"`
	InvoiceTotal      decimal.Decimal         `json:"invoice_total"`
	LineItemsTotal    decimal.Decimal         `json:"line_items_total"`
	Discrepancy       decimal.Decimal         `json:"discrepancy"`
	Reconciled        bool                    `json:"reconciled"`
	UnresolvedNames   []string                `json:"unresolved_names"`
}

// HasReclassifications reports whether approval would create sibling invoices.
func (s ReclassificationSummary) HasReclassifications() bool { return len(s.Groups) > 0 }

// Summarize partitions an invoice's items by effective target. Groups keep the
// order in which their first item appears. The remaining subtotal is the
// invoice total minus every reclassified subtotal, so remaining plus groups
// always adds up to the invoice total even when the extracted total and the
// item sum disagree. The discrepancy is reported, not corrected.
func Summarize(inv *Invoice, tolerance decimal.Decimal) ReclassificationSummary {
	summary := ReclassificationSummary{
		InvoiceID:         inv.ID,
		CurrentCategoryID: inv.CategoryID,
		Groups:            []ReclassificationGroup{},
		Remaining:         RemainingGroup{Items: []LineItem{}},
		InvoiceTotal:      inv.EffectiveTotal(),
		LineItemsTotal:    SumAmounts(inv.LineItems),
		UnresolvedNames:   inv.UnresolvedNames(),
	}

	index := make(map[string]int)
	moved := decimal.Zero
	for _, item := range inv.LineItems {
		target, ok := EffectiveTarget(item)
		if !ok {
			summary.Remaining.Items = append(summary.Remaining.Items, item)
			summary.Remaining.ItemCount++
			continue
		}
		pos, seen := index[target]
		if !seen {
			pos = len(summary.Groups)
			index[target] = pos
			summary.Groups = append(summary.Groups, ReclassificationGroup{CategoryID: target, Subtotal: decimal.Zero})
		}
		group := &summary.Groups[pos]
		group.Items = append(group.Items, item)
		group.ItemCount++
		group.Subtotal = group.Subtotal.Add(item.Amount)
		moved = moved.Add(item.Amount)
	}

	summary.Remaining.Subtotal = summary.InvoiceTotal.Sub(moved)
	summary.Discrepancy = summary.InvoiceTotal.Sub(summary.LineItemsTotal)
	summary.Reconciled = len(inv.LineItems) == 0 || WithinTolerance(summary.InvoiceTotal, summary.LineItemsTotal, tolerance)
	return summary
}
