package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ApprovalState string

const (
	StatePending  ApprovalState = "pending"
	StateApproved ApprovalState = "approved"
	StateRejected ApprovalState = "rejected"
)

func (s ApprovalState) IsTerminal() bool {
	return s == StateApproved || s == StateRejected
}

// ConfirmationKind distinguishes "never confirmed" from an explicit keep.
type ConfirmationKind string

const (
	ConfirmationNone ConfirmationKind = ""
	ConfirmationKeep ConfirmationKind = "keep"
	ConfirmationMove ConfirmationKind = "move"
)

// Confirmation is the reviewer's decision for a line item's category.
type Confirmation struct {
	Kind       ConfirmationKind `json:"kind,omitempty"`
	CategoryID string           `json:"category_id,omitempty"`
}

func KeepConfirmation() Confirmation { return Confirmation{Kind: ConfirmationKeep} }

func MoveConfirmation(categoryID string) Confirmation {
	return Confirmation{Kind: ConfirmationMove, CategoryID: categoryID}
}

func (c Confirmation) IsSet() bool { return c.Kind != ConfirmationNone }

// LineItem is one charge within an invoice. Its ID is unique only within the invoice.
type LineItem struct {
	ID                  string          `json:"id"`
	Description         string          `json:"description"`
	Amount              decimal.Decimal `json:"amount"`
	CurrentCategoryID   string          `json:"current_category_id"`
	SuggestedCategoryID string          `json:"suggested_category_id,omitempty"`
	Confirmation        Confirmation    `json:"confirmation"`
	Entity              EntityRef       `json:"entity"`
}

type ResolutionOutcome string

const (
	ResolutionUnresolved ResolutionOutcome = "unresolved"
	ResolutionExisting   ResolutionOutcome = "resolved_existing"
	ResolutionCreated    ResolutionOutcome = "resolved_created"
)

// UnmatchedName records one raw extracted name that did not bind automatically.
type UnmatchedName struct {
	RawName    string            `json:"raw_name"`
	Outcome    ResolutionOutcome `json:"outcome"`
	HorseID    string            `json:"horse_id,omitempty"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty"`
}

func (u UnmatchedName) IsUnresolved() bool { return u.Outcome == ResolutionUnresolved }

// Invoice is a vendor bill with its line items and approval state.
type Invoice struct {
	ID              string              `json:"id"`
	CategoryID      string              `json:"category_id"`
	ProviderID      string              `json:"provider_id,omitempty"`
	ProviderName    string              `json:"provider_name,omitempty"`
	DocumentID      string              `json:"document_id,omitempty"`
	SplitFromID     string              `json:"split_from_id,omitempty"`
	InvoiceNumber   string              `json:"invoice_number,omitempty"`
	InvoiceDate     *time.Time          `json:"invoice_date,omitempty"`
	Total           decimal.NullDecimal `json:"total"`
	Currency        string              `json:"currency,omitempty"`
	Attribution     EntityRef           `json:"attribution"`
	LineItems       []LineItem          `json:"line_items"`
	UnmatchedNames  []UnmatchedName     `json:"unmatched_names"`
	State           ApprovalState       `json:"state"`
	RejectionReason string              `json:"rejection_reason,omitempty"`
	Version         int64               `json:"version"`
	DecidedAt       *time.Time          `json:"decided_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// EffectiveTotal is the invoice-level total when extracted, else the line item sum.
func (inv *Invoice) EffectiveTotal() decimal.Decimal {
	if inv.Total.Valid {
		return inv.Total.Decimal
	}
	return SumAmounts(inv.LineItems)
}

// Item returns a pointer into LineItems, or nil.
func (inv *Invoice) Item(itemID string) *LineItem {
	for i := range inv.LineItems {
		if inv.LineItems[i].ID == itemID {
			return &inv.LineItems[i]
		}
	}
	return nil
}

// UnmatchedName returns a pointer into UnmatchedNames, or nil.
func (inv *Invoice) UnmatchedName(rawName string) *UnmatchedName {
	for i := range inv.UnmatchedNames {
		if inv.UnmatchedNames[i].RawName == rawName {
			return &inv.UnmatchedNames[i]
		}
	}
	return nil
}

// UnresolvedNames lists raw names still waiting for a reviewer decision.
func (inv *Invoice) UnresolvedNames() []string {
	var out []string
	for _, u := range inv.UnmatchedNames {
		if u.IsUnresolved() {
			out = append(out, u.RawName)
		}
	}
	return out
}

// SyncItemCategories restores the invariant currentCategory == invoice category.
func (inv *Invoice) SyncItemCategories() {
	for i := range inv.LineItems {
		inv.LineItems[i].CurrentCategoryID = inv.CategoryID
	}
}

// Clone deep-copies the invoice so callers can mutate without aliasing.
func (inv *Invoice) Clone() *Invoice {
	out := *inv
	out.LineItems = make([]LineItem, len(inv.LineItems))
	for i, item := range inv.LineItems {
		item.Entity.Shares = append([]Share(nil), item.Entity.Shares...)
		out.LineItems[i] = item
	}
	out.UnmatchedNames = make([]UnmatchedName, len(inv.UnmatchedNames))
	for i, u := range inv.UnmatchedNames {
		if u.ResolvedAt != nil {
			at := *u.ResolvedAt
			u.ResolvedAt = &at
		}
		out.UnmatchedNames[i] = u
	}
	out.Attribution.Shares = append([]Share(nil), inv.Attribution.Shares...)
	if inv.InvoiceDate != nil {
		d := *inv.InvoiceDate
		out.InvoiceDate = &d
	}
	if inv.DecidedAt != nil {
		d := *inv.DecidedAt
		out.DecidedAt = &d
	}
	return &out
}

// InvoiceFilter narrows invoice listings; empty fields match everything.
type InvoiceFilter struct {
	State      ApprovalState
	CategoryID string
}

// ApprovalResult is the approved source invoice and the siblings split off it.
type ApprovalResult struct {
	Invoice  *Invoice  `json:"invoice"`
	Siblings []Invoice `json:"siblings"`
}

// ReapplyReport lists per-item outcomes of re-running extraction suggestions.
type ReapplyReport struct {
	Applied  []string          `json:"applied"`
	Rejected map[string]string `json:"rejected"`
}
