package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EntityRefKind tells which attribution an EntityRef carries.
type EntityRefKind string

const (
	EntityRefNone       EntityRefKind = ""
	EntityRefSingle     EntityRefKind = "single"
	EntityRefSplit      EntityRefKind = "split"
	EntityRefUnresolved EntityRefKind = "unresolved"
)

// Share is one horse's portion of a line item amount.
type Share struct {
	HorseID string          `json:"horse_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// EntityRef attributes a cost to roster entities. Exactly one of HorseID,
// Shares or RawName is meaningful, selected by Kind.
type EntityRef struct {
	Kind    EntityRefKind `json:"kind,omitempty"`
	HorseID string        `json:"horse_id,omitempty"`
	Shares  []Share       `json:"shares,omitempty"`
	RawName string        `json:"raw_name,omitempty"`
}

func NoEntity() EntityRef { return EntityRef{} }

func SingleEntity(horseID string) EntityRef {
	return EntityRef{Kind: EntityRefSingle, HorseID: horseID}
}

func UnresolvedEntity(rawName string) EntityRef {
	return EntityRef{Kind: EntityRefUnresolved, RawName: rawName}
}

// NewSplitEntity validates shares against the item amount before anything is
// persisted. Shares name distinct horses, carry the sign of the amount in whole
// minor units, and sum to amount within tolerance. A zero amount cannot be split.
func NewSplitEntity(amount decimal.Decimal, shares []Share, tolerance decimal.Decimal) (EntityRef, error) {
	const op = "build split attribution"
	if len(shares) < 2 {
		return EntityRef{}, NewError(ErrValidation, op, "a split needs at least two shares, got %d", len(shares))
	}

	seen := make(map[string]struct{}, len(shares))
	sum := decimal.Zero
	out := make([]Share, 0, len(shares))
	for idx, share := range shares {
		horseID := strings.TrimSpace(share.HorseID)
		if horseID == "" {
			return EntityRef{}, NewError(ErrValidation, op, "share %d has no horse id", idx)
		}
		if _, dup := seen[horseID]; dup {
			return EntityRef{}, NewError(ErrValidation, op, "horse %s appears in more than one share", horseID)
		}
		seen[horseID] = struct{}{}
		if share.Amount.Sign() == 0 || share.Amount.Sign() != amount.Sign() {
			return EntityRef{}, NewError(ErrValidation, op, "share for horse %s must have the sign of the item amount %s, got %s", horseID, amount, share.Amount)
		}
		if !InMinorUnits(share.Amount) {
			return EntityRef{}, NewError(ErrValidation, op, "share for horse %s has more than %d decimal places: %s", horseID, MinorUnitPlaces, share.Amount)
		}
		sum = sum.Add(share.Amount)
		out = append(out, Share{HorseID: horseID, Amount: share.Amount})
	}

	if !WithinTolerance(sum, amount, tolerance) {
		return EntityRef{}, NewError(ErrValidation, op, "shares sum to %s, item amount is %s", sum, amount)
	}
	return EntityRef{Kind: EntityRefSplit, Shares: out}, nil
}

func (r EntityRef) IsUnresolved() bool { return r.Kind == EntityRefUnresolved }

// HorseIDs lists every horse the reference attributes cost to.
func (r EntityRef) HorseIDs() []string {
	switch r.Kind {
	case EntityRefSingle:
		return []string{r.HorseID}
	case EntityRefSplit:
		ids := make([]string, 0, len(r.Shares))
		for _, s := range r.Shares {
			ids = append(ids, s.HorseID)
		}
		return ids
	default:
		return nil
	}
}

func (r EntityRef) String() string {
	switch r.Kind {
	case EntityRefSingle:
		return "horse:" + r.HorseID
	case EntityRefSplit:
		parts := make([]string, 0, len(r.Shares))
		for _, s := range r.Shares {
			parts = append(parts, fmt.Sprintf("%s=%s", s.HorseID, s.Amount))
		}
		return "split:" + strings.Join(parts, ",")
	case EntityRefUnresolved:
		return "unresolved:" + r.RawName
	default:
		return "none"
	}
}
