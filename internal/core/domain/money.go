package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorUnitPlaces is the number of decimal places every stored amount carries.
// It matches the NUMERIC(14,2) columns of the postgres schema.
const MinorUnitPlaces int32 = 2

// DefaultTolerance is one minor currency unit.
var DefaultTolerance = decimal.New(1, -MinorUnitPlaces)

// ParseAmount parses a dot-separated decimal amount as extracted from a
// document. Amounts finer than the minor unit are rejected.
func ParseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if !InMinorUnits(amount) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", raw, MinorUnitPlaces)
	}
	return amount, nil
}

// InMinorUnits reports whether amount is representable in whole minor units.
// Trailing zeros such as 10.500 are fine.
func InMinorUnits(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(MinorUnitPlaces))
}

// WithinTolerance reports whether |a-b| <= tolerance.
func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance.Abs())
}

// SumAmounts adds up the amounts of items.
func SumAmounts(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total
}
