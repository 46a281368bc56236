package domain

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type HorseStatus string

const (
	HorseActive HorseStatus = "active"
	HorsePast   HorseStatus = "past"
)

// MinHorseNameLength is the minimum trimmed length of a roster name, in characters.
const MinHorseNameLength = 2

// Horse is a roster entity that invoice costs are attributed to.
type Horse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Owner     string      `json:"owner,omitempty"`
	Status    HorseStatus `json:"status"`
	RetiredAt *time.Time  `json:"retired_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (h Horse) IsActive() bool { return h.Status == HorseActive }

// HorseFilter narrows roster listings. Empty Status lists everything.
type HorseFilter struct {
	Status HorseStatus
}

// ValidateHorseName trims name and rejects anything shorter than MinHorseNameLength.
func ValidateHorseName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if utf8.RuneCountInString(trimmed) < MinHorseNameLength {
		return "", NewError(ErrValidation, "validate horse name", "name %q must have at least %d characters", name, MinHorseNameLength)
	}
	return trimmed, nil
}

// NormalizeName folds case and collapses whitespace so that "  Dark  STAR "
// and "dark star" compare equal.
func NormalizeName(name string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(name), unicode.IsSpace), " ")
}

// RosterRow is one spreadsheet row offered for bulk registration.
type RosterRow struct {
	Line  int
	Name  string
	Owner string
}

type RosterImportResult struct {
	Created []Horse  `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}
