package domain

import (
	"strings"
	"time"
)

// CandidateNames lists raw names that are attributed but not bound to a horse,
// in first-appearance order: invoice-level attribution first, then line items.
// Names are deduplicated by exact raw text.
func CandidateNames(inv *Invoice) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(ref EntityRef) {
		if !ref.IsUnresolved() {
			return
		}
		if _, ok := seen[ref.RawName]; ok {
			return
		}
		seen[ref.RawName] = struct{}{}
		out = append(out, ref.RawName)
	}
	add(inv.Attribution)
	for _, item := range inv.LineItems {
		add(item.Entity)
	}
	return out
}

// OutstandingOccurrences counts references still pointing at rawName.
func OutstandingOccurrences(inv *Invoice, rawName string) int {
	count := 0
	if inv.Attribution.IsUnresolved() && inv.Attribution.RawName == rawName {
		count++
	}
	for _, item := range inv.LineItems {
		if item.Entity.IsUnresolved() && item.Entity.RawName == rawName {
			count++
		}
	}
	return count
}

// BindName replaces every unresolved reference to rawName with horseID and
// marks the unmatched record resolved. It returns the number of references bound.
func BindName(inv *Invoice, rawName, horseID string, outcome ResolutionOutcome, at time.Time) int {
	bound := 0
	if inv.Attribution.IsUnresolved() && inv.Attribution.RawName == rawName {
		inv.Attribution = SingleEntity(horseID)
		bound++
	}
	for i := range inv.LineItems {
		ref := inv.LineItems[i].Entity
		if ref.IsUnresolved() && ref.RawName == rawName {
			inv.LineItems[i].Entity = SingleEntity(horseID)
			bound++
		}
	}

	resolvedAt := at
	if record := inv.UnmatchedName(rawName); record != nil {
		record.Outcome = outcome
		record.HorseID = horseID
		record.ResolvedAt = &resolvedAt
	} else {
		inv.UnmatchedNames = append(inv.UnmatchedNames, UnmatchedName{
			RawName:    rawName,
			Outcome:    outcome,
			HorseID:    horseID,
			ResolvedAt: &resolvedAt,
		})
	}
	return bound
}

// RosterIndex maps normalized names of active horses to their ids. Names shared
// by more than one active horse are ambiguous and never auto-bind.
type RosterIndex struct {
	byName    map[string]string
	ambiguous map[string]struct{}
}

func NewRosterIndex(horses []Horse) RosterIndex {
	idx := RosterIndex{
		byName:    make(map[string]string, len(horses)),
		ambiguous: make(map[string]struct{}),
	}
	for _, h := range horses {
		if !h.IsActive() {
			continue
		}
		key := NormalizeName(h.Name)
		if key == "" {
			continue
		}
		if existing, ok := idx.byName[key]; ok && existing != h.ID {
			idx.ambiguous[key] = struct{}{}
			continue
		}
		idx.byName[key] = h.ID
	}
	return idx
}

// Lookup returns the horse whose normalized name equals rawName's.
func (idx RosterIndex) Lookup(rawName string) (string, bool) {
	key := NormalizeName(rawName)
	if _, ambiguous := idx.ambiguous[key]; ambiguous {
		return "", false
	}
	id, ok := idx.byName[key]
	return id, ok
}

// AutoBind resolves freshly extracted references against the roster. Anything
// that does not bind becomes an unresolved UnmatchedName. It must only run at
// intake: once a reviewer has resolved a name the binding is never revisited.
func AutoBind(inv *Invoice, idx RosterIndex) {
	bindRef := func(ref EntityRef) EntityRef {
		if !ref.IsUnresolved() {
			return ref
		}
		raw := strings.TrimSpace(ref.RawName)
		if raw == "" {
			return NoEntity()
		}
		if id, ok := idx.Lookup(raw); ok {
			return SingleEntity(id)
		}
		return UnresolvedEntity(raw)
	}

	inv.Attribution = bindRef(inv.Attribution)
	for i := range inv.LineItems {
		inv.LineItems[i].Entity = bindRef(inv.LineItems[i].Entity)
	}

	for _, name := range CandidateNames(inv) {
		if inv.UnmatchedName(name) != nil {
			continue
		}
		inv.UnmatchedNames = append(inv.UnmatchedNames, UnmatchedName{RawName: name, Outcome: ResolutionUnresolved})
	}
}

// HorseSuggestion is a roster entry that looks like an unmatched name.
type HorseSuggestion struct {
	HorseID    string  `json:"horse_id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// NameCandidate is an unresolved raw name with its likely roster matches.
type NameCandidate struct {
	RawName     string            `json:"raw_name"`
	Occurrences int               `json:"occurrences"`
	Suggestions []HorseSuggestion `json:"suggestions"`
}
