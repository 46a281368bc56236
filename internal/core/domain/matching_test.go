package domain

import (
	"reflect"
	"testing"
	"time"
)

func TestRosterIndexSkipsAmbiguousAndRetiredNames(t *testing.T) {
	idx := NewRosterIndex([]Horse{
		{ID: "1", Name: "Comet", Status: HorseActive},
		{ID: "2", Name: "comet ", Status: HorseActive},
		{ID: "3", Name: "Bluebell", Status: HorsePast},
		{ID: "4", Name: "Dark Star", Status: HorseActive},
	})
	if _, ok := idx.Lookup("COMET"); ok {
		t.Fatalf("ambiguous name must not bind")
	}
	if _, ok := idx.Lookup("bluebell"); ok {
		t.Fatalf("retired horse must not bind")
	}
	if id, ok := idx.Lookup(" dark\tstar "); !ok || id != "4" {
		t.Fatalf("expected Dark Star, got %q %v", id, ok)
	}
}

func TestCandidateNamesAreStableAndDeduplicated(t *testing.T) {
	inv := &Invoice{
		Attribution: UnresolvedEntity("Zed"),
		LineItems: []LineItem{
			{ID: "1", Entity: UnresolvedEntity("Amy")},
			{ID: "2", Entity: UnresolvedEntity("Zed")},
			{ID: "3", Entity: SingleEntity("h1")},
			{ID: "4", Entity: UnresolvedEntity("amy")},
		},
	}
	want := []string{"Zed", "Amy", "amy"}
	for i := 0; i < 3; i++ {
		if got := CandidateNames(inv); !reflect.DeepEqual(got, want) {
			t.Fatalf("CandidateNames() = %v, want %v", got, want)
		}
	}
	if got := OutstandingOccurrences(inv, "Zed"); got != 2 {
		t.Fatalf("expected 2 occurrences, got %d", got)
	}
}

func TestBindNameMarksRecordResolved(t *testing.T) {
	inv := &Invoice{
		LineItems: []LineItem{{ID: "1", Entity: UnresolvedEntity("Amy")}},
	}
	AutoBind(inv, NewRosterIndex(nil))
	if got := inv.UnresolvedNames(); !reflect.DeepEqual(got, []string{"Amy"}) {
		t.Fatalf("expected Amy unresolved, got %v", got)
	}

	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if bound := BindName(inv, "Amy", "h9", ResolutionCreated, at); bound != 1 {
		t.Fatalf("expected 1 binding, got %d", bound)
	}
	record := inv.UnmatchedName("Amy")
	if record == nil || record.Outcome != ResolutionCreated || record.HorseID != "h9" || !record.ResolvedAt.Equal(at) {
		t.Fatalf("unexpected record %+v", record)
	}
	if len(inv.UnresolvedNames()) != 0 {
		t.Fatalf("expected nothing unresolved")
	}

	AutoBind(inv, NewRosterIndex(nil))
	if !reflect.DeepEqual(inv.LineItems[0].Entity, SingleEntity("h9")) {
		t.Fatalf("a resolved binding must never revert")
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  Dark \t STAR\n"); got != "dark star" {
		t.Fatalf("NormalizeName() = %q", got)
	}
}
