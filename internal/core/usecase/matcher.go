package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/core/ports"
)

const (
	defaultSuggestionLimit  = 3
	minSuggestionSimilarity = 0.5
)

type MatcherOptions struct {
	ShareTolerance  decimal.Decimal
	SuggestionLimit int
	Observer        ports.ReconciliationObserver
}

type EntityMatcherUseCase struct {
	invoices        ports.InvoiceRepository
	horses          ports.HorseRepository
	tx              ports.Transactor
	locks           *InvoiceLocks
	shareTolerance  decimal.Decimal
	suggestionLimit int
	observer        ports.ReconciliationObserver
	now             func() time.Time
}

func NewEntityMatcherUseCase(
	invoices ports.InvoiceRepository,
	horses ports.HorseRepository,
	tx ports.Transactor,
	locks *InvoiceLocks,
	opts MatcherOptions,
) *EntityMatcherUseCase {
	if opts.SuggestionLimit <= 0 {
		opts.SuggestionLimit = defaultSuggestionLimit
	}
	if opts.ShareTolerance.IsZero() {
		opts.ShareTolerance = domain.DefaultTolerance
	}
	return &EntityMatcherUseCase{
		invoices:        invoices,
		horses:          horses,
		tx:              tx,
		locks:           locks,
		shareTolerance:  opts.ShareTolerance,
		suggestionLimit: opts.SuggestionLimit,
		observer:        observerOrNoop(opts.Observer),
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Candidates lists the invoice's unbound names in first-appearance order,
// each with the closest active roster entries.
func (uc *EntityMatcherUseCase) Candidates(ctx context.Context, invoiceID string) ([]domain.NameCandidate, error) {
	inv, err := uc.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: load invoice: %w", err)
	}
	names := domain.CandidateNames(inv)
	out := make([]domain.NameCandidate, 0, len(names))
	if len(names) == 0 {
		return out, nil
	}

	active, err := uc.horses.ListHorses(ctx, domain.HorseFilter{Status: domain.HorseActive})
	if err != nil {
		return nil, fmt.Errorf("list candidates: list roster: %w", err)
	}
	for _, name := range names {
		out = append(out, domain.NameCandidate{
			RawName:     name,
			Occurrences: domain.OutstandingOccurrences(inv, name),
			Suggestions: rankSuggestions(name, active, uc.suggestionLimit),
		})
	}
	return out, nil
}

func (uc *EntityMatcherUseCase) ResolveToExisting(ctx context.Context, invoiceID, rawName, horseID string) (*domain.Invoice, error) {
	const op = "resolve to existing horse"
	inv, err := mutatePending(ctx, uc.locks, uc.invoices, op, invoiceID, func(inv *domain.Invoice) error {
		if _, err := uc.activeHorse(ctx, op, horseID); err != nil {
			return err
		}
		if err := requireOutstanding(inv, op, rawName); err != nil {
			return err
		}
		domain.BindName(inv, rawName, horseID, domain.ResolutionExisting, uc.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.observer.NameResolved(domain.ResolutionExisting)
	slog.Info("unmatched_name_resolved", "invoice_id", invoiceID, "raw_name", rawName, "horse_id", horseID, "outcome", domain.ResolutionExisting)
	return inv, nil
}

// ResolveByCreating registers newName on the roster and binds rawName to it.
// The new horse and the invoice update commit together.
func (uc *EntityMatcherUseCase) ResolveByCreating(ctx context.Context, invoiceID, rawName, newName, owner string) (*domain.Invoice, *domain.Horse, error) {
	const op = "resolve by creating horse"
	name, err := domain.ValidateHorseName(newName)
	if err != nil {
		return nil, nil, err
	}

	unlock := uc.locks.Lock(invoiceID)
	defer unlock()

	inv, err := loadPending(ctx, uc.invoices, op, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	if err := requireOutstanding(inv, op, rawName); err != nil {
		return nil, nil, err
	}

	now := uc.now()
	horse := &domain.Horse{
		ID:        uuid.NewString(),
		Name:      name,
		Owner:     strings.TrimSpace(owner),
		Status:    domain.HorseActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	domain.BindName(inv, rawName, horse.ID, domain.ResolutionCreated, now)

	err = uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := uc.horses.CreateHorse(ctx, horse); err != nil {
			return fmt.Errorf("%s: create horse: %w", op, err)
		}
		if err := uc.invoices.SaveInvoice(ctx, inv); err != nil {
			return fmt.Errorf("%s: save invoice: %w", op, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	uc.observer.NameResolved(domain.ResolutionCreated)
	slog.Info("unmatched_name_resolved", "invoice_id", invoiceID, "raw_name", rawName, "horse_id", horse.ID, "outcome", domain.ResolutionCreated)
	return inv, horse, nil
}

// AssignEntity attributes a line item to a single active horse.
func (uc *EntityMatcherUseCase) AssignEntity(ctx context.Context, invoiceID, itemID, horseID string) (*domain.Invoice, error) {
	const op = "assign line item horse"
	return mutatePending(ctx, uc.locks, uc.invoices, op, invoiceID, func(inv *domain.Invoice) error {
		item, err := assignableItem(inv, op, itemID)
		if err != nil {
			return err
		}
		if _, err := uc.activeHorse(ctx, op, horseID); err != nil {
			return err
		}
		item.Entity = domain.SingleEntity(horseID)
		return nil
	})
}

// AssignSplit divides a line item across horses. Shares are validated against
// the item amount before anything is written.
func (uc *EntityMatcherUseCase) AssignSplit(ctx context.Context, invoiceID, itemID string, shares []domain.Share) (*domain.Invoice, error) {
	const op = "assign line item split"
	return mutatePending(ctx, uc.locks, uc.invoices, op, invoiceID, func(inv *domain.Invoice) error {
		item, err := assignableItem(inv, op, itemID)
		if err != nil {
			return err
		}
		ref, err := domain.NewSplitEntity(item.Amount, shares, uc.shareTolerance)
		if err != nil {
			return err
		}
		for _, horseID := range ref.HorseIDs() {
			if _, err := uc.activeHorse(ctx, op, horseID); err != nil {
				return err
			}
		}
		item.Entity = ref
		return nil
	})
}

func (uc *EntityMatcherUseCase) activeHorse(ctx context.Context, op, horseID string) (*domain.Horse, error) {
	if strings.TrimSpace(horseID) == "" {
		return nil, domain.NewError(domain.ErrValidation, op, "horse id is required")
	}
	horse, err := uc.horses.GetHorse(ctx, horseID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !horse.IsActive() {
		return nil, domain.NewError(domain.ErrNotFound, op, "horse %s is retired; reactivate it first", horseID)
	}
	return horse, nil
}

func requireOutstanding(inv *domain.Invoice, op, rawName string) error {
	if domain.OutstandingOccurrences(inv, rawName) == 0 {
		return domain.NewError(domain.ErrAlreadyResolved, op, "name %q has no unresolved occurrences on invoice %s", rawName, inv.ID)
	}
	return nil
}

// assignableItem refuses items still carrying an unmatched name; those go
// through the resolve operations so the unmatched record stays consistent.
func assignableItem(inv *domain.Invoice, op, itemID string) (*domain.LineItem, error) {
	item, err := findItem(inv, op, itemID)
	if err != nil {
		return nil, err
	}
	if item.Entity.IsUnresolved() {
		return nil, domain.NewError(domain.ErrInvalidState, op, "line item %s references unmatched name %q", itemID, item.Entity.RawName)
	}
	return item, nil
}

// rankSuggestions scores roster names by normalized edit distance, keeping the
// best limit entries at or above minSuggestionSimilarity.
func rankSuggestions(rawName string, horses []domain.Horse, limit int) []domain.HorseSuggestion {
	needle := domain.NormalizeName(rawName)
	out := make([]domain.HorseSuggestion, 0, limit)
	for _, h := range horses {
		if !h.IsActive() {
			continue
		}
		score := similarity(needle, domain.NormalizeName(h.Name))
		if score < minSuggestionSimilarity {
			continue
		}
		out = append(out, domain.HorseSuggestion{HorseID: h.ID, Name: h.Name, Similarity: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func similarity(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
