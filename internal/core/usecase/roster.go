package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/core/ports"
)

type RosterUseCase struct {
	horses ports.HorseRepository
	parser ports.RosterSheetParser
	now    func() time.Time
}

func NewRosterUseCase(horses ports.HorseRepository, parser ports.RosterSheetParser) *RosterUseCase {
	return &RosterUseCase{
		horses: horses,
		parser: parser,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (uc *RosterUseCase) Register(ctx context.Context, name, owner string) (*domain.Horse, error) {
	trimmed, err := domain.ValidateHorseName(name)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	horse := &domain.Horse{
		ID:        uuid.NewString(),
		Name:      trimmed,
		Owner:     strings.TrimSpace(owner),
		Status:    domain.HorseActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.horses.CreateHorse(ctx, horse); err != nil {
		return nil, fmt.Errorf("register horse: %w", err)
	}
	return horse, nil
}

// Retire marks a horse past as of effective. Past horses stop auto-binding and
// cannot be picked when resolving names until reactivated.
func (uc *RosterUseCase) Retire(ctx context.Context, id string, effective time.Time) (*domain.Horse, error) {
	const op = "retire horse"
	horse, err := uc.horses.GetHorse(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !horse.IsActive() {
		return nil, domain.NewError(domain.ErrInvalidState, op, "horse %s is already retired", id)
	}
	if effective.IsZero() {
		effective = uc.now()
	}
	retiredAt := effective.UTC()
	horse.Status = domain.HorsePast
	horse.RetiredAt = &retiredAt
	horse.UpdatedAt = uc.now()
	if err := uc.horses.UpdateHorse(ctx, horse); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return horse, nil
}

func (uc *RosterUseCase) Reactivate(ctx context.Context, id string) (*domain.Horse, error) {
	const op = "reactivate horse"
	horse, err := uc.horses.GetHorse(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if horse.IsActive() {
		return nil, domain.NewError(domain.ErrInvalidState, op, "horse %s is already active", id)
	}
	horse.Status = domain.HorseActive
	horse.RetiredAt = nil
	horse.UpdatedAt = uc.now()
	if err := uc.horses.UpdateHorse(ctx, horse); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return horse, nil
}

func (uc *RosterUseCase) Get(ctx context.Context, id string) (*domain.Horse, error) {
	return uc.horses.GetHorse(ctx, id)
}

func (uc *RosterUseCase) List(ctx context.Context, filter domain.HorseFilter) ([]domain.Horse, error) {
	return uc.horses.ListHorses(ctx, filter)
}

// FindByName returns every horse, active or past, whose normalized name equals name's.
func (uc *RosterUseCase) FindByName(ctx context.Context, name string) ([]domain.Horse, error) {
	key := domain.NormalizeName(name)
	if key == "" {
		return nil, domain.NewError(domain.ErrValidation, "find horse by name", "name is required")
	}
	all, err := uc.horses.ListHorses(ctx, domain.HorseFilter{})
	if err != nil {
		return nil, fmt.Errorf("find horse by name: %w", err)
	}
	out := make([]domain.Horse, 0, 1)
	for _, h := range all {
		if domain.NormalizeName(h.Name) == key {
			out = append(out, h)
		}
	}
	return out, nil
}

// ImportSpreadsheet registers every row whose name is not on the roster yet.
// Bad rows are reported and skipped; they do not abort the import.
func (uc *RosterUseCase) ImportSpreadsheet(ctx context.Context, r io.Reader) (domain.RosterImportResult, error) {
	result := domain.RosterImportResult{Created: []domain.Horse{}}
	if uc.parser == nil {
		return result, domain.NewError(domain.ErrInvalidState, "import roster", "spreadsheet import is not configured")
	}
	rows, err := uc.parser.ParseRoster(r)
	if err != nil {
		return result, fmt.Errorf("import roster: %w", err)
	}

	existing, err := uc.horses.ListHorses(ctx, domain.HorseFilter{})
	if err != nil {
		return result, fmt.Errorf("import roster: list roster: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, h := range existing {
		known[domain.NormalizeName(h.Name)] = struct{}{}
	}

	for _, row := range rows {
		key := domain.NormalizeName(row.Name)
		if _, dup := known[key]; dup && key != "" {
			result.Skipped++
			continue
		}
		horse, err := uc.Register(ctx, row.Name, row.Owner)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", row.Line, err))
			continue
		}
		known[key] = struct{}{}
		result.Created = append(result.Created, *horse)
	}

	slog.Info("roster_imported", "created", len(result.Created), "skipped", result.Skipped, "errors", len(result.Errors))
	return result, nil
}
