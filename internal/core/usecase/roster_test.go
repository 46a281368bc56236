package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/infrastructure/repository/memory"
)

type rosterParserFake struct {
	rows []domain.RosterRow
	err  error
}

func (f *rosterParserFake) ParseRoster(io.Reader) ([]domain.RosterRow, error) {
	return f.rows, f.err
}

func TestRosterLifecycle(t *testing.T) {
	ctx := context.Background()
	uc := NewRosterUseCase(memory.NewStore(), nil)

	horse, err := uc.Register(ctx, "  Dark Star ", " J. Smith ")
	require.NoError(t, err)
	require.Equal(t, "Dark Star", horse.Name)
	require.Equal(t, "J. Smith", horse.Owner)
	require.True(t, horse.IsActive())

	effective := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	retired, err := uc.Retire(ctx, horse.ID, effective)
	require.NoError(t, err)
	require.Equal(t, domain.HorsePast, retired.Status)
	require.True(t, retired.RetiredAt.Equal(effective))

	_, err = uc.Retire(ctx, horse.ID, effective)
	require.True(t, domain.IsKind(err, domain.ErrInvalidState), "got %v", err)

	active, err := uc.List(ctx, domain.HorseFilter{Status: domain.HorseActive})
	require.NoError(t, err)
	require.Empty(t, active)

	back, err := uc.Reactivate(ctx, horse.ID)
	require.NoError(t, err)
	require.True(t, back.IsActive())
	require.Nil(t, back.RetiredAt)

	_, err = uc.Reactivate(ctx, horse.ID)
	require.True(t, domain.IsKind(err, domain.ErrInvalidState), "got %v", err)

	_, err = uc.Get(ctx, "missing")
	require.True(t, domain.IsKind(err, domain.ErrNotFound), "got %v", err)
}

func TestRegisterRejectsShortNames(t *testing.T) {
	uc := NewRosterUseCase(memory.NewStore(), nil)
	for _, name := range []string{"", " ", "A", "  é  "} {
		_, err := uc.Register(context.Background(), name, "")
		require.True(t, domain.IsKind(err, domain.ErrValidation), "name %q: got %v", name, err)
	}
	_, err := uc.Register(context.Background(), "Éa", "")
	require.NoError(t, err)
}

func TestFindByNameNormalizes(t *testing.T) {
	ctx := context.Background()
	uc := NewRosterUseCase(memory.NewStore(), nil)
	_, err := uc.Register(ctx, "Dark  Star", "")
	require.NoError(t, err)
	_, err = uc.Register(ctx, "Bluebell", "")
	require.NoError(t, err)

	found, err := uc.FindByName(ctx, " dark star")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "Dark  Star", found[0].Name)

	_, err = uc.FindByName(ctx, "   ")
	require.True(t, domain.IsKind(err, domain.ErrValidation), "got %v", err)
}

func TestImportSpreadsheetSkipsKnownNamesAndReportsBadRows(t *testing.T) {
	ctx := context.Background()
	parser := &rosterParserFake{rows: []domain.RosterRow{
		{Line: 2, Name: "Dark Star", Owner: "A"},
		{Line: 3, Name: "bluebell", Owner: "B"},
		{Line: 4, Name: "X"},
		{Line: 5, Name: "BLUEBELL"},
		{Line: 6, Name: "Comet", Owner: "C"},
	}}
	uc := NewRosterUseCase(memory.NewStore(), parser)
	_, err := uc.Register(ctx, "dark star", "")
	require.NoError(t, err)

	result, err := uc.ImportSpreadsheet(ctx, strings.NewReader("ignored"))
	require.NoError(t, err)
	require.Len(t, result.Created, 2)
	require.Equal(t, "bluebell", result.Created[0].Name)
	require.Equal(t, "Comet", result.Created[1].Name)
	require.Equal(t, 2, result.Skipped)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "row 4")
}

func TestImportSpreadsheetParserFailure(t *testing.T) {
	uc := NewRosterUseCase(memory.NewStore(), &rosterParserFake{err: errors.New("not a workbook")})
	_, err := uc.ImportSpreadsheet(context.Background(), strings.NewReader(""))
	require.ErrorContains(t, err, "not a workbook")

	unconfigured := NewRosterUseCase(memory.NewStore(), nil)
	_, err = unconfigured.ImportSpreadsheet(context.Background(), strings.NewReader(""))
	require.True(t, domain.IsKind(err, domain.ErrInvalidState), "got %v", err)
}
