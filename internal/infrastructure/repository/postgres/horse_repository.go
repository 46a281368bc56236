package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

type HorseRepository struct {
	db *sql.DB
}

func NewHorseRepository(db *sql.DB) *HorseRepository {
	return &HorseRepository{db: db}
}

const horseColumns = `id, name, owner, status, retired_at, created_at, updated_at`

func (r *HorseRepository) CreateHorse(ctx context.Context, horse *domain.Horse) error {
	_, err := conn(ctx, r.db).ExecContext(ctx, `
INSERT INTO horses (`+horseColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, horse.ID, horse.Name, horse.Owner, string(horse.Status), nullTime(horse.RetiredAt), horse.CreatedAt, horse.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.WrapError(domain.ErrConflict, "create horse", err)
		}
		return fmt.Errorf("create horse: %w", err)
	}
	return nil
}

func (r *HorseRepository) GetHorse(ctx context.Context, id string) (*domain.Horse, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `
SELECT `+horseColumns+`
FROM horses
WHERE id = $1
`, id)
	horse, err := scanHorse(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewError(domain.ErrNotFound, "get horse", "horse %s not found", id)
		}
		return nil, fmt.Errorf("get horse: %w", err)
	}
	return &horse, nil
}

func (r *HorseRepository) ListHorses(ctx context.Context, filter domain.HorseFilter) ([]domain.Horse, error) {
	query := `
SELECT ` + horseColumns + `
FROM horses
`
	args := []any{}
	if filter.Status != "" {
		query += "WHERE status = $1\n"
		args = append(args, string(filter.Status))
	}
	query += "ORDER BY lower(name), id"

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list horses: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Horse, 0)
	for rows.Next() {
		horse, err := scanHorse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan horse: %w", err)
		}
		out = append(out, horse)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate horses: %w", err)
	}
	return out, nil
}

func (r *HorseRepository) UpdateHorse(ctx context.Context, horse *domain.Horse) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `
UPDATE horses
SET name = $2, owner = $3, status = $4, retired_at = $5, updated_at = $6
WHERE id = $1
`, horse.ID, horse.Name, horse.Owner, string(horse.Status), nullTime(horse.RetiredAt), horse.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update horse: %w", err)
	}
	return expectOneRow(result, "update horse", "horse", horse.ID)
}

func scanHorse(row rowScanner) (domain.Horse, error) {
	var horse domain.Horse
	var status string
	var retiredAt sql.NullTime
	err := row.Scan(
		&horse.ID,
		&horse.Name,
		&horse.Owner,
		&status,
		&retiredAt,
		&horse.CreatedAt,
		&horse.UpdatedAt,
	)
	if err != nil {
		return domain.Horse{}, err
	}
	horse.Status = domain.HorseStatus(status)
	horse.RetiredAt = timePtr(retiredAt)
	return horse, nil
}
