package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

func (s *Store) CreateHorse(ctx context.Context, horse *domain.Horse) error {
	defer s.lock(ctx)()
	if _, exists := s.horses[horse.ID]; exists {
		return domain.NewError(domain.ErrConflict, "create horse", "horse %s already exists", horse.ID)
	}
	s.horses[horse.ID] = cloneHorse(horse)
	return nil
}

func (s *Store) GetHorse(ctx context.Context, id string) (*domain.Horse, error) {
	defer s.lock(ctx)()
	stored, ok := s.horses[id]
	if !ok {
		return nil, domain.NewError(domain.ErrNotFound, "get horse", "horse %s not found", id)
	}
	return cloneHorse(stored), nil
}

func (s *Store) ListHorses(ctx context.Context, filter domain.HorseFilter) ([]domain.Horse, error) {
	defer s.lock(ctx)()
	out := make([]domain.Horse, 0, len(s.horses))
	for _, stored := range s.horses {
		if filter.Status != "" && stored.Status != filter.Status {
			continue
		}
		out = append(out, *cloneHorse(stored))
	}
	sort.Slice(out, func(i, j int) bool {
		left, right := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if left != right {
			return left < right
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateHorse(ctx context.Context, horse *domain.Horse) error {
	defer s.lock(ctx)()
	if _, ok := s.horses[horse.ID]; !ok {
		return domain.NewError(domain.ErrNotFound, "update horse", "horse %s not found", horse.ID)
	}
	s.horses[horse.ID] = cloneHorse(horse)
	return nil
}

func cloneHorse(h *domain.Horse) *domain.Horse {
	out := *h
	if h.RetiredAt != nil {
		at := *h.RetiredAt
		out.RetiredAt = &at
	}
	return &out
}
