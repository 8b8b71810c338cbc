package service

import (
	"context"

	"github.com/tarotdeck/backend/internal/domain"
)

// StatsService serves the admin dashboard.
type StatsService struct {
	stats StatsStore
}

// NewStatsService creates a new StatsService.
func NewStatsService(stats StatsStore) *StatsService {
	return &StatsService{stats: stats}
}

// Get returns system-wide counts.
func (s *StatsService) Get(ctx context.Context) (*domain.Stats, error) {
	st, err := s.stats.Collect(ctx)
	if err != nil {
		return nil, domain.ErrInternal("failed to collect stats", err)
	}
	return st, nil
}
