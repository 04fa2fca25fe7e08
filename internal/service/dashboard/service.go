package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
)

const (
	statsKey   = "dashboard:stats"
	defaultTTL = 30 * time.Second
)

type DashboardServicer interface {
	Stats(ctx context.Context) (*model.DashboardStats, error)
	Invalidate()
}

// Service serves dashboard statistics from a short-lived cache. Any staged
// domain event drops the cached copy.
type Service struct {
	repo  repository.DashboardRepository
	cache *cache.Cache
	ttl   time.Duration
}

func NewService(repo repository.DashboardRepository, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{
		repo:  repo,
		cache: cache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

func (s *Service) Stats(ctx context.Context) (*model.DashboardStats, error) {
	if cached, ok := s.cache.Get(statsKey); ok {
		return cached.(*model.DashboardStats), nil
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard stats: %w", err)
	}
	s.cache.Set(statsKey, stats, s.ttl)
	return stats, nil
}

func (s *Service) Invalidate() {
	s.cache.Delete(statsKey)
}

// OnEvent matches event.Hook.
func (s *Service) OnEvent(string) {
	s.Invalidate()
}
