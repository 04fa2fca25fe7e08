package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

const defaultWindow = 30 * 24 * time.Hour

type ReportServicer interface {
	Summary(ctx context.Context, from, to time.Time) (*model.ReportSummary, error)
}

type Service struct {
	repo repository.ReportRepository
}

func NewService(repo repository.ReportRepository) *Service {
	return &Service{repo: repo}
}

// Summary aggregates patients registered between from and to, inclusive.
// A zero to means now and a zero from means thirty days before to.
func (s *Service) Summary(ctx context.Context, from, to time.Time) (*model.ReportSummary, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-defaultWindow)
	}
	if from.After(to) {
		return nil, errors.BadRequest("report period must start before it ends", nil)
	}

	summary, err := s.repo.Summary(ctx, model.Period{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("failed to build report summary: %w", err)
	}
	return summary, nil
}
