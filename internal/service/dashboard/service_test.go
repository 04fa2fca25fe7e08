package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/internal/repository/memory"
	"github.com/jwalitptl/mortuary-api/internal/service/event"
	"github.com/jwalitptl/mortuary-api/internal/service/storage"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
)

type countingRepo struct {
	calls int
	stats *model.DashboardStats
}

func (r *countingRepo) Stats(context.Context) (*model.DashboardStats, error) {
	r.calls++
	return r.stats, nil
}

func TestStatsAreCached(t *testing.T) {
	repo := &countingRepo{stats: &model.DashboardStats{AvailableUnits: 3}}
	svc := NewService(repo, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		stats, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.AvailableUnits)
	}
	assert.Equal(t, 1, repo.calls)

	svc.Invalidate()
	_, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestEventsInvalidateCache(t *testing.T) {
	store := memory.NewStore()
	events := event.NewService(logger.Nop())
	svc := NewService(store.Dashboard(), time.Hour)
	events.OnEmit(svc.OnEvent)
	units := storage.NewService(store, events, metrics.Noop(), logger.Nop())
	ctx := context.Background()

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.AvailableUnits)

	_, err = units.CreateUnit(ctx, &model.CreateStorageUnitRequest{UnitNumber: "A-01", Section: "A"})
	require.NoError(t, err)

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AvailableUnits)
}

func TestStatsReadDuringTransactionIsNotKept(t *testing.T) {
	store := memory.NewStore()
	events := event.NewService(logger.Nop())
	svc := NewService(store.Dashboard(), time.Hour)
	events.OnEmit(svc.OnEvent)
	ctx := context.Background()

	err := store.WithTx(ctx, func(q repository.Queries) error {
		unit := &model.StorageUnit{UnitNumber: "A-01", Section: "A", Status: model.UnitStatusAvailable}
		if err := q.StorageUnits().Create(ctx, unit); err != nil {
			return err
		}
		if err := events.Emit(ctx, q, model.EventStorageUnitCreated, unit); err != nil {
			return err
		}
		// caches the committed state, which has no units yet
		stats, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.AvailableUnits)
		return nil
	})
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.AvailableUnits)
}
