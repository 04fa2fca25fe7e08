package app

import (
	"context"
	"sync"

	"github.com/jwalitptl/mortuary-api/internal/config"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/internal/worker"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/messaging"
	"github.com/jwalitptl/mortuary-api/pkg/messaging/redis"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
	outboxrepo "github.com/jwalitptl/mortuary-api/pkg/repository"
	pkgworker "github.com/jwalitptl/mortuary-api/pkg/worker"
)

// OpenBroker connects to Redis, or returns an in-process broker when no URL
// is configured.
func OpenBroker(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (messaging.Broker, error) {
	if cfg.URL == "" {
		log.Warn("No Redis URL configured, publishing events in-process only")
		return messaging.NewMemoryBroker(), nil
	}
	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:           cfg.URL,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		PoolSize:      cfg.PoolSize,
		MinIdleConns:  cfg.MinIdleConns,
		ChannelPrefix: "mortuary.",
	}, log)
	if err != nil {
		return nil, err
	}
	return broker, nil
}

// RunWorkers starts the outbox processor and the unclaimed sweep and blocks
// until ctx is cancelled and both have stopped.
func RunWorkers(
	ctx context.Context,
	cfg *config.Config,
	store repository.Store,
	broker messaging.Broker,
	svcs *Services,
	m *metrics.Metrics,
	log *logger.Logger,
) error {
	processor, err := pkgworker.NewOutboxProcessor(
		outboxrepo.NewOutbox(store),
		broker,
		pkgworker.OutboxProcessorConfig{
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.RetryAttempts,
			RetryDelay:    cfg.Outbox.RetryDelay,
			Retention:     cfg.Outbox.Retention,
		},
		log.WithFields(map[string]interface{}{"component": "outbox"}),
		m,
	)
	if err != nil {
		return err
	}

	sweep, err := worker.NewUnclaimedSweep(
		svcs.Deceased,
		svcs.Alert,
		worker.UnclaimedSweepConfig{
			Schedule:      cfg.Unclaimed.SweepSchedule,
			AutoMark:      cfg.Unclaimed.AutoMark,
			RetentionDays: cfg.Unclaimed.RetentionDays,
			WarningDays:   cfg.Unclaimed.WarningDays,
			CriticalDays:  cfg.Unclaimed.CriticalDays,
			SystemActorID: cfg.Unclaimed.SystemActorID,
		},
		m,
		log.WithFields(map[string]interface{}{"component": "unclaimed_sweep"}),
	)
	if err != nil {
		return err
	}

	var (
		wg       sync.WaitGroup
		sweepErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		sweepErr = sweep.Start(ctx)
	}()
	wg.Wait()
	return sweepErr
}
