package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/messaging"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
	"github.com/jwalitptl/mortuary-api/pkg/repository"
)

type OutboxProcessorConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// RetryAttempts bounds publishes per event, counted across polls. An
	// event that has used them all is marked FAILED.
	RetryAttempts int
	RetryDelay    time.Duration
	// Retention is how long PROCESSED rows are kept. Zero keeps them forever.
	Retention time.Duration
}

type OutboxProcessor struct {
	outbox  repository.Outbox
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	outbox repository.Outbox,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		return nil, fmt.Errorf("retry attempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		return nil, fmt.Errorf("retry delay must be greater than 0")
	}

	return &OutboxProcessor{
		outbox:  outbox,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Start polls until ctx is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor", "batch_size", p.config.BatchSize, "poll_interval", p.config.PollInterval.String())

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
			if err := p.cleanup(ctx); err != nil {
				p.logger.Error(err, "Failed to clean up processed events")
			}
		}
	}
}

// ProcessBatch publishes one batch of pending events and reports how many
// were published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	published := 0
	err := p.outbox.InTx(ctx, func(repo repository.OutboxRepository) error {
		events, err := repo.GetPendingEventsWithLock(ctx, p.config.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to get pending events: %w", err)
		}

		for _, event := range events {
			ok, err := p.processEvent(ctx, repo, event)
			if err != nil {
				return err
			}
			if ok {
				published++
			}
		}
		return nil
	})
	return published, err
}

// processEvent returns an error only when the status update fails; publish
// failures are recorded on the row.
func (p *OutboxProcessor) processEvent(ctx context.Context, repo repository.OutboxRepository, event *model.OutboxEvent) (bool, error) {
	log := p.logger.WithFields(map[string]interface{}{
		"event_id":   event.ID.String(),
		"event_type": event.EventType,
	})

	data, err := messaging.Message{
		ID:         event.ID,
		Type:       event.EventType,
		Payload:    event.Payload,
		OccurredAt: event.CreatedAt,
	}.Encode()
	if err != nil {
		return false, p.markFailed(ctx, repo, event, event.RetryCount, err)
	}

	attempts := event.RetryCount
	remaining := p.config.RetryAttempts - attempts
	if remaining <= 0 {
		return false, p.markFailed(ctx, repo, event, attempts, fmt.Errorf("retry attempts exhausted"))
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.config.RetryDelay
	policy.MaxElapsedTime = 0

	err = backoff.Retry(func() error {
		if attempts > event.RetryCount {
			p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
		}
		attempts++
		return p.broker.Publish(ctx, event.EventType, data)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(remaining-1)), ctx))

	if err != nil {
		if attempts >= p.config.RetryAttempts {
			log.Error(err, "Giving up on outbox event", "attempts", attempts)
			return false, p.markFailed(ctx, repo, event, attempts, err)
		}
		msg := err.Error()
		if updateErr := repo.UpdateStatus(ctx, event.ID, model.OutboxStatusPending, &msg, attempts); updateErr != nil {
			return false, fmt.Errorf("failed to update event status: %w", updateErr)
		}
		return false, nil
	}

	p.metrics.OutboxEventsProcessed.Inc()
	if err := repo.UpdateStatus(ctx, event.ID, model.OutboxStatusProcessed, nil, attempts); err != nil {
		return false, fmt.Errorf("failed to update event status: %w", err)
	}
	log.Debug("Published outbox event")
	return true, nil
}

func (p *OutboxProcessor) markFailed(ctx context.Context, repo repository.OutboxRepository, event *model.OutboxEvent, attempts int, cause error) error {
	p.metrics.OutboxEventsFailed.Inc()
	msg := cause.Error()
	if err := repo.UpdateStatus(ctx, event.ID, model.OutboxStatusFailed, &msg, attempts); err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	return nil
}

func (p *OutboxProcessor) cleanup(ctx context.Context) error {
	if p.config.Retention <= 0 {
		return nil
	}
	n, err := p.outbox.Cleanup(ctx, time.Now().UTC().Add(-p.config.Retention))
	if err != nil {
		return err
	}
	if n > 0 {
		p.logger.Info("Deleted processed outbox events", "count", n)
	}
	return nil
}
