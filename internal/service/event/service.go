// Package event writes domain events to the transactional outbox.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
)

// Hook runs once the transaction that staged an event has committed. It must
// not block.
type Hook func(eventType string)

type Service struct {
	log *logger.Logger

	mu    sync.RWMutex
	hooks []Hook
}

func NewService(log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{log: log}
}

// OnEmit registers h to run for every emitted event.
func (s *Service) OnEmit(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// Emit stages an outbox row through q, which should be the transaction that
// carries the state change the event describes.
func (s *Service) Emit(ctx context.Context, q repository.Queries, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := time.Now().UTC()
	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payloadJSON,
		Status:    model.OutboxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := q.Outbox().Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	s.log.WithContext(ctx).Debug("event staged", "event_id", event.ID.String(), "event_type", eventType)

	s.mu.RLock()
	hooks := s.hooks
	s.mu.RUnlock()
	if len(hooks) > 0 {
		q.AfterCommit(func() {
			for _, h := range hooks {
				h(eventType)
			}
		})
	}
	return nil
}
