package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
)

type outboxRepository struct {
	q queries
}

func (r outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	return r.q.write("outbox.create", func(d *dataset) error {
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		ts := now()
		event.CreatedAt = ts
		event.UpdatedAt = ts
		event.Status = model.OutboxStatusPending
		d.outbox[event.ID] = *event
		return nil
	})
}

func (r outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	var out []*model.OutboxEvent
	err := r.q.read(func(d *dataset) error {
		for _, e := range d.outbox {
			if e.Status == model.OutboxStatusPending {
				e := e
				out = append(out, &e)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (r outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryCount int) error {
	return r.q.write("outbox.update_status", func(d *dataset) error {
		e, ok := d.outbox[id]
		if !ok {
			return errors.NotFound("outbox event", nil)
		}
		ts := now()
		e.Status = status
		e.ErrorMessage = errorMessage
		e.RetryCount = retryCount
		e.UpdatedAt = ts
		if status == model.OutboxStatusProcessed {
			e.ProcessedAt = &ts
		}
		d.outbox[id] = e
		return nil
	})
}

func (r outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.q.write("outbox.delete", func(d *dataset) error {
		for id, e := range d.outbox {
			if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
				delete(d.outbox, id)
				n++
			}
		}
		return nil
	})
	return n, err
}
