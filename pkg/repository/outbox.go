// Package repository narrows the store down to what the outbox worker needs.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
)

type OutboxRepository interface {
	GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryCount int) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// Outbox runs fn against an outbox repository bound to one transaction, so
// rows claimed by GetPendingEventsWithLock stay locked until fn returns.
type Outbox interface {
	InTx(ctx context.Context, fn func(repo OutboxRepository) error) error
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

type storeOutbox struct {
	store repository.Store
}

func NewOutbox(store repository.Store) Outbox {
	return &storeOutbox{store: store}
}

func (o *storeOutbox) InTx(ctx context.Context, fn func(repo OutboxRepository) error) error {
	return o.store.WithTx(ctx, func(q repository.Queries) error {
		return fn(q.Outbox())
	})
}

func (o *storeOutbox) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	return o.store.Outbox().DeleteProcessedBefore(ctx, before)
}
