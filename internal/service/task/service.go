package task

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/internal/service/event"
)

type TaskServicer interface {
	Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error)
	Get(ctx context.Context, id int64) (*model.Task, error)
	List(ctx context.Context, filter model.TaskFilter) ([]*model.Task, error)
	Update(ctx context.Context, id int64, req *model.UpdateTaskRequest) (*model.Task, error)
}

type Service struct {
	store  repository.Store
	events *event.Service
}

func NewService(store repository.Store, events *event.Service) *Service {
	return &Service{store: store, events: events}
}

func (s *Service) Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	task := &model.Task{
		Title:             req.Title,
		Description:       req.Description,
		AssignedToID:      req.AssignedToID,
		Priority:          req.Priority,
		Status:            model.TaskStatusPending,
		DueDate:           req.DueDate,
		CreatedAt:         time.Now().UTC(),
		Notes:             req.Notes,
		RelatedEntityType: req.RelatedEntityType,
		RelatedEntityID:   req.RelatedEntityID,
	}
	if task.Priority == "" {
		task.Priority = model.TaskPriorityMedium
	}

	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		if err := q.Tasks().Create(ctx, task); err != nil {
			return err
		}
		return s.events.Emit(ctx, q, model.EventTaskCreated, task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Task, error) {
	return s.store.Tasks().Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter model.TaskFilter) ([]*model.Task, error) {
	tasks, err := s.store.Tasks().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// Update applies the given fields. The first move to completed stamps
// completedAt.
func (s *Service) Update(ctx context.Context, id int64, req *model.UpdateTaskRequest) (*model.Task, error) {
	var out *model.Task
	err := s.store.WithTx(ctx, func(q repository.Queries) error {
		task, err := q.Tasks().Get(ctx, id)
		if err != nil {
			return err
		}

		if req.Title != nil {
			task.Title = *req.Title
		}
		if req.Description != nil {
			task.Description = req.Description
		}
		if req.AssignedToID != nil {
			task.AssignedToID = req.AssignedToID
		}
		if req.Priority != nil {
			task.Priority = *req.Priority
		}
		if req.DueDate != nil {
			task.DueDate = req.DueDate
		}
		if req.Notes != nil {
			task.Notes = req.Notes
		}
		if req.Status != nil && *req.Status != task.Status {
			if *req.Status == model.TaskStatusCompleted && task.CompletedAt == nil {
				now := time.Now().UTC()
				task.CompletedAt = &now
			}
			task.Status = *req.Status
		}

		if err := q.Tasks().Update(ctx, task); err != nil {
			return err
		}
		out = task
		return s.events.Emit(ctx, q, model.EventTaskUpdated, task)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
