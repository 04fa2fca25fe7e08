package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/mortuary-api/internal/model"
)

type taskRepository struct {
	BaseRepository
}

const taskColumns = `id, title, description, assigned_to_id, priority, status, due_date, created_at,
	completed_at, notes, related_entity_type, related_entity_id`

func (r *taskRepository) Create(ctx context.Context, t *model.Task) error {
	query := `
		INSERT INTO tasks (
			title, description, assigned_to_id, priority, status, due_date, created_at,
			completed_at, notes, related_entity_type, related_entity_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := r.db.QueryRowxContext(ctx, query,
		t.Title,
		t.Description,
		t.AssignedToID,
		t.Priority,
		t.Status,
		t.DueDate,
		t.CreatedAt,
		t.CompletedAt,
		t.Notes,
		t.RelatedEntityType,
		t.RelatedEntityID,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (r *taskRepository) Get(ctx context.Context, id int64) (*model.Task, error) {
	var t model.Task
	if err := sqlx.GetContext(ctx, r.db, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id); err != nil {
		return nil, getErr("task", err)
	}
	return &t, nil
}

func (r *taskRepository) Update(ctx context.Context, t *model.Task) error {
	query := `
		UPDATE tasks SET
			title = $1,
			description = $2,
			assigned_to_id = $3,
			priority = $4,
			status = $5,
			due_date = $6,
			completed_at = $7,
			notes = $8
		WHERE id = $9
	`

	result, err := r.db.ExecContext(ctx, query,
		t.Title,
		t.Description,
		t.AssignedToID,
		t.Priority,
		t.Status,
		t.DueDate,
		t.CompletedAt,
		t.Notes,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return affected("task", result)
}

func (r *taskRepository) List(ctx context.Context, filter model.TaskFilter) ([]*model.Task, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.AssignedToID != 0 {
		args = append(args, filter.AssignedToID)
		where = append(where, fmt.Sprintf("assigned_to_id = $%d", len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	tasks := []*model.Task{}
	if err := sqlx.SelectContext(ctx, r.db, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}
