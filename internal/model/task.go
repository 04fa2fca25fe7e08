package model

import (
	"time"
)

type TaskPriority string

const (
	TaskPriorityUrgent  TaskPriority = "urgent"
	TaskPriorityMedium  TaskPriority = "medium"
	TaskPriorityRoutine TaskPriority = "routine"
)

// Rank orders priorities from most to least pressing.
func (p TaskPriority) Rank() int {
	switch p {
	case TaskPriorityUrgent:
		return 3
	case TaskPriorityMedium:
		return 2
	case TaskPriorityRoutine:
		return 1
	}
	return 0
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// EntityType is the weak back-reference carried by tasks and alerts.
type EntityType string

const (
	EntityDeceased    EntityType = "deceased"
	EntityStorage     EntityType = "storage"
	EntityStorageUnit EntityType = "storage_unit"
	EntityPostmortem  EntityType = "postmortem"
	EntityRelease     EntityType = "release"
	EntityOther       EntityType = "other"
)

type Task struct {
	ID                int64        `db:"id" json:"id"`
	Title             string       `db:"title" json:"title"`
	Description       *string      `db:"description" json:"description,omitempty"`
	AssignedToID      *int64       `db:"assigned_to_id" json:"assigned_to_id,omitempty"`
	Priority          TaskPriority `db:"priority" json:"priority"`
	Status            TaskStatus   `db:"status" json:"status"`
	DueDate           *time.Time   `db:"due_date" json:"due_date,omitempty"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	CompletedAt       *time.Time   `db:"completed_at" json:"completed_at,omitempty"`
	Notes             *string      `db:"notes" json:"notes,omitempty"`
	RelatedEntityType *EntityType  `db:"related_entity_type" json:"related_entity_type,omitempty"`
	RelatedEntityID   *int64       `db:"related_entity_id" json:"related_entity_id,omitempty"`
}

type CreateTaskRequest struct {
	Title             string       `json:"title" binding:"required"`
	Description       *string      `json:"description"`
	AssignedToID      *int64       `json:"assigned_to_id"`
	Priority          TaskPriority `json:"priority" binding:"required,oneof=urgent medium routine"`
	DueDate           *time.Time   `json:"due_date"`
	Notes             *string      `json:"notes"`
	RelatedEntityType *EntityType  `json:"related_entity_type" binding:"omitempty,oneof=deceased storage postmortem release other"`
	RelatedEntityID   *int64       `json:"related_entity_id"`
}

type UpdateTaskRequest struct {
	Title        *string       `json:"title"`
	Description  *string       `json:"description"`
	AssignedToID *int64        `json:"assigned_to_id"`
	Priority     *TaskPriority `json:"priority" binding:"omitempty,oneof=urgent medium routine"`
	Status       *TaskStatus   `json:"status" binding:"omitempty,oneof=pending in_progress completed cancelled"`
	DueDate      *time.Time    `json:"due_date"`
	Notes        *string       `json:"notes"`
}

type TaskFilter struct {
	Status       TaskStatus `form:"status"`
	AssignedToID int64      `form:"assigned_to_id"`
}
