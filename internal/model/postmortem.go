package model

import (
	"time"
)

type PostmortemStatus string

const (
	PostmortemStatusScheduled  PostmortemStatus = "scheduled"
	PostmortemStatusInProgress PostmortemStatus = "in_progress"
	PostmortemStatusCompleted  PostmortemStatus = "completed"
	PostmortemStatusCancelled  PostmortemStatus = "cancelled"
)

type Postmortem struct {
	ID            int64            `db:"id" json:"id"`
	DeceasedID    int64            `db:"deceased_id" json:"deceased_id"`
	ScheduledDate *time.Time       `db:"scheduled_date" json:"scheduled_date,omitempty"`
	CompletedDate *time.Time       `db:"completed_date" json:"completed_date,omitempty"`
	AssignedToID  *int64           `db:"assigned_to_id" json:"assigned_to_id,omitempty"`
	Findings      *string          `db:"findings" json:"findings,omitempty"`
	Images        StringList       `db:"images" json:"images"`
	Status        PostmortemStatus `db:"status" json:"status"`
	IsForensic    bool             `db:"is_forensic" json:"is_forensic"`
	Notes         *string          `db:"notes" json:"notes,omitempty"`
}

type SchedulePostmortemRequest struct {
	DeceasedID    int64      `json:"deceased_id" binding:"required,gt=0"`
	ScheduledDate *time.Time `json:"scheduled_date"`
	AssignedToID  *int64     `json:"assigned_to_id"`
	IsForensic    bool       `json:"is_forensic"`
	Notes         *string    `json:"notes"`
}

type UpdatePostmortemRequest struct {
	ScheduledDate *time.Time        `json:"scheduled_date"`
	CompletedDate *time.Time        `json:"completed_date"`
	AssignedToID  *int64            `json:"assigned_to_id"`
	Findings      *string           `json:"findings"`
	Images        *StringList       `json:"images"`
	Status        *PostmortemStatus `json:"status" binding:"omitempty,oneof=scheduled in_progress completed cancelled"`
	IsForensic    *bool             `json:"is_forensic"`
	Notes         *string           `json:"notes"`
}

type PostmortemFilter struct {
	Status PostmortemStatus `form:"status"`
}
