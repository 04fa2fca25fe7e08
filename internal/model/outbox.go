package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Domain event types written to the outbox.
const (
	EventPatientRegistered   = "patient.registered"
	EventPatientUpdated      = "patient.updated"
	EventPatientUnclaimed    = "patient.unclaimed"
	EventStorageAssigned     = "storage.assigned"
	EventStorageReassigned   = "storage.reassigned"
	EventStorageReleased     = "storage.released"
	EventStorageUnitCreated  = "storage_unit.created"
	EventStorageUnitUpdated  = "storage_unit.updated"
	EventPostmortemScheduled = "postmortem.scheduled"
	EventPostmortemUpdated   = "postmortem.updated"
	EventReleaseRequested    = "release.requested"
	EventReleaseUpdated      = "release.updated"
	EventReleaseApproved     = "release.approved"
	EventReleaseRejected     = "release.rejected"
	EventTaskCreated         = "task.created"
	EventTaskUpdated         = "task.updated"
	EventAlertRaised         = "alert.raised"
	EventAlertUpdated        = "alert.updated"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
}
