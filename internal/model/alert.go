package model

import (
	"time"
)

type AlertType string

const (
	AlertTypeTemperature AlertType = "temperature"
	AlertTypeStorage     AlertType = "storage"
	AlertTypeSystem      AlertType = "system"
	AlertTypeMaintenance AlertType = "maintenance"
	AlertTypeOther       AlertType = "other"
)

type AlertSeverity string

const (
	AlertSeverityCritical AlertSeverity = "critical"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityInfo     AlertSeverity = "info"
)

type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

type SystemAlert struct {
	ID                int64         `db:"id" json:"id"`
	Type              AlertType     `db:"type" json:"type"`
	Title             string        `db:"title" json:"title"`
	Message           string        `db:"message" json:"message"`
	Severity          AlertSeverity `db:"severity" json:"severity"`
	Status            AlertStatus   `db:"status" json:"status"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	AcknowledgedByID  *int64        `db:"acknowledged_by_id" json:"acknowledged_by_id,omitempty"`
	AcknowledgedAt    *time.Time    `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedByID      *int64        `db:"resolved_by_id" json:"resolved_by_id,omitempty"`
	ResolvedAt        *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
	RelatedEntityType *EntityType   `db:"related_entity_type" json:"related_entity_type,omitempty"`
	RelatedEntityID   *int64        `db:"related_entity_id" json:"related_entity_id,omitempty"`
}

type CreateAlertRequest struct {
	Type              AlertType     `json:"type" binding:"required,oneof=temperature storage system maintenance other"`
	Title             string        `json:"title" binding:"required"`
	Message           string        `json:"message" binding:"required"`
	Severity          AlertSeverity `json:"severity" binding:"required,oneof=critical warning info"`
	RelatedEntityType *EntityType   `json:"related_entity_type" binding:"omitempty,oneof=deceased storage_unit postmortem release other"`
	RelatedEntityID   *int64        `json:"related_entity_id"`
}

type UpdateAlertRequest struct {
	Status AlertStatus `json:"status" binding:"required,oneof=active acknowledged resolved"`
}

type AlertFilter struct {
	Status   AlertStatus   `form:"status"`
	Severity AlertSeverity `form:"severity"`
	// Related narrows to alerts pointing at one entity.
	RelatedEntityType EntityType `form:"related_entity_type"`
	RelatedEntityID   int64      `form:"related_entity_id"`
}
