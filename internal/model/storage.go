package model

import (
	"time"
)

type UnitStatus string

const (
	UnitStatusAvailable   UnitStatus = "available"
	UnitStatusOccupied    UnitStatus = "occupied"
	UnitStatusMaintenance UnitStatus = "maintenance"
)

type AssignmentStatus string

const (
	AssignmentStatusActive   AssignmentStatus = "active"
	AssignmentStatusReleased AssignmentStatus = "released"
)

type StorageUnit struct {
	ID              int64      `db:"id" json:"id"`
	UnitNumber      string     `db:"unit_number" json:"unit_number"`
	Section         string     `db:"section" json:"section"`
	Temperature     *int       `db:"temperature" json:"temperature,omitempty"`
	Status          UnitStatus `db:"status" json:"status"`
	LastMaintenance *time.Time `db:"last_maintenance" json:"last_maintenance,omitempty"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
}

type StorageAssignment struct {
	ID            int64            `db:"id" json:"id"`
	DeceasedID    int64            `db:"deceased_id" json:"deceased_id"`
	StorageUnitID int64            `db:"storage_unit_id" json:"storage_unit_id"`
	AssignedAt    time.Time        `db:"assigned_at" json:"assigned_at"`
	AssignedByID  *int64           `db:"assigned_by_id" json:"assigned_by_id,omitempty"`
	ReleaseDate   *time.Time       `db:"release_date" json:"release_date,omitempty"`
	Status        AssignmentStatus `db:"status" json:"status"`
}

type CreateStorageUnitRequest struct {
	UnitNumber  string  `json:"unit_number" binding:"required,max=10"`
	Section     string  `json:"section" binding:"required,max=5"`
	Temperature *int    `json:"temperature"`
	Notes       *string `json:"notes"`
}

type UpdateStorageUnitRequest struct {
	Section         *string     `json:"section" binding:"omitempty,max=5"`
	Temperature     *int        `json:"temperature"`
	Status          *UnitStatus `json:"status" binding:"omitempty,oneof=available occupied maintenance"`
	LastMaintenance *time.Time  `json:"last_maintenance"`
	Notes           *string     `json:"notes"`
}

type StorageUnitFilter struct {
	Status  UnitStatus `form:"status"`
	Section string     `form:"section"`
}

type AssignStorageRequest struct {
	DeceasedID    int64 `json:"deceased_id" binding:"required,gt=0"`
	StorageUnitID int64 `json:"storage_unit_id" binding:"required,gt=0"`
}

// UpdateAssignmentRequest either moves an assignment to another unit or releases it.
type UpdateAssignmentRequest struct {
	StorageUnitID *int64            `json:"storage_unit_id" binding:"omitempty,gt=0"`
	Status        *AssignmentStatus `json:"status" binding:"omitempty,oneof=active released"`
}

type AssignmentFilter struct {
	Status        AssignmentStatus `form:"status"`
	StorageUnitID int64            `form:"storage_unit_id"`
}
