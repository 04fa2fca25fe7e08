package model

import (
	"time"

	"github.com/jwalitptl/mortuary-api/pkg/changeset"
)

// PatientStatus is the lifecycle stage of a deceased patient record.
type PatientStatus string

const (
	PatientStatusRegistered       PatientStatus = "registered"
	PatientStatusPendingAutopsy   PatientStatus = "pending_autopsy"
	PatientStatusAutopsyCompleted PatientStatus = "autopsy_completed"
	PatientStatusPendingRelease   PatientStatus = "pending_release"
	PatientStatusReleased         PatientStatus = "released"
	PatientStatusUnclaimed        PatientStatus = "unclaimed"
)

func (s PatientStatus) Valid() bool {
	switch s {
	case PatientStatusRegistered, PatientStatusPendingAutopsy, PatientStatusAutopsyCompleted,
		PatientStatusPendingRelease, PatientStatusReleased, PatientStatusUnclaimed:
		return true
	}
	return false
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type DeceasedPatient struct {
	ID                 int64         `db:"id" json:"id"`
	MRNumber           string        `db:"mr_number" json:"mr_number"`
	FullName           string        `db:"full_name" json:"full_name"`
	Age                int           `db:"age" json:"age"`
	Gender             Gender        `db:"gender" json:"gender"`
	DateOfDeath        time.Time     `db:"date_of_death" json:"date_of_death"`
	CauseOfDeath       string        `db:"cause_of_death" json:"cause_of_death"`
	WardFrom           string        `db:"ward_from" json:"ward_from"`
	AttendingPhysician string        `db:"attending_physician" json:"attending_physician"`
	RegistrationDate   time.Time     `db:"registration_date" json:"registration_date"`
	RegisteredByID     *int64        `db:"registered_by_id" json:"registered_by_id,omitempty"`
	Notes              *string       `db:"notes" json:"notes,omitempty"`
	Status             PatientStatus `db:"status" json:"status"`
	Documents          StringList    `db:"documents" json:"documents"`
}

type CreateDeceasedRequest struct {
	MRNumber           string     `json:"mr_number" binding:"omitempty,mrnumber"`
	FullName           string     `json:"full_name" binding:"required"`
	Age                int        `json:"age" binding:"gte=0,lte=150"`
	Gender             Gender     `json:"gender" binding:"required,oneof=male female other"`
	DateOfDeath        time.Time  `json:"date_of_death" binding:"required"`
	CauseOfDeath       string     `json:"cause_of_death" binding:"required"`
	WardFrom           string     `json:"ward_from" binding:"required"`
	AttendingPhysician string     `json:"attending_physician" binding:"required"`
	Notes              *string    `json:"notes"`
	Documents          StringList `json:"documents"`
}

type UpdateDeceasedRequest struct {
	FullName           *string        `json:"full_name"`
	Age                *int           `json:"age" binding:"omitempty,gte=0,lte=150"`
	Gender             *Gender        `json:"gender" binding:"omitempty,oneof=male female other"`
	DateOfDeath        *time.Time     `json:"date_of_death"`
	CauseOfDeath       *string        `json:"cause_of_death"`
	WardFrom           *string        `json:"ward_from"`
	AttendingPhysician *string        `json:"attending_physician"`
	Notes              *string        `json:"notes"`
	Documents          *StringList    `json:"documents"`
	Status             *PatientStatus `json:"status"`
}

// DeceasedFilter narrows patient listings.
type DeceasedFilter struct {
	Status PatientStatus `form:"status"`
	Search string        `form:"search"`
	Pagination
}

// PatientUpdatedPayload is published with patient.updated.
type PatientUpdatedPayload struct {
	Patient *DeceasedPatient            `json:"patient"`
	Changes map[string]changeset.Change `json:"changes"`
}
