package model

import (
	"time"
)

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

type BodyReleaseRequest struct {
	ID                int64          `db:"id" json:"id"`
	DeceasedID        int64          `db:"deceased_id" json:"deceased_id"`
	RequestDate       time.Time      `db:"request_date" json:"request_date"`
	RequestedByID     *int64         `db:"requested_by_id" json:"requested_by_id,omitempty"`
	NextOfKinName     string         `db:"next_of_kin_name" json:"next_of_kin_name"`
	NextOfKinRelation string         `db:"next_of_kin_relation" json:"next_of_kin_relation"`
	NextOfKinContact  string         `db:"next_of_kin_contact" json:"next_of_kin_contact"`
	IdentityVerified  bool           `db:"identity_verified" json:"identity_verified"`
	ApprovalStatus    ApprovalStatus `db:"approval_status" json:"approval_status"`
	ApprovedByID      *int64         `db:"approved_by_id" json:"approved_by_id,omitempty"`
	ApprovalDate      *time.Time     `db:"approval_date" json:"approval_date,omitempty"`
	ReleaseDate       *time.Time     `db:"release_date" json:"release_date,omitempty"`
	TransferredTo     *string        `db:"transferred_to" json:"transferred_to,omitempty"`
	Documents         StringList     `db:"documents" json:"documents"`
	Notes             *string        `db:"notes" json:"notes,omitempty"`
}

type CreateReleaseRequest struct {
	DeceasedID        int64      `json:"deceased_id" binding:"required,gt=0"`
	NextOfKinName     string     `json:"next_of_kin_name" binding:"required"`
	NextOfKinRelation string     `json:"next_of_kin_relation" binding:"required"`
	NextOfKinContact  string     `json:"next_of_kin_contact" binding:"required"`
	IdentityVerified  bool       `json:"identity_verified"`
	ReleaseDate       *time.Time `json:"release_date"`
	TransferredTo     *string    `json:"transferred_to"`
	Documents         StringList `json:"documents"`
	Notes             *string    `json:"notes"`
}

type UpdateReleaseRequest struct {
	NextOfKinName     *string         `json:"next_of_kin_name"`
	NextOfKinRelation *string         `json:"next_of_kin_relation"`
	NextOfKinContact  *string         `json:"next_of_kin_contact"`
	IdentityVerified  *bool           `json:"identity_verified"`
	ApprovalStatus    *ApprovalStatus `json:"approval_status" binding:"omitempty,oneof=pending approved rejected"`
	ReleaseDate       *time.Time      `json:"release_date"`
	TransferredTo     *string         `json:"transferred_to"`
	Documents         *StringList     `json:"documents"`
	Notes             *string         `json:"notes"`
}

type RejectReleaseRequest struct {
	Notes *string `json:"notes"`
}

type ReleaseFilter struct {
	ApprovalStatus ApprovalStatus `form:"approval_status"`
}
