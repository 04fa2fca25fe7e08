package model

import (
	"time"
)

type Role string

// User roles
const (
	RoleAdmin         Role = "admin"
	RoleMedicalStaff  Role = "medical_staff"
	RoleMortuaryStaff Role = "mortuary_staff"
	RoleViewer        Role = "viewer"
)

// User represents a staff account
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password"`
	FullName     string    `json:"full_name" db:"full_name"`
	Email        string    `json:"email" db:"email"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// CreateUserRequest represents user creation parameters
type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Role     Role   `json:"role" binding:"required,oneof=admin medical_staff mortuary_staff viewer"`
}

// UpdateUserRequest represents user update parameters
type UpdateUserRequest struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=8"`
	Role     *Role   `json:"role" binding:"omitempty,oneof=admin medical_staff mortuary_staff viewer"`
}
