package model

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies which portal an account belongs to.
type Role string

const (
	RoleInstitute Role = "institute"
	RoleAdmin     Role = "admin"
	RoleStudent   Role = "student"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleInstitute || r == RoleAdmin || r == RoleStudent
}

// User is an account of any role.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the payload for any role's login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}
