package models

import (
	"time"
)

// Role represents a user's permission level.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCurator Role = "curator"
	RoleViewer  Role = "viewer"
)

// User represents a system user.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose in JSON
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser creates a new User with initialized timestamps.
func NewUser(username, email string, role Role) *User {
	now := time.Now()
	return &User{
		Username:  username,
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsAdmin returns true if user has the system admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanWrite returns true if user can mint identifiers.
func (u *User) CanWrite() bool {
	return u.Role == RoleAdmin || u.Role == RoleCurator
}
