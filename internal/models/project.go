package models

import (
	"time"
)

// Project is the top level of the BCID namespace. The owning user is the
// project's implicit admin.
type Project struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	Title         string    `json:"title"`
	Public        bool      `json:"public"`
	UserID        int64     `json:"user_id"`
	ValidationRef string    `json:"validation_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewProject creates a new Project with initialized timestamps.
func NewProject(code, title string, public bool, userID int64) *Project {
	now := time.Now()
	return &Project{
		Code:      code,
		Title:     title,
		Public:    public,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ProjectConfig is the admin-visible configuration of a project.
type ProjectConfig struct {
	Title         string `json:"title"`
	Public        bool   `json:"public"`
	ValidationRef string `json:"validation_ref,omitempty"`
}

// ProjectMember represents a user's membership in a project. Presence of a
// membership row is the sole signal that a user may act within the project.
type ProjectMember struct {
	ProjectID int64  `json:"project_id"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
}
