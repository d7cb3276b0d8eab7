package models

import (
	"time"
)

// Expedition is a named unit of work within a project. The (Code, ProjectID)
// pair is unique; Token is the opaque allocation token written at insert time
// and used exactly once to recover the store-assigned numeric id.
type Expedition struct {
	ID        int64     `json:"id"`
	Token     string    `json:"-"` // allocation token, not a stable identifier
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	Abstract  string    `json:"abstract,omitempty"`
	UserID    int64     `json:"user_id"`
	ProjectID int64     `json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ExpeditionMetadata is the denormalized projection returned by metadata
// lookups: the expedition plus its owning user and project context.
type ExpeditionMetadata struct {
	ID           int64     `json:"id"`
	Code         string    `json:"code"`
	Title        string    `json:"title"`
	Abstract     string    `json:"abstract,omitempty"`
	Username     string    `json:"username"`
	ProjectID    int64     `json:"project_id"`
	ProjectCode  string    `json:"project_code"`
	ProjectTitle string    `json:"project_title"`
	CreatedAt    time.Time `json:"created_at"`
}
