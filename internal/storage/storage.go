// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"

	"github.com/biscicol/bcid/internal/models"
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// EnsureAdminUser creates default admin if no users exist.
	EnsureAdminUser() error

	// Repository accessors
	Users() UserRepository
	Projects() ProjectRepository
	Expeditions() ExpeditionRepository
	Resources() ResourceRepository
}

// UserRepository defines operations for user management.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// ProjectRepository defines operations for projects and their memberships.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id int64) (*models.Project, error)
	GetByCode(ctx context.Context, code string) (*models.Project, error)
	// ListVisible returns all public projects plus, when userID is non-nil,
	// the projects that user is a member of, de-duplicated.
	ListVisible(ctx context.Context, userID *int64) ([]*models.Project, error)
	// ListAdmin returns the projects whose owning user is userID.
	ListAdmin(ctx context.Context, userID int64) ([]*models.Project, error)
	// ListAll returns every project regardless of visibility. Intended for
	// direct administrative access, not the public API.
	ListAll(ctx context.Context) ([]*models.Project, error)

	AddMember(ctx context.Context, projectID, userID int64) error
	RemoveMember(ctx context.Context, projectID, userID int64) error
	IsMember(ctx context.Context, userID, projectID int64) (bool, error)
	IsAdmin(ctx context.Context, userID, projectID int64) (bool, error)
	Members(ctx context.Context, projectID int64) ([]*models.ProjectMember, error)

	// UpdateConfig applies a partial update built from the supplied field set.
	// Only whitelisted keys are written. Returns the number of rows affected.
	UpdateConfig(ctx context.Context, projectID int64, fields map[string]any) (int64, error)
}

// ExpeditionRepository defines operations for expedition allocation and lookup.
type ExpeditionRepository interface {
	// Insert writes a new expedition row carrying its allocation token. The
	// store assigns the numeric id; it is not observable from this call and
	// must be recovered with IDByToken. A UNIQUE(code, project_id) violation
	// surfaces as a constraint error (see IsConstraintViolation).
	Insert(ctx context.Context, exp *models.Expedition) error
	// IDByToken returns the numeric id of the row carrying the allocation
	// token, or 0 when no row matches.
	IDByToken(ctx context.Context, token string) (int64, error)
	// IDByCode returns the numeric id for (code, projectID), or 0 on no match.
	IDByCode(ctx context.Context, code string, projectID int64) (int64, error)

	Exists(ctx context.Context, code string, projectID int64) (bool, error)
	UserOwns(ctx context.Context, userID int64, code string, projectID int64) (bool, error)
	Metadata(ctx context.Context, id int64) (*models.ExpeditionMetadata, error)
	ListForUser(ctx context.Context, userID int64) ([]*models.ExpeditionMetadata, error)

	AttachResource(ctx context.Context, expeditionID, resourceID int64) error
	Resources(ctx context.Context, expeditionID int64) ([]*models.Resource, error)
}

// ResourceRepository defines operations for dataset/resource references.
type ResourceRepository interface {
	Create(ctx context.Context, res *models.Resource) error
	GetByID(ctx context.Context, id int64) (*models.Resource, error)
	GetByPrefix(ctx context.Context, prefix string) (*models.Resource, error)
}
