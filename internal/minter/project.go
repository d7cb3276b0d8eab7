package minter

import (
	"context"
	"fmt"
	"time"

	"github.com/biscicol/bcid/internal/models"
	"github.com/biscicol/bcid/internal/storage"
)

// ProjectMinter allocates projects and administers their memberships and
// configuration.
type ProjectMinter struct {
	store storage.Storage
}

// NewProjectMinter creates a project minter.
func NewProjectMinter(store storage.Storage) *ProjectMinter {
	return &ProjectMinter{store: store}
}

// Create mints a new project owned by userID. The owner becomes an implicit
// admin and is also added as a member so they can mint expeditions without a
// separate membership step. Project codes follow the same syntactic rules as
// expedition codes and are unique system-wide.
func (p *ProjectMinter) Create(ctx context.Context, code, title string, public bool, userID int64) (*models.Project, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	project := models.NewProject(code, title, public, userID)
	if err := p.store.Projects().Create(ctx, project); err != nil {
		if storage.IsConstraintViolation(err) {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("create project: %w", err)
	}

	if err := p.store.Projects().AddMember(ctx, project.ID, userID); err != nil {
		return nil, fmt.Errorf("create project: add owner membership: %w", err)
	}
	return project, nil
}

// List returns all public projects plus, when userID is non-nil, the
// projects that user belongs to, de-duplicated.
func (p *ProjectMinter) List(ctx context.Context, userID *int64) ([]*models.Project, error) {
	return p.store.Projects().ListVisible(ctx, userID)
}

// ListAdmin returns the projects userID administers.
func (p *ProjectMinter) ListAdmin(ctx context.Context, userID int64) ([]*models.Project, error) {
	return p.store.Projects().ListAdmin(ctx, userID)
}

// AddMember adds a user to a project. Idempotent: re-adding an existing
// member is a no-op.
func (p *ProjectMinter) AddMember(ctx context.Context, projectID, userID int64) error {
	return p.store.Projects().AddMember(ctx, projectID, userID)
}

// RemoveMember removes a user from a project. Once removed the user can no
// longer mint or view expeditions in it.
func (p *ProjectMinter) RemoveMember(ctx context.Context, projectID, userID int64) error {
	return p.store.Projects().RemoveMember(ctx, projectID, userID)
}

// IsMember reports whether a membership row exists for (userID, projectID).
func (p *ProjectMinter) IsMember(ctx context.Context, userID, projectID int64) (bool, error) {
	return p.store.Projects().IsMember(ctx, userID, projectID)
}

// IsAdmin reports whether userID is the project's owning user.
func (p *ProjectMinter) IsAdmin(ctx context.Context, userID, projectID int64) (bool, error) {
	return p.store.Projects().IsAdmin(ctx, userID, projectID)
}

// Members lists the users belonging to a project.
func (p *ProjectMinter) Members(ctx context.Context, projectID int64) ([]*models.ProjectMember, error) {
	return p.store.Projects().Members(ctx, projectID)
}

// Config returns the project's configuration. ErrUnauthorized unless the
// requesting user is the project admin; the same error is returned whether
// or not the project exists, so non-admins cannot probe for project ids.
func (p *ProjectMinter) Config(ctx context.Context, projectID, userID int64) (*models.ProjectConfig, error) {
	admin, err := p.store.Projects().IsAdmin(ctx, userID, projectID)
	if err != nil {
		return nil, fmt.Errorf("project config: %w", err)
	}
	if !admin {
		return nil, ErrUnauthorized
	}

	project, err := p.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("project config: %w", err)
	}
	if project == nil {
		return nil, ErrUnauthorized
	}
	return &models.ProjectConfig{
		Title:         project.Title,
		Public:        project.Public,
		ValidationRef: project.ValidationRef,
	}, nil
}

// UpdateConfig applies a partial update from the caller-supplied field set;
// only supplied keys are written. ErrNotFound when no project matched.
func (p *ProjectMinter) UpdateConfig(ctx context.Context, projectID int64, fields map[string]any) error {
	rows, err := p.store.Projects().UpdateConfig(ctx, projectID, fields)
	if err != nil {
		return fmt.Errorf("update project config: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateResource records an externally minted dataset/resource reference so
// expeditions can attach it. Duplicate prefixes are ErrDuplicateCode.
func (p *ProjectMinter) CreateResource(ctx context.Context, prefix, resourceType, webAddress string) (*models.Resource, error) {
	res := &models.Resource{
		Prefix:       prefix,
		ResourceType: resourceType,
		WebAddress:   webAddress,
		CreatedAt:    time.Now(),
	}
	if err := p.store.Resources().Create(ctx, res); err != nil {
		if storage.IsConstraintViolation(err) {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("create resource: %w", err)
	}
	return res, nil
}
