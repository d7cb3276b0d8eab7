package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/biscicol/bcid/internal/models"
)

type sqliteProjectRepo struct {
	db *sql.DB
}

func (r *sqliteProjectRepo) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (code, title, public, user_id, validation_ref, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		project.Code, project.Title, project.Public, project.UserID,
		nullString(project.ValidationRef), project.CreatedAt, project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert project id: %w", err)
	}
	project.ID = id
	return nil
}

func (r *sqliteProjectRepo) GetByID(ctx context.Context, id int64) (*models.Project, error) {
	query := `
		SELECT id, code, title, public, user_id, validation_ref, created_at, updated_at
		FROM projects WHERE id = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteProjectRepo) GetByCode(ctx context.Context, code string) (*models.Project, error) {
	query := `
		SELECT id, code, title, public, user_id, validation_ref, created_at, updated_at
		FROM projects WHERE code = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, code))
}

func (r *sqliteProjectRepo) scanOne(row *sql.Row) (*models.Project, error) {
	project := &models.Project{}
	var validationRef sql.NullString
	err := row.Scan(
		&project.ID, &project.Code, &project.Title, &project.Public,
		&project.UserID, &validationRef, &project.CreatedAt, &project.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	project.ValidationRef = validationRef.String
	return project, nil
}

func (r *sqliteProjectRepo) ListVisible(ctx context.Context, userID *int64) ([]*models.Project, error) {
	query := `
		SELECT id, code, title, public, user_id, validation_ref, created_at, updated_at
		FROM projects WHERE public = 1
	`
	args := []any{}
	if userID != nil {
		query += `
		UNION
		SELECT p.id, p.code, p.title, p.public, p.user_id, p.validation_ref, p.created_at, p.updated_at
		FROM projects p
		INNER JOIN project_users pu ON p.id = pu.project_id
		WHERE pu.user_id = ?
		`
		args = append(args, *userID)
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list visible projects: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *sqliteProjectRepo) ListAll(ctx context.Context) ([]*models.Project, error) {
	query := `
		SELECT id, code, title, public, user_id, validation_ref, created_at, updated_at
		FROM projects ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all projects: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *sqliteProjectRepo) ListAdmin(ctx context.Context, userID int64) ([]*models.Project, error) {
	query := `
		SELECT id, code, title, public, user_id, validation_ref, created_at, updated_at
		FROM projects WHERE user_id = ? ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list admin projects: %w", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *sqliteProjectRepo) scanMany(rows *sql.Rows) ([]*models.Project, error) {
	var projects []*models.Project
	for rows.Next() {
		project := &models.Project{}
		var validationRef sql.NullString
		err := rows.Scan(
			&project.ID, &project.Code, &project.Title, &project.Public,
			&project.UserID, &validationRef, &project.CreatedAt, &project.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		project.ValidationRef = validationRef.String
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func (r *sqliteProjectRepo) AddMember(ctx context.Context, projectID, userID int64) error {
	query := `
		INSERT OR IGNORE INTO project_users (project_id, user_id)
		VALUES (?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, projectID, userID)
	if err != nil {
		return fmt.Errorf("add member to project: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) RemoveMember(ctx context.Context, projectID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM project_users WHERE project_id = ? AND user_id = ?",
		projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("remove member from project: %w", err)
	}
	return nil
}

func (r *sqliteProjectRepo) IsMember(ctx context.Context, userID, projectID int64) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM project_users WHERE user_id = ? AND project_id = ?",
		userID, projectID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteProjectRepo) IsAdmin(ctx context.Context, userID, projectID int64) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM projects WHERE user_id = ? AND id = ?",
		userID, projectID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check project admin: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteProjectRepo) Members(ctx context.Context, projectID int64) ([]*models.ProjectMember, error) {
	query := `
		SELECT pu.project_id, u.id, u.username, u.email
		FROM users u
		INNER JOIN project_users pu ON u.id = pu.user_id
		WHERE pu.project_id = ?
		ORDER BY u.username
	`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("get project members: %w", err)
	}
	defer rows.Close()

	var members []*models.ProjectMember
	for rows.Next() {
		member := &models.ProjectMember{}
		err := rows.Scan(&member.ProjectID, &member.UserID, &member.Username, &member.Email)
		if err != nil {
			return nil, fmt.Errorf("scan project member: %w", err)
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// configColumns maps updatable config keys to their column names. Keys not
// in this map are rejected so callers can never steer the UPDATE elsewhere.
var configColumns = map[string]string{
	"title":          "title",
	"public":         "public",
	"validation_ref": "validation_ref",
}

func (r *sqliteProjectRepo) UpdateConfig(ctx context.Context, projectID int64, fields map[string]any) (int64, error) {
	if len(fields) == 0 {
		return 0, fmt.Errorf("update project config: no fields supplied")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := configColumns[k]; !ok {
			return 0, fmt.Errorf("update project config: unknown field %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Build the SET clause from the whitelisted keys; values stay bound.
	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+2)
	for _, k := range keys {
		sets = append(sets, configColumns[k]+" = ?")
		args = append(args, fields[k])
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now(), projectID)

	query := "UPDATE projects SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update project config: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update project config rows: %w", err)
	}
	return rows, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
