package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/biscicol/bcid/internal/models"
)

type sqliteExpeditionRepo struct {
	db *sql.DB
}

// Insert writes the expedition row with its allocation token. The numeric id
// is assigned by the store; callers recover it with IDByToken. Constraint
// errors (duplicate code within the project) pass through unwrapped enough
// for IsConstraintViolation to classify them.
func (r *sqliteExpeditionRepo) Insert(ctx context.Context, exp *models.Expedition) error {
	query := `
		INSERT INTO expeditions (token, code, title, abstract, user_id, project_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		exp.Token, exp.Code, exp.Title, nullString(exp.Abstract),
		exp.UserID, exp.ProjectID, exp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert expedition: %w", err)
	}
	return nil
}

func (r *sqliteExpeditionRepo) IDByToken(ctx context.Context, token string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM expeditions WHERE token = ?", token,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("expedition id by token: %w", err)
	}
	return id, nil
}

func (r *sqliteExpeditionRepo) IDByCode(ctx context.Context, code string, projectID int64) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		"SELECT id FROM expeditions WHERE code = ? AND project_id = ?",
		code, projectID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("expedition id by code: %w", err)
	}
	return id, nil
}

func (r *sqliteExpeditionRepo) Exists(ctx context.Context, code string, projectID int64) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM expeditions WHERE code = ? AND project_id = ?",
		code, projectID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check expedition exists: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteExpeditionRepo) UserOwns(ctx context.Context, userID int64, code string, projectID int64) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM expeditions WHERE user_id = ? AND code = ? AND project_id = ?",
		userID, code, projectID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check expedition owner: %w", err)
	}
	return count > 0, nil
}

func (r *sqliteExpeditionRepo) Metadata(ctx context.Context, id int64) (*models.ExpeditionMetadata, error) {
	query := `
		SELECT e.id, e.code, e.title, e.abstract, u.username,
		       p.id, p.code, p.title, e.created_at
		FROM expeditions e
		INNER JOIN users u ON u.id = e.user_id
		INNER JOIN projects p ON p.id = e.project_id
		WHERE e.id = ?
	`
	md := &models.ExpeditionMetadata{}
	var abstract sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&md.ID, &md.Code, &md.Title, &abstract, &md.Username,
		&md.ProjectID, &md.ProjectCode, &md.ProjectTitle, &md.CreatedAt,
	)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get expedition metadata: %w", err)
	}
	md.Abstract = abstract.String
	return md, nil
}

func (r *sqliteExpeditionRepo) ListForUser(ctx context.Context, userID int64) ([]*models.ExpeditionMetadata, error) {
	query := `
		SELECT e.id, e.code, e.title, e.abstract, u.username,
		       p.id, p.code, p.title, e.created_at
		FROM expeditions e
		INNER JOIN users u ON u.id = e.user_id
		INNER JOIN projects p ON p.id = e.project_id
		WHERE e.user_id = ?
		ORDER BY e.id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list expeditions for user: %w", err)
	}
	defer rows.Close()

	var list []*models.ExpeditionMetadata
	for rows.Next() {
		md := &models.ExpeditionMetadata{}
		var abstract sql.NullString
		err := rows.Scan(
			&md.ID, &md.Code, &md.Title, &abstract, &md.Username,
			&md.ProjectID, &md.ProjectCode, &md.ProjectTitle, &md.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan expedition metadata: %w", err)
		}
		md.Abstract = abstract.String
		list = append(list, md)
	}
	return list, rows.Err()
}

func (r *sqliteExpeditionRepo) AttachResource(ctx context.Context, expeditionID, resourceID int64) error {
	query := `
		INSERT INTO expedition_resources (expedition_id, resource_id)
		VALUES (?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, expeditionID, resourceID)
	if err != nil {
		return fmt.Errorf("attach resource to expedition: %w", err)
	}
	return nil
}

func (r *sqliteExpeditionRepo) Resources(ctx context.Context, expeditionID int64) ([]*models.Resource, error) {
	query := `
		SELECT r.id, r.prefix, r.resource_type, r.web_address, r.created_at
		FROM resources r
		INNER JOIN expedition_resources er ON r.id = er.resource_id
		WHERE er.expedition_id = ?
		ORDER BY r.id
	`
	rows, err := r.db.QueryContext(ctx, query, expeditionID)
	if err != nil {
		return nil, fmt.Errorf("get expedition resources: %w", err)
	}
	defer rows.Close()

	var resources []*models.Resource
	for rows.Next() {
		res := &models.Resource{}
		var resourceType, webAddress sql.NullString
		err := rows.Scan(&res.ID, &res.Prefix, &resourceType, &webAddress, &res.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		res.ResourceType = resourceType.String
		res.WebAddress = webAddress.String
		resources = append(resources, res)
	}
	return resources, rows.Err()
}
