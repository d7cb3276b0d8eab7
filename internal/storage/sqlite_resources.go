package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/biscicol/bcid/internal/models"
)

type sqliteResourceRepo struct {
	db *sql.DB
}

func (r *sqliteResourceRepo) Create(ctx context.Context, res *models.Resource) error {
	query := `
		INSERT INTO resources (prefix, resource_type, web_address, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		res.Prefix, nullString(res.ResourceType), nullString(res.WebAddress),
		res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert resource id: %w", err)
	}
	res.ID = id
	return nil
}

func (r *sqliteResourceRepo) GetByID(ctx context.Context, id int64) (*models.Resource, error) {
	query := `
		SELECT id, prefix, resource_type, web_address, created_at
		FROM resources WHERE id = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteResourceRepo) GetByPrefix(ctx context.Context, prefix string) (*models.Resource, error) {
	query := `
		SELECT id, prefix, resource_type, web_address, created_at
		FROM resources WHERE prefix = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, prefix))
}

func (r *sqliteResourceRepo) scanOne(row *sql.Row) (*models.Resource, error) {
	res := &models.Resource{}
	var resourceType, webAddress sql.NullString
	err := row.Scan(&res.ID, &res.Prefix, &resourceType, &webAddress, &res.CreatedAt)
	if err == sql.ErrNoRows {
		//nolint:nilnil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	res.ResourceType = resourceType.String
	res.WebAddress = webAddress.String
	return res, nil
}
