package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"rentdesk/internal/models"

	"github.com/google/uuid"
)

type ResourceRepository interface {
	Create(ctx context.Context, resource *models.Resource) error
	List(ctx context.Context, organizationID uuid.UUID, feature models.Feature, limit, offset int) ([]*models.Resource, error)
	Delete(ctx context.Context, organizationID uuid.UUID, feature models.Feature, id uuid.UUID) error
}

type resourceRepo struct {
	db DBTX
}

func NewResourceRepo(db DBTX) ResourceRepository {
	return &resourceRepo{db: db}
}

func (r *resourceRepo) Create(ctx context.Context, resource *models.Resource) error {
	table, err := tableFor(resource.Feature)
	if err != nil {
		return err
	}

	var details []byte
	if resource.Details != nil {
		details, err = json.Marshal(resource.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, organization_id, name, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, table)
	_, err = r.db.Exec(ctx, query, resource.ID, resource.OrganizationID, resource.Name, details, resource.CreatedAt)
	return err
}

func (r *resourceRepo) List(ctx context.Context, organizationID uuid.UUID, feature models.Feature, limit, offset int) ([]*models.Resource, error) {
	table, err := tableFor(feature)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, organization_id, name, details, created_at
		FROM %s
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, table)
	rows, err := r.db.Query(ctx, query, organizationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resources []*models.Resource
	for rows.Next() {
		res := &models.Resource{Feature: feature}
		var details []byte
		if err := rows.Scan(&res.ID, &res.OrganizationID, &res.Name, &details, &res.CreatedAt); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &res.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details: %w", err)
			}
		}
		resources = append(resources, res)
	}
	return resources, rows.Err()
}

func (r *resourceRepo) Delete(ctx context.Context, organizationID uuid.UUID, feature models.Feature, id uuid.UUID) error {
	table, err := tableFor(feature)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE organization_id = $1 AND id = $2`, table)
	tag, err := r.db.Exec(ctx, query, organizationID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
