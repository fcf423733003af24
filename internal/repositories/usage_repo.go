package repositories

import (
	"context"
	"fmt"

	"rentdesk/internal/models"

	"github.com/google/uuid"
)

// featureTables maps each gated feature to the table its rows live in.
var featureTables = map[models.Feature]string{
	models.FeatureProperties:          "properties",
	models.FeatureTenants:             "tenants",
	models.FeatureDocuments:           "documents",
	models.FeatureMaintenanceRequests: "maintenance_requests",
}

func tableFor(feature models.Feature) (string, error) {
	table, ok := featureTables[feature]
	if !ok {
		return "", fmt.Errorf("unknown feature %q", feature)
	}
	return table, nil
}

// UsageRepository counts live rows per feature. Results are never cached.
type UsageRepository interface {
	Count(ctx context.Context, organizationID uuid.UUID, feature models.Feature) (int, error)
	// Snapshot counts every gated feature in one round trip.
	Snapshot(ctx context.Context, organizationID uuid.UUID) (map[models.Feature]int, error)
}

type usageRepo struct {
	db DBTX
}

func NewUsageRepo(db DBTX) UsageRepository {
	return &usageRepo{db: db}
}

func (r *usageRepo) Count(ctx context.Context, organizationID uuid.UUID, feature models.Feature) (int, error) {
	table, err := tableFor(feature)
	if err != nil {
		return 0, err
	}

	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE organization_id = $1`, table)
	if err := r.db.QueryRow(ctx, query, organizationID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *usageRepo) Snapshot(ctx context.Context, organizationID uuid.UUID) (map[models.Feature]int, error) {
	query := `SELECT
		(SELECT COUNT(*) FROM properties WHERE organization_id = $1),
		(SELECT COUNT(*) FROM tenants WHERE organization_id = $1),
		(SELECT COUNT(*) FROM documents WHERE organization_id = $1),
		(SELECT COUNT(*) FROM maintenance_requests WHERE organization_id = $1)`

	var properties, tenants, documents, maintenance int
	if err := r.db.QueryRow(ctx, query, organizationID).Scan(&properties, &tenants, &documents, &maintenance); err != nil {
		return nil, err
	}
	return map[models.Feature]int{
		models.FeatureProperties:          properties,
		models.FeatureTenants:             tenants,
		models.FeatureDocuments:           documents,
		models.FeatureMaintenanceRequests: maintenance,
	}, nil
}
