package repositories

import (
	"context"
	"testing"
	"time"

	"rentdesk/internal/models"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageRepo_CountUsesFeatureTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	orgID := uuid.New()
	repo := NewUsageRepo(mock)

	tables := map[models.Feature]string{
		models.FeatureProperties:          "properties",
		models.FeatureTenants:             "tenants",
		models.FeatureDocuments:           "documents",
		models.FeatureMaintenanceRequests: "maintenance_requests",
	}
	for feature, table := range tables {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM ` + table + ` WHERE organization_id = \$1`).
			WithArgs(orgID).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

		count, err := repo.Count(context.Background(), orgID, feature)
		require.NoError(t, err, feature)
		assert.Equal(t, 3, count)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepo_CountRejectsUnknownFeature(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewUsageRepo(mock).Count(context.Background(), uuid.New(), "users; DROP TABLE organizations")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsageRepo_Snapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	orgID := uuid.New()
	mock.ExpectQuery(`FROM maintenance_requests WHERE organization_id = \$1`).
		WithArgs(orgID).
		WillReturnRows(pgxmock.NewRows([]string{"properties", "tenants", "documents", "maintenance_requests"}).AddRow(5, 12, 40, 0))

	snap, err := NewUsageRepo(mock).Snapshot(context.Background(), orgID)

	require.NoError(t, err)
	assert.Equal(t, map[models.Feature]int{
		models.FeatureProperties:          5,
		models.FeatureTenants:             12,
		models.FeatureDocuments:           40,
		models.FeatureMaintenanceRequests: 0,
	}, snap)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepo_CreateAndList(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	orgID := uuid.New()
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	repo := NewResourceRepo(mock)
	res := &models.Resource{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Feature:        models.FeatureDocuments,
		Name:           "Lease agreement",
		Details:        models.JSONB{"pages": float64(4)},
		CreatedAt:      now,
	}

	mock.ExpectExec(`INSERT INTO documents \(id, organization_id, name, details, created_at\)`).
		WithArgs(res.ID, orgID, res.Name, []byte(`{"pages":4}`), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, repo.Create(context.Background(), res))

	mock.ExpectQuery(`FROM documents WHERE organization_id = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs(orgID, 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "organization_id", "name", "details", "created_at"}).
			AddRow(res.ID, orgID, res.Name, []byte(`{"pages":4}`), now))

	list, err := repo.List(context.Background(), orgID, models.FeatureDocuments, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.FeatureDocuments, list[0].Feature)
	assert.Equal(t, res.Details, list[0].Details)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepo_DeleteMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	orgID, id := uuid.New(), uuid.New()
	mock.ExpectExec(`DELETE FROM properties WHERE organization_id = \$1 AND id = \$2`).
		WithArgs(orgID, id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = NewResourceRepo(mock).Delete(context.Background(), orgID, models.FeatureProperties, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
