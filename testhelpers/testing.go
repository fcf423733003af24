//go:build integration

package testhelpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"rentdesk/internal/models"
	"rentdesk/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	DSN     string
	Cleanup func()
}

// SetupTestDB starts a disposable Postgres, applies migrations and returns a pool.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("rentdesk_test"),
		postgres.WithUsername("rentdesk"),
		postgres.WithPassword("rentdesk"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, database.Migrate(dsn))

	pool, err := database.NewPool(ctx, dsn, 20)
	require.NoError(t, err)

	return &TestDB{
		Pool: pool,
		DSN:  dsn,
		Cleanup: func() {
			pool.Close()
			if err := pgContainer.Terminate(context.Background()); err != nil {
				t.Logf("failed to terminate container: %s", err)
			}
		},
	}
}

// SetupTestOrganization inserts an organization on plan with status.
func SetupTestOrganization(t *testing.T, db *TestDB, plan string, status models.SubscriptionStatus) uuid.UUID {
	t.Helper()

	orgID := uuid.New()
	renewal := time.Now().UTC().AddDate(0, 1, 0)
	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO organizations (id, name, contact_email, subscription_status, subscription_plan,
			billing_cycle, next_renewal_date, status_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'monthly', $6, NOW(), NOW(), NOW())
	`, orgID, "Test Organization "+orgID.String()[:8], "owner-"+orgID.String()[:8]+"@example.com", string(status), plan, renewal)
	require.NoError(t, err, "create test organization")

	return orgID
}

// SeedResources inserts n rows of the feature's table for the organization.
func SeedResources(t *testing.T, db *TestDB, orgID uuid.UUID, table string, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		_, err := db.Pool.Exec(context.Background(),
			fmt.Sprintf(`INSERT INTO %s (id, organization_id, name, created_at) VALUES ($1, $2, $3, NOW())`, table),
			uuid.New(), orgID, fmt.Sprintf("seed-%d", i))
		require.NoError(t, err, "seed %s", table)
	}
}

// SetupTestAdmin inserts a platform admin and returns its id.
func SetupTestAdmin(t *testing.T, db *TestDB) uuid.UUID {
	t.Helper()

	adminID := uuid.New()
	_, err := db.Pool.Exec(context.Background(), `
		INSERT INTO users (id, email, password_hash, full_name, role, created_at, updated_at)
		VALUES ($1, $2, 'x', 'Platform Admin', 'admin', NOW(), NOW())
	`, adminID, "admin-"+adminID.String()[:8]+"@example.com")
	require.NoError(t, err, "create test admin")

	return adminID
}

func StringPtr(s string) *string {
	return &s
}
