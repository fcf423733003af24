package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rentdesk/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	// GetByIDForUpdate locks the organization row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	List(ctx context.Context, filters *models.OrganizationFilters) ([]*models.Organization, error)
	// UpdateSubscription writes the subscription fields only if the row is still in expected.
	UpdateSubscription(ctx context.Context, org *models.Organization, expected models.SubscriptionStatus) error
	// ListLapsed returns trials past their end date, active subscriptions past renewal
	// and overdue subscriptions that have been overdue since before overdueCutoff.
	ListLapsed(ctx context.Context, now, overdueCutoff time.Time, limit int) ([]*models.Organization, error)
	BillingRows(ctx context.Context) ([]models.OrganizationBillingRow, error)
}

type organizationRepo struct {
	db DBTX
}

func NewOrganizationRepo(db DBTX) OrganizationRepository {
	return &organizationRepo{db: db}
}

const organizationColumns = `id, name, contact_email, contact_phone, subscription_status, subscription_plan, billing_cycle,
		trial_end_date, next_renewal_date, status_before_suspension, status_changed_at, created_at, updated_at`

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	org := &models.Organization{}
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.ContactEmail,
		&org.ContactPhone,
		&org.SubscriptionStatus,
		&org.SubscriptionPlan,
		&org.BillingCycle,
		&org.TrialEndDate,
		&org.NextRenewalDate,
		&org.StatusBeforeSuspension,
		&org.StatusChangedAt,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return org, nil
}

func (r *organizationRepo) Create(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (id, name, contact_email, contact_phone, subscription_status, subscription_plan, billing_cycle,
			trial_end_date, next_renewal_date, status_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, org.ID, org.Name, org.ContactEmail, org.ContactPhone, org.SubscriptionStatus,
		org.SubscriptionPlan, org.BillingCycle, org.TrialEndDate, org.NextRenewalDate, org.StatusChangedAt)
	return err
}

func (r *organizationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`
	org, err := scanOrganization(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return org, nil
}

func (r *organizationRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1 FOR UPDATE`
	org, err := scanOrganization(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return org, nil
}

func (r *organizationRepo) List(ctx context.Context, filters *models.OrganizationFilters) ([]*models.Organization, error) {
	if filters == nil {
		filters = &models.OrganizationFilters{}
	}

	var (
		where []string
		args  []interface{}
	)
	if filters.Status != nil {
		args = append(args, *filters.Status)
		where = append(where, fmt.Sprintf("subscription_status = $%d", len(args)))
	}
	if filters.Plan != nil {
		args = append(args, *filters.Plan)
		where = append(where, fmt.Sprintf("subscription_plan = $%d", len(args)))
	}

	query := `SELECT ` + organizationColumns + ` FROM organizations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filters.Limit, filters.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (r *organizationRepo) UpdateSubscription(ctx context.Context, org *models.Organization, expected models.SubscriptionStatus) error {
	query := `
		UPDATE organizations
		SET subscription_status = $1, subscription_plan = $2, billing_cycle = $3, trial_end_date = $4,
			next_renewal_date = $5, status_before_suspension = $6, status_changed_at = $7, updated_at = NOW()
		WHERE id = $8 AND subscription_status = $9
	`
	tag, err := r.db.Exec(ctx, query, org.SubscriptionStatus, org.SubscriptionPlan, org.BillingCycle, org.TrialEndDate,
		org.NextRenewalDate, org.StatusBeforeSuspension, org.StatusChangedAt, org.ID, expected)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *organizationRepo) ListLapsed(ctx context.Context, now, overdueCutoff time.Time, limit int) ([]*models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations
		WHERE (subscription_status = 'trial' AND trial_end_date < $1)
			OR (subscription_status = 'active' AND next_renewal_date < $1)
			OR (subscription_status = 'overdue' AND status_changed_at < $2)
		ORDER BY status_changed_at
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, now, overdueCutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (r *organizationRepo) BillingRows(ctx context.Context) ([]models.OrganizationBillingRow, error) {
	query := `SELECT subscription_status, subscription_plan, billing_cycle, created_at, status_changed_at FROM organizations`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.OrganizationBillingRow
	for rows.Next() {
		var row models.OrganizationBillingRow
		if err := rows.Scan(&row.Status, &row.Plan, &row.Cycle, &row.CreatedAt, &row.StatusChangedAt); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
