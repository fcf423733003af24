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

// SubscriptionRequestFilters narrows request listings.
type SubscriptionRequestFilters struct {
	Status         *models.RequestStatus
	OrganizationID *uuid.UUID
	Limit          int
	Offset         int
}

type SubscriptionRequestRepository interface {
	Create(ctx context.Context, req *models.SubscriptionRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionRequest, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.SubscriptionRequest, error)
	GetPendingByOrganization(ctx context.Context, organizationID uuid.UUID) (*models.SubscriptionRequest, error)
	List(ctx context.Context, filters *SubscriptionRequestFilters) ([]*models.SubscriptionRequest, error)
	// MarkReviewed moves a pending request to a terminal status. It returns
	// ErrStaleState when the request is no longer pending.
	MarkReviewed(ctx context.Context, id uuid.UUID, status models.RequestStatus, reviewer uuid.UUID, reason *string, at time.Time) error
	CountByStatus(ctx context.Context, status models.RequestStatus) (int, error)
	// ReceiptInUse reports whether any request references the receipt object.
	ReceiptInUse(ctx context.Context, key string) (bool, error)
}

type subscriptionRequestRepo struct {
	db DBTX
}

func NewSubscriptionRequestRepo(db DBTX) SubscriptionRequestRepository {
	return &subscriptionRequestRepo{db: db}
}

const subscriptionRequestColumns = `id, organization_id, plan_id, kind, amount, currency, billing_cycle, payment_method,
		receipt_key, receipt_sha256, receipt_content_type, status, rejection_reason, reviewed_by, reviewed_at, created_at, updated_at`

func scanSubscriptionRequest(row pgx.Row) (*models.SubscriptionRequest, error) {
	req := &models.SubscriptionRequest{}
	err := row.Scan(
		&req.ID,
		&req.OrganizationID,
		&req.PlanID,
		&req.Kind,
		&req.Amount,
		&req.Currency,
		&req.BillingCycle,
		&req.PaymentMethod,
		&req.ReceiptKey,
		&req.ReceiptSHA256,
		&req.ReceiptContentType,
		&req.Status,
		&req.RejectionReason,
		&req.ReviewedBy,
		&req.ReviewedAt,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *subscriptionRequestRepo) Create(ctx context.Context, req *models.SubscriptionRequest) error {
	query := `
		INSERT INTO subscription_requests (id, organization_id, plan_id, kind, amount, currency, billing_cycle, payment_method,
			receipt_key, receipt_sha256, receipt_content_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, req.ID, req.OrganizationID, req.PlanID, req.Kind, req.Amount, req.Currency,
		req.BillingCycle, req.PaymentMethod, req.ReceiptKey, req.ReceiptSHA256, req.ReceiptContentType, req.Status)
	if isUniqueViolation(err) {
		return ErrDuplicatePending
	}
	return err
}

func (r *subscriptionRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionRequest, error) {
	query := `SELECT ` + subscriptionRequestColumns + ` FROM subscription_requests WHERE id = $1`
	req, err := scanSubscriptionRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return req, nil
}

func (r *subscriptionRequestRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.SubscriptionRequest, error) {
	query := `SELECT ` + subscriptionRequestColumns + ` FROM subscription_requests WHERE id = $1 FOR UPDATE`
	req, err := scanSubscriptionRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return req, nil
}

func (r *subscriptionRequestRepo) GetPendingByOrganization(ctx context.Context, organizationID uuid.UUID) (*models.SubscriptionRequest, error) {
	query := `SELECT ` + subscriptionRequestColumns + ` FROM subscription_requests
		WHERE organization_id = $1 AND status = 'pending_verification'`
	req, err := scanSubscriptionRequest(r.db.QueryRow(ctx, query, organizationID))
	if err != nil {
		return nil, notFound(err)
	}
	return req, nil
}

func (r *subscriptionRequestRepo) List(ctx context.Context, filters *SubscriptionRequestFilters) ([]*models.SubscriptionRequest, error) {
	if filters == nil {
		filters = &SubscriptionRequestFilters{}
	}

	var (
		where []string
		args  []interface{}
	)
	if filters.Status != nil {
		args = append(args, *filters.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.OrganizationID != nil {
		args = append(args, *filters.OrganizationID)
		where = append(where, fmt.Sprintf("organization_id = $%d", len(args)))
	}

	query := `SELECT ` + subscriptionRequestColumns + ` FROM subscription_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filters.Limit, filters.Offset)
	query += fmt.Sprintf(" ORDER BY created_at ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*models.SubscriptionRequest
	for rows.Next() {
		req, err := scanSubscriptionRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (r *subscriptionRequestRepo) MarkReviewed(ctx context.Context, id uuid.UUID, status models.RequestStatus, reviewer uuid.UUID, reason *string, at time.Time) error {
	query := `
		UPDATE subscription_requests
		SET status = $1, reviewed_by = $2, rejection_reason = $3, reviewed_at = $4, updated_at = NOW()
		WHERE id = $5 AND status = 'pending_verification'
	`
	tag, err := r.db.Exec(ctx, query, status, reviewer, reason, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

func (r *subscriptionRequestRepo) CountByStatus(ctx context.Context, status models.RequestStatus) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM subscription_requests WHERE status = $1`, status).Scan(&count)
	return count, err
}

func (r *subscriptionRequestRepo) ReceiptInUse(ctx context.Context, key string) (bool, error) {
	var used bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM subscription_requests WHERE receipt_key = $1)`, key).Scan(&used)
	return used, err
}
