package repositories

import (
	"context"
	"testing"
	"time"

	"rentdesk/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var subscriptionRequestColumnNames = []string{
	"id", "organization_id", "plan_id", "kind", "amount", "currency", "billing_cycle", "payment_method",
	"receipt_key", "receipt_sha256", "receipt_content_type", "status", "rejection_reason", "reviewed_by", "reviewed_at",
	"created_at", "updated_at",
}

type SubscriptionRequestRepoTestSuite struct {
	suite.Suite
	mock      pgxmock.PgxPoolIface
	repo      SubscriptionRequestRepository
	orgID     uuid.UUID
	requestID uuid.UUID
	now       time.Time
	context   context.Context
}

func (suite *SubscriptionRequestRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(suite.T(), err)
	suite.mock = mock

	suite.repo = NewSubscriptionRequestRepo(mock)
	suite.orgID = uuid.New()
	suite.requestID = uuid.New()
	suite.now = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	suite.context = context.Background()
}

func (suite *SubscriptionRequestRepoTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
	suite.mock.Close()
}

func TestSubscriptionRequestRepoTestSuite(t *testing.T) {
	suite.Run(t, new(SubscriptionRequestRepoTestSuite))
}

func (suite *SubscriptionRequestRepoTestSuite) request() *models.SubscriptionRequest {
	return &models.SubscriptionRequest{
		ID:                 suite.requestID,
		OrganizationID:     suite.orgID,
		PlanID:             "professional",
		Kind:               models.KindUpgrade,
		Amount:             1500,
		Currency:           "ETB",
		BillingCycle:       models.CycleMonthly,
		PaymentMethod:      models.PaymentTelebirr,
		ReceiptKey:         "receipts/org/abc.png",
		ReceiptSHA256:      "abc",
		ReceiptContentType: "image/png",
		Status:             models.RequestPending,
	}
}

func (suite *SubscriptionRequestRepoTestSuite) requestRows(status models.RequestStatus) *pgxmock.Rows {
	r := suite.request()
	return pgxmock.NewRows(subscriptionRequestColumnNames).AddRow(
		r.ID, r.OrganizationID, r.PlanID, r.Kind, r.Amount, r.Currency, r.BillingCycle, r.PaymentMethod,
		r.ReceiptKey, r.ReceiptSHA256, r.ReceiptContentType, status, (*string)(nil), (*uuid.UUID)(nil), (*time.Time)(nil),
		suite.now, suite.now,
	)
}

func (suite *SubscriptionRequestRepoTestSuite) expectInsert(r *models.SubscriptionRequest) *pgxmock.ExpectedExec {
	return suite.mock.ExpectExec(`INSERT INTO subscription_requests`).
		WithArgs(r.ID, r.OrganizationID, r.PlanID, r.Kind, r.Amount, r.Currency, r.BillingCycle, r.PaymentMethod,
			r.ReceiptKey, r.ReceiptSHA256, r.ReceiptContentType, r.Status)
}

func (suite *SubscriptionRequestRepoTestSuite) TestCreate() {
	r := suite.request()
	suite.expectInsert(r).WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(suite.T(), suite.repo.Create(suite.context, r))
}

func (suite *SubscriptionRequestRepoTestSuite) TestCreate_SecondPendingHitsUniqueIndex() {
	r := suite.request()
	suite.expectInsert(r).WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "subscription_requests_one_pending_idx"})

	err := suite.repo.Create(suite.context, r)
	assert.ErrorIs(suite.T(), err, ErrDuplicatePending)
}

func (suite *SubscriptionRequestRepoTestSuite) TestGetByIDForUpdate() {
	suite.mock.ExpectQuery(`FROM subscription_requests WHERE id = \$1 FOR UPDATE`).
		WithArgs(suite.requestID).
		WillReturnRows(suite.requestRows(models.RequestPending))

	req, err := suite.repo.GetByIDForUpdate(suite.context, suite.requestID)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.RequestPending, req.Status)
	assert.Equal(suite.T(), models.KindUpgrade, req.Kind)
	assert.Nil(suite.T(), req.ReviewedBy)
}

func (suite *SubscriptionRequestRepoTestSuite) TestGetPendingByOrganization_None() {
	suite.mock.ExpectQuery(`WHERE organization_id = \$1 AND status = 'pending_verification'`).
		WithArgs(suite.orgID).
		WillReturnError(pgx.ErrNoRows)

	_, err := suite.repo.GetPendingByOrganization(suite.context, suite.orgID)
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func (suite *SubscriptionRequestRepoTestSuite) TestList_ByStatus() {
	status := models.RequestPending
	suite.mock.ExpectQuery(`FROM subscription_requests WHERE status = \$1 ORDER BY created_at ASC LIMIT \$2 OFFSET \$3`).
		WithArgs(status, 50, 0).
		WillReturnRows(suite.requestRows(models.RequestPending))

	list, err := suite.repo.List(suite.context, &SubscriptionRequestFilters{Status: &status, Limit: 50})

	require.NoError(suite.T(), err)
	assert.Len(suite.T(), list, 1)
}

func (suite *SubscriptionRequestRepoTestSuite) TestMarkReviewed_OnlyFromPending() {
	reviewer := uuid.New()
	reason := "blurry receipt"

	suite.mock.ExpectExec(`UPDATE subscription_requests .* WHERE id = \$5 AND status = 'pending_verification'`).
		WithArgs(models.RequestRejected, reviewer, &reason, suite.now, suite.requestID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	assert.NoError(suite.T(), suite.repo.MarkReviewed(suite.context, suite.requestID, models.RequestRejected, reviewer, &reason, suite.now))
}

func (suite *SubscriptionRequestRepoTestSuite) TestMarkReviewed_AlreadyReviewed() {
	reviewer := uuid.New()

	suite.mock.ExpectExec(`UPDATE subscription_requests`).
		WithArgs(models.RequestApproved, reviewer, (*string)(nil), suite.now, suite.requestID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := suite.repo.MarkReviewed(suite.context, suite.requestID, models.RequestApproved, reviewer, nil, suite.now)
	assert.ErrorIs(suite.T(), err, ErrStaleState)
}

func (suite *SubscriptionRequestRepoTestSuite) TestCountByStatus() {
	suite.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM subscription_requests WHERE status = \$1`).
		WithArgs(models.RequestPending).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	count, err := suite.repo.CountByStatus(suite.context, models.RequestPending)

	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 7, count)
}

func (suite *SubscriptionRequestRepoTestSuite) TestReceiptInUse() {
	suite.mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM subscription_requests WHERE receipt_key = \$1\)`).
		WithArgs("receipts/org/abc.png").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	used, err := suite.repo.ReceiptInUse(suite.context, "receipts/org/abc.png")

	require.NoError(suite.T(), err)
	assert.True(suite.T(), used)
}
