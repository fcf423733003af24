package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"rentdesk/internal/common"
	"rentdesk/internal/models"
	"rentdesk/internal/repositories"
	"rentdesk/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSubscriptionService struct {
	mock.Mock
}

func (m *MockSubscriptionService) StartTrial(org *models.Organization) {
	m.Called(org)
}

func (m *MockSubscriptionService) GetStatus(ctx context.Context, orgID uuid.UUID) (*models.SubscriptionStatusView, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionStatusView), args.Error(1)
}

func (m *MockSubscriptionService) SubmitRequest(ctx context.Context, orgID, actorID uuid.UUID, input services.SubmitRequestInput) (*models.SubscriptionRequest, error) {
	args := m.Called(ctx, orgID, actorID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionRequest), args.Error(1)
}

func (m *MockSubscriptionService) ListRequests(ctx context.Context, filters *repositories.SubscriptionRequestFilters) ([]*models.SubscriptionRequest, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SubscriptionRequest), args.Error(1)
}

func (m *MockSubscriptionService) GetRequest(ctx context.Context, id uuid.UUID) (*models.SubscriptionRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionRequest), args.Error(1)
}

func (m *MockSubscriptionService) ReceiptURL(ctx context.Context, id uuid.UUID) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockSubscriptionService) Verify(ctx context.Context, requestID, adminID uuid.UUID, action models.VerificationAction, reason string) (*models.SubscriptionRequest, error) {
	args := m.Called(ctx, requestID, adminID, action, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionRequest), args.Error(1)
}

func (m *MockSubscriptionService) Cancel(ctx context.Context, orgID, actorID uuid.UUID, reason *string) (*models.Organization, error) {
	args := m.Called(ctx, orgID, actorID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockSubscriptionService) AdvanceLifecycle(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockPlanLimitService struct {
	mock.Mock
}

func (m *MockPlanLimitService) CreateWithinLimit(ctx context.Context, orgID uuid.UUID, feature models.Feature, create func(r *repositories.Repos) error) error {
	args := m.Called(ctx, orgID, feature, create)
	return args.Error(0)
}

func (m *MockPlanLimitService) Check(ctx context.Context, orgID uuid.UUID, feature models.Feature) (*models.UsageSnapshot, error) {
	args := m.Called(ctx, orgID, feature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UsageSnapshot), args.Error(1)
}

func (m *MockPlanLimitService) Usage(ctx context.Context, orgID uuid.UUID) ([]models.UsageSnapshot, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.UsageSnapshot), args.Error(1)
}

type MockResourceService struct {
	mock.Mock
}

func (m *MockResourceService) Create(ctx context.Context, orgID uuid.UUID, feature models.Feature, name string, details models.JSONB) (*models.Resource, error) {
	args := m.Called(ctx, orgID, feature, name, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Resource), args.Error(1)
}

func (m *MockResourceService) List(ctx context.Context, orgID uuid.UUID, feature models.Feature, limit, offset int) ([]*models.Resource, error) {
	args := m.Called(ctx, orgID, feature, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Resource), args.Error(1)
}

func (m *MockResourceService) Delete(ctx context.Context, orgID uuid.UUID, feature models.Feature, id uuid.UUID) error {
	args := m.Called(ctx, orgID, feature, id)
	return args.Error(0)
}

type MockOrganizationAdminService struct {
	mock.Mock
}

func (m *MockOrganizationAdminService) CreateOrganization(ctx context.Context, input services.CreateOrganizationInput, actorID *uuid.UUID) (*models.Organization, *models.User, error) {
	args := m.Called(ctx, input, actorID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.Organization), args.Get(1).(*models.User), args.Error(2)
}

func (m *MockOrganizationAdminService) ListOrganizations(ctx context.Context, filters *models.OrganizationFilters) ([]*models.Organization, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Organization), args.Error(1)
}

func (m *MockOrganizationAdminService) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationAdminService) ToggleStatus(ctx context.Context, orgID, adminID uuid.UUID, action string, reason *string) (*models.Organization, error) {
	args := m.Called(ctx, orgID, adminID, action, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationAdminService) Suspend(ctx context.Context, orgID, adminID uuid.UUID, reason *string) (*models.Organization, error) {
	args := m.Called(ctx, orgID, adminID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationAdminService) Reactivate(ctx context.Context, orgID, adminID uuid.UUID, reason *string) (*models.Organization, error) {
	args := m.Called(ctx, orgID, adminID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Organization), args.Error(1)
}

func (m *MockOrganizationAdminService) ResetPassword(ctx context.Context, userID uuid.UUID, newPassword string, adminID uuid.UUID) error {
	args := m.Called(ctx, userID, newPassword, adminID)
	return args.Error(0)
}

func (m *MockOrganizationAdminService) Impersonate(ctx context.Context, userID, adminID uuid.UUID) (*models.TokenResponse, error) {
	args := m.Called(ctx, userID, adminID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenResponse), args.Error(1)
}

type MockBillingOverviewService struct {
	mock.Mock
}

func (m *MockBillingOverviewService) Overview(ctx context.Context) (*models.BillingOverview, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BillingOverview), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Signup(ctx context.Context, input services.SignupInput) (*models.TokenResponse, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenResponse), args.Error(1)
}

func (m *MockAuthService) Login(ctx context.Context, email, password string) (*models.TokenResponse, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenResponse), args.Error(1)
}

func (m *MockAuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	args := m.Called(ctx, email, password)
	return args.Error(0)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewRequestValidator()
	return e
}

// newContext builds an echo context for req, carrying the caller's identity
// the way the JWT middleware would.
func newContext(e *echo.Echo, req *http.Request, userID uuid.UUID, orgID *uuid.UUID, role models.Role) (echo.Context, *httptest.ResponseRecorder) {
	if userID != uuid.Nil {
		req = req.WithContext(common.WithIdentity(req.Context(), userID, orgID, string(role), nil))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeError(t *testing.T, body io.Reader) common.ErrorResponse {
	t.Helper()
	var resp common.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}
