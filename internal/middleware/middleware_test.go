package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"rentdesk/internal/common"
	"rentdesk/internal/models"
	"rentdesk/internal/repositories"
	"rentdesk/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type identity struct {
	userID         uuid.UUID
	orgID          *uuid.UUID
	role           models.Role
	impersonatedBy *uuid.UUID
}

// withIdentity stands in for the JWT middleware.
func withIdentity(id identity) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := common.WithIdentity(c.Request().Context(), id.userID, id.orgID, string(id.role), id.impersonatedBy)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func serve(e *echo.Echo, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type orgLookup struct {
	orgs map[uuid.UUID]*models.Organization
	err  error
}

func (l *orgLookup) GetByID(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	if l.err != nil {
		return nil, l.err
	}
	org, ok := l.orgs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return org, nil
}

func TestSubscriptionGate(t *testing.T) {
	exempt := []string{"/v1/subscription/status", "/v1/subscription/upgrade"}

	tests := []struct {
		name   string
		status models.SubscriptionStatus
		path   string
		want   int
		code   string
	}{
		{"active passes", models.StatusActive, "/v1/properties", http.StatusOK, ""},
		{"trial passes", models.StatusTrial, "/v1/properties", http.StatusOK, ""},
		{"overdue blocked", models.StatusOverdue, "/v1/properties", http.StatusPaymentRequired, "SUBSCRIPTION_OVERDUE"},
		{"overdue may check status", models.StatusOverdue, "/v1/subscription/status", http.StatusOK, ""},
		{"overdue may pay", models.StatusOverdue, "/v1/subscription/upgrade", http.StatusOK, ""},
		{"suspended blocked", models.StatusSuspended, "/v1/tenants", http.StatusForbidden, "ORGANIZATION_SUSPENDED"},
		{"cancelled blocked", models.StatusCancelled, "/v1/documents", http.StatusForbidden, "SUBSCRIPTION_CANCELLED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orgID := uuid.New()
			lookup := &orgLookup{orgs: map[uuid.UUID]*models.Organization{
				orgID: {ID: orgID, SubscriptionStatus: tt.status},
			}}

			e := echo.New()
			g := e.Group("", withIdentity(identity{userID: uuid.New(), orgID: &orgID, role: models.RoleLandlord}), SubscriptionGate(lookup, exempt...))
			g.GET(tt.path, okHandler)

			rec := serve(e, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.want, rec.Code)
			if tt.code != "" {
				assert.Contains(t, rec.Body.String(), tt.code)
			}
		})
	}
}

func TestSubscriptionGate_LookupFailures(t *testing.T) {
	orgID := uuid.New()

	e := echo.New()
	g := e.Group("", withIdentity(identity{userID: uuid.New(), orgID: &orgID, role: models.RoleLandlord}),
		SubscriptionGate(&orgLookup{orgs: map[uuid.UUID]*models.Organization{}}))
	g.GET("/v1/properties", okHandler)
	assert.Equal(t, http.StatusNotFound, serve(e, http.MethodGet, "/v1/properties", nil).Code)

	e = echo.New()
	g = e.Group("", withIdentity(identity{userID: uuid.New(), orgID: &orgID, role: models.RoleLandlord}),
		SubscriptionGate(&orgLookup{err: errors.New("pool closed")}))
	g.GET("/v1/properties", okHandler)
	assert.Equal(t, http.StatusInternalServerError, serve(e, http.MethodGet, "/v1/properties", nil).Code)
}

func TestSubscriptionGate_NoOrganizationPassesThrough(t *testing.T) {
	e := echo.New()
	g := e.Group("", withIdentity(identity{userID: uuid.New(), role: models.RoleAdmin}), SubscriptionGate(&orgLookup{err: errors.New("unused")}))
	g.GET("/v1/admin/billing/overview", okHandler)

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/v1/admin/billing/overview", nil).Code)
}

func TestRequireRole(t *testing.T) {
	orgID := uuid.New()
	tests := []struct {
		name     string
		identity *identity
		role     models.Role
		want     int
	}{
		{"no identity", nil, models.RoleAdmin, http.StatusUnauthorized},
		{"admin on admin route", &identity{userID: uuid.New(), role: models.RoleAdmin}, models.RoleAdmin, http.StatusOK},
		{"landlord on admin route", &identity{userID: uuid.New(), orgID: &orgID, role: models.RoleLandlord}, models.RoleAdmin, http.StatusForbidden},
		{"admin on landlord route", &identity{userID: uuid.New(), role: models.RoleAdmin}, models.RoleLandlord, http.StatusForbidden},
		{"landlord without organization", &identity{userID: uuid.New(), role: models.RoleLandlord}, models.RoleLandlord, http.StatusForbidden},
		{"landlord on landlord route", &identity{userID: uuid.New(), orgID: &orgID, role: models.RoleLandlord}, models.RoleLandlord, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			var mw []echo.MiddlewareFunc
			if tt.identity != nil {
				mw = append(mw, withIdentity(*tt.identity))
			}
			mw = append(mw, RequireRole(tt.role))
			e.GET("/r", okHandler, mw...)

			assert.Equal(t, tt.want, serve(e, http.MethodGet, "/r", nil).Code)
		})
	}
}

func TestJWTMiddleware(t *testing.T) {
	issuer := services.NewTokenIssuer("middleware-test-secret", time.Hour, nil)
	orgID := uuid.New()
	adminID := uuid.New()
	user := &models.User{ID: uuid.New(), OrganizationID: &orgID, Role: models.RoleLandlord}

	var (
		gotUser  uuid.UUID
		gotOrg   uuid.UUID
		gotAdmin uuid.UUID
		gotRole  string
	)
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		ctx := c.Request().Context()
		gotUser, _ = common.GetUserIDFromContext(ctx)
		gotOrg, _ = common.GetOrganizationIDFromContext(ctx)
		gotAdmin, _ = common.GetImpersonatorFromContext(ctx)
		gotRole, _ = common.GetRoleFromContext(ctx)
		return c.NoContent(http.StatusNoContent)
	}, JWTMiddleware(issuer))

	token, err := issuer.Issue(user, &adminID, 15*time.Minute)
	require.NoError(t, err)

	rec := serve(e, http.MethodGet, "/me", http.Header{"Authorization": {"Bearer " + token.AccessToken}})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, user.ID, gotUser)
	assert.Equal(t, orgID, gotOrg)
	assert.Equal(t, adminID, gotAdmin)
	assert.Equal(t, "landlord", gotRole)

	t.Run("missing token", func(t *testing.T) {
		rec := serve(e, http.MethodGet, "/me", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("foreign signature", func(t *testing.T) {
		other := services.NewTokenIssuer("another-secret", time.Hour, nil)
		forged, err := other.Issue(user, nil, 0)
		require.NoError(t, err)
		rec := serve(e, http.MethodGet, "/me", http.Header{"Authorization": {"Bearer " + forged.AccessToken}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired", func(t *testing.T) {
		past := services.NewTokenIssuer("middleware-test-secret", time.Hour, func() time.Time {
			return time.Now().Add(-2 * time.Hour)
		})
		stale, err := past.Issue(user, nil, 0)
		require.NoError(t, err)
		rec := serve(e, http.MethodGet, "/me", http.Header{"Authorization": {"Bearer " + stale.AccessToken}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestIdentity_RejectsMalformedClaims(t *testing.T) {
	e := echo.New()
	e.GET("/me", okHandler, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(claimsContextKey, &services.TokenClaims{UserID: "not-a-uuid", Role: "landlord"})
			return next(c)
		}
	}, Identity())

	rec := serve(e, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid user_id")
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []services.AuditEntry
	err     error
}

func (r *recordingAudit) LogActivity(_ context.Context, entry services.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return r.err
}

func (r *recordingAudit) ListAuditLogs(context.Context, *models.AuditLogFilters) ([]*models.AuditLog, error) {
	return nil, nil
}

func (r *recordingAudit) ValidateAuditFilters(*models.AuditLogFilters) error {
	return nil
}

func TestAuditImpersonation(t *testing.T) {
	orgID := uuid.New()
	userID := uuid.New()
	adminID := uuid.New()

	newServer := func(audit *recordingAudit, impersonatedBy *uuid.UUID) *echo.Echo {
		e := echo.New()
		mw := []echo.MiddlewareFunc{
			withIdentity(identity{userID: userID, orgID: &orgID, role: models.RoleLandlord, impersonatedBy: impersonatedBy}),
			NewAuditMiddleware(audit).AuditImpersonation(),
		}
		e.GET("/v1/properties", okHandler, mw...)
		e.POST("/v1/properties", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, mw...)
		return e
	}

	t.Run("impersonated mutation is audited", func(t *testing.T) {
		audit := &recordingAudit{}
		rec := serve(newServer(audit, &adminID), http.MethodPost, "/v1/properties", nil)
		assert.Equal(t, http.StatusCreated, rec.Code)

		require.Len(t, audit.entries, 1)
		entry := audit.entries[0]
		assert.Equal(t, models.AuditImpersonatedRequest, entry.Action)
		assert.Equal(t, adminID, *entry.ActorID)
		assert.Equal(t, orgID, *entry.OrganizationID)
		assert.Equal(t, userID.String(), entry.EntityID)
		assert.Equal(t, "/v1/properties", entry.NewValues["route"])
		assert.Equal(t, http.StatusCreated, entry.NewValues["status"])
	})

	t.Run("reads are not audited", func(t *testing.T) {
		audit := &recordingAudit{}
		serve(newServer(audit, &adminID), http.MethodGet, "/v1/properties", nil)
		assert.Empty(t, audit.entries)
	})

	t.Run("own session is not audited", func(t *testing.T) {
		audit := &recordingAudit{}
		serve(newServer(audit, nil), http.MethodPost, "/v1/properties", nil)
		assert.Empty(t, audit.entries)
	})

	t.Run("audit failure does not change the response", func(t *testing.T) {
		audit := &recordingAudit{err: errors.New("insert failed")}
		rec := serve(newServer(audit, &adminID), http.MethodPost, "/v1/properties", nil)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Len(t, audit.entries, 1)
	})
}
