package main

import (
	"net/http"
	"time"

	_ "rentdesk/docs"
	"rentdesk/internal/common"
	"rentdesk/internal/handlers"
	"rentdesk/internal/logging"
	"rentdesk/internal/metrics"
	"rentdesk/internal/middleware"
	"rentdesk/internal/models"
	"rentdesk/internal/services"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"
)

type serverDeps struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics
	tokens  *services.TokenIssuer
	orgs    middleware.OrganizationLookup
	audit   *middleware.AuditMiddleware

	auth         *handlers.AuthHandlers
	subscription *handlers.SubscriptionHandlers
	resources    *handlers.ResourceHandlers
	admin        *handlers.AdminHandlers
	auditLogs    *handlers.AuditLogsHandlers
	health       *handlers.HealthHandlers
	jobs         *handlers.JobHandlers
}

// Routes an overdue organization can still reach to see its status and pay.
var overdueAllowed = []string{
	"/v1/plans",
	"/v1/subscription/status",
	"/v1/subscription/payment-instructions",
	"/v1/subscription/upgrade",
}

func newServer(d serverDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()

	// Global middleware
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RequestID())
	e.Use(logging.RequestLogger(d.logger))
	e.Use(echoMiddleware.CORS())
	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(d.metrics.Middleware())

	// Version middleware
	versionMiddleware := middleware.NewVersionMiddleware()
	e.Use(versionMiddleware.APIVersionResolver())

	// Health endpoints (no auth required)
	e.GET("/health", d.health.HealthCheck)
	e.GET("/health/live", d.health.LivenessCheck)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := e.Group("/v1")
	v1.Use(versionMiddleware.VersionHeader("v1"))

	auth := v1.Group("/auth")
	auth.POST("/signup", d.auth.Signup)
	auth.POST("/login", d.auth.Login)

	jwt := middleware.JWTMiddleware(d.tokens)

	// Landlord routes
	landlord := v1.Group("")
	landlord.Use(
		jwt,
		middleware.RequireRole(models.RoleLandlord),
		d.audit.AuditImpersonation(),
		middleware.SubscriptionGate(d.orgs, overdueAllowed...),
	)

	landlord.GET("/plans", d.subscription.ListPlans)
	landlord.GET("/subscription/status", d.subscription.GetStatus)
	landlord.GET("/subscription/payment-instructions", d.subscription.PaymentInstructions)
	landlord.POST("/subscription/upgrade", d.subscription.SubmitUpgrade, uploadRateLimiter())
	landlord.POST("/subscription/cancel", d.subscription.Cancel)
	landlord.GET("/usage", d.subscription.Usage)

	d.resources.Register(landlord, "/properties", models.FeatureProperties)
	d.resources.Register(landlord, "/tenants", models.FeatureTenants)
	d.resources.Register(landlord, "/documents", models.FeatureDocuments)
	d.resources.Register(landlord, "/maintenance-requests", models.FeatureMaintenanceRequests)

	// Admin routes
	admin := v1.Group("/admin")
	admin.Use(jwt, middleware.RequireRole(models.RoleAdmin))

	billing := admin.Group("/billing")
	billing.GET("/subscriptions", d.admin.ListSubscriptionRequests)
	billing.GET("/subscriptions/:id/receipt", d.admin.ReceiptURL)
	billing.POST("/verify-subscription/:id", d.admin.VerifySubscription)
	billing.GET("/overview", d.admin.BillingOverview)

	users := admin.Group("/users")
	users.GET("/organizations", d.admin.ListOrganizations)
	users.POST("/organizations", d.admin.CreateOrganization)
	users.GET("/organizations/:id", d.admin.GetOrganization)
	users.GET("/organizations/:id/audit-logs", d.auditLogs.GetOrganizationHistory)
	users.POST("/organizations/:id/toggle-status", d.admin.ToggleStatus)
	users.POST("/:id/reset-password", d.admin.ResetPassword)
	users.POST("/:id/impersonate", d.admin.Impersonate)

	admin.GET("/audit-logs", d.auditLogs.ListAuditLogs)
	admin.GET("/jobs", d.jobs.GetJobStatus)
	admin.POST("/jobs/:name/run", d.jobs.RunJob)

	return e
}

// uploadRateLimiter allows a burst of five receipt uploads per caller, then one
// every ten seconds.
func uploadRateLimiter() echo.MiddlewareFunc {
	return echoMiddleware.RateLimiterWithConfig(echoMiddleware.RateLimiterConfig{
		Store: echoMiddleware.NewRateLimiterMemoryStoreWithConfig(echoMiddleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Every(10 * time.Second),
			Burst:     5,
			ExpiresIn: 10 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if userID, ok := common.GetUserIDFromContext(c.Request().Context()); ok {
				return userID.String(), nil
			}
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return common.SendError(c, http.StatusForbidden, "FORBIDDEN", "Unable to identify caller", nil)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return common.SendError(c, http.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many uploads, try again shortly", nil)
		},
	})
}

func randomSecret() string {
	return random.String(48)
}
