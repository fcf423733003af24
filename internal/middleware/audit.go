package middleware

import (
	"net/http"

	"rentdesk/internal/common"
	"rentdesk/internal/models"
	"rentdesk/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// AuditMiddleware records every state-changing request made with an
// impersonation token, attributed to the impersonating admin.
type AuditMiddleware struct {
	auditService services.AuditLogsService
}

// NewAuditMiddleware creates a new audit middleware instance
func NewAuditMiddleware(auditService services.AuditLogsService) *AuditMiddleware {
	return &AuditMiddleware{
		auditService: auditService,
	}
}

func (m *AuditMiddleware) AuditImpersonation() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			ctx := c.Request().Context()
			admin, ok := common.GetImpersonatorFromContext(ctx)
			if !ok || !isMutation(c.Request().Method) {
				return err
			}
			userID, _ := common.GetUserIDFromContext(ctx)

			entry := services.AuditEntry{
				EntityType: services.EntityUser,
				EntityID:   userID.String(),
				Action:     models.AuditImpersonatedRequest,
				ActorID:    &admin,
				NewValues: models.JSONB{
					"method": c.Request().Method,
					"route":  c.Path(),
					"status": c.Response().Status,
				},
			}
			if orgID, ok := common.GetOrganizationIDFromContext(ctx); ok {
				entry.OrganizationID = &orgID
			}
			if auditErr := m.auditService.LogActivity(ctx, entry); auditErr != nil {
				log.Ctx(ctx).Error().Err(auditErr).Msg("failed to audit impersonated request")
			}

			return err
		}
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
