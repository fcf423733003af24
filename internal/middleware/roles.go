package middleware

import (
	"net/http"

	"rentdesk/internal/common"
	"rentdesk/internal/models"

	"github.com/labstack/echo/v4"
)

// RequireRole rejects callers whose token carries a different role. Landlords
// must also belong to an organization.
func RequireRole(role models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if _, ok := common.GetUserIDFromContext(ctx); !ok {
				return common.SendUnauthorizedError(c)
			}

			got, _ := common.GetRoleFromContext(ctx)
			if got != string(role) {
				return c.JSON(http.StatusForbidden, common.CreateErrorResponse("FORBIDDEN", "Insufficient permissions", nil))
			}
			if role == models.RoleLandlord {
				if _, ok := common.GetOrganizationIDFromContext(ctx); !ok {
					return c.JSON(http.StatusForbidden, common.CreateErrorResponse("FORBIDDEN", "Organization not found", nil))
				}
			}

			return next(c)
		}
	}
}
