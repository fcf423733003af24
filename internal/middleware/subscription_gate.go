package middleware

import (
	"context"
	"errors"
	"net/http"

	"rentdesk/internal/common"
	"rentdesk/internal/models"
	"rentdesk/internal/repositories"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// OrganizationLookup is the slice of the organization repository the gate needs.
type OrganizationLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
}

// SubscriptionGate blocks landlord requests while the organization is not in
// good standing. Routes in allowed stay reachable so an overdue organization
// can still see its status and pay.
func SubscriptionGate(orgs OrganizationLookup, allowed ...string) echo.MiddlewareFunc {
	exempt := make(map[string]struct{}, len(allowed))
	for _, route := range allowed {
		exempt[route] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			orgID, ok := common.GetOrganizationIDFromContext(ctx)
			if !ok {
				return next(c)
			}
			if _, ok := exempt[c.Path()]; ok {
				return next(c)
			}

			org, err := orgs.GetByID(ctx, orgID)
			if errors.Is(err, repositories.ErrNotFound) {
				return common.SendNotFoundError(c, "Organization")
			}
			if err != nil {
				log.Ctx(ctx).Error().Err(err).Str("organization_id", orgID.String()).Msg("subscription gate lookup failed")
				return common.SendServerError(c, "Failed to check subscription")
			}

			switch org.SubscriptionStatus {
			case models.StatusOverdue:
				return common.SendError(c, http.StatusPaymentRequired, "SUBSCRIPTION_OVERDUE",
					"Subscription is overdue; submit a renewal payment to continue", nil)
			case models.StatusSuspended:
				return common.SendError(c, http.StatusForbidden, "ORGANIZATION_SUSPENDED", "Organization is suspended", nil)
			case models.StatusCancelled:
				return common.SendError(c, http.StatusForbidden, "SUBSCRIPTION_CANCELLED", "Subscription is cancelled", nil)
			}
			return next(c)
		}
	}
}
