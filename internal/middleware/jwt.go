package middleware

import (
	"errors"
	"net/http"

	"rentdesk/internal/common"
	"rentdesk/internal/services"

	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const claimsContextKey = "user"

// JWTConfig validates bearer tokens with the issuer that signed them.
func JWTConfig(issuer *services.TokenIssuer) echojwt.Config {
	return echojwt.Config{
		ContextKey: claimsContextKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return issuer.Parse(auth)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return common.SendUnauthorizedError(c)
		},
	}
}

// JWTMiddleware handles JWT token validation and puts the caller's identity on
// the request context.
func JWTMiddleware(issuer *services.TokenIssuer) echo.MiddlewareFunc {
	validate := echojwt.WithConfig(JWTConfig(issuer))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return validate(Identity()(next))
	}
}

// Identity copies validated claims into the request context.
func Identity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get(claimsContextKey).(*services.TokenClaims)
			if !ok {
				return common.SendUnauthorizedError(c)
			}

			userID, orgID, impersonator, err := identityFromClaims(claims)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, common.CreateErrorResponse("UNAUTHORIZED", err.Error(), nil))
			}

			ctx := common.WithIdentity(c.Request().Context(), userID, orgID, claims.Role, impersonator)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func identityFromClaims(claims *services.TokenClaims) (uuid.UUID, *uuid.UUID, *uuid.UUID, error) {
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, nil, nil, errors.New("invalid user_id in token")
	}

	var orgID *uuid.UUID
	if claims.OrganizationID != "" {
		id, err := uuid.Parse(claims.OrganizationID)
		if err != nil {
			return uuid.Nil, nil, nil, errors.New("invalid organization_id in token")
		}
		orgID = &id
	}

	var impersonator *uuid.UUID
	if claims.ImpersonatedBy != "" {
		id, err := uuid.Parse(claims.ImpersonatedBy)
		if err != nil {
			return uuid.Nil, nil, nil, errors.New("invalid impersonated_by in token")
		}
		impersonator = &id
	}
	return userID, orgID, impersonator, nil
}
