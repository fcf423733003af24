package handlers

import (
	"errors"
	"net/http"
	"strings"

	"rentdesk/internal/common"
	"rentdesk/internal/repositories"
	"rentdesk/internal/services"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// RequestValidator plugs go-playground/validator into echo's c.Validate.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// bindAndValidate decodes the body into req and runs struct validation. On
// failure the error response has already been written and handled is true.
func bindAndValidate(c echo.Context, req interface{}) (handled bool, err error) {
	if err := c.Bind(req); err != nil {
		return true, common.SendClientError(c, "Invalid request body")
	}
	if err := c.Validate(req); err != nil {
		return true, sendValidationErrors(c, err)
	}
	return false, nil
}

func sendValidationErrors(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return common.SendClientError(c, err.Error())
	}
	details := make(map[string]interface{}, len(verrs))
	for _, fe := range verrs {
		msg := "failed on " + fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		details[strings.ToLower(fe.Field())] = msg
	}
	return c.JSON(http.StatusBadRequest, common.CreateErrorResponse("VALIDATION_ERROR", "Validation failed", details))
}

// respondError maps service and repository errors to the API error shape.
func respondError(c echo.Context, err error) error {
	var limitErr *services.PlanLimitExceededError
	if errors.As(err, &limitErr) {
		return common.SendError(c, http.StatusForbidden, "PLAN_LIMIT_EXCEEDED", limitErr.Error(), map[string]interface{}{
			"feature":      limitErr.Feature,
			"plan":         limitErr.Plan,
			"currentUsage": limitErr.CurrentUsage,
			"limit":        limitErr.Limit,
		})
	}

	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return common.SendError(c, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, services.ErrSubscriptionOverdue):
		return common.SendError(c, http.StatusPaymentRequired, "SUBSCRIPTION_OVERDUE", err.Error(), nil)
	case errors.Is(err, services.ErrSubscriptionInactive):
		return common.SendError(c, http.StatusForbidden, "SUBSCRIPTION_INACTIVE", err.Error(), nil)
	case errors.Is(err, services.ErrVerificationPending):
		return common.SendError(c, http.StatusConflict, "VERIFICATION_PENDING", err.Error(), nil)
	case errors.Is(err, services.ErrRequestAlreadyReviewed):
		return common.SendError(c, http.StatusConflict, "REQUEST_ALREADY_REVIEWED", err.Error(), nil)
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, repositories.ErrStaleState):
		return common.SendError(c, http.StatusConflict, "INVALID_STATE_TRANSITION", err.Error(), nil)
	case errors.Is(err, repositories.ErrEmailTaken):
		return common.SendError(c, http.StatusConflict, "EMAIL_TAKEN", err.Error(), nil)
	case errors.Is(err, services.ErrReceiptRequired):
		return common.SendError(c, http.StatusBadRequest, "RECEIPT_REQUIRED", err.Error(), nil)
	case errors.Is(err, services.ErrReceiptTooLarge):
		return common.SendError(c, http.StatusRequestEntityTooLarge, "RECEIPT_TOO_LARGE", err.Error(), nil)
	case errors.Is(err, services.ErrUnsupportedReceiptType):
		return common.SendError(c, http.StatusUnsupportedMediaType, "UNSUPPORTED_RECEIPT_TYPE", err.Error(), nil)
	case errors.Is(err, services.ErrInvalidCredentials):
		return common.SendError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error(), nil)
	case errors.Is(err, services.ErrTooManyAttempts):
		return common.SendError(c, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", err.Error(), nil)
	case errors.Is(err, services.ErrCannotImpersonateAdmin):
		return common.SendError(c, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, services.ErrUnknownPlan),
		errors.Is(err, services.ErrInvalidBillingCycle),
		errors.Is(err, services.ErrInvalidPaymentMethod),
		errors.Is(err, services.ErrUnknownFeature),
		errors.Is(err, services.ErrInvalidVerificationAction),
		errors.Is(err, services.ErrRejectionReasonRequired),
		errors.Is(err, services.ErrInvalidToggleAction),
		errors.Is(err, services.ErrPasswordTooShort),
		errors.Is(err, services.ErrOrganizationNameRequired):
		return common.SendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	}

	log.Ctx(c.Request().Context()).Error().Err(err).Str("route", c.Path()).Msg("request failed")
	return common.SendServerError(c, "Internal server error")
}
