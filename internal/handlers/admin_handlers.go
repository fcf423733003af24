package handlers

import (
	"net/http"

	"rentdesk/internal/common"
	"rentdesk/internal/models"
	"rentdesk/internal/repositories"
	"rentdesk/internal/services"

	"github.com/labstack/echo/v4"
)

// AdminHandlers serves the platform admin's billing and organization screens.
type AdminHandlers struct {
	subscriptionService services.SubscriptionService
	organizationService services.OrganizationAdminService
	overviewService     services.BillingOverviewService
}

func NewAdminHandlers(
	subscriptionService services.SubscriptionService,
	organizationService services.OrganizationAdminService,
	overviewService services.BillingOverviewService,
) *AdminHandlers {
	return &AdminHandlers{
		subscriptionService: subscriptionService,
		organizationService: organizationService,
		overviewService:     overviewService,
	}
}

type VerifyRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type ToggleStatusRequest struct {
	Action string  `json:"action" validate:"required,oneof=suspend reactivate"`
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type CreateOrganizationRequest struct {
	Name          string  `json:"name" validate:"required,max=200"`
	ContactEmail  string  `json:"contact_email" validate:"required,email"`
	ContactPhone  *string `json:"contact_phone,omitempty" validate:"omitempty,max=32"`
	OwnerName     string  `json:"owner_name" validate:"required,max=200"`
	OwnerEmail    string  `json:"owner_email" validate:"required,email"`
	OwnerPassword string  `json:"owner_password" validate:"required,min=8,max=72"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

// ListSubscriptionRequests godoc
// @Summary List subscription requests, newest first
// @Tags admin
// @Produce json
// @Param status query string false "pending_verification | approved | rejected"
// @Success 200 {array} models.SubscriptionRequest
// @Router /v1/admin/billing/subscriptions [get]
func (h *AdminHandlers) ListSubscriptionRequests(c echo.Context) error {
	limit, offset, err := paginationParams(c)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	filters := &repositories.SubscriptionRequestFilters{Limit: limit, Offset: offset}
	if raw := c.QueryParam("status"); raw != "" {
		status := models.RequestStatus(raw)
		if !status.Valid() {
			return common.SendValidationError(c, "status", "must be pending_verification, approved or rejected")
		}
		filters.Status = &status
	}
	if raw := c.QueryParam("organization_id"); raw != "" {
		orgID, err := common.ValidateUUID(raw, "organization_id")
		if err != nil {
			return common.SendValidationError(c, "organization_id", err.Error())
		}
		filters.OrganizationID = &orgID
	}

	requests, err := h.subscriptionService.ListRequests(c.Request().Context(), filters)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   requests,
		"limit":  limit,
		"offset": offset,
	})
}

// ReceiptURL returns a short-lived download link for a request's receipt.
func (h *AdminHandlers) ReceiptURL(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	url, err := h.subscriptionService.ReceiptURL(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

// VerifySubscription godoc
// @Summary Approve or reject a pending subscription request
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Request id"
// @Param body body VerifyRequest true "Decision"
// @Success 200 {object} models.SubscriptionRequest
// @Failure 409 {object} common.ErrorResponse "REQUEST_ALREADY_REVIEWED"
// @Router /v1/admin/billing/verify-subscription/{id} [post]
func (h *AdminHandlers) VerifySubscription(c echo.Context) error {
	ctx := c.Request().Context()
	adminID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req VerifyRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	result, err := h.subscriptionService.Verify(ctx, id, adminID, models.VerificationAction(req.Action), req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// BillingOverview godoc
// @Summary Platform revenue and subscription health
// @Tags admin
// @Produce json
// @Success 200 {object} models.BillingOverview
// @Router /v1/admin/billing/overview [get]
func (h *AdminHandlers) BillingOverview(c echo.Context) error {
	overview, err := h.overviewService.Overview(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, overview)
}

func (h *AdminHandlers) ListOrganizations(c echo.Context) error {
	limit, offset, err := paginationParams(c)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	filters := &models.OrganizationFilters{Limit: limit, Offset: offset}
	if raw := c.QueryParam("status"); raw != "" {
		status := models.SubscriptionStatus(raw)
		filters.Status = &status
	}
	if plan := c.QueryParam("plan"); plan != "" {
		filters.Plan = &plan
	}

	orgs, err := h.organizationService.ListOrganizations(c.Request().Context(), filters)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   orgs,
		"limit":  filters.Limit,
		"offset": offset,
	})
}

func (h *AdminHandlers) GetOrganization(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	org, err := h.organizationService.GetOrganization(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, org)
}

// CreateOrganization godoc
// @Summary Create an organization with its landlord owner on a trial
// @Tags admin
// @Accept json
// @Produce json
// @Param body body CreateOrganizationRequest true "Organization"
// @Success 201 {object} models.Organization
// @Router /v1/admin/users/organizations [post]
func (h *AdminHandlers) CreateOrganization(c echo.Context) error {
	ctx := c.Request().Context()
	adminID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req CreateOrganizationRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	org, owner, err := h.organizationService.CreateOrganization(ctx, services.CreateOrganizationInput{
		Name:          req.Name,
		ContactEmail:  req.ContactEmail,
		ContactPhone:  req.ContactPhone,
		OwnerName:     req.OwnerName,
		OwnerEmail:    req.OwnerEmail,
		OwnerPassword: req.OwnerPassword,
	}, &adminID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"organization": org,
		"owner":        owner,
	})
}

// ToggleStatus godoc
// @Summary Suspend or reactivate an organization
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Organization id"
// @Param body body ToggleStatusRequest true "Action"
// @Success 200 {object} models.Organization
// @Router /v1/admin/users/organizations/{id}/toggle-status [post]
func (h *AdminHandlers) ToggleStatus(c echo.Context) error {
	ctx := c.Request().Context()
	adminID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req ToggleStatusRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	org, err := h.organizationService.ToggleStatus(ctx, id, adminID, req.Action, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, org)
}

func (h *AdminHandlers) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	adminID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req ResetPasswordRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	if err := h.organizationService.ResetPassword(ctx, id, req.NewPassword, adminID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Password reset"})
}

// Impersonate godoc
// @Summary Issue a short-lived token acting as a landlord
// @Tags admin
// @Produce json
// @Param id path string true "User id"
// @Success 200 {object} models.TokenResponse
// @Router /v1/admin/users/{id}/impersonate [post]
func (h *AdminHandlers) Impersonate(c echo.Context) error {
	ctx := c.Request().Context()
	adminID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	token, err := h.organizationService.Impersonate(ctx, id, adminID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, token)
}
