package handlers

import (
	"errors"
	"net/http"
	"strings"

	"rentdesk/internal/common"
	"rentdesk/internal/models"
	"rentdesk/internal/services"

	"github.com/labstack/echo/v4"
)

// multipartMemory is how much of an upload is held in memory before spilling to disk.
const multipartMemory = 32 << 20

// SubscriptionHandlers serves the landlord side of the subscription workflow.
type SubscriptionHandlers struct {
	subscriptionService services.SubscriptionService
	guard               services.PlanLimitService
	catalog             *services.PlanCatalog
	maxReceiptBytes     int64
}

func NewSubscriptionHandlers(subscriptionService services.SubscriptionService, guard services.PlanLimitService, catalog *services.PlanCatalog, maxReceiptBytes int64) *SubscriptionHandlers {
	return &SubscriptionHandlers{
		subscriptionService: subscriptionService,
		guard:               guard,
		catalog:             catalog,
		maxReceiptBytes:     maxReceiptBytes,
	}
}

// ListPlans godoc
// @Summary List subscription plans with prices and limits
// @Tags subscription
// @Produce json
// @Success 200 {array} models.Plan
// @Router /v1/plans [get]
func (h *SubscriptionHandlers) ListPlans(c echo.Context) error {
	return c.JSON(http.StatusOK, h.catalog.AllPlans())
}

// GetStatus godoc
// @Summary Current subscription with derived renewal and overdue days
// @Tags subscription
// @Produce json
// @Success 200 {object} models.SubscriptionStatusView
// @Router /v1/subscription/status [get]
func (h *SubscriptionHandlers) GetStatus(c echo.Context) error {
	orgID, ok := common.GetOrganizationIDFromContext(c.Request().Context())
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	status, err := h.subscriptionService.GetStatus(c.Request().Context(), orgID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// PaymentInstructions godoc
// @Summary Static account details for a payment method
// @Tags subscription
// @Produce json
// @Param method query string true "bank_transfer | telebirr | credit_card"
// @Success 200 {object} models.PaymentInstructions
// @Router /v1/subscription/payment-instructions [get]
func (h *SubscriptionHandlers) PaymentInstructions(c echo.Context) error {
	method := models.PaymentMethod(c.QueryParam("method"))
	instructions, err := h.catalog.PaymentInstructions(method)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, instructions)
}

// SubmitUpgrade godoc
// @Summary Submit a plan upgrade or renewal with a payment receipt
// @Tags subscription
// @Accept multipart/form-data
// @Produce json
// @Param planId formData string true "Plan id"
// @Param billingCycle formData string true "monthly | annual"
// @Param paymentMethod formData string true "bank_transfer | telebirr | credit_card"
// @Param receipt formData file true "Receipt (JPEG, PNG or PDF)"
// @Success 201 {object} models.SubscriptionRequest
// @Failure 409 {object} common.ErrorResponse
// @Router /v1/subscription/upgrade [post]
func (h *SubscriptionHandlers) SubmitUpgrade(c echo.Context) error {
	ctx := c.Request().Context()
	orgID, ok := common.GetOrganizationIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	userID, _ := common.GetUserIDFromContext(ctx)

	// Multipart overhead on top of the receipt itself.
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, h.maxReceiptBytes+1<<20)
	if err := c.Request().ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return respondError(c, services.ErrReceiptTooLarge)
		}
		return common.SendClientError(c, "Invalid multipart form")
	}

	input := services.SubmitRequestInput{
		PlanID:        strings.TrimSpace(c.FormValue("planId")),
		BillingCycle:  models.BillingCycle(strings.TrimSpace(c.FormValue("billingCycle"))),
		PaymentMethod: models.PaymentMethod(strings.TrimSpace(c.FormValue("paymentMethod"))),
	}
	if input.PlanID == "" {
		return common.SendValidationError(c, "planId", "planId is required")
	}

	fileHeader, err := c.FormFile("receipt")
	if err == nil {
		file, err := fileHeader.Open()
		if err != nil {
			return common.SendClientError(c, "Unable to read receipt")
		}
		defer file.Close()
		input.Receipt = &services.ReceiptUpload{
			Filename: fileHeader.Filename,
			Size:     fileHeader.Size,
			Reader:   file,
		}
	}

	req, err := h.subscriptionService.SubmitRequest(ctx, orgID, userID, input)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, req)
}

type CancelRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// Cancel godoc
// @Summary Cancel an active subscription
// @Tags subscription
// @Accept json
// @Produce json
// @Success 200 {object} models.Organization
// @Router /v1/subscription/cancel [post]
func (h *SubscriptionHandlers) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	orgID, ok := common.GetOrganizationIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}
	userID, _ := common.GetUserIDFromContext(ctx)

	var req CancelRequest
	if c.Request().ContentLength > 0 {
		if handled, err := bindAndValidate(c, &req); handled {
			return err
		}
	}

	org, err := h.subscriptionService.Cancel(ctx, orgID, userID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, org)
}

// Usage godoc
// @Summary Current usage against plan limits
// @Tags subscription
// @Produce json
// @Param feature query string false "Single feature to check"
// @Success 200 {array} models.UsageSnapshot
// @Router /v1/usage [get]
func (h *SubscriptionHandlers) Usage(c echo.Context) error {
	ctx := c.Request().Context()
	orgID, ok := common.GetOrganizationIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	if feature := c.QueryParam("feature"); feature != "" {
		snap, err := h.guard.Check(ctx, orgID, models.Feature(feature))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, snap)
	}

	usage, err := h.guard.Usage(ctx, orgID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, usage)
}
