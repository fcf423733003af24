package handlers

import (
	"net/http"
	"time"

	"rentdesk/internal/common"
	"rentdesk/internal/models"
	"rentdesk/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// AuditLogsHandlers handles audit logs related HTTP requests
type AuditLogsHandlers struct {
	auditLogsService services.AuditLogsService
}

// NewAuditLogsHandlers creates a new audit logs handlers instance
func NewAuditLogsHandlers(auditLogsService services.AuditLogsService) *AuditLogsHandlers {
	return &AuditLogsHandlers{auditLogsService: auditLogsService}
}

// ListAuditLogs godoc
// @Summary List audit entries with filtering and pagination
// @Tags admin
// @Produce json
// @Param organization_id query string false "Organization"
// @Param entity_type query string false "organization | subscription_request | user"
// @Param action query string false "Audit action"
// @Param actor_id query string false "Actor"
// @Param start_date query string false "RFC3339"
// @Param end_date query string false "RFC3339"
// @Success 200 {array} models.AuditLog
// @Router /v1/admin/audit-logs [get]
func (h *AuditLogsHandlers) ListAuditLogs(c echo.Context) error {
	filters := &models.AuditLogFilters{}

	if raw := c.QueryParam("organization_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return common.SendValidationError(c, "organization_id", "must be a UUID")
		}
		filters.OrganizationID = &id
	}
	if raw := c.QueryParam("actor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return common.SendValidationError(c, "actor_id", "must be a UUID")
		}
		filters.ActorID = &id
	}
	if entityType := c.QueryParam("entity_type"); entityType != "" {
		filters.EntityType = &entityType
	}
	if action := c.QueryParam("action"); action != "" {
		filters.Action = &action
	}
	if raw := c.QueryParam("start_date"); raw != "" {
		sd, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return common.SendValidationError(c, "start_date", "must be RFC3339")
		}
		filters.StartDate = &sd
	}
	if raw := c.QueryParam("end_date"); raw != "" {
		ed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return common.SendValidationError(c, "end_date", "must be RFC3339")
		}
		filters.EndDate = &ed
	}

	limit, offset, err := paginationParams(c)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}
	filters.Limit = limit
	filters.Offset = offset

	// Validate filters (security and performance)
	if err := h.auditLogsService.ValidateAuditFilters(filters); err != nil {
		return common.SendClientError(c, err.Error())
	}

	logs, err := h.auditLogsService.ListAuditLogs(c.Request().Context(), filters)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":   logs,
		"total":  len(logs),
		"limit":  filters.Limit,
		"offset": filters.Offset,
	})
}

// GetOrganizationHistory retrieves the audit trail of one organization
func (h *AuditLogsHandlers) GetOrganizationHistory(c echo.Context) error {
	orgID, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	limit, offset, err := paginationParams(c)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	logs, err := h.auditLogsService.ListAuditLogs(c.Request().Context(), &models.AuditLogFilters{
		OrganizationID: &orgID,
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"data":            logs,
		"total":           len(logs),
		"limit":           limit,
		"offset":          offset,
		"organization_id": orgID,
	})
}
