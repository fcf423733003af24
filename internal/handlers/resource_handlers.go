package handlers

import (
	"net/http"
	"strconv"

	"rentdesk/internal/common"
	"rentdesk/internal/models"
	"rentdesk/internal/services"

	"github.com/labstack/echo/v4"
)

// ResourceHandlers exposes the plan-gated tables. One handler set serves every
// feature; the route decides which table is touched.
type ResourceHandlers struct {
	resourceService services.ResourceService
}

func NewResourceHandlers(resourceService services.ResourceService) *ResourceHandlers {
	return &ResourceHandlers{resourceService: resourceService}
}

type CreateResourceRequest struct {
	Name    string       `json:"name" validate:"required,max=255"`
	Details models.JSONB `json:"details,omitempty"`
}

// Register mounts list, create and delete for feature under path on g.
func (h *ResourceHandlers) Register(g *echo.Group, path string, feature models.Feature) {
	g.GET(path, h.List(feature))
	g.POST(path, h.Create(feature))
	g.DELETE(path+"/:id", h.Delete(feature))
}

// Create godoc
// @Summary Create a plan-gated resource
// @Tags resources
// @Accept json
// @Produce json
// @Param body body CreateResourceRequest true "Resource"
// @Success 201 {object} models.Resource
// @Failure 403 {object} common.ErrorResponse "PLAN_LIMIT_EXCEEDED"
// @Router /v1/properties [post]
func (h *ResourceHandlers) Create(feature models.Feature) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		orgID, ok := common.GetOrganizationIDFromContext(ctx)
		if !ok {
			return common.SendUnauthorizedError(c)
		}

		var req CreateResourceRequest
		if handled, err := bindAndValidate(c, &req); handled {
			return err
		}

		resource, err := h.resourceService.Create(ctx, orgID, feature, req.Name, req.Details)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, resource)
	}
}

func (h *ResourceHandlers) List(feature models.Feature) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		orgID, ok := common.GetOrganizationIDFromContext(ctx)
		if !ok {
			return common.SendUnauthorizedError(c)
		}

		limit, offset, err := paginationParams(c)
		if err != nil {
			return common.SendClientError(c, err.Error())
		}

		resources, err := h.resourceService.List(ctx, orgID, feature, limit, offset)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"data":   resources,
			"limit":  limit,
			"offset": offset,
		})
	}
}

func (h *ResourceHandlers) Delete(feature models.Feature) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		orgID, ok := common.GetOrganizationIDFromContext(ctx)
		if !ok {
			return common.SendUnauthorizedError(c)
		}

		id, err := common.ValidateUUID(c.Param("id"), "id")
		if err != nil {
			return common.SendValidationError(c, "id", err.Error())
		}

		if err := h.resourceService.Delete(ctx, orgID, feature, id); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func paginationParams(c echo.Context) (int, int, error) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return common.ValidatePaginationParams(limit, offset)
}
