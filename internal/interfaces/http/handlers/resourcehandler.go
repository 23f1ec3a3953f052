package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/storefront/internal/application/catalog/dto"
	"github.com/orris-inc/storefront/internal/shared/errors"
	"github.com/orris-inc/storefront/internal/shared/id"
	"github.com/orris-inc/storefront/internal/shared/logger"
	"github.com/orris-inc/storefront/internal/shared/utils"
)

// ResourceHandler serves the merchant's resource catalog.
type ResourceHandler struct {
	workspaces WorkspaceProvider
	renderer   dto.DescriptionRenderer
	logger     logger.Interface
}

func NewResourceHandler(workspaces WorkspaceProvider, renderer dto.DescriptionRenderer, logger logger.Interface) *ResourceHandler {
	return &ResourceHandler{
		workspaces: workspaces,
		renderer:   renderer,
		logger:     logger,
	}
}

// ListResources returns the catalog in display order.
// GET /resources
func (h *ResourceHandler) ListResources(c *gin.Context) {
	ws, ok := loadWorkspace(c, h.workspaces, h.logger)
	if !ok {
		return
	}

	resources := ws.Catalog.List()
	utils.ListSuccessResponse(c, dto.ToResourceResponses(resources, h.renderer), len(resources))
}

// CreateResource adds a resource to the catalog.
// POST /resources
func (h *ResourceHandler) CreateResource(c *gin.Context) {
	var req dto.CreateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for create resource", "error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	ws, ok := loadWorkspace(c, h.workspaces, h.logger)
	if !ok {
		return
	}

	created, err := ws.Catalog.Create(c.Request.Context(), req.ToDraft())
	if err != nil {
		utils.ErrorResponseWithError(c, translateError(err))
		return
	}

	utils.CreatedResponse(c, dto.ToResourceResponse(created, h.renderer), "Resource created successfully")
}

// UpdateResource changes the fields present in the body.
// PATCH /resources/:id
func (h *ResourceHandler) UpdateResource(c *gin.Context) {
	resourceID, err := utils.ParseSIDParam(c, "id", id.PrefixResource, "resource")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req dto.UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for update resource",
			"resource_id", resourceID,
			"error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}
	if req.IsEmpty() {
		utils.ErrorResponseWithError(c, errors.NewValidationError("at least one field must be provided"))
		return
	}

	ws, ok := loadWorkspace(c, h.workspaces, h.logger)
	if !ok {
		return
	}

	updated, err := ws.Catalog.Update(c.Request.Context(), resourceID, req.ToPatch())
	if err != nil {
		utils.ErrorResponseWithError(c, translateError(err))
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Resource updated successfully", dto.ToResourceResponse(updated, h.renderer))
}

// DeleteResource removes a resource that no funnel references.
// DELETE /resources/:id
func (h *ResourceHandler) DeleteResource(c *gin.Context) {
	resourceID, err := utils.ParseSIDParam(c, "id", id.PrefixResource, "resource")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	ws, ok := loadWorkspace(c, h.workspaces, h.logger)
	if !ok {
		return
	}

	if err := ws.Catalog.Delete(c.Request.Context(), resourceID); err != nil {
		utils.ErrorResponseWithError(c, translateError(err))
		return
	}

	utils.NoContentResponse(c)
}

// CheckNameAvailability answers whether a name is free within the catalog.
// GET /resources/availability?name=&exclude_id=
func (h *ResourceHandler) CheckNameAvailability(c *gin.Context) {
	var q dto.NameAvailabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid query", err.Error()))
		return
	}
	if err := utils.ValidateStruct(q); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	ws, ok := loadWorkspace(c, h.workspaces, h.logger)
	if !ok {
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", dto.NameAvailabilityResponse{
		Name:      q.Name,
		Available: ws.Catalog.IsNameAvailable(q.Name, q.ExcludeID),
	})
}

// ResyncResources reloads the catalog from storage and returns it.
// POST /resources/resync
func (h *ResourceHandler) ResyncResources(c *gin.Context) {
	ws, ok := loadWorkspace(c, h.workspaces, h.logger)
	if !ok {
		return
	}

	if err := ws.Catalog.Resync(c.Request.Context()); err != nil {
		utils.ErrorResponseWithError(c, translateError(err))
		return
	}

	resources := ws.Catalog.List()
	utils.ListSuccessResponse(c, dto.ToResourceResponses(resources, h.renderer), len(resources))
}
