package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/storefront/internal/application/funnel/dto"
	"github.com/orris-inc/storefront/internal/application/workspace"
	"github.com/orris-inc/storefront/internal/domain/funnel"
	"github.com/orris-inc/storefront/internal/shared/errors"
	"github.com/orris-inc/storefront/internal/shared/id"
	"github.com/orris-inc/storefront/internal/shared/logger"
	"github.com/orris-inc/storefront/internal/shared/mapper"
	"github.com/orris-inc/storefront/internal/shared/utils"
)

// FunnelHandler serves funnels, their assignments and the readiness gate.
type FunnelHandler struct {
	workspaces WorkspaceProvider
	logger     logger.Interface
}

func NewFunnelHandler(workspaces WorkspaceProvider, logger logger.Interface) *FunnelHandler {
	return &FunnelHandler{
		workspaces: workspaces,
		logger:     logger,
	}
}

// ListFunnels returns every funnel with its computed state.
// GET /funnels
func (h *FunnelHandler) ListFunnels(c *gin.Context) {
	ws, ok := loadWorkspace(c, h.workspaces, h.logger)
	if !ok {
		return
	}

	funnels := ws.Board.List()
	items := mapper.MapSlice(funnels, func(f *funnel.Funnel) dto.FunnelResponse {
		return h.toResponse(ws, f)
	})
	utils.ListSuccessResponse(c, items, len(items))
}

// CreateFunnel creates an empty funnel.
// POST /funnels
func (h *FunnelHandler) CreateFunnel(c *gin.Context) {
	var req dto.CreateFunnelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for create funnel", "error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}

	ws, ok := loadWorkspace(c, h.workspaces, h.logger)
	if !ok {
		return
	}

	created, err := ws.Board.Create(c.Request.Context(), req.Name)
	if err != nil {
		utils.ErrorResponseWithError(c, translateError(err))
		return
	}

	utils.CreatedResponse(c, h.toResponse(ws, created), "Funnel created successfully")
}

// GetFunnel returns one funnel.
// GET /funnels/:id
func (h *FunnelHandler) GetFunnel(c *gin.Context) {
	ws, funnelID, ok := h.resolve(c)
	if !ok {
		return
	}

	h.respondFunnel(c, ws, funnelID, "")
}

// GetReadiness returns the funnel's state and deficiencies.
// GET /funnels/:id/readiness
func (h *FunnelHandler) GetReadiness(c *gin.Context) {
	ws, funnelID, ok := h.resolve(c)
	if !ok {
		return
	}

	r, err := ws.Gate.Readiness(funnelID)
	if err != nil {
		utils.ErrorResponseWithError(c, translateError(err))
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", dto.ToReadinessResponse(funnelID, r))
}

// ListAssignable returns every catalog resource with whether it can be
// assigned to the funnel right now.
// GET /funnels/:id/assignable
func (h *FunnelHandler) ListAssignable(c *gin.Context) {
	ws, funnelID, ok := h.resolve(c)
	if !ok {
		return
	}

	items, err := ws.Coordinator.Assignable(funnelID)
	if err != nil {
		utils.ErrorResponseWithError(c, translateError(err))
		return
	}
	utils.ListSuccessResponse(c, dto.ToAssignableResponses(items), len(items))
}

// AssignResource adds a resource to the funnel.
// PUT /funnels/:id/resources/:resource_id
func (h *FunnelHandler) AssignResource(c *gin.Context) {
	ws, funnelID, ok := h.resolve(c)
	if !ok {
		return
	}
	resourceID, err := utils.ParseSIDParam(c, "resource_id", id.PrefixResource, "resource")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	if err := ws.Coordinator.Assign(c.Request.Context(), funnelID, resourceID); err != nil {
		utils.ErrorResponseWithError(c, translateError(err))
		return
	}
	h.respondReadiness(c, ws, funnelID, "Resource assigned successfully")
}

// UnassignResource removes a resource from the funnel.
// DELETE /funnels/:id/resources/:resource_id
func (h *FunnelHandler) UnassignResource(c *gin.Context) {
	ws, funnelID, ok := h.resolve(c)
	if !ok {
		return
	}
	resourceID, err := utils.ParseSIDParam(c, "resource_id", id.PrefixResource, "resource")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	if err := ws.Coordinator.Unassign(c.Request.Context(), funnelID, resourceID); err != nil {
		utils.ErrorResponseWithError(c, translateError(err))
		return
	}
	h.respondReadiness(c, ws, funnelID, "Resource unassigned successfully")
}

// MarkDeficient highlights resources the client flagged on the funnel.
// POST /funnels/:id/deficient
func (h *FunnelHandler) MarkDeficient(c *gin.Context) {
	ws, funnelID, ok := h.resolve(c)
	if !ok {
		return
	}

	var req dto.MarkDeficientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for mark deficient",
			"funnel_id", funnelID,
			"error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError("invalid request body", err.Error()))
		return
	}
	for _, rid := range req.ResourceIDs {
		if _, err := utils.CheckSID(rid, id.PrefixResource, "resource"); err != nil {
			utils.ErrorResponseWithError(c, err)
			return
		}
	}

	r, err := ws.Gate.MarkDeficient(funnelID, req.ResourceIDs...)
	if err != nil {
		utils.ErrorResponseWithError(c, translateError(err))
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", dto.ToReadinessResponse(funnelID, r))
}

// GenerateFunnel runs flow generation over the funnel's resources.
// POST /funnels/:id/generate
func (h *FunnelHandler) GenerateFunnel(c *gin.Context) {
	ws, funnelID, ok := h.resolve(c)
	if !ok {
		return
	}

	if _, err := ws.Gate.Generate(c.Request.Context(), funnelID); err != nil {
		utils.ErrorResponseWithError(c, translateError(err))
		return
	}
	h.respondFunnel(c, ws, funnelID, "Funnel generated successfully")
}

// DeployFunnel makes a generated funnel live.
// POST /funnels/:id/deploy
func (h *FunnelHandler) DeployFunnel(c *gin.Context) {
	ws, funnelID, ok := h.resolve(c)
	if !ok {
		return
	}

	if err := ws.Gate.Deploy(c.Request.Context(), funnelID); err != nil {
		utils.ErrorResponseWithError(c, translateError(err))
		return
	}
	h.respondFunnel(c, ws, funnelID, "Funnel deployed successfully")
}

// TakeFunnelOffline returns a live funnel to generated.
// POST /funnels/:id/offline
func (h *FunnelHandler) TakeFunnelOffline(c *gin.Context) {
	ws, funnelID, ok := h.resolve(c)
	if !ok {
		return
	}

	if err := ws.Gate.TakeOffline(c.Request.Context(), funnelID); err != nil {
		utils.ErrorResponseWithError(c, translateError(err))
		return
	}
	h.respondFunnel(c, ws, funnelID, "Funnel taken offline successfully")
}

func (h *FunnelHandler) resolve(c *gin.Context) (*workspace.Workspace, string, bool) {
	funnelID, err := utils.ParseSIDParam(c, "id", id.PrefixFunnel, "funnel")
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return nil, "", false
	}
	ws, ok := loadWorkspace(c, h.workspaces, h.logger)
	if !ok {
		return nil, "", false
	}
	return ws, funnelID, true
}

func (h *FunnelHandler) respondFunnel(c *gin.Context, ws *workspace.Workspace, funnelID, message string) {
	f, ok := ws.Board.Get(funnelID)
	if !ok {
		utils.ErrorResponseWithError(c, errors.NewNotFoundError("funnel not found"))
		return
	}
	utils.SuccessResponse(c, http.StatusOK, message, h.toResponse(ws, f))
}

func (h *FunnelHandler) respondReadiness(c *gin.Context, ws *workspace.Workspace, funnelID, message string) {
	r, err := ws.Gate.Readiness(funnelID)
	if err != nil {
		utils.ErrorResponseWithError(c, translateError(err))
		return
	}
	utils.SuccessResponse(c, http.StatusOK, message, dto.ToReadinessResponse(funnelID, r))
}

func (h *FunnelHandler) toResponse(ws *workspace.Workspace, f *funnel.Funnel) dto.FunnelResponse {
	var state funnel.State
	if r, err := ws.Gate.Readiness(f.ID()); err == nil {
		state = r.State
	}
	return dto.ToFunnelResponse(f, state)
}
