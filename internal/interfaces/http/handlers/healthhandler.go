package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/storefront/internal/shared/logger"
	"github.com/orris-inc/storefront/internal/shared/utils"
	"github.com/orris-inc/storefront/internal/shared/version"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db     Pinger
	logger logger.Interface
}

func NewHealthHandler(db Pinger, logger logger.Interface) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Version  string `json:"version"`
}

// HealthCheck reports liveness and database reachability.
// GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	resp := healthResponse{Status: "ok", Database: "ok", Version: version.Current()}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Warnw("health check database ping failed", "error", err)
		resp.Status = "degraded"
		resp.Database = "unreachable"
		c.JSON(http.StatusServiceUnavailable, utils.APIResponse{Success: false, Data: resp, Message: "database unreachable"})
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", resp)
}
