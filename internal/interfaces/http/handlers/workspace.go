package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/storefront/internal/application/workspace"
	"github.com/orris-inc/storefront/internal/shared/constants"
	"github.com/orris-inc/storefront/internal/shared/errors"
	"github.com/orris-inc/storefront/internal/shared/logger"
	"github.com/orris-inc/storefront/internal/shared/utils"
)

// WorkspaceProvider resolves the merchant's loaded workspace.
type WorkspaceProvider interface {
	Get(ctx context.Context, merchantID string) (*workspace.Workspace, error)
}

func merchantID(c *gin.Context) (string, bool) {
	id := c.GetString(constants.ContextKeyMerchantID)
	return id, id != ""
}

// loadWorkspace writes the error response itself and reports false on failure.
func loadWorkspace(c *gin.Context, provider WorkspaceProvider, log logger.Interface) (*workspace.Workspace, bool) {
	mid, ok := merchantID(c)
	if !ok {
		utils.ErrorResponseWithError(c, errors.NewUnauthorizedError("not authenticated"))
		return nil, false
	}

	ws, err := provider.Get(c.Request.Context(), mid)
	if err != nil {
		log.Errorw("failed to load merchant workspace", "merchant_id", mid, "error", err)
		utils.ErrorResponseWithError(c, translateError(err))
		return nil, false
	}
	return ws, true
}
