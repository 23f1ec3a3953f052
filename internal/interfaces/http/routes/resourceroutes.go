package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/orris-inc/storefront/internal/interfaces/http/handlers"
	"github.com/orris-inc/storefront/internal/interfaces/http/middleware"
)

type ResourceRouteConfig struct {
	ResourceHandler *handlers.ResourceHandler
	AuthMiddleware  *middleware.AuthMiddleware
	RateLimiter     *middleware.RateLimiter // optional
}

func SetupResourceRoutes(rg *gin.RouterGroup, config *ResourceRouteConfig) {
	resources := rg.Group("/resources")
	resources.Use(config.AuthMiddleware.RequireMerchant())
	if config.RateLimiter != nil {
		resources.Use(config.RateLimiter.Limit())
	}
	{
		resources.GET("", config.ResourceHandler.ListResources)
		resources.POST("", config.ResourceHandler.CreateResource)

		// Static paths before /:id
		resources.GET("/availability", config.ResourceHandler.CheckNameAvailability)
		resources.POST("/resync", config.ResourceHandler.ResyncResources)

		resources.PATCH("/:id", config.ResourceHandler.UpdateResource)
		resources.DELETE("/:id", config.ResourceHandler.DeleteResource)
	}
}
