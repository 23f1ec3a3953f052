package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/orris-inc/storefront/internal/interfaces/http/handlers"
	"github.com/orris-inc/storefront/internal/interfaces/http/middleware"
)

type FunnelRouteConfig struct {
	FunnelHandler  *handlers.FunnelHandler
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter // optional
}

func SetupFunnelRoutes(rg *gin.RouterGroup, config *FunnelRouteConfig) {
	funnels := rg.Group("/funnels")
	funnels.Use(config.AuthMiddleware.RequireMerchant())
	if config.RateLimiter != nil {
		funnels.Use(config.RateLimiter.Limit())
	}
	{
		funnels.GET("", config.FunnelHandler.ListFunnels)
		funnels.POST("", config.FunnelHandler.CreateFunnel)

		funnels.GET("/:id/readiness", config.FunnelHandler.GetReadiness)
		funnels.GET("/:id/assignable", config.FunnelHandler.ListAssignable)
		funnels.PUT("/:id/resources/:resource_id", config.FunnelHandler.AssignResource)
		funnels.DELETE("/:id/resources/:resource_id", config.FunnelHandler.UnassignResource)
		funnels.POST("/:id/deficient", config.FunnelHandler.MarkDeficient)

		// Gate transitions
		funnels.POST("/:id/generate", config.FunnelHandler.GenerateFunnel)
		funnels.POST("/:id/deploy", config.FunnelHandler.DeployFunnel)
		funnels.POST("/:id/offline", config.FunnelHandler.TakeFunnelOffline)

		funnels.GET("/:id", config.FunnelHandler.GetFunnel)
	}
}
