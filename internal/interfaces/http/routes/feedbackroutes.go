package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/orris-inc/storefront/internal/interfaces/http/handlers"
	"github.com/orris-inc/storefront/internal/interfaces/http/middleware"
)

type FeedbackRouteConfig struct {
	FeedbackHandler *handlers.FeedbackHandler
	AuthMiddleware  *middleware.AuthMiddleware
	RateLimiter     *middleware.RateLimiter // optional
}

func SetupFeedbackRoutes(rg *gin.RouterGroup, config *FeedbackRouteConfig) {
	feedback := rg.Group("/feedback")
	feedback.Use(config.AuthMiddleware.RequireMerchant())
	if config.RateLimiter != nil {
		feedback.Use(config.RateLimiter.Limit())
	}
	{
		feedback.GET("", config.FeedbackHandler.ListActive)
		feedback.GET("/ws", config.FeedbackHandler.Stream)
	}
}
