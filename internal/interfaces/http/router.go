package http

import (
	"github.com/gin-gonic/gin"

	"github.com/orris-inc/storefront/internal/infrastructure/auth"
	"github.com/orris-inc/storefront/internal/interfaces/http/handlers"
	"github.com/orris-inc/storefront/internal/interfaces/http/middleware"
	"github.com/orris-inc/storefront/internal/interfaces/http/routes"
	"github.com/orris-inc/storefront/internal/shared/config"
	"github.com/orris-inc/storefront/internal/shared/logger"
	"github.com/orris-inc/storefront/internal/shared/services/markdown"
)

// RouterDeps are the collaborators the HTTP layer is built from.
type RouterDeps struct {
	Workspaces handlers.WorkspaceProvider
	Emitters   handlers.EmitterSource
	Renderer   markdown.Renderer
	Database   handlers.Pinger
	JWTService *auth.JWTService
	Server     config.ServerConfig
	// RateLimiter is nil when rate limiting is off.
	RateLimiter *middleware.RateLimiter
	Logger      logger.Interface
}

// Router represents the HTTP router configuration
type Router struct {
	engine          *gin.Engine
	allowedOrigins  []string
	authMiddleware  *middleware.AuthMiddleware
	resourceHandler *handlers.ResourceHandler
	funnelHandler   *handlers.FunnelHandler
	feedbackHandler *handlers.FeedbackHandler
	healthHandler   *handlers.HealthHandler
	rateLimiter     *middleware.RateLimiter
	logger          logger.Interface
}

func NewRouter(deps RouterDeps) *Router {
	return &Router{
		engine:          gin.New(),
		allowedOrigins:  deps.Server.AllowedOrigins,
		authMiddleware:  middleware.NewAuthMiddleware(deps.JWTService, deps.Logger),
		resourceHandler: handlers.NewResourceHandler(deps.Workspaces, deps.Renderer, deps.Logger),
		funnelHandler:   handlers.NewFunnelHandler(deps.Workspaces, deps.Logger),
		feedbackHandler: handlers.NewFeedbackHandler(deps.Emitters, deps.Server.AllowedOrigins, deps.Logger),
		healthHandler:   handlers.NewHealthHandler(deps.Database, deps.Logger),
		rateLimiter:     deps.RateLimiter,
		logger:          deps.Logger,
	}
}

// SetupRoutes configures all HTTP routes
func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.CustomLogger(r.logger))
	r.engine.Use(middleware.Recovery(r.logger))
	r.engine.Use(middleware.CORS(r.allowedOrigins))

	r.engine.GET("/health", r.healthHandler.HealthCheck)

	v1 := r.engine.Group("/api/v1")
	routes.SetupResourceRoutes(v1, &routes.ResourceRouteConfig{
		ResourceHandler: r.resourceHandler,
		AuthMiddleware:  r.authMiddleware,
		RateLimiter:     r.rateLimiter,
	})
	routes.SetupFunnelRoutes(v1, &routes.FunnelRouteConfig{
		FunnelHandler:  r.funnelHandler,
		AuthMiddleware: r.authMiddleware,
		RateLimiter:    r.rateLimiter,
	})
	routes.SetupFeedbackRoutes(v1, &routes.FeedbackRouteConfig{
		FeedbackHandler: r.feedbackHandler,
		AuthMiddleware:  r.authMiddleware,
		RateLimiter:     r.rateLimiter,
	})
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
