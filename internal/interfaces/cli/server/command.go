package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	catalogservices "github.com/orris-inc/storefront/internal/application/catalog/services"
	"github.com/orris-inc/storefront/internal/application/feedback"
	funnelservices "github.com/orris-inc/storefront/internal/application/funnel/services"
	"github.com/orris-inc/storefront/internal/application/workspace"
	"github.com/orris-inc/storefront/internal/domain/funnel"
	"github.com/orris-inc/storefront/internal/domain/shared/events"
	"github.com/orris-inc/storefront/internal/infrastructure/auth"
	"github.com/orris-inc/storefront/internal/infrastructure/cache"
	"github.com/orris-inc/storefront/internal/infrastructure/config"
	"github.com/orris-inc/storefront/internal/infrastructure/database"
	"github.com/orris-inc/storefront/internal/infrastructure/deployment"
	"github.com/orris-inc/storefront/internal/infrastructure/generation"
	"github.com/orris-inc/storefront/internal/infrastructure/migration"
	"github.com/orris-inc/storefront/internal/infrastructure/pubsub"
	"github.com/orris-inc/storefront/internal/infrastructure/repository"
	httpRouter "github.com/orris-inc/storefront/internal/interfaces/http"
	"github.com/orris-inc/storefront/internal/interfaces/http/middleware"
	"github.com/orris-inc/storefront/internal/shared/goroutine"
	"github.com/orris-inc/storefront/internal/shared/logger"
	"github.com/orris-inc/storefront/internal/shared/services/markdown"
	"github.com/orris-inc/storefront/internal/shared/version"
)

var (
	env                string
	configPath         string
	autoMigrate        bool
	skipMigrationCheck bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Long:  `Start the storefront HTTP and WebSocket server with the specified configuration.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Automatically run database migrations on startup (not recommended for production)")
	cmd.Flags().BoolVar(&skipMigrationCheck, "skip-migration-check", false, "Skip migration status check on startup")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env, configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Server.Mode = mapEnvToGinMode(cfg.Server.Mode)

	if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	log.Infow("starting server",
		"environment", env,
		"version", version.Current(),
		"auto_migrate", autoMigrate)

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	if err := handleMigrations(cfg, log); err != nil {
		return fmt.Errorf("migration handling failed: %w", err)
	}

	db := database.Get()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	resourceRepo := repository.NewResourceRepository(db, log.Named("repository.resource"))
	funnelRepo := repository.NewFunnelRepository(db, log.Named("repository.funnel"))

	dispatcher := events.NewInMemoryEventDispatcher(log.Named("events"))
	hub := feedback.NewHub(feedback.Options{
		Expiry:    cfg.Feedback.Expiry(),
		QueueSize: cfg.Feedback.QueueSize,
	}, log.Named("feedback"))
	if err := dispatcher.Subscribe(events.AllEvents, hub); err != nil {
		return fmt.Errorf("failed to subscribe feedback hub: %w", err)
	}

	var (
		guard       funnelservices.BusyGuard
		rateLimiter *middleware.RateLimiter
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Infow("redis connected", "addr", cfg.Redis.GetAddr())

		guard = cache.NewAssignmentLock(client, cfg.Assignment.LockTTL())

		relay := pubsub.NewFeedbackRelay(client, hub, log.Named("pubsub.feedback"))
		if err := dispatcher.Subscribe(events.AllEvents, relay); err != nil {
			return fmt.Errorf("failed to subscribe feedback relay: %w", err)
		}
		if cfg.RateLimit.RequestsPerMinute > 0 {
			rateLimiter = middleware.NewRateLimiter(client, cfg.RateLimit.RequestsPerMinute, time.Minute, log.Named("ratelimit"))
		}

		goroutine.SafeGo(log, "feedback-relay", func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("feedback relay stopped", "error", err)
			}
		})
	}

	md := markdown.NewRenderer()
	var generator funnel.Generator
	if cfg.Generation.Endpoint != "" {
		generator = generation.NewHTTPGenerator(cfg.Generation.Endpoint, cfg.Generation.APIKey,
			cfg.Generation.Timeout(), log.Named("generation.http"))
		log.Infow("using remote generation service", "endpoint", cfg.Generation.Endpoint)
	} else {
		generator = generation.NewTemplateGenerator(md, log.Named("generation.template"))
	}

	workspaces := workspace.NewManager(workspace.Dependencies{
		CatalogRepo: resourceRepo,
		FunnelRepo:  funnelRepo,
		Publisher:   dispatcher,
		Generator:   generator,
		Deployer:    deployment.NewRepositoryDeployer(funnelRepo, log.Named("deployment")),
		Guard:       guard,
		Limits:      catalogservices.Limits{MaxResources: cfg.Catalog.MaxResources},
		Policy: funnel.Policy{
			PaidCapacity: cfg.Funnel.PaidCapacity,
			FreeCapacity: cfg.Funnel.FreeCapacity,
			MinTotal:     cfg.Funnel.MinTotalResources,
			MinFree:      cfg.Funnel.MinFreeResources,
		},
	}, log.Named("workspace"))

	router := httpRouter.NewRouter(httpRouter.RouterDeps{
		Workspaces:  workspaces,
		Emitters:    hub,
		Renderer:    md,
		Database:    sqlDB,
		JWTService:  auth.NewJWTService(cfg.Auth.JWT.Secret, cfg.Auth.JWT.AccessExpMinutes),
		Server:      cfg.Server,
		RateLimiter: rateLimiter,
		Logger:      log.Named("http"),
	})
	router.SetupRoutes()

	// No WriteTimeout: feedback streams are long-lived websocket connections.
	srv := &http.Server{
		Addr:              cfg.Server.GetAddr(),
		Handler:           router.GetEngine(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	goroutine.SafeGo(log, "http-server", func() {
		log.Infow("server starting",
			"address", cfg.Server.GetAddr(),
			"mode", cfg.Server.Mode)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infow("shutting down server...", "signal", sig.String())
	case err := <-serverErr:
		log.Errorw("failed to start server", "error", err)
		return err
	}

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
		return err
	}

	log.Infow("server exited gracefully", "workspaces_loaded", workspaces.Loaded())
	return nil
}

func handleMigrations(cfg *config.Config, log logger.Interface) error {
	if skipMigrationCheck {
		log.Infow("skipping migration check")
		return nil
	}

	manager := migration.NewManager(cfg.Database.Driver, log)

	// sqlite has no scripts to check against, so it is always migrated from the models.
	if autoMigrate || manager.Goose() == nil {
		if env == "production" {
			log.Warnw("auto-migration is enabled in production environment - this is not recommended!")
		}
		if err := manager.Migrate(database.Get(), migration.AutoMigrateModels()...); err != nil {
			return fmt.Errorf("auto-migration failed: %w", err)
		}
		return nil
	}

	v, err := manager.Goose().GetVersion(database.Get())
	if err != nil {
		log.Warnw("failed to check migration status", "error", err)
		return nil
	}
	log.Infow("current migration version", "version", v)
	return nil
}

func mapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod", "release":
		return gin.ReleaseMode
	case "test", "testing":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
