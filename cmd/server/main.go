package main

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/openlms/attempt-service/internal/archive"
	"github.com/openlms/attempt-service/internal/config"
	"github.com/openlms/attempt-service/internal/gateway"
	"github.com/openlms/attempt-service/internal/handlers"
	"github.com/openlms/attempt-service/internal/middleware"
	"github.com/openlms/attempt-service/internal/services"
	"github.com/openlms/attempt-service/internal/utils"
	"github.com/openlms/attempt-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}
	slogger := utils.ToSlogLogger(logger)

	store, err := buildArchiveStore(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize submission archive: %v", err)
	}

	publisher, err := cfg.Events.CreateEventPublisher(slogger)
	if err != nil {
		log.Fatalf("failed to create event publisher: %v", err)
	}
	defer publisher.Close()

	gw := gateway.NewHTTPClient(cfg.UpstreamAPIURL, cfg.UpstreamAPIToken, slogger)
	validator := utils.NewValidator()

	attemptService := services.NewAttemptService(gw, store, publisher, validator, slogger, cfg.EssayUpstreamSubmit)
	archiveService := services.NewArchiveService(store, slogger)

	authenticator := middleware.NewAuthenticator(cfg.Casdoor, cfg.Environment, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(utils.LoggerMiddleware(logger), gin.Recovery())

	handlerManager := handlers.NewHandlerManager(attemptService, archiveService, authenticator, validator, logger)
	handlerManager.SetupRoutes(router)

	logger.Info("Starting attempt service",
		"port", cfg.Port,
		"environment", cfg.Environment)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// buildArchiveStore picks the archive backend from configuration: postgres
// when DATABASE_URL is set, redis when REDIS_URL is set, in-memory otherwise.
func buildArchiveStore(cfg *config.Config, logger utils.Logger) (archive.Store, error) {
	slogger := utils.ToSlogLogger(logger)

	if cfg.DatabaseURL != "" {
		db, err := pkg.InitDatabase(cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("Using postgres submission archive")
		return archive.NewGormStore(db)
	}

	if cfg.RedisURL != "" {
		client, err := pkg.NewRedisClient(cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("Using redis submission archive", "ttl", cfg.ArchiveTTL.String())
		return archive.NewRedisStore(client, cfg.ArchiveTTL, slogger), nil
	}

	logger.Warn("No archive backend configured, submissions are kept in memory")
	return archive.NewMemoryStore(), nil
}
