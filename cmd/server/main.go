package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coursekit/quiz-engine/internal/cache"
	"github.com/coursekit/quiz-engine/internal/config"
	"github.com/coursekit/quiz-engine/internal/handlers"
	"github.com/coursekit/quiz-engine/internal/repositories/postgres"
	"github.com/coursekit/quiz-engine/internal/services"
	"github.com/coursekit/quiz-engine/internal/utils"
	"github.com/coursekit/quiz-engine/internal/validator"
	"github.com/coursekit/quiz-engine/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var appLogger utils.Logger
	if cfg.Environment == "production" {
		appLogger = utils.NewDefaultLogger()
	} else {
		appLogger = utils.NewDevelopmentLogger()
	}
	logger := utils.ToSlogLogger(appLogger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := pkg.AutoMigrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	cacheService := buildCache(cfg, logger)

	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		logger.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	repo := postgres.New(db)
	serviceManager := services.NewServiceManager(repo, logger, validator.New(), publisher, cacheService)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(utils.LoggerMiddleware(appLogger))
	router.Use(gin.Recovery())

	handlerManager := handlers.NewHandlerManager(serviceManager, appLogger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runSweeper(sweepCtx, serviceManager.Attempt(), logger, time.Duration(cfg.SweepIntervalSeconds)*time.Second)

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}

	if err := repo.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}

	logger.Info("Server stopped")
}

func buildCache(cfg *config.Config, logger *slog.Logger) cache.CacheService {
	if cfg.RedisURL == "" {
		logger.Info("Redis not configured, result caching disabled")
		return cache.NoopCache{}
	}

	client, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, result caching disabled", "error", err)
		return cache.NoopCache{}
	}
	return cache.NewRedisCache(client, logger.With("component", "cache"))
}

// runSweeper periodically finalizes attempts whose deadline has passed.
// The sweep is the only authority that closes expired attempts.
func runSweeper(ctx context.Context, attempts services.AttemptService, logger *slog.Logger, interval time.Duration) {
	opLogger := services.NewServiceLogger(logger, "sweeper")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Attempt sweeper started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Attempt sweeper stopped")
			return
		case <-ticker.C:
			start := time.Now()
			swept, err := attempts.SweepExpired(ctx)
			opLogger.LogOperation(ctx, "sweep_expired_attempts", "system", uint(swept), time.Since(start), err)
		}
	}
}
