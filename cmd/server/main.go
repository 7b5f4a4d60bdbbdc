package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zhangqx2025/video-progress-service/internal/cache"
	"github.com/zhangqx2025/video-progress-service/internal/config"
	"github.com/zhangqx2025/video-progress-service/internal/handlers"
	"github.com/zhangqx2025/video-progress-service/internal/middleware"
	"github.com/zhangqx2025/video-progress-service/internal/models"
	"github.com/zhangqx2025/video-progress-service/internal/repositories/postgres"
	"github.com/zhangqx2025/video-progress-service/internal/services"
	"github.com/zhangqx2025/video-progress-service/internal/utils"
	"github.com/zhangqx2025/video-progress-service/internal/validator"
	"github.com/zhangqx2025/video-progress-service/pkg"
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
	slogLogger := utils.ToSlogLogger(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		logger.Error("Database connection failed", "error", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(
		&models.PlaybackSession{},
		&models.PlaybackEvent{},
		&models.WatchRecord{},
		&models.WatchPermission{},
	); err != nil {
		logger.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.Error("Redis connection failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	cacheService := cache.NewRedisCache(redisClient, slogLogger)

	publisher, err := cfg.Events.CreateEventPublisher(slogLogger)
	if err != nil {
		logger.Error("Event publisher setup failed", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	repo := postgres.NewRepository(db)
	v := validator.New()
	serviceManager := services.NewServiceManager(repo, slogLogger, v, cacheService, publisher)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	casdoorClient := middleware.NewCasdoorClient(cfg)
	router.Use(skipHealth(middleware.AuthMiddleware(casdoorClient, repo.User(), logger)))

	handlerManager := handlers.NewHandlerManager(serviceManager, logger)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Starting video progress service", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", "error", err)
	}
	if err := repo.Close(); err != nil {
		logger.Error("Closing database failed", "error", err)
	}
}

// skipHealth exempts the health probe from authentication.
func skipHealth(auth gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		auth(c)
	}
}
