package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/storeit/server/pkg/api/handler"
	"github.com/storeit/server/pkg/metadata/repository"
	"github.com/storeit/server/pkg/metrics"
	"github.com/storeit/server/pkg/middleware"
	"github.com/storeit/server/pkg/quota"
	"github.com/storeit/server/pkg/service"
)

func main() {
	_ = godotenv.Load()

	config, err := LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}

	logger, err := newLogger(config.Logging.Level)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	repo, err := repository.New(config.Storage.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer repo.Close()

	blobs, err := config.blobStore()
	if err != nil {
		logger.Fatal("failed to initialize blob storage", zap.Error(err))
	}

	collector := metrics.NewCollector()
	accountant := quota.NewAccountant(repo, config.Storage.QuotaBytes)
	files := service.New(repo, blobs, accountant, logger, collector)

	auth := middleware.NewAuth(config.Auth.JWTSecret)

	router := gin.New()
	router.Use(middleware.RequestLogging(logger), gin.Recovery())
	router.GET("/metrics", collector.Handler())

	api := handler.NewAPI(files, auth)
	api.RegisterRoutes(router)

	logger.Info("starting server",
		zap.String("port", config.Server.Port),
		zap.String("backend", config.Storage.Backend),
		zap.Int64("quota_bytes", config.Storage.QuotaBytes))
	if err := router.Run(":" + config.Server.Port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return cfg.Build()
}
