package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"videoextract/config"
	"videoextract/internal/backend"
	"videoextract/internal/cache"
	"videoextract/internal/download"
	"videoextract/internal/extractor"
	"videoextract/internal/handler"
	"videoextract/internal/security"
	"videoextract/internal/storage"
	"videoextract/pkg/logger"
	"videoextract/pkg/metrics"
	"videoextract/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(&cfg.Logging); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting video extraction service",
		zap.Int("port", cfg.Server.Port),
		zap.Int("api_keys", len(cfg.Security.Keys)))

	storageManager := storage.NewManager(&cfg.Storage)
	if err := storageManager.EnsureDirs(); err != nil {
		logger.Logger.Fatal("Failed to create storage directories", zap.Error(err))
	}
	storageManager.Start()
	defer storageManager.Stop()

	be := backend.NewYTDLP(cfg.Extraction.Timeout, cfg.Extraction.DownloadTimeout)
	store := cache.New(&cfg.Cache)
	gate := security.NewGate(&cfg.Security)
	orchestrator := extractor.New(be, store, &cfg.Extraction)
	downloadManager := download.NewManager(be, storageManager, &cfg.Extraction)

	extractHandler := handler.NewExtractHandler(orchestrator)
	downloadHandler := handler.NewDownloadHandler(downloadManager, storageManager)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(logger.GinLogger())
	router.Use(metrics.Middleware())

	router.GET("/api/health", extractHandler.Health)
	router.GET("/metrics", metrics.Handler())

	api := router.Group("/api")
	api.Use(middleware.Auth(gate))
	{
		canExtract := middleware.RequirePermission(gate, "extract")
		canDownload := middleware.RequirePermission(gate, "download")

		api.POST("/extract", canExtract, extractHandler.Extract)
		api.POST("/validate", canExtract, extractHandler.Validate)
		api.GET("/platforms", canExtract, extractHandler.Platforms)
		api.POST("/download", canDownload, downloadHandler.Download)
		api.GET("/status/:download_id", canDownload, downloadHandler.Status)
	}

	// Artifact retrieval is authenticated too; browsers can pass the key
	// via the api_key query parameter.
	files := router.Group("/downloads")
	files.Use(middleware.Auth(gate), middleware.RequirePermission(gate, "download"))
	files.GET("/:filename", downloadHandler.ServeFile)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.Timeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.Timeout) * time.Second,
	}

	go func() {
		logger.Logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("Forced shutdown", zap.Error(err))
	}
	logger.Logger.Info("Server stopped")
}
