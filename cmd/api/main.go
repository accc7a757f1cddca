package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/memefeed/internal/api"
	"github.com/timmy/memefeed/internal/auth"
	"github.com/timmy/memefeed/internal/composer"
	"github.com/timmy/memefeed/internal/config"
	"github.com/timmy/memefeed/internal/logger"
	"github.com/timmy/memefeed/internal/memeapi"
	"github.com/timmy/memefeed/internal/metrics"
	"github.com/timmy/memefeed/internal/repository"
	"github.com/timmy/memefeed/internal/service"
	"github.com/timmy/memefeed/internal/storage"
)

func main() {
	appLogger := logger.New(logger.ConfigFromEnv("memefeed-api"))
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	registry := metrics.New()
	client := memeapi.NewClient(memeapi.ConfigFrom(cfg.API), registry)

	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	pictures, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}
	if s3Store, ok := pictures.(*storage.S3Storage); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := s3Store.EnsureBucket(ctx)
		cancel()
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to ensure storage bucket")
		}
	}

	feedService := service.NewFeedService(client, registry, appLogger, &service.FeedConfig{
		MaxConcurrency: cfg.API.MaxConcurrency,
	})
	commentService := service.NewCommentService(client, appLogger)
	if cfg.Auth.JWTSecret == "" {
		appLogger.Warn("auth.jwt_secret is not set; draft routes will reject every token")
	}
	draftService := service.NewDraftService(
		repository.NewDraftRepository(db),
		auth.NewVerifier(cfg.Auth.JWTSecret),
		pictures,
		client,
		nil,
		registry,
		service.DraftConfig{
			Canvas:          composer.Canvas{Width: cfg.Composer.CanvasWidth, Height: cfg.Composer.CanvasHeight},
			MaxPictureBytes: cfg.Composer.MaxPictureBytes,
		},
	)

	router := api.SetupRouter(cfg, api.Services{
		Feed:     feedService,
		Comments: commentService,
		Drafts:   draftService,
	}, registry, appLogger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":     cfg.Server.Port,
			"mode":     cfg.Server.Mode,
			"upstream": cfg.API.BaseURL,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	appLogger.Info("Server exited")
}
