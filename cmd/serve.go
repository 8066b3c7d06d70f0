package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/internal/api"
	"github.com/satriahrh/fixit/server/internal/config"
	"github.com/satriahrh/fixit/server/internal/websocket"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub(cfg.Progress.BacklogTTL, logger)
	go hub.Run(ctx)

	cleanupService := websocket.NewBacklogCleanupService(hub, cfg.Progress.CleanupInterval, logger)
	cleanupService.Start()
	defer cleanupService.Stop()

	a, err := newApp(ctx, cfg, nil, hub, logger)
	if err != nil {
		return err
	}

	e := newServer(cfg, a, hub, logger)

	// Start server
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Server.Port),
		zap.Bool("mockModel", cfg.UseMockModel()),
		zap.Bool("mongodb", cfg.UseMongoDB()),
		zap.Bool("webGrounding", cfg.Pipeline.EnableWebGrounding),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	a.Close(shutdownCtx)

	logger.Info("Server exited")
	return nil
}

// newServer builds the echo instance with middleware and routes
func newServer(cfg *config.Config, a *app, hub *websocket.Hub, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	api.InitRoutes(e, api.Dependencies{
		Pipeline: a.pipeline,
		Analyzer: a.analyzer,
		Images:   a.images,
		Gateway:  a.gateway,
		Log:      a.log,
		Issuer:   a.issuer,
		Hub:      hub,
	}, logger)

	return e
}
