package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-character-chat-simulator/backend/pkg/config"
	"ai-character-chat-simulator/backend/pkg/di"
	"ai-character-chat-simulator/backend/pkg/health"
	"ai-character-chat-simulator/backend/pkg/logger"
	"ai-character-chat-simulator/backend/pkg/router"
	"ai-character-chat-simulator/backend/shared/observability"
)

func main() {
	// Load configuration, including any .env file
	cfg := config.New()

	// Initialize structured logger
	log := logger.New(logger.FromSettings(cfg.Logging.Level, cfg.Logging.Format))
	logger.SetGlobal(log)

	log.Info("Starting application", "version", cfg.Server.Version, "env", cfg.Server.Env)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	provider, err := observability.Setup(observability.Options{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Server.Version,
		TracingEnabled: cfg.Observability.TracingEnabled,
	})
	if err != nil {
		log.LogError(err, "Failed to initialize observability")
		os.Exit(1)
	}

	// Initialize dependency injection container
	container, err := di.New(ctx, cfg, log, di.Options{})
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	// Initialize and setup router
	r, err := router.New(container)
	if err != nil {
		log.LogError(err, "Failed to initialize router")
		os.Exit(1)
	}
	r.SetupRoutes()

	go container.Hub.Run(ctx)
	go r.RateLimiter.Cleanup(ctx)
	container.Health.Start(ctx)

	grpcServer := health.NewGRPCServer(container.Health, cfg.Observability.ServiceName, log)
	go func() {
		if err := grpcServer.Serve(ctx, cfg.Server.GRPCPort); err != nil {
			log.LogError(err, "gRPC health server stopped")
		}
	}()

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	// Start the server in a goroutine
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	// Setup graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Block until we receive a signal
	<-quit
	log.Info("Shutting down server...")

	// Create a deadline to wait for
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown the server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}

	if err := container.Close(); err != nil {
		log.LogError(err, "Failed to release resources")
	}
	stop()

	if err := provider.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Failed to flush telemetry")
	}

	log.Info("Server exited gracefully")
}
