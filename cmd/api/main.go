package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"reportexport/infrastructure/config"
	"reportexport/infrastructure/di"
	"reportexport/interfaces/events"
	"reportexport/interfaces/http/rest"
)

func main() {
	// Initialize context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load .env in development; missing file is fine
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Re-arm waits for operations that were running when the previous
	// process stopped
	restored, err := container.Registry.Restore(ctx)
	if err != nil {
		container.Logger.Fatal("Failed to restore operations", zap.Error(err))
	}
	if restored > 0 {
		container.Logger.Info("Restored running operations", zap.Int("count", restored))
	}

	// Start the notification listener when a broker is configured
	var listener *events.Listener
	if cfg.NATSURL != "" {
		listener, err = events.NewListener(cfg.NATSURL, cfg.NotificationSubject, container.Bridge, container.Logger)
		if err != nil {
			container.Logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		if err := listener.Start(); err != nil {
			container.Logger.Fatal("Failed to subscribe to notifications", zap.Error(err))
		}
	}

	// Create router
	router := rest.NewRouter(
		container.ExportService,
		container.Registry,
		container.Bridge,
		container.OperationRepo,
		container.Metrics,
		cfg,
		container.Logger,
	)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		container.Logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	container.Logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Server shutdown error", zap.Error(err))
	}

	if listener != nil {
		listener.Close()
	}

	// Stop instance goroutines; running records stay persisted for Restore
	container.Registry.Close()

	if err := container.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Server stopped")
}
