package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aerorelay-service/internal/app"
	"aerorelay-service/internal/infrastructure/config"
	"aerorelay-service/internal/infrastructure/router"
	"aerorelay-service/internal/interface/handler"
	"aerorelay-service/pkg/logger"
	"aerorelay-service/pkg/metrics"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger("info").Fatal("Failed to load config", "error", err)
	}

	// Create logger
	log := logger.NewLogger(cfg.LogLevel)
	defer log.Sync()
	log.Info("Starting AeroRelay Service", "version", cfg.AppVersion)

	m := metrics.NewMetrics("aerorelay")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := app.Build(ctx, cfg, log, m)
	if err != nil {
		log.Fatal("Failed to initialise services", "error", err)
	}

	// Consume transitions from Kafka
	if services.Consumer != nil {
		go func() {
			if err := services.Consumer.Run(ctx); err != nil {
				log.Error("Transition consumer stopped", "error", err)
			}
		}()
	}

	// Start flight poller in a goroutine
	if cfg.PollEnabled {
		go func() {
			pollTicker := time.NewTicker(cfg.PollInterval)
			defer pollTicker.Stop()

			for {
				select {
				case <-ctx.Done():
					log.Info("Flight poller stopped")
					return
				case <-pollTicker.C:
					report, err := services.Poller.RunBatch(ctx)
					if err != nil {
						log.Error("Error polling flight statuses", "error", err)
						continue
					}
					log.Info("Flight poll finished", "checked", report.Checked, "updated", report.Updated, "skipped", report.Skipped, "errors", report.Errors, "message", report.Message)
				}
			}
		}()
	} else {
		log.Info("Scheduled polling disabled, batches run on request only")
	}

	// Set up HTTP server
	gin.SetMode(gin.ReleaseMode)
	h := handler.NewHandler(services.Poller, services.Journeys, services.Dispatcher, log)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.NewHTTPRouter(h, m, log),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Cancel the context to stop all goroutines

	if err := services.Close(); err != nil {
		log.Error("Error closing connections", "error", err)
	}

	log.Info("AeroRelay Service stopped")
}
