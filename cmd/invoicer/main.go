package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rental-inventory-backend/internal/app"
	"rental-inventory-backend/internal/config"
	"rental-inventory-backend/internal/events"
	"rental-inventory-backend/internal/logger"
	"rental-inventory-backend/internal/observability"
)

var version = "dev"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if !cfg.Kafka.Enabled() {
		log.Fatalf("The invoicer needs kafka.brokers to be configured")
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting rental invoicer...", "version", version, "topic", cfg.Kafka.Topic, "group_id", cfg.Kafka.GroupID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, shutdownTracing, err := observability.SetupTracingSDK(ctx, cfg.Telemetry, version)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}

	store, err := app.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		log.Fatalf("Failed to open database: %v", err)
	}
	application := app.Build(cfg, store, time.Now)

	reader := events.NewKafkaReader(app.KafkaConfig(cfg))
	logger.Info("Consuming order events", "brokers", cfg.Kafka.Brokers)
	consumeErr := events.Consume(ctx, reader, application.Invoices.HandleEvent)
	if consumeErr != nil {
		logger.Error("Consumer stopped", "error", consumeErr)
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := reader.Close(); err != nil {
		logger.Error("Failed to close Kafka reader", "error", err)
	}
	if err := store.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Tracing shutdown failed", "error", err)
	}
	if consumeErr != nil {
		os.Exit(1)
	}
	logger.Info("Invoicer stopped. Goodbye!")
}
