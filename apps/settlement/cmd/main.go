package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/api"
	"settlement/apps/settlement/internal/config"
	"settlement/apps/settlement/internal/confirmation_materializer"
	"settlement/apps/settlement/internal/event_publisher"
	"settlement/apps/settlement/internal/mcp"
	"settlement/apps/settlement/internal/payment"
	"settlement/apps/settlement/internal/repository"
)

func main() {
	// Initialize zap logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	// Load configuration from environment variables
	cfg := config.NewConfig()

	logger.Info("Starting settlement service with configuration",
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("kafka_broker", cfg.KafkaBroker),
		zap.String("kafka_topic", cfg.KafkaTopic),
		zap.String("confirmation_topic", cfg.ConfirmationTopic),
		zap.Duration("relay_interval", cfg.RelayInterval),
		zap.Int("relay_batch_size", cfg.RelayBatchSize),
		zap.Int("reviewers", len(cfg.ReviewerIDs)),
		zap.String("mcp_http_path", cfg.MCPHTTPPath),
		zap.Int("api_port", cfg.APIPort),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := repository.OpenStore(ctx, cfg.StoreDriver, cfg.DbURL, cfg.SeedFixtures, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer closeStore()

	service := payment.NewService(store, logger, payment.WithReviewers(cfg.ReviewerIDs))

	// The outbox relay only runs when a broker is configured; events stay queued otherwise.
	if cfg.KafkaBroker != "" {
		eventPublisher, err := event_publisher.NewEventPublisher(cfg.KafkaBroker, cfg.KafkaTopic, cfg.RelayInterval, cfg.RelayBatchSize, logger, store)
		if err != nil {
			logger.Fatal("Failed to create event publisher", zap.Error(err))
		}
		defer eventPublisher.Close()

		go eventPublisher.StartPublishing(ctx)

		if cfg.ConfirmationTopic != "" {
			materializer, err := confirmation_materializer.NewConfirmationMaterializer(cfg.KafkaBroker, cfg.ConfirmationTopic, cfg.ConsumerGroup, logger, service)
			if err != nil {
				logger.Fatal("Failed to create confirmation materializer", zap.Error(err))
			}
			defer materializer.Close()

			go func() {
				if err := materializer.Start(ctx); err != nil {
					logger.Fatal("Confirmation materializer failed", zap.Error(err))
				}
			}()
		}
	} else {
		logger.Warn("KAFKA_BROKER not set, outbox relay disabled")
	}

	var serverOpts []api.ServerOption
	if cfg.MCPHTTPPath != "" {
		mcpServer := mcp.NewMCPServer(service, logger)
		serverOpts = append(serverOpts, api.WithMCPHandler(cfg.MCPHTTPPath, mcpServer.HTTPHandler()))
	}

	// Create and start API server
	apiServer := api.NewServer(cfg.APIPort, service, logger, serverOpts...)
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Received shutdown signal, starting graceful shutdown...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error shutting down API server", zap.Error(err))
	}

	logger.Info("Application shutdown complete")
}
