package main

import (
	"context"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/config"
	"settlement/apps/settlement/internal/mcp"
	"settlement/apps/settlement/internal/payment"
	"settlement/apps/settlement/internal/repository"
)

// Serves the settlement tools over stdio for local agent runtimes. Logs go to
// stderr so stdout stays reserved for the protocol.
func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg := config.NewConfig()

	store, closeStore, err := repository.OpenStore(context.Background(), cfg.StoreDriver, cfg.DbURL, cfg.SeedFixtures, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer closeStore()

	service := payment.NewService(store, logger, payment.WithReviewers(cfg.ReviewerIDs))
	mcpServer := mcp.NewMCPServer(service, logger)

	logger.Info("Settlement MCP server starting on stdio", zap.String("store_driver", cfg.StoreDriver))

	if err := server.ServeStdio(mcpServer.GetMCPServer()); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}
