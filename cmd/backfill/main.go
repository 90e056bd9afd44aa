// Package main provides a CLI tool to enrich historical feedback records
// that predate the enrichment pipeline. Records are processed with the
// heuristic classifier; the run is rate limited and individual failures are
// counted rather than fatal.
//
// Usage:
//
//	go run cmd/backfill/main.go [-restaurant <uuid>]
//
// Environment variables:
//   - DATABASE_URL: PostgreSQL connection string (required)
//   - API_KEY: required by config loading (unused here)
//   - BACKFILL_BATCH_SIZE: records fetched per batch (default: 50)
//   - BACKFILL_RECORDS_PER_SEC: processing pace (default: 20)
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/avisio/hub/internal/config"
	"github.com/avisio/hub/internal/normalizer"
	"github.com/avisio/hub/internal/observability"
	"github.com/avisio/hub/internal/openai"
	"github.com/avisio/hub/internal/repository"
	"github.com/avisio/hub/internal/service"
	"github.com/avisio/hub/pkg/database"
)

func main() {
	restaurantFlag := flag.String("restaurant", "", "limit the backfill to one restaurant (UUID)")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	var restaurantID *uuid.UUID
	if *restaurantFlag != "" {
		id, err := uuid.Parse(*restaurantFlag)
		if err != nil {
			slog.Error("Invalid -restaurant flag, expected a UUID", "value", *restaurantFlag)
			os.Exit(1)
		}
		restaurantID = &id
	}

	slog.Info("Starting feedback backfill...",
		"batch_size", cfg.BackfillBatchSize,
		"records_per_sec", cfg.BackfillRecordsPerSec,
	)

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, database.WithVectorTypes())
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	aiClient := openai.NewClient(openai.Config{
		Endpoint:   cfg.AzureOpenAIEndpoint,
		APIKey:     cfg.AzureOpenAIAPIKey,
		APIVersion: cfg.AzureOpenAIAPIVersion,
		ChatModel:  cfg.AzureOpenAIDeployment,
		EmbedModel: cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDimensions,
		Timeout:    cfg.OpenAITimeout,
	})
	if !aiClient.Configured() {
		slog.Info("Azure OpenAI not configured: embeddings will be skipped, classification is heuristic")
	}

	feedbackRepo := repository.NewFeedbackRepository(db, cfg.EmbeddingDimensions)

	pipelineService := service.NewPipelineService(service.PipelineServiceParams{
		Repo:             feedbackRepo,
		Normalizer:       normalizer.New(aiClient, logger),
		EmbeddingClient:  aiClient,
		ExclusionChecker: service.NewHTTPExclusionChecker(cfg.ExclusionCheckURL, logger),
		Logger:           logger,
	})

	backfill := service.NewBackfillService(
		feedbackRepo,
		pipelineService,
		cfg.BackfillBatchSize,
		cfg.BackfillRecordsPerSec,
		logger,
	)

	stats, err := backfill.Run(ctx, restaurantID)
	if err != nil {
		slog.Error("Backfill aborted", "error", err, "processed", stats.Processed, "errors", stats.Errors)
		os.Exit(1)
	}

	slog.Info("Backfill complete", "processed", stats.Processed, "errors", stats.Errors)
	if stats.Errors > 0 {
		os.Exit(2)
	}
}
