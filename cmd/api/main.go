package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"

	"github.com/avisio/hub/internal/api/handlers"
	"github.com/avisio/hub/internal/api/middleware"
	"github.com/avisio/hub/internal/config"
	"github.com/avisio/hub/internal/normalizer"
	"github.com/avisio/hub/internal/observability"
	"github.com/avisio/hub/internal/openai"
	"github.com/avisio/hub/internal/repository"
	"github.com/avisio/hub/internal/service"
	"github.com/avisio/hub/internal/workers"
	"github.com/avisio/hub/pkg/database"
)

const queryEmbeddingCacheSize = 512

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	metrics := observability.NewMetrics()

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
	if aiClient.Configured() {
		slog.Info("AI enrichment enabled",
			"chat_model", cfg.AzureOpenAIDeployment,
			"embedding_model", cfg.EmbeddingModel,
		)
	} else {
		slog.Info("AI enrichment degraded: Azure OpenAI not configured, using deterministic fallback")
	}

	feedbackRepo := repository.NewFeedbackRepository(db, cfg.EmbeddingDimensions)

	exclusionChecker := service.NewHTTPExclusionChecker(cfg.ExclusionCheckURL, logger)
	if exclusionChecker.Enabled() {
		slog.Info("Exclusion check enabled", "url", cfg.ExclusionCheckURL)
	}

	pipelineService := service.NewPipelineService(service.PipelineServiceParams{
		Repo:             feedbackRepo,
		Normalizer:       normalizer.New(aiClient, logger),
		EmbeddingClient:  aiClient,
		ExclusionChecker: exclusionChecker,
		Metrics:          metrics,
		Logger:           logger,
	})

	riverClient, err := initRiver(ctx, db, cfg, pipelineService, logger)
	if err != nil {
		slog.Error("Failed to initialize River job queue", "error", err)
		os.Exit(1)
	}
	slog.Info("River job queue started", "workers", cfg.PipelineWorkers)

	feedbackService := service.NewFeedbackService(feedbackRepo, riverClient, logger)
	feedbacksHandler := handlers.NewFeedbacksHandler(feedbackService)

	queryCache, err := lru.New[string, []float32](queryEmbeddingCacheSize)
	if err != nil {
		slog.Error("Failed to create query embedding cache", "error", err)
		os.Exit(1)
	}

	searchService := service.NewSearchService(service.SearchServiceParams{
		EmbeddingClient: aiClient,
		Repo:            feedbackRepo,
		Model:           cfg.EmbeddingModel,
		QueryCache:      queryCache,
		CacheMetrics:    metrics,
		Logger:          logger,
	})
	searchHandler := handlers.NewSearchHandler(searchService)

	healthHandler := handlers.NewHealthHandler()

	// Public endpoints (no authentication required)
	publicMux := http.NewServeMux()
	publicMux.HandleFunc("GET /health", healthHandler.Check)
	publicMux.Handle("GET /metrics", metrics.Handler())

	// Protected endpoints (authentication required)
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("POST /v1/feedbacks", feedbacksHandler.Create)
	protectedMux.HandleFunc("GET /v1/feedbacks/{id}", feedbacksHandler.Get)
	protectedMux.HandleFunc("POST /v1/feedbacks/{id}/process", feedbacksHandler.Process)
	protectedMux.HandleFunc("POST /v1/feedbacks/search", searchHandler.Search)
	protectedMux.HandleFunc("GET /v1/restaurants/{id}/themes", searchHandler.Themes)

	var protectedHandler http.Handler = protectedMux
	protectedHandler = middleware.Auth(cfg.APIKey)(protectedHandler)
	protectedHandler = middleware.MaxBody(cfg.MaxRequestBodyBytes)(protectedHandler)

	mainMux := http.NewServeMux()
	mainMux.Handle("/v1/", protectedHandler)
	mainMux.Handle("/", publicMux)

	// Outermost: request ID first so metrics and logs carry it
	handler := middleware.RequestID(middleware.Metrics(metrics)(mainMux))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 1. Stop accepting new HTTP requests
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// 2. Stop River (waits for in-flight pipeline jobs to complete)
	slog.Info("Stopping River job queue...")
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River forced to shutdown", "error", err)
	}
	slog.Info("River job queue stopped")

	slog.Info("Server exited")
}

// initRiver creates and starts the River client with the feedback pipeline worker.
func initRiver(
	ctx context.Context,
	db *pgxpool.Pool,
	cfg *config.Config,
	pipelineService *service.PipelineService,
	logger *slog.Logger,
) (*river.Client[pgx.Tx], error) {
	riverWorkers := river.NewWorkers()
	river.AddWorker(riverWorkers, workers.NewFeedbackPipelineWorker(pipelineService, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(db), &river.Config{
		Queues: map[string]river.QueueConfig{
			service.PipelineQueueName: {MaxWorkers: cfg.PipelineWorkers},
		},
		Workers: riverWorkers,
	})
	if err != nil {
		return nil, err
	}

	if err := riverClient.Start(ctx); err != nil {
		return nil, err
	}

	return riverClient, nil
}
