package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avisio/hub/internal/apperrors"
	"github.com/avisio/hub/internal/models"
	"github.com/avisio/hub/internal/normalizer"
	"github.com/avisio/hub/internal/observability"
)

// FeedbackRepositoryForPipeline provides the persistence operations the
// enrichment pipeline needs.
type FeedbackRepositoryForPipeline interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Feedback, error)
	UpdateAIFields(
		ctx context.Context, id uuid.UUID,
		normalizedText string, sentimentScore float64, themes []string, severity models.Severity,
	) error
	UpdateEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
}

// FeedbackNormalizer produces the enrichment result for one feedback record.
type FeedbackNormalizer interface {
	Normalize(ctx context.Context, positiveText string, negativeText *string) normalizer.Result
}

// PipelineService runs the enrichment pipeline for feedback records:
// normalization, embedding, then exclusion check. Normalization results are
// persisted even when the embedding step fails; the exclusion check runs only
// after an embedding was stored.
type PipelineService struct {
	repo             FeedbackRepositoryForPipeline
	normalizer       FeedbackNormalizer
	embeddingClient  EmbeddingClient
	exclusionChecker ExclusionChecker
	metrics          observability.PipelineMetrics
	logger           *slog.Logger
}

// PipelineServiceParams configures PipelineService. ExclusionChecker and
// Metrics may be nil.
type PipelineServiceParams struct {
	Repo             FeedbackRepositoryForPipeline
	Normalizer       FeedbackNormalizer
	EmbeddingClient  EmbeddingClient
	ExclusionChecker ExclusionChecker
	Metrics          observability.PipelineMetrics
	Logger           *slog.Logger
}

// NewPipelineService creates a PipelineService.
func NewPipelineService(p PipelineServiceParams) *PipelineService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &PipelineService{
		repo:             p.Repo,
		normalizer:       p.Normalizer,
		embeddingClient:  p.EmbeddingClient,
		exclusionChecker: p.ExclusionChecker,
		metrics:          p.Metrics,
		logger:           logger,
	}
}

// ProcessFeedback loads the record, normalizes it, and runs the enrichment
// steps. A missing record is skipped silently. Returns an error only when
// loading fails or the normalization result cannot be persisted; embedding
// and exclusion failures are logged and do not fail the run.
func (s *PipelineService) ProcessFeedback(ctx context.Context, id uuid.UUID) error {
	start := time.Now()

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		// A record deleted between enqueue and execution is a race, not a failure.
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Debug("pipeline: feedback gone, skipping", "feedback_id", id)

			return nil
		}

		s.recordOutcome(ctx, "load_failed", start)
		s.logger.Error("pipeline: get feedback failed", "feedback_id", id, "error", err)

		return fmt.Errorf("get feedback: %w", err)
	}

	result := s.normalizer.Normalize(ctx, record.PositiveText, record.NegativeText)

	return s.EnrichRecord(ctx, record, result)
}

// EnrichRecord persists the normalization result, generates and stores the
// embedding, and triggers the exclusion check. The normalization quadruple is
// written in one statement; an embedding failure afterwards never rolls it
// back. Shared by the live pipeline and the heuristic backfill.
func (s *PipelineService) EnrichRecord(ctx context.Context, record *models.Feedback, result normalizer.Result) error {
	start := time.Now()

	err := s.repo.UpdateAIFields(ctx, record.ID,
		result.NormalizedText, result.SentimentScore, result.Themes, result.Severity)
	if err != nil {
		s.recordOutcome(ctx, "persist_failed", start)
		s.logger.Error("pipeline: persist normalization failed", "feedback_id", record.ID, "error", err)

		return fmt.Errorf("update feedback AI fields: %w", err)
	}

	embedding, err := s.embeddingClient.CreateEmbedding(ctx, result.NormalizedText)
	if err != nil {
		s.recordOutcome(ctx, "embedding_failed", start)
		s.logger.Error("pipeline: create embedding failed", "feedback_id", record.ID, "error", err)

		return nil
	}

	if err := s.repo.UpdateEmbedding(ctx, record.ID, embedding); err != nil {
		s.recordOutcome(ctx, "embedding_failed", start)
		s.logger.Error("pipeline: store embedding failed", "feedback_id", record.ID, "error", err)

		return nil
	}

	s.checkExclusions(ctx, record, embedding)

	s.recordOutcome(ctx, "success", start)
	s.logger.Info("pipeline: feedback enriched",
		"feedback_id", record.ID,
		"sentiment_score", result.SentimentScore,
		"severity", result.Severity,
		"themes", len(result.Themes),
	)

	return nil
}

// checkExclusions notifies the exclusion service. Failures are logged only;
// the record stays enriched either way.
func (s *PipelineService) checkExclusions(ctx context.Context, record *models.Feedback, embedding []float32) {
	if s.exclusionChecker == nil || !s.exclusionChecker.Enabled() {
		return
	}

	negativeText := ""
	if record.NegativeText != nil {
		negativeText = *record.NegativeText
	}

	err := s.exclusionChecker.CheckFeedback(ctx, &ExclusionCheckRequest{
		FeedbackID:   record.ID,
		RestaurantID: record.RestaurantID,
		Embedding:    embedding,
		PositiveText: record.PositiveText,
		NegativeText: negativeText,
	})
	if err != nil {
		s.logger.Error("pipeline: exclusion check failed", "feedback_id", record.ID, "error", err)
	}
}

func (s *PipelineService) recordOutcome(ctx context.Context, outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}

	s.metrics.RecordPipelineOutcome(ctx, outcome)
	s.metrics.RecordPipelineDuration(ctx, time.Since(start), outcome)
}
