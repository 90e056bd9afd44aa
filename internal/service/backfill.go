package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/avisio/hub/internal/classifier"
	"github.com/avisio/hub/internal/models"
	"github.com/avisio/hub/internal/normalizer"
)

// BackfillStats holds statistics from a backfill run.
type BackfillStats struct {
	Processed int
	Errors    int
}

// FeedbackRepositoryForBackfill lists records that still need enrichment.
// excludeIDs filters out records that already failed in this run.
type FeedbackRepositoryForBackfill interface {
	ListUnprocessed(ctx context.Context, restaurantID *uuid.UUID, excludeIDs []uuid.UUID, limit int) ([]models.Feedback, error)
}

// RecordEnricher persists an enrichment result and runs the follow-up steps.
// Implemented by PipelineService.
type RecordEnricher interface {
	EnrichRecord(ctx context.Context, record *models.Feedback, result normalizer.Result) error
}

// BackfillService enriches historical records that have no normalized text,
// using the keyword classifier instead of the language model so a large
// backlog costs nothing in API calls.
type BackfillService struct {
	repo      FeedbackRepositoryForBackfill
	enricher  RecordEnricher
	batchSize int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewBackfillService creates a BackfillService. recordsPerSec paces the run
// to keep the database and downstream services breathing.
func NewBackfillService(
	repo FeedbackRepositoryForBackfill, enricher RecordEnricher,
	batchSize int, recordsPerSec float64, logger *slog.Logger,
) *BackfillService {
	if logger == nil {
		logger = slog.Default()
	}

	return &BackfillService{
		repo:      repo,
		enricher:  enricher,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Limit(recordsPerSec), 1),
		logger:    logger,
	}
}

// Run processes unenriched records in batches until none remain, optionally
// scoped to one restaurant. Individual record failures are counted, not
// fatal. Returns an error only when a batch cannot be fetched or the context
// is cancelled.
func (s *BackfillService) Run(ctx context.Context, restaurantID *uuid.UUID) (*BackfillStats, error) {
	stats := &BackfillStats{}
	failed := map[uuid.UUID]bool{}
	failedIDs := []uuid.UUID{}

	for {
		// Failed records still match the unprocessed filter; excluding them
		// moves the fetch window past a failing batch to the rest of the
		// backlog instead of refetching the same records forever.
		records, err := s.repo.ListUnprocessed(ctx, restaurantID, failedIDs, s.batchSize)
		if err != nil {
			return stats, fmt.Errorf("list unprocessed feedbacks: %w", err)
		}

		if len(records) == 0 {
			break
		}

		attempted := 0

		for i := range records {
			record := &records[i]

			if failed[record.ID] {
				continue
			}
			attempted++

			if err := s.limiter.Wait(ctx); err != nil {
				return stats, fmt.Errorf("backfill pacing: %w", err)
			}

			if err := s.enricher.EnrichRecord(ctx, record, s.classify(record)); err != nil {
				s.logger.Error("backfill: enrich failed", "feedback_id", record.ID, "error", err)
				failed[record.ID] = true
				failedIDs = append(failedIDs, record.ID)
				stats.Errors++

				continue
			}

			stats.Processed++
		}

		// Nothing new in this fetch means the backlog is exhausted.
		if attempted == 0 {
			break
		}

		s.logger.Info("backfill: batch done",
			"batch", len(records),
			"processed", stats.Processed,
			"errors", stats.Errors,
		)
	}

	s.logger.Info("backfill: finished", "processed", stats.Processed, "errors", stats.Errors)

	return stats, nil
}

// classify builds an enrichment result from the keyword classifier.
func (s *BackfillService) classify(record *models.Feedback) normalizer.Result {
	negativeText := ""
	if record.NegativeText != nil {
		negativeText = *record.NegativeText
	}

	parts := []string{}
	for _, text := range []string{record.PositiveText, negativeText} {
		if text != "" {
			parts = append(parts, text)
		}
	}

	combined := strings.Join(parts, " ")
	sentiment := classifier.EstimateSentiment(record.PositiveText, negativeText)

	return normalizer.Result{
		NormalizedText: combined,
		SentimentScore: sentiment,
		Themes:         classifier.Classify(combined),
		Severity:       classifier.EstimateSeverity(sentiment, record.HasNegative()),
	}
}
