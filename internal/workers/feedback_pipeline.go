// Package workers provides River job workers.
package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/avisio/hub/internal/service"
)

// feedbackPipelineService is the minimal interface needed by the worker.
type feedbackPipelineService interface {
	ProcessFeedback(ctx context.Context, id uuid.UUID) error
}

// FeedbackPipelineWorker runs the enrichment pipeline for one feedback record.
type FeedbackPipelineWorker struct {
	river.WorkerDefaults[service.FeedbackPipelineArgs]

	pipeline feedbackPipelineService
	logger   *slog.Logger
}

// NewFeedbackPipelineWorker creates a worker that runs the enrichment
// pipeline for the record named in the job.
func NewFeedbackPipelineWorker(pipeline feedbackPipelineService, logger *slog.Logger) *FeedbackPipelineWorker {
	if logger == nil {
		logger = slog.Default()
	}

	return &FeedbackPipelineWorker{pipeline: pipeline, logger: logger}
}

const feedbackPipelineTimeout = 60 * time.Second

// Timeout limits how long a single pipeline job can run.
func (w *FeedbackPipelineWorker) Timeout(*river.Job[service.FeedbackPipelineArgs]) time.Duration {
	return feedbackPipelineTimeout
}

// Work runs the pipeline. It always returns nil: the pipeline is
// fire-and-forget, and partial results (normalization without embedding) are
// left for the backfill or a manual re-trigger rather than retried here.
func (w *FeedbackPipelineWorker) Work(ctx context.Context, job *river.Job[service.FeedbackPipelineArgs]) error {
	if err := w.pipeline.ProcessFeedback(ctx, job.Args.FeedbackID); err != nil {
		w.logger.Error("pipeline worker: run failed",
			"feedback_id", job.Args.FeedbackID,
			"error", err,
		)
	}

	return nil
}
