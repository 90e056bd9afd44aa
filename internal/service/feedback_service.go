package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/avisio/hub/internal/apperrors"
	"github.com/avisio/hub/internal/models"
)

// FeedbackRepository defines the data access needed by FeedbackService.
type FeedbackRepository interface {
	Create(ctx context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Feedback, error)
}

// FeedbackService handles feedback intake. Creating a record also triggers
// the enrichment pipeline, fire-and-forget: a failed enqueue never fails the
// creation.
type FeedbackService struct {
	repo     FeedbackRepository
	inserter PipelineJobInserter
	logger   *slog.Logger
}

// NewFeedbackService creates a FeedbackService. inserter may be nil when the
// pipeline is disabled (records are created unenriched).
func NewFeedbackService(repo FeedbackRepository, inserter PipelineJobInserter, logger *slog.Logger) *FeedbackService {
	if logger == nil {
		logger = slog.Default()
	}

	return &FeedbackService{repo: repo, inserter: inserter, logger: logger}
}

// CreateFeedback validates and stores a new feedback record, then enqueues
// the enrichment job.
func (s *FeedbackService) CreateFeedback(ctx context.Context, req *models.CreateFeedbackRequest) (*models.Feedback, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, err
	}

	record, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create feedback: %w", err)
	}

	s.enqueuePipeline(ctx, record.ID)

	return record, nil
}

// GetFeedback retrieves a single feedback record by ID.
func (s *FeedbackService) GetFeedback(ctx context.Context, id uuid.UUID) (*models.Feedback, error) {
	return s.repo.GetByID(ctx, id)
}

// TriggerPipeline re-enqueues the enrichment job for an existing record.
func (s *FeedbackService) TriggerPipeline(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return fmt.Errorf("get feedback: %w", err)
	}

	s.enqueuePipeline(ctx, id)

	return nil
}

// enqueuePipeline inserts the enrichment job. Failures are logged only.
func (s *FeedbackService) enqueuePipeline(ctx context.Context, id uuid.UUID) {
	if s.inserter == nil {
		return
	}

	opts := &river.InsertOpts{
		Queue:       PipelineQueueName,
		MaxAttempts: 1,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}

	_, err := s.inserter.Insert(ctx, FeedbackPipelineArgs{FeedbackID: id}, opts)
	if err != nil {
		s.logger.Error("pipeline: enqueue failed", "feedback_id", id, "error", err)

		return
	}

	s.logger.Info("pipeline: job enqueued", "feedback_id", id)
}

func (s *FeedbackService) validateCreateRequest(req *models.CreateFeedbackRequest) error {
	if req.RestaurantID == uuid.Nil {
		return apperrors.NewValidationError("restaurantId", "restaurantId is required")
	}

	if strings.TrimSpace(req.PositiveText) == "" {
		return apperrors.NewValidationError("positiveText", "positiveText is required")
	}

	if strings.TrimSpace(req.ServiceType) == "" {
		return apperrors.NewValidationError("serviceType", "serviceType is required")
	}

	return nil
}
