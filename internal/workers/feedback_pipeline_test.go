package workers

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/stretchr/testify/assert"

	"github.com/avisio/hub/internal/service"
)

type mockPipeline struct {
	processFunc func(ctx context.Context, id uuid.UUID) error
	calls       []uuid.UUID
}

func (m *mockPipeline) ProcessFeedback(ctx context.Context, id uuid.UUID) error {
	m.calls = append(m.calls, id)

	if m.processFunc != nil {
		return m.processFunc(ctx, id)
	}

	return nil
}

func TestFeedbackPipelineWorker(t *testing.T) {
	feedbackID := uuid.New()
	job := &river.Job[service.FeedbackPipelineArgs]{
		Args: service.FeedbackPipelineArgs{FeedbackID: feedbackID},
	}

	t.Run("runs the pipeline for the job's record", func(t *testing.T) {
		pipeline := &mockPipeline{}
		worker := NewFeedbackPipelineWorker(pipeline, slog.Default())

		err := worker.Work(context.Background(), job)

		assert.NoError(t, err)
		assert.Equal(t, []uuid.UUID{feedbackID}, pipeline.calls)
	})

	t.Run("never returns an error to River", func(t *testing.T) {
		pipeline := &mockPipeline{
			processFunc: func(context.Context, uuid.UUID) error {
				return errors.New("db down")
			},
		}
		worker := NewFeedbackPipelineWorker(pipeline, slog.Default())

		err := worker.Work(context.Background(), job)

		assert.NoError(t, err)
	})

	t.Run("timeout is bounded", func(t *testing.T) {
		worker := NewFeedbackPipelineWorker(&mockPipeline{}, nil)

		assert.Equal(t, feedbackPipelineTimeout, worker.Timeout(job))
	})
}
