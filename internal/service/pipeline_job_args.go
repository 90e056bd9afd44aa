package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const (
	feedbackPipelineKind = "feedback_pipeline"
	// PipelineQueueName is the River queue used for feedback enrichment jobs.
	PipelineQueueName = "pipeline"
)

// PipelineJobInserter inserts enrichment jobs (e.g. River client).
type PipelineJobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// FeedbackPipelineArgs is the job payload for running the enrichment pipeline
// on one feedback record. Uniqueness is by FeedbackID so a burst of triggers
// for the same record collapses into one pending job.
type FeedbackPipelineArgs struct {
	FeedbackID uuid.UUID `json:"feedback_id" river:"unique"`
}

// Kind returns the River job kind.
func (FeedbackPipelineArgs) Kind() string { return feedbackPipelineKind }

var _ river.JobArgs = FeedbackPipelineArgs{}
