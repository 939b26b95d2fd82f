package generation

import "context"

// Store defines the interface for job record persistence. The orchestrator is
// the sole writer after creation; step transitions must be conditional on the
// step's current status so a misdirected write can never clobber a terminal
// record.
type Store interface {
	// CreateJob persists a new job together with all of its pending steps
	CreateJob(ctx context.Context, job *Job) error

	// GetJob returns the current record, or nil when no job exists
	GetJob(ctx context.Context, id string) (*Job, error)

	// ListJobsByOwner returns the owner's jobs, newest first
	ListJobsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Job, error)

	// StartStep moves the step at the given position from pending to
	// processing and sets its started_at timestamp
	StartStep(ctx context.Context, jobID string, position int) error

	// CompleteStep moves a processing step to completed, sets completed_at
	// and merges the step's output into the job's result data. Existing keys
	// are never removed.
	CompleteStep(ctx context.Context, jobID string, position int, output map[string]string) error

	// FailStep moves a step to failed and the whole job to failed, recording
	// the failing step's name and cause
	FailStep(ctx context.Context, jobID string, position int, message string) error

	// CompleteJob moves a processing job to completed
	CompleteJob(ctx context.Context, jobID string) error
}
