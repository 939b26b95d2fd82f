package generation

import (
	"context"
	"time"
)

// StatusQuerier is the read side the poller depends on. *QueryService
// satisfies it; an HTTP client against the status endpoint would too.
type StatusQuerier interface {
	GetJob(ctx context.Context, jobID, requesterID string) (*Job, error)
}

// Poller repeatedly queries a job's status at a fixed interval until the job
// reaches a terminal state, the maximum wait elapses or the context is
// cancelled.
type Poller struct {
	querier  StatusQuerier
	interval time.Duration
	maxWait  time.Duration
}

func NewPoller(querier StatusQuerier, interval, maxWait time.Duration) *Poller {
	return &Poller{
		querier:  querier,
		interval: interval,
		maxWait:  maxWait,
	}
}

// Poll follows one job to its end. onProgress, when non-nil, is invoked with
// the current record on every tick that observes the job still processing.
//
// Outcomes:
//   - job completed: the final record, nil error
//   - job failed: the final record plus a *StepExecutionError built from the
//     job's recorded error
//   - maximum wait exceeded: nil record, *TimeoutError (the job itself is
//     untouched and may still be running server-side)
//   - context cancelled: nil record, the context's error
func (p *Poller) Poll(ctx context.Context, jobID, requesterID string, onProgress func(*Job)) (*Job, error) {
	started := time.Now()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	deadline := time.NewTimer(p.maxWait)
	defer deadline.Stop()

	for {
		job, err := p.querier.GetJob(ctx, jobID, requesterID)
		if err != nil {
			return nil, err
		}

		switch job.Status {
		case StatusCompleted:
			return job, nil
		case StatusFailed:
			failure := &StepExecutionError{Message: "job failed"}
			if job.Error != nil {
				failure.Step = job.Error.Step
				failure.Message = job.Error.Message
			}
			return job, failure
		default:
			if onProgress != nil {
				onProgress(job)
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, &TimeoutError{JobID: jobID, Elapsed: time.Since(started)}
		case <-ticker.C:
		}
	}
}
