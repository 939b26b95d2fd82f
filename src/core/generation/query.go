package generation

import (
	"context"
	"fmt"
)

// QueryService provides read-only access to job records with ownership
// enforcement. It never mutates and is safe for concurrent use.
type QueryService struct {
	store Store
}

func NewQueryService(store Store) *QueryService {
	return &QueryService{store: store}
}

// GetJob returns the job's current record. It fails with ErrJobNotFound when
// no record exists and ErrForbidden when the requester is not the owner.
func (s *QueryService) GetJob(ctx context.Context, jobID, requesterID string) (*Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	if job.OwnerID != requesterID {
		return nil, ErrForbidden
	}
	return job, nil
}

// ListJobs returns the requester's own jobs, newest first
func (s *QueryService) ListJobs(ctx context.Context, requesterID string, limit, offset int) ([]Job, error) {
	jobs, err := s.store.ListJobsByOwner(ctx, requesterID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}
